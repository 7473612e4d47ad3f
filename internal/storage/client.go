package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrDisabled 未配置对象存储
var ErrDisabled = errors.New("object storage not configured")

// Config 对象存储连接配置
type Config struct {
	Endpoint        string `mapstructure:"endpoint"` // 如 "minio:9000"
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// Client 对象存储客户端，包装 MinIO
// Endpoint 为空时客户端处于禁用状态，所有操作返回 ErrDisabled
type Client struct {
	mc      *minio.Client
	bucket  string
	baseURL string
	enabled bool
}

// NewClient 创建对象存储客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return &Client{enabled: false}, nil
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "lumina-outputs"
	}
	return &Client{
		mc:      mc,
		bucket:  bucket,
		baseURL: fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, bucket),
		enabled: true,
	}, nil
}

// Enabled 是否已配置对象存储
func (c *Client) Enabled() bool {
	return c.enabled
}

// EnsureBucket 创建输出桶（幂等）
func (c *Client) EnsureBucket(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
}

// UploadImages 上传一组解码后的图片，返回对应的持久 URL 列表
// 顺序契约：返回列表第 i 项对应输入列表第 i 项
func (c *Client) UploadImages(ctx context.Context, images [][]byte) ([]string, error) {
	if !c.enabled {
		return nil, ErrDisabled
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	prefix := time.Now().Format("20060102") + "/" + uuid.NewString()
	urls := make([]string, 0, len(images))
	for i, image := range images {
		key := fmt.Sprintf("%s/%d.png", prefix, i)
		_, err := c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(image), int64(len(image)),
			minio.PutObjectOptions{ContentType: "image/png"})
		if err != nil {
			return nil, fmt.Errorf("upload image %d: %w", i, err)
		}
		urls = append(urls, c.baseURL+"/"+key)
	}
	return urls, nil
}
