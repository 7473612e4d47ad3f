package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Mieluoxxx/Lumina-API/internal/localio"
	"github.com/Mieluoxxx/Lumina-API/internal/runner"
)

// Environment 结果落地环境
type Environment string

const (
	// EnvLocal 产出图片写入本地目录
	EnvLocal Environment = "local"
	// EnvRemote 产出图片上传对象存储，返回 URL 列表
	EnvRemote Environment = "remote"
)

var (
	// ErrUnknownEnvironment 未知的落地环境
	ErrUnknownEnvironment = errors.New("unknown gpu environment")
	// ErrBadImagePayload 运行器返回的图片载荷不是合法 base64
	ErrBadImagePayload = errors.New("invalid image payload from runner")
)

// ParseEnvironment 解析环境标签
func ParseEnvironment(value string) (Environment, error) {
	switch Environment(value) {
	case EnvLocal, EnvRemote:
		return Environment(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, value)
	}
}

// OutcomeKind 解析结果分类
type OutcomeKind int

const (
	// OutcomeNotReady 任务尚未完成，不是错误
	OutcomeNotReady OutcomeKind = iota
	// OutcomeSaved 图片已写入本地目录
	OutcomeSaved
	// OutcomeUploaded 图片已上传对象存储
	OutcomeUploaded
	// OutcomeStatus 结构化结果但不含图片，原样透传
	OutcomeStatus
	// OutcomeArtifact 二进制产物，流式转交调用方
	OutcomeArtifact
)

// Outcome 解析后的任务结果
type Outcome struct {
	Kind OutcomeKind

	Written int             // OutcomeSaved：成功写入的图片数
	URLs    []string        // OutcomeUploaded：与输入同序的 URL 列表
	Body    json.RawMessage // OutcomeStatus / OutcomeNotReady：原始状态载荷

	// OutcomeArtifact：原始内容类型、文件名与字节流，调用方负责 Close
	ContentType string
	Filename    string
	Stream      io.ReadCloser
}

// ImageStore 把解码后的图片持久化为可访问 URL 的后端
// 返回列表第 i 项必须对应输入列表第 i 项
type ImageStore interface {
	UploadImages(ctx context.Context, images [][]byte) ([]string, error)
}

// Resolver 任务结果解析器
// 通过运行器客户端轮询句柄，把结构化/二进制结果
// 按环境路由到本地磁盘、对象存储或调用方的下行流
type Resolver struct {
	runner  *runner.Client
	storage ImageStore
}

// NewResolver 创建 Resolver 实例
func NewResolver(runnerClient *runner.Client, store ImageStore) *Resolver {
	return &Resolver{runner: runnerClient, storage: store}
}

// Resolve 轮询并解析一个任务句柄
// outputPath 仅在 env == local 且结果包含图片时使用
func (r *Resolver) Resolve(ctx context.Context, handle string, env Environment, outputPath string) (*Outcome, error) {
	result, err := r.runner.Poll(ctx, handle)
	if err != nil {
		return nil, err
	}

	switch result.Kind {
	case runner.KindPending:
		return &Outcome{Kind: OutcomeNotReady, Body: result.Body}, nil

	case runner.KindStructured:
		var body runner.StructuredBody
		if err := json.Unmarshal(result.Body, &body); err != nil {
			return nil, fmt.Errorf("decode structured result: %w", err)
		}
		if len(body.ImageList) == 0 {
			return &Outcome{Kind: OutcomeStatus, Body: result.Body}, nil
		}
		return r.RouteImages(ctx, body.ImageList, env, outputPath)

	case runner.KindBinary:
		return &Outcome{
			Kind:        OutcomeArtifact,
			ContentType: result.ContentType,
			Filename:    result.Filename,
			Stream:      result.Stream,
		}, nil

	default:
		return nil, fmt.Errorf("unexpected result kind %d", result.Kind)
	}
}

// RouteImages 把 base64 编码的图片列表按环境落地
// 顺序契约：输出（文件编号 / URL 位置）与输入顺序一一对应
func (r *Resolver) RouteImages(ctx context.Context, encoded []string, env Environment, outputPath string) (*Outcome, error) {
	images, err := decodeImages(encoded)
	if err != nil {
		return nil, err
	}

	switch env {
	case EnvLocal:
		written, err := localio.SaveImages(outputPath, images)
		if err != nil {
			return &Outcome{Kind: OutcomeSaved, Written: written}, err
		}
		return &Outcome{Kind: OutcomeSaved, Written: written}, nil

	case EnvRemote:
		urls, err := r.storage.UploadImages(ctx, images)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeUploaded, URLs: urls}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
}

// decodeImages 解码运行器给出的 base64 图片，保持原始顺序
func decodeImages(encoded []string) ([][]byte, error) {
	images := make([][]byte, 0, len(encoded))
	for i, payload := range encoded {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: index %d: %v", ErrBadImagePayload, i, err)
		}
		images = append(images, data)
	}
	return images, nil
}
