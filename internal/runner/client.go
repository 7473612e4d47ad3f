package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var (
	// ErrDispatch 提交未到达运行器（网络失败或非 2xx）
	// 本层不做自动重试，重试策略属于调用方
	ErrDispatch = errors.New("job dispatch failed")
	// ErrPoll 轮询请求失败
	ErrPoll = errors.New("job poll failed")
)

// Blob 提交给运行器的一个二进制载荷
type Blob struct {
	Field       string // multipart 字段名，如 "images"
	Filename    string
	ContentType string
	Reader      io.Reader
}

// Client GPU 任务运行器客户端
// 运行器是黑盒：提交后立即拿到任务句柄，执行、重试、结果存储
// 都由运行器自行负责；句柄之外客户端不保存任何会话状态
type Client struct {
	baseURL string
	// submit/status 用短超时客户端；poll 可能串流大文件，
	// 只限制响应头时延，响应体交由调用方的 context 控制
	submitClient *http.Client
	streamClient *http.Client
}

// NewClient 创建运行器客户端
func NewClient(baseURL string, submitTimeout time.Duration) *Client {
	if submitTimeout == 0 {
		submitTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		submitClient: &http.Client{Timeout: submitTimeout},
		streamClient: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second},
		},
	}
}

// Submit 提交一个任务，立即返回任务句柄，从不等待任务完成
// 标量参数作为普通表单字段，二进制载荷以 multipart 文件字段串流上传
func (c *Client) Submit(ctx context.Context, endpoint string, params map[string]string, blobs []Blob) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeSubmitBody(writer, params, blobs)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.submitClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrDispatch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var submitResp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return "", fmt.Errorf("%w: invalid submit response: %v", ErrDispatch, err)
	}
	if submitResp.TaskID == "" {
		return "", fmt.Errorf("%w: submit response has no task_id", ErrDispatch)
	}
	return submitResp.TaskID, nil
}

// writeSubmitBody 写 multipart 请求体：先标量参数，再二进制载荷
func writeSubmitBody(writer *multipart.Writer, params map[string]string, blobs []Blob) error {
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	for _, blob := range blobs {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, blob.Field, blob.Filename))
		contentType := blob.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, blob.Reader); err != nil {
			return err
		}
	}
	return nil
}

// Poll 按句柄查询任务状态
// 重复轮询同一句柄是安全的只读操作，不改变运行器侧状态。
// JSON 响应整体读入并按任务状态分类；二进制响应不缓冲，
// 直接把响应体作为流交给调用方，调用方停止读取即停止拉取
func (c *Client) Poll(ctx context.Context, handle string) (*RawJobResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+handle, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoll, err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoll, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrPoll, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPoll, err)
		}

		var status StructuredBody
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("%w: invalid status body: %v", ErrPoll, err)
		}
		if pendingStates[status.TaskStatus] {
			return &RawJobResult{Kind: KindPending, Body: body}, nil
		}
		return &RawJobResult{Kind: KindStructured, Body: body}, nil
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", ErrPoll, resp.StatusCode)
	}

	return &RawJobResult{
		Kind:        KindBinary,
		ContentType: contentType,
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		Stream:      resp.Body,
	}, nil
}

// dispositionFilename 从 Content-Disposition 取产物文件名，缺省 output.zip
func dispositionFilename(disposition string) string {
	if disposition == "" {
		return FallbackFilename
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	return FallbackFilename
}

// Status 运行器侧只读状态查询（健康检查、CUDA 可用性与占用）
func (c *Client) Status(ctx context.Context, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoll, err)
	}

	resp, err := c.submitClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoll, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrPoll, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoll, err)
	}
	return body, nil
}

// Health 运行器健康检查
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.Status(ctx, "/device/health")
}

// CUDAAvailable 查询 CUDA 是否可用
func (c *Client) CUDAAvailable(ctx context.Context) (json.RawMessage, error) {
	return c.Status(ctx, "/device/cuda_available")
}

// CUDAUsage 查询 CUDA 显存占用
func (c *Client) CUDAUsage(ctx context.Context) (json.RawMessage, error) {
	return c.Status(ctx, "/device/cuda_usage")
}
