package runner

import (
	"encoding/json"
	"io"
)

// ResultKind 任务结果分类
type ResultKind int

const (
	// KindPending 任务尚未完成
	KindPending ResultKind = iota
	// KindStructured 结构化 JSON 结果
	KindStructured
	// KindBinary 二进制产物（如打包的模型归档），以流的形式交付
	KindBinary
)

// FallbackFilename 运行器未提供 disposition 文件名时的缺省值
const FallbackFilename = "output.zip"

// RawJobResult 轮询结果的带标签联合
// 不在各调用点嗅探 Content-Type，分类只在客户端做一次
type RawJobResult struct {
	Kind ResultKind

	// Kind == KindStructured / KindPending 时有效
	Body json.RawMessage

	// Kind == KindBinary 时有效；Stream 是运行器的原始响应体，
	// 按需逐段读取，调用方负责 Close，背压直接传导到运行器连接
	ContentType string
	Filename    string
	Stream      io.ReadCloser
}

// StructuredBody 结构化结果的通用载荷
type StructuredBody struct {
	TaskStatus string   `json:"task_status"`
	ImageList  []string `json:"image_list,omitempty"` // base64 编码的产出图片，保持运行器给出的顺序
	Message    string   `json:"message,omitempty"`
}

// pendingStates 运行器侧视为"未完成"的任务状态
var pendingStates = map[string]bool{
	"PENDING": true,
	"STARTED": true,
	"RETRY":   true,
}
