package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestCounter 平台请求量计数器
// 总量用原子计数，QPS 用双窗口滑动估算
type RequestCounter struct {
	totalRequests int64
	startedAt     time.Time

	mu             sync.RWMutex
	window         counterWindow
	previous       counterWindow
	windowDuration time.Duration
}

// counterWindow 一个统计窗口
type counterWindow struct {
	count     int64
	startedAt time.Time
}

// NewRequestCounter 创建请求计数器并启动窗口滚动协程
func NewRequestCounter(windowDuration time.Duration) *RequestCounter {
	if windowDuration == 0 {
		windowDuration = 60 * time.Second
	}

	now := time.Now()
	counter := &RequestCounter{
		startedAt:      now,
		windowDuration: windowDuration,
		window:         counterWindow{startedAt: now},
		previous:       counterWindow{startedAt: now.Add(-windowDuration)},
	}

	go counter.rotate()

	return counter
}

// Increment 记录一次请求
func (rc *RequestCounter) Increment() {
	atomic.AddInt64(&rc.totalRequests, 1)

	rc.mu.Lock()
	rc.window.count++
	rc.mu.Unlock()
}

// Total 启动以来的总请求数
func (rc *RequestCounter) Total() int64 {
	return atomic.LoadInt64(&rc.totalRequests)
}

// QPS 当前每秒请求数估计
// 当前窗口尚短时与上一窗口加权平均，避免刚滚动后数值跳变
func (rc *RequestCounter) QPS() float64 {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	elapsed := time.Since(rc.window.startedAt).Seconds()
	if elapsed == 0 {
		elapsed = 1
	}

	current := float64(rc.window.count) / elapsed

	windowSeconds := rc.windowDuration.Seconds()
	if elapsed < windowSeconds {
		prevWeight := (windowSeconds - elapsed) / windowSeconds
		prev := float64(rc.previous.count) / windowSeconds
		return current*(1-prevWeight) + prev*prevWeight
	}

	return current
}

// rotate 按窗口时长滚动统计窗口
func (rc *RequestCounter) rotate() {
	ticker := time.NewTicker(rc.windowDuration)
	defer ticker.Stop()

	for range ticker.C {
		rc.mu.Lock()
		rc.previous = rc.window
		rc.window = counterWindow{startedAt: time.Now()}
		rc.mu.Unlock()
	}
}

// RequestStats 平台请求量快照
type RequestStats struct {
	TotalRequests int64   `json:"total_requests"`
	CurrentQPS    float64 `json:"current_qps"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// GetStats 获取当前快照
func (rc *RequestCounter) GetStats() RequestStats {
	return RequestStats{
		TotalRequests: rc.Total(),
		CurrentQPS:    rc.QPS(),
		UptimeSeconds: time.Since(rc.startedAt).Seconds(),
	}
}
