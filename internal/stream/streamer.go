package stream

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/service"
)

const (
	// 刷新周期：线程总览慢、单线程消息快
	threadsInterval  = 15 * time.Second
	messagesInterval = 5 * time.Second
)

// Streamer 通过 SSE 周期性推送线程与消息快照。
//
// 连接建立后先推一帧当前快照，之后按周期重推；客户端断开
// （请求上下文取消）后循环立即退出。
type Streamer struct {
	threads *service.ThreadService
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewStreamer 创建 SSE 推送器。metrics 可为 nil。
func NewStreamer(threads *service.ThreadService, metrics *monitoring.Metrics, log *zap.Logger) *Streamer {
	return &Streamer{threads: threads, metrics: metrics, log: log}
}

// StreamThreads 推送用户可见的线程列表快照。
func (s *Streamer) StreamThreads(c *gin.Context, user *domain.User) {
	s.run(c, user, threadsInterval, "threads", func() (any, error) {
		return s.threads.ListVisible(user)
	})
}

// StreamThreadMessages 推送线程内用户可见的消息快照。
func (s *Streamer) StreamThreadMessages(c *gin.Context, user *domain.User, threadID string) {
	s.run(c, user, messagesInterval, "messages", func() (any, error) {
		return s.threads.VisibleMessages(user, threadID)
	})
}

func (s *Streamer) run(c *gin.Context, user *domain.User, interval time.Duration, event string, snapshot func() (any, error)) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if s.metrics != nil {
		s.metrics.StreamStarted()
		defer s.metrics.StreamEnded()
	}

	// 首帧立即推送
	if !s.push(c, event, snapshot) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("sse stream closed",
				zap.String("event", event),
				zap.String("userID", user.ID))
			return
		case <-ticker.C:
			if !s.push(c, event, snapshot) {
				return
			}
		}
	}
}

// push 推送一帧快照，推送失败返回 false 终止流。
func (s *Streamer) push(c *gin.Context, event string, snapshot func() (any, error)) bool {
	payload, err := snapshot()
	if err != nil {
		s.log.Warn("sse snapshot failed",
			zap.String("event", event), zap.Error(err))
		c.SSEvent("error", gin.H{"error": "snapshot unavailable"})
		c.Writer.Flush()
		return false
	}

	c.SSEvent(event, payload)
	c.Writer.Flush()
	return true
}
