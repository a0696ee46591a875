package httptransport

import (
	"github.com/gin-gonic/gin"
)

// streamThreads 以 SSE 推送当前用户可见线程列表快照。
func (h *Handler) streamThreads(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	h.streamer.StreamThreads(c, user)
}

// streamThreadMessages 以 SSE 推送单个线程的可见消息快照。
func (h *Handler) streamThreadMessages(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	h.streamer.StreamThreadMessages(c, user, c.Param("id"))
}
