package httptransport

import (
	"github.com/gin-gonic/gin"
)

// listNotifications 返回当前用户的通知。
func (h *Handler) listNotifications(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	onlyUnread := c.Query("unread") == "true"
	notifications, err := h.notifications.List(user, onlyUnread)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, notifications)
}

// markNotificationRead 标记通知为已读。
func (h *Handler) markNotificationRead(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(user, c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	NoContent(c)
}
