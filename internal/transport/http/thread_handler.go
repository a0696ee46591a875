package httptransport

import (
	"github.com/gin-gonic/gin"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/service"
)

type createThreadRequest struct {
	WebsiteID      string  `json:"websiteId" binding:"required"`
	Type           string  `json:"type" binding:"required"`
	Subject        string  `json:"subject"`
	OrderID        *string `json:"orderId"`
	SpecialOrderID *string `json:"specialOrderId"`
	ClassBundleID  *string `json:"classBundleId"`
	Counterpart    string  `json:"counterpart"`
}

// createThread 创建会话线程。
func (h *Handler) createThread(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	thread, err := h.threads.Create(user, service.CreateThreadInput{
		WebsiteID:      req.WebsiteID,
		Type:           domain.ThreadType(req.Type),
		Subject:        req.Subject,
		OrderID:        req.OrderID,
		SpecialOrderID: req.SpecialOrderID,
		ClassBundleID:  req.ClassBundleID,
		Counterpart:    req.Counterpart,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, thread)
}

// listThreads 返回当前用户可见的线程列表。
func (h *Handler) listThreads(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	threads, err := h.threads.ListVisible(user)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, threads)
}

// listThreadMessages 返回线程内当前用户可见的消息。
func (h *Handler) listThreadMessages(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	messages, err := h.threads.VisibleMessages(user, c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, messages)
}

// deleteThread 删除线程（级联删除消息），仅限内部人员。
func (h *Handler) deleteThread(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.threads.Delete(user, c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	NoContent(c)
}

type toggleThreadRequest struct {
	Active bool `json:"active"`
}

// toggleThread 启用/禁用线程。
func (h *Handler) toggleThread(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req toggleThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.threads.SetActive(user, c.Param("id"), req.Active); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"active": req.Active})
}

type overrideThreadRequest struct {
	Override bool `json:"override"`
}

// overrideThread 设置管理员覆盖标志。
func (h *Handler) overrideThread(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req overrideThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.threads.SetAdminOverride(user, c.Param("id"), req.Override); err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{"override": req.Override})
}
