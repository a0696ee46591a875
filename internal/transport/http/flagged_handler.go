package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// listFlagged 分页返回待审核的拦截消息队列。
func (h *Handler) listFlagged(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	entries, total, counts, err := h.flagged.Queue(user, page, pageSize)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, gin.H{
		"entries":  entries,
		"total":    total,
		"counts":   counts,
		"page":     page,
		"pageSize": pageSize,
	})
}

type unblockRequest struct {
	Comment string `json:"comment"`
}

// unblockMessage 放行被拦截消息并记录审核意见。
func (h *Handler) unblockMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req unblockRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	flag, err := h.flagged.Unblock(user, c.Param("messageId"), req.Comment)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, flag)
}

// reflagMessage 将已放行的消息重新拦截。
func (h *Handler) reflagMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	flag, err := h.flagged.Reflag(user, c.Param("messageId"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, flag)
}
