package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/service"
)

type sendMessageRequest struct {
	RecipientID  string  `json:"recipientId" binding:"required"`
	Body         string  `json:"body"`
	Type         string  `json:"type"`
	AttachmentID *string `json:"attachmentId"`
	ReplyToID    *string `json:"replyToId"`
}

// sendMessage 在线程内发送消息。
func (h *Handler) sendMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.messages.Send(user, service.SendInput{
		ThreadID:     c.Param("id"),
		RecipientID:  req.RecipientID,
		Body:         req.Body,
		Type:         domain.MessageType(req.Type),
		AttachmentID: req.AttachmentID,
		ReplyToID:    req.ReplyToID,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, msg)
}

type editMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// editMessage 管理员更正消息正文。
func (h *Handler) editMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.messages.Edit(user, c.Param("messageId"), req.Body)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, msg)
}

// deleteMessage 软删除消息。
func (h *Handler) deleteMessage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.messages.Delete(user, c.Param("messageId")); err != nil {
		WriteError(c, err)
		return
	}
	NoContent(c)
}

type markReadRequest struct {
	ViewedForMs int64 `json:"viewedForMs" binding:"required"`
}

// markMessageRead 记录已读回执。
func (h *Handler) markMessageRead(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	receipt, err := h.receipts.MarkRead(user, c.Param("messageId"),
		time.Duration(req.ViewedForMs)*time.Millisecond)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, receipt)
}

// listMessageReceipts 列出消息的全部回执，仅限内部人员。
func (h *Handler) listMessageReceipts(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	receipts, err := h.receipts.ListByMessage(user, c.Param("messageId"))
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, receipts)
}

// resetPreview 重置失败的链接预览并重新调度抓取。
func (h *Handler) resetPreview(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	messageID := c.Param("messageId")
	if err := h.fetcher.Reset(messageID); err != nil {
		WriteError(c, err)
		return
	}

	if h.audit != nil {
		if err := h.audit.Write(domain.AuditEntry{
			ActorID:     user.ID,
			WebsiteID:   user.WebsiteID,
			Action:      domain.AuditPreviewReset,
			Description: "link preview reset",
			Metadata:    map[string]string{"messageId": messageID},
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			h.log.Warn("audit write failed", zap.Error(err))
		}
	}
	Success(c, gin.H{"state": domain.PreviewStatePending})
}
