package httptransport

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// listBannedWords 列出全部违禁词。
func (h *Handler) listBannedWords(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	Success(c, h.banList.Words())
}

type bannedWordRequest struct {
	Word string `json:"word" binding:"required"`
}

// addBannedWord 新增违禁词并热更新匹配器。
func (h *Handler) addBannedWord(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	var req bannedWordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	word := strings.ToLower(strings.TrimSpace(req.Word))
	if word == "" {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.store.SaveBannedWord(&domain.BannedWord{
		ID:        uuid.NewString(),
		Word:      word,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		WriteError(c, err)
		return
	}
	h.reloadBanList()
	Created(c, gin.H{"word": word})
}

// deleteBannedWord 删除违禁词并热更新匹配器。
func (h *Handler) deleteBannedWord(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	word := strings.ToLower(strings.TrimSpace(c.Param("word")))
	if err := h.store.DeleteBannedWord(word); err != nil {
		WriteError(c, err)
		return
	}
	h.reloadBanList()
	NoContent(c)
}

// reloadBanList 刷新本地匹配器，并在配置了广播时通知其他实例。
func (h *Handler) reloadBanList() {
	if err := h.banList.Reload(); err != nil {
		h.log.Warn("ban list reload failed", zap.Error(err))
	}
	if h.banListChanged != nil {
		h.banListChanged()
	}
}

// reloadBannedWords 手动触发违禁词重载。
func (h *Handler) reloadBannedWords(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	h.reloadBanList()
	Success(c, gin.H{"words": len(h.banList.Words())})
}
