package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribemarket/backend/internal/attachments"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/linkpreview"
	"scribemarket/backend/internal/middleware"
	"scribemarket/backend/internal/moderation"
	"scribemarket/backend/internal/service"
	"scribemarket/backend/internal/storage"
	"scribemarket/backend/internal/stream"
)

// Handler 聚合消息核心的全部 HTTP 处理逻辑。
type Handler struct {
	threads       *service.ThreadService
	messages      *service.MessageService
	receipts      *service.ReceiptService
	flagged       *service.FlaggedService
	notifications *service.NotificationService
	fetcher       *linkpreview.Fetcher
	banList       *moderation.BanList
	attachments   *attachments.Store
	streamer      *stream.Streamer
	store         storage.Store
	audit         domain.AuditSink
	log           *zap.Logger

	// banListChanged 在违禁词变更后通知其他实例重载，可为空。
	banListChanged func()
}

// HandlerDeps 汇总 Handler 依赖。
type HandlerDeps struct {
	Threads        *service.ThreadService
	Messages       *service.MessageService
	Receipts       *service.ReceiptService
	Flagged        *service.FlaggedService
	Notifications  *service.NotificationService
	Fetcher        *linkpreview.Fetcher
	BanList        *moderation.BanList
	Attachments    *attachments.Store
	Streamer       *stream.Streamer
	Store          storage.Store
	Audit          domain.AuditSink
	Log            *zap.Logger
	BanListChanged func()
}

// NewHandler 创建 HTTP 处理器。
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		threads:        deps.Threads,
		messages:       deps.Messages,
		receipts:       deps.Receipts,
		flagged:        deps.Flagged,
		notifications:  deps.Notifications,
		fetcher:        deps.Fetcher,
		banList:        deps.BanList,
		attachments:    deps.Attachments,
		streamer:       deps.Streamer,
		store:          deps.Store,
		audit:          deps.Audit,
		log:            deps.Log,
		banListChanged: deps.BanListChanged,
	}
}

// currentUser 从认证中间件写入的上下文里加载完整用户。
// 角色以数据库为准，不信任令牌里的快照。
func (h *Handler) currentUser(c *gin.Context) (*domain.User, bool) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return nil, false
	}
	user, err := h.store.GetUserByID(userID)
	if err != nil {
		Unauthorized(c, MsgUserNotFound)
		return nil, false
	}
	return user, true
}
