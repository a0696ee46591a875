package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"scribemarket/backend/internal/auth"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgInvalidJSON        = "JSON格式错误"
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgPermissionDenied   = "权限不足"
	MsgThreadNotFound     = "会话不存在"
	MsgMessageNotFound    = "消息不存在"
	MsgUserNotFound       = "用户不存在"
	MsgAttachmentNotFound = "附件不存在"
	MsgRateLimited        = "发送过于频繁，请稍后再试"
	MsgInternalError      = "服务器内部错误"
)

// WriteError 按错误分类写出 HTTP 响应。
//
// 业务层统一用 domain 包的分类基准值包装错误，这里只认
// errors.Is，不认具体错误串。
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		Forbidden(c, MsgPermissionDenied)
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrThreadMultipleUnits),
		errors.Is(err, domain.ErrThreadUnitMismatch):
		BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		TooManyRequests(c, MsgRateLimited)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, storage.ErrThreadNotFound),
		errors.Is(err, storage.ErrMessageNotFound),
		errors.Is(err, storage.ErrFlagNotFound),
		errors.Is(err, storage.ErrNotificationNotFound),
		errors.Is(err, storage.ErrAlertNotFound),
		errors.Is(err, storage.ErrUserNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, storage.ErrUserExists):
		Conflict(c, "用户名已存在")
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(c, MsgInvalidCredentials)
	case errors.Is(err, auth.ErrUserInactive):
		Forbidden(c, "账户已被禁用")
	case errors.Is(err, auth.ErrInvalidPassword):
		BadRequest(c, err.Error())
	default:
		InternalError(c, MsgInternalError)
	}
}
