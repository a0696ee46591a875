package service

import (
	"scribemarket/backend/internal/access"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// StreamAccess 为实时推送层提供线程订阅授权。
type StreamAccess struct {
	store storage.Store
	guard *access.Guard
}

// NewStreamAccess 创建实时订阅授权器。
func NewStreamAccess(store storage.Store, guard *access.Guard) *StreamAccess {
	return &StreamAccess{store: store, guard: guard}
}

// GetThread 读取线程。
func (a *StreamAccess) GetThread(id string) (*domain.Thread, error) {
	return a.store.GetThread(id)
}

// GetUserByID 读取用户。
func (a *StreamAccess) GetUserByID(id string) (*domain.User, error) {
	return a.store.GetUserByID(id)
}

// CanRead 判断用户能否读取线程内容，口径与线程消息查询一致。
func (a *StreamAccess) CanRead(user *domain.User, thread *domain.Thread) bool {
	if user.Role.IsStaff() || thread.HasParticipant(user.ID) {
		return true
	}
	return a.guard.CanReply(user, thread)
}
