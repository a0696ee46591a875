package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribemarket/backend/internal/access"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// ThreadService 封装线程生命周期与按可见性过滤的读取。
type ThreadService struct {
	store    storage.Store
	guard    *access.Guard
	resolver *access.Resolver
	units    domain.WorkUnitProvider
	audit    domain.AuditSink
	log      *zap.Logger
}

// NewThreadService 创建线程业务服务。
func NewThreadService(store storage.Store, guard *access.Guard, resolver *access.Resolver, units domain.WorkUnitProvider, audit domain.AuditSink, log *zap.Logger) *ThreadService {
	return &ThreadService{
		store:    store,
		guard:    guard,
		resolver: resolver,
		units:    units,
		audit:    audit,
		log:      log,
	}
}

// CreateThreadInput 定义创建线程的输入。
type CreateThreadInput struct {
	WebsiteID      string
	Type           domain.ThreadType
	Subject        string
	OrderID        *string
	SpecialOrderID *string
	ClassBundleID  *string
	Counterpart    string // 首个对话对方
}

// Create 为用户创建线程。
//
// 挂靠工作单元的线程先过 CanStartThread 守卫；同一工作单元
// 已有线程时直接复用（首次联系时懒创建的对偶路径）。
func (s *ThreadService) Create(user *domain.User, input CreateThreadInput) (*domain.Thread, error) {
	thread := &domain.Thread{
		ID:             uuid.NewString(),
		WebsiteID:      input.WebsiteID,
		Type:           input.Type,
		Subject:        input.Subject,
		OrderID:        input.OrderID,
		SpecialOrderID: input.SpecialOrderID,
		ClassBundleID:  input.ClassBundleID,
		SenderRole:     user.Role,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := thread.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}

	if kind, unitID, scoped := thread.UnitKind(); scoped {
		unit, err := s.units.GetWorkUnit(kind, unitID)
		if err != nil {
			return nil, fmt.Errorf("work unit %s/%s: %w", kind, unitID, domain.ErrNotFound)
		}
		if !s.guard.CanStartThread(user, unit) {
			return nil, fmt.Errorf("cannot start thread for unit %s: %w", unitID, domain.ErrAccessDenied)
		}
		if existing, err := s.store.FindThreadByUnit(kind, unitID); err == nil {
			if !existing.HasParticipant(user.ID) {
				if err := s.store.AddParticipant(existing.ID, user.ID); err != nil {
					return nil, err
				}
			}
			return s.store.GetThread(existing.ID)
		}
	}

	thread.Participants = []domain.User{{ID: user.ID}}
	if input.Counterpart != "" && input.Counterpart != user.ID {
		thread.Participants = append(thread.Participants, domain.User{ID: input.Counterpart})
	}
	if err := s.store.SaveThread(thread); err != nil {
		return nil, err
	}

	s.writeAudit(user, thread.WebsiteID, domain.AuditThreadCreated,
		fmt.Sprintf("thread %s created", thread.ID), map[string]string{"threadId": thread.ID})
	return thread, nil
}

// ListVisible 返回用户可见的线程快照。
//
// 管理员层级看到租户下全部线程，其余角色只看到自己参与的线程。
func (s *ThreadService) ListVisible(user *domain.User) ([]domain.Thread, error) {
	if user.Role == domain.RoleUnknown {
		return []domain.Thread{}, nil
	}
	if user.Role.IsAdminTier() {
		return s.store.ListThreadsByWebsite(user.WebsiteID)
	}
	return s.store.ListThreadsByParticipant(user.ID)
}

// VisibleMessages 返回线程内用户可见的消息。
//
// 非内部人员必须是参与者或对挂靠单元有访问权才能读取。
func (s *ThreadService) VisibleMessages(user *domain.User, threadID string) ([]domain.Message, error) {
	thread, err := s.store.GetThread(threadID)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	if !user.Role.IsStaff() && !thread.HasParticipant(user.ID) && !s.guard.CanReply(user, thread) {
		return nil, fmt.Errorf("no access to thread %s: %w", threadID, domain.ErrAccessDenied)
	}

	messages, err := s.store.ListMessages(threadID)
	if err != nil {
		return nil, err
	}
	return s.resolver.VisibleMessages(user, messages), nil
}

// Delete 删除线程并级联删除消息，仅限内部人员。
func (s *ThreadService) Delete(user *domain.User, threadID string) error {
	if !user.Role.IsStaff() {
		return fmt.Errorf("only staff may delete threads: %w", domain.ErrAccessDenied)
	}
	thread, err := s.store.GetThread(threadID)
	if err != nil {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	if err := s.store.DeleteThread(threadID); err != nil {
		return err
	}
	s.writeAudit(user, thread.WebsiteID, domain.AuditThreadDeleted,
		fmt.Sprintf("thread %s deleted", threadID), map[string]string{"threadId": threadID})
	return nil
}

// SetActive 启用/禁用线程，仅限内部人员。
func (s *ThreadService) SetActive(user *domain.User, threadID string, active bool) error {
	if !user.Role.IsStaff() {
		return fmt.Errorf("only staff may toggle threads: %w", domain.ErrAccessDenied)
	}
	thread, err := s.store.GetThread(threadID)
	if err != nil {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	thread.IsActive = active
	return s.store.UpdateThread(thread)
}

// SetAdminOverride 设置管理员覆盖标志，仅限管理员层级。
//
// 覆盖标志是在归档单元线程上重新启用消息的唯一途径。
func (s *ThreadService) SetAdminOverride(user *domain.User, threadID string, override bool) error {
	if !user.Role.IsAdminTier() {
		return fmt.Errorf("only admins may set override: %w", domain.ErrAccessDenied)
	}
	thread, err := s.store.GetThread(threadID)
	if err != nil {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	thread.AdminOverride = override
	return s.store.UpdateThread(thread)
}

// writeAudit 审计失败只记日志，绝不上抛。
func (s *ThreadService) writeAudit(user *domain.User, websiteID string, action domain.AuditAction, desc string, meta map[string]string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Write(domain.AuditEntry{
		ActorID:     user.ID,
		WebsiteID:   websiteID,
		Action:      action,
		Description: desc,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("audit write failed", zap.String("action", string(action)), zap.Error(err))
	}
}
