package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/access"
	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/events"
	"scribemarket/backend/internal/moderation"
	"scribemarket/backend/internal/storage/memory"
	"scribemarket/backend/internal/units"
)

// captureAudit 把审计写入留在内存里供断言。
type captureAudit struct {
	entries []domain.AuditEntry
}

func (a *captureAudit) Write(entry domain.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

// 服务层测试共用的装配：内存存储 + 静态工作单元 + 违禁词 wechat。
type fixture struct {
	store    *memory.Store
	provider *units.StaticProvider
	guard    *access.Guard
	resolver *access.Resolver
	bus      *events.Bus
	audit    *captureAudit
	messages *MessageService

	client *domain.User
	writer *domain.User
	admin  *domain.User
	thread *domain.Thread
}

func strptr(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := zap.NewNop()

	require.NoError(t, store.SaveBannedWord(&domain.BannedWord{
		ID: uuid.NewString(), Word: "wechat", CreatedAt: time.Now().UTC(),
	}))
	banList, err := moderation.NewBanList(store, log)
	require.NoError(t, err)
	sanitizer := moderation.NewSanitizer(banList, "")

	provider := units.NewStaticProvider()
	guard := access.NewGuard(provider)
	bus := events.NewBus(log)

	audit := &captureAudit{}
	f := &fixture{
		store:    store,
		provider: provider,
		guard:    guard,
		resolver: access.NewResolver(),
		bus:      bus,
		audit:    audit,
		messages: NewMessageService(store, guard, sanitizer, bus, 0, 0, audit, nil, log),
	}

	f.client = f.addUser("client-1", domain.RoleClient)
	f.writer = f.addUser("writer-1", domain.RoleWriter)
	f.admin = f.addUser("admin-1", domain.RoleAdmin)

	provider.Register(&domain.WorkUnit{
		ID: "order-1", Kind: domain.UnitOrder, Status: domain.UnitStatusActive,
		ClientID: f.client.ID, CounterpartID: f.writer.ID, WebsiteID: "site-1",
	})

	f.thread = &domain.Thread{
		ID: uuid.NewString(), WebsiteID: "site-1", Type: domain.ThreadTypeOrder,
		OrderID: strptr("order-1"), IsActive: true,
		Participants: []domain.User{*f.client, *f.writer},
		CreatedAt:    time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveThread(f.thread))

	return f
}

func (f *fixture) addUser(username string, role domain.Role) *domain.User {
	u := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		IsStaff:   role.IsStaff(),
		IsActive:  true,
		WebsiteID: "site-1",
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.CreateUser(u); err != nil {
		panic(err)
	}
	return u
}

// send 以缺省输入发送一条文本消息。
func (f *fixture) send(t *testing.T, sender *domain.User, body string) (*domain.Message, error) {
	t.Helper()
	return f.messages.Send(sender, SendInput{
		ThreadID:    f.thread.ID,
		RecipientID: f.recipientFor(sender).ID,
		Body:        body,
	})
}

func (f *fixture) recipientFor(sender *domain.User) *domain.User {
	if sender.ID == f.client.ID {
		return f.writer
	}
	return f.client
}
