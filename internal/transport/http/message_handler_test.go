package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/linkpreview"
	"scribemarket/backend/internal/middleware"
	"scribemarket/backend/internal/pool"
	"scribemarket/backend/internal/storage/memory"
)

// previewResetRouter 装配最小的预览重置路由：内存存储加未启动的
// 协程池，重新排队的任务停在队列里，状态可以稳定断言。
func previewResetRouter(t *testing.T, store *memory.Store, user *domain.User) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	wp := pool.NewWorkerPool(1, 4, log)
	fetcher := linkpreview.NewFetcher(store, wp, time.Second, 3, time.Millisecond, nil, log)
	handler := NewHandler(HandlerDeps{Fetcher: fetcher, Store: store, Log: log})

	r := gin.New()
	r.POST("/v1/messages/:messageId/preview/reset", func(c *gin.Context) {
		c.Set(middleware.CtxUserID, user.ID)
		c.Set(middleware.CtxRole, user.Role)
	}, middleware.RequireStaff(), handler.resetPreview)
	return r
}

func seedFailedPreview(t *testing.T, store *memory.Store) *domain.Message {
	t.Helper()
	thread := &domain.Thread{
		ID:        uuid.NewString(),
		WebsiteID: "site-1",
		Type:      domain.ThreadTypeGeneral,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveThread(thread))
	msg := &domain.Message{
		ID:           uuid.NewString(),
		ThreadID:     thread.ID,
		SenderID:     "sender-1",
		RecipientID:  "recipient-1",
		Body:         "see https://example.com/page",
		Type:         domain.MessageTypeLink,
		ContainsLink: true,
		LinkURL:      "https://example.com/page",
		PreviewState: domain.PreviewStateFailed,
		SentAt:       time.Now().UTC(),
	}
	require.NoError(t, store.SaveMessage(msg))
	return msg
}

func newRouteUser(t *testing.T, store *memory.Store, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:       uuid.NewString(),
		Username: string(role) + "-" + uuid.NewString()[:8],
		Role:     role,
		IsStaff:  role.IsStaff(),
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(u))
	return u
}

func TestResetPreviewRoute(t *testing.T) {
	t.Run("普通用户不能重置预览", func(t *testing.T) {
		store := memory.NewStore()
		client := newRouteUser(t, store, domain.RoleClient)
		msg := seedFailedPreview(t, store)
		router := previewResetRouter(t, store, client)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/messages/"+msg.ID+"/preview/reset", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		stored, err := store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStateFailed, stored.PreviewState)
	})

	t.Run("内部人员重置后回到待抓取", func(t *testing.T) {
		store := memory.NewStore()
		support := newRouteUser(t, store, domain.RoleSupport)
		msg := seedFailedPreview(t, store)
		router := previewResetRouter(t, store, support)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/messages/"+msg.ID+"/preview/reset", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		stored, err := store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PreviewStatePending, stored.PreviewState)
	})
}
