package units

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider()
	provider.Register(&domain.WorkUnit{
		ID:            "order-1",
		Kind:          domain.UnitOrder,
		Status:        domain.UnitStatusActive,
		ClientID:      "client-1",
		CounterpartID: "writer-1",
		WebsiteID:     "site-1",
	})

	t.Run("按种类和ID查找", func(t *testing.T) {
		unit, err := provider.GetWorkUnit(domain.UnitOrder, "order-1")
		require.NoError(t, err)
		assert.Equal(t, "client-1", unit.ClientID)
		assert.Equal(t, "writer-1", unit.CounterpartID)
	})

	t.Run("同ID不同种类不混淆", func(t *testing.T) {
		_, err := provider.GetWorkUnit(domain.UnitSpecialOrder, "order-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("不存在的单元", func(t *testing.T) {
		_, err := provider.GetWorkUnit(domain.UnitOrder, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHTTPProvider(t *testing.T) {
	t.Run("成功解码并携带令牌", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			assert.Equal(t, "/internal/units/order/order-1", r.URL.Path)
			json.NewEncoder(w).Encode(domain.WorkUnit{
				ID:       "order-1",
				Kind:     domain.UnitOrder,
				Status:   domain.UnitStatusActive,
				ClientID: "client-1",
			})
		}))
		defer server.Close()

		provider := NewHTTPProvider(server.URL, "secret-token", time.Second, zap.NewNop())
		unit, err := provider.GetWorkUnit(domain.UnitOrder, "order-1")
		require.NoError(t, err)
		assert.Equal(t, "Bearer secret-token", gotAuth)
		assert.Equal(t, "client-1", unit.ClientID)
		assert.Equal(t, domain.UnitStatusActive, unit.Status)
	})

	t.Run("404映射为未找到", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		provider := NewHTTPProvider(server.URL, "", time.Second, zap.NewNop())
		_, err := provider.GetWorkUnit(domain.UnitOrder, "gone")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("非200状态返回错误", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		provider := NewHTTPProvider(server.URL, "", time.Second, zap.NewNop())
		_, err := provider.GetWorkUnit(domain.UnitOrder, "order-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("短时缓存抵御重复查询", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			json.NewEncoder(w).Encode(domain.WorkUnit{ID: "order-1", Kind: domain.UnitOrder})
		}))
		defer server.Close()

		provider := NewHTTPProvider(server.URL, "", time.Second, zap.NewNop())
		for i := 0; i < 5; i++ {
			_, err := provider.GetWorkUnit(domain.UnitOrder, "order-1")
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})
}
