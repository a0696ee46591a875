package linkpreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/pool"
	"scribemarket/backend/internal/storage/memory"
)

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, 2))
	assert.Equal(t, 400*time.Millisecond, Backoff(base, 3))
}

func seedLinkMessage(t *testing.T, store *memory.Store, url string) *domain.Message {
	t.Helper()
	thread := &domain.Thread{ID: "t1", Type: domain.ThreadTypeGeneral, IsActive: true}
	require.NoError(t, store.SaveThread(thread))
	msg := &domain.Message{
		ID: "m1", ThreadID: thread.ID, SenderID: "u1", RecipientID: "u2",
		Body: url, Type: domain.MessageTypeLink,
		ContainsLink: true, LinkURL: url,
		PreviewState: domain.PreviewStatePending,
		SentAt:       time.Now().UTC(),
	}
	require.NoError(t, store.SaveMessage(msg))
	return msg
}

func waitForState(t *testing.T, store *memory.Store, messageID string, want domain.PreviewState) *domain.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := store.GetMessage(messageID)
		require.NoError(t, err)
		if msg.PreviewState == want {
			return msg
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("preview state never reached %q", want)
	return nil
}

func TestFetcher(t *testing.T) {
	t.Run("抓取成功写入预览", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><head><title>Example Page</title></head></html>"))
		}))
		defer server.Close()

		store := memory.NewStore()
		msg := seedLinkMessage(t, store, server.URL)

		wp := pool.NewWorkerPool(1, 8, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		wp.Start(ctx)

		fetcher := NewFetcher(store, wp, time.Second, 3, 10*time.Millisecond, nil, zap.NewNop())
		fetcher.Schedule(msg.ID, msg.LinkURL)

		fetched := waitForState(t, store, msg.ID, domain.PreviewStateFetched)
		require.NotNil(t, fetched.LinkPreview)
		assert.Contains(t, *fetched.LinkPreview, "Example Page")
	})

	t.Run("重试耗尽后标记失败且不再自动重试", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		store := memory.NewStore()
		msg := seedLinkMessage(t, store, server.URL)

		wp := pool.NewWorkerPool(1, 8, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		wp.Start(ctx)

		fetcher := NewFetcher(store, wp, time.Second, 3, time.Millisecond, nil, zap.NewNop())
		fetcher.Schedule(msg.ID, msg.LinkURL)

		waitForState(t, store, msg.ID, domain.PreviewStateFailed)
		assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	})

	t.Run("人工重置后重新排队抓取", func(t *testing.T) {
		var failing atomic.Bool
		failing.Store(true)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte("<html><title>Recovered</title></html>"))
		}))
		defer server.Close()

		store := memory.NewStore()
		msg := seedLinkMessage(t, store, server.URL)

		wp := pool.NewWorkerPool(1, 8, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		wp.Start(ctx)

		fetcher := NewFetcher(store, wp, time.Second, 2, time.Millisecond, nil, zap.NewNop())
		fetcher.Schedule(msg.ID, msg.LinkURL)
		waitForState(t, store, msg.ID, domain.PreviewStateFailed)

		failing.Store(false)
		require.NoError(t, fetcher.Reset(msg.ID))

		fetched := waitForState(t, store, msg.ID, domain.PreviewStateFetched)
		assert.Contains(t, *fetched.LinkPreview, "Recovered")
	})

	t.Run("滞留的抓取任务可以重排队", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><title>Requeued</title></html>"))
		}))
		defer server.Close()

		store := memory.NewStore()
		msg := seedLinkMessage(t, store, server.URL)
		msg.SentAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, store.UpdateMessage(msg))

		wp := pool.NewWorkerPool(1, 8, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		wp.Start(ctx)

		fetcher := NewFetcher(store, wp, time.Second, 3, time.Millisecond, nil, zap.NewNop())
		requeued, err := fetcher.RequeuePending(10 * time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, requeued)

		fetched := waitForState(t, store, msg.ID, domain.PreviewStateFetched)
		assert.Contains(t, *fetched.LinkPreview, "Requeued")
	})

	t.Run("无链接的消息不能重置", func(t *testing.T) {
		store := memory.NewStore()
		thread := &domain.Thread{ID: "t1", Type: domain.ThreadTypeGeneral, IsActive: true}
		require.NoError(t, store.SaveThread(thread))
		msg := &domain.Message{
			ID: "m-plain", ThreadID: thread.ID, SenderID: "u1", RecipientID: "u2",
			Body: "no links", Type: domain.MessageTypeText, SentAt: time.Now().UTC(),
		}
		require.NoError(t, store.SaveMessage(msg))

		wp := pool.NewWorkerPool(1, 8, zap.NewNop())
		fetcher := NewFetcher(store, wp, time.Second, 3, time.Millisecond, nil, zap.NewNop())

		err := fetcher.Reset(msg.ID)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
