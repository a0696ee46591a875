package moderation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage/memory"
)

func TestBanListReload(t *testing.T) {
	store := memory.NewStore()
	banList, err := NewBanList(store, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, banList.Words())

	t.Run("新增词条在Reload后生效", func(t *testing.T) {
		require.NoError(t, store.SaveBannedWord(&domain.BannedWord{
			ID:        uuid.NewString(),
			Word:      "telegram",
			CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, banList.Reload())

		assert.Contains(t, banList.Words(), "telegram")
		assert.Len(t, banList.Patterns(), 1)
	})

	t.Run("删除词条在Reload后失效", func(t *testing.T) {
		require.NoError(t, store.DeleteBannedWord("telegram"))
		require.NoError(t, banList.Reload())

		assert.Empty(t, banList.Words())
		assert.Empty(t, banList.Patterns())
	})
}
