package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-for-hs256"

func newTestManager() *Manager {
	return NewManager(testSecret, "scribemarket-test", 15*time.Minute, 7*24*time.Hour, 5*time.Minute)
}

func TestGenerateAndValidate(t *testing.T) {
	m := newTestManager()

	t.Run("访问令牌签发与验证", func(t *testing.T) {
		pair, err := m.GenerateTokenPair("user-1", "client")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		claims, err := m.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "client", claims.Role)
		assert.Equal(t, PurposeAccess, claims.Purpose)
	})

	t.Run("篡改的令牌被拒绝", func(t *testing.T) {
		pair, err := m.GenerateTokenPair("user-1", "client")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("其他密钥签发的令牌被拒绝", func(t *testing.T) {
		other := NewManager("another-secret-key-also-long-enough-here", "scribemarket-test",
			15*time.Minute, 7*24*time.Hour, 5*time.Minute)
		pair, err := other.GenerateTokenPair("user-1", "client")
		require.NoError(t, err)

		_, err = m.ValidateToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestStreamTokenPurpose(t *testing.T) {
	m := newTestManager()

	t.Run("流式令牌不能调用REST接口", func(t *testing.T) {
		token, err := m.GenerateStreamToken("user-1", "client")
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongPurpose)
	})

	t.Run("访问令牌不能充当流式令牌", func(t *testing.T) {
		pair, err := m.GenerateTokenPair("user-1", "client")
		require.NoError(t, err)

		_, err = m.ValidateStreamToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrWrongPurpose)
	})

	t.Run("流式令牌通过流式验证", func(t *testing.T) {
		token, err := m.GenerateStreamToken("user-1", "writer")
		require.NoError(t, err)

		claims, err := m.ValidateStreamToken(token)
		require.NoError(t, err)
		assert.Equal(t, PurposeStream, claims.Purpose)
		assert.Equal(t, "writer", claims.Role)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	m := newTestManager()

	t.Run("用刷新令牌换新访问令牌", func(t *testing.T) {
		pair, err := m.GenerateTokenPair("user-1", "client")
		require.NoError(t, err)

		access, err := m.RefreshAccessToken(pair.RefreshToken)
		require.NoError(t, err)

		claims, err := m.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
	})

	t.Run("流式令牌不能换访问令牌", func(t *testing.T) {
		stream, err := m.GenerateStreamToken("user-1", "client")
		require.NoError(t, err)

		_, err = m.RefreshAccessToken(stream)
		assert.ErrorIs(t, err, ErrWrongPurpose)
	})
}
