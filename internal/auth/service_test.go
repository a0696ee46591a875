package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
	"scribemarket/backend/internal/storage/memory"
)

func TestRegister(t *testing.T) {
	svc := NewService(memory.NewStore())

	t.Run("注册成功且角色缺省为客户", func(t *testing.T) {
		user, err := svc.Register(RegisterInput{
			Username: "Alice",
			Email:    "Alice@Example.com",
			Password: "secret-pass",
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, domain.RoleClient, user.Role)
		assert.False(t, user.IsStaff)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "secret-pass", user.PasswordHash)
	})

	t.Run("内部角色带上内部标记", func(t *testing.T) {
		user, err := svc.Register(RegisterInput{
			Username: "moderator",
			Password: "secret-pass",
			Role:     domain.RoleSupport,
		})
		require.NoError(t, err)
		assert.True(t, user.IsStaff)
	})

	t.Run("密码过短被拒绝", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Username: "bob", Password: "short"})
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("用户名不能为空", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Username: "   ", Password: "secret-pass"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("未知角色被拒绝", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Username: "carol", Password: "secret-pass", Role: "superuser"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("重复用户名被拒绝", func(t *testing.T) {
		_, err := svc.Register(RegisterInput{Username: "ALICE", Password: "secret-pass"})
		assert.ErrorIs(t, err, storage.ErrUserExists)
	})
}

func TestLogin(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store)

	_, err := svc.Register(RegisterInput{Username: "dave", Password: "secret-pass"})
	require.NoError(t, err)

	t.Run("正确凭证登录成功", func(t *testing.T) {
		user, err := svc.Login(LoginInput{Username: "Dave", Password: "secret-pass"})
		require.NoError(t, err)
		assert.Equal(t, "dave", user.Username)

		stored, err := store.GetUserByUsername("dave")
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("错误密码", func(t *testing.T) {
		_, err := svc.Login(LoginInput{Username: "dave", Password: "wrong-pass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("不存在的用户不泄露信息", func(t *testing.T) {
		_, err := svc.Login(LoginInput{Username: "nobody", Password: "secret-pass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("禁用用户被拒绝", func(t *testing.T) {
		inactive, err := svc.Register(RegisterInput{Username: "eve", Password: "secret-pass"})
		require.NoError(t, err)
		inactive.IsActive = false

		_, err = svc.Login(LoginInput{Username: "eve", Password: "secret-pass"})
		assert.ErrorIs(t, err, ErrUserInactive)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword("secret-pass", hash))
	assert.False(t, CheckPassword("other-pass", hash))
}
