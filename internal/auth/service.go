package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

var (
	// ErrInvalidPassword 无效的密码
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
)

// Service 认证服务
type Service struct {
	users storage.UserRepository
}

// NewService 创建认证服务
func NewService(users storage.UserRepository) *Service {
	return &Service{users: users}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Role      domain.Role
	WebsiteID string
}

// LoginInput 登录输入
type LoginInput struct {
	Username string
	Password string
}

// Register 用户注册。角色缺省为 client。
func (s *Service) Register(input RegisterInput) (*domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	if len(input.Password) < 8 {
		return nil, ErrInvalidPassword
	}

	role := input.Role
	if role == "" {
		role = domain.RoleClient
	}
	if domain.ParseRole(string(role)) == domain.RoleUnknown {
		return nil, fmt.Errorf("unknown role %q: %w", role, domain.ErrValidation)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.ToLower(input.Email),
		PasswordHash: hash,
		Role:         role,
		IsStaff:      role.IsStaff(),
		IsActive:     true,
		WebsiteID:    input.WebsiteID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 用户登录
func (s *Service) Login(input LoginInput) (*domain.User, error) {
	user, err := s.users.GetUserByUsername(strings.ToLower(input.Username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	_ = s.users.UpdateLastLogin(user.ID)
	return user, nil
}

// GetUserByID 根据 ID 获取用户
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	return s.users.GetUserByID(userID)
}

// HashPassword 生成 bcrypt 密码哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 校验密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
