package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken 无效的令牌
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken 令牌已过期
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongPurpose 令牌用途不符
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// 令牌用途。流式令牌短时效、只能用于 SSE/WebSocket 握手，
// 不能反过来调用 REST 接口。
const (
	PurposeAccess = "access"
	PurposeStream = "stream"
)

// Claims JWT 自定义声明
type Claims struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenPair 访问令牌和刷新令牌对
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // 秒
}

// Manager JWT 管理器
type Manager struct {
	secret        []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	streamExpiry  time.Duration
}

// NewManager 创建 JWT 管理器
func NewManager(secret, issuer string, accessExpiry, refreshExpiry, streamExpiry time.Duration) *Manager {
	if streamExpiry <= 0 {
		streamExpiry = 5 * time.Minute
	}
	return &Manager{
		secret:        []byte(secret),
		issuer:        issuer,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		streamExpiry:  streamExpiry,
	}
}

// GenerateTokenPair 生成访问令牌和刷新令牌对
func (m *Manager) GenerateTokenPair(userID, role string) (*TokenPair, error) {
	accessTokenString, err := m.sign(userID, role, PurposeAccess, m.accessExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshTokenString, err := m.sign(userID, role, PurposeAccess, m.refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(m.accessExpiry.Seconds()),
	}, nil
}

// GenerateStreamToken 生成短时效流式令牌，随 query 参数传给
// SSE/WebSocket 握手。
func (m *Manager) GenerateStreamToken(userID, role string) (string, error) {
	token, err := m.sign(userID, role, PurposeStream, m.streamExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign stream token: %w", err)
	}
	return token, nil
}

func (m *Manager) sign(userID, role, purpose string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  userID,
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken 验证访问令牌并返回声明
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// ValidateStreamToken 验证流式令牌并返回声明
func (m *Manager) ValidateStreamToken(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeStream {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshAccessToken 使用刷新令牌生成新的访问令牌
func (m *Manager) RefreshAccessToken(refreshToken string) (string, error) {
	claims, err := m.ValidateToken(refreshToken)
	if err != nil {
		return "", err
	}
	return m.sign(claims.UserID, claims.Role, PurposeAccess, m.accessExpiry)
}
