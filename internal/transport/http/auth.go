package httptransport

import (
	"github.com/gin-gonic/gin"

	"scribemarket/backend/internal/auth"
	jwtpkg "scribemarket/backend/internal/auth/jwt"
	"scribemarket/backend/internal/domain"
)

// AuthHandler 认证相关端点
type AuthHandler struct {
	authService *auth.Service
	jwtManager  *jwtpkg.Manager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtManager:  jwtManager,
	}
}

type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email"`
	Password  string `json:"password" binding:"required"`
	Role      string `json:"role"`
	WebsiteID string `json:"websiteId"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authResponse struct {
	User   *domain.User      `json:"user"`
	Tokens *jwtpkg.TokenPair `json:"tokens"`
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(auth.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Role:      domain.Role(req.Role),
		WebsiteID: req.WebsiteID,
	})
	if err != nil {
		WriteError(c, err)
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, string(user.Role))
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	Created(c, authResponse{User: user, Tokens: tokens})
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		WriteError(c, err)
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, string(user.Role))
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, authResponse{User: user, Tokens: tokens})
}

// Refresh 刷新访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		Unauthorized(c, "无效的刷新令牌")
		return
	}
	Success(c, gin.H{"accessToken": accessToken})
}

// Me 返回当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		WriteError(c, err)
		return
	}
	Success(c, user)
}

// StreamToken 签发短时效流式令牌，供 SSE / WebSocket 握手使用。
func (h *AuthHandler) StreamToken(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		WriteError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateStreamToken(user.ID, string(user.Role))
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, gin.H{"streamToken": token})
}
