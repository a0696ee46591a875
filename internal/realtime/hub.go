package realtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/monitoring"
)

// ThreadAccess 是 Hub 对线程授权的依赖：订阅前校验用户
// 能否读取线程。
type ThreadAccess interface {
	GetThread(id string) (*domain.Thread, error)
	GetUserByID(id string) (*domain.User, error)
	CanRead(user *domain.User, thread *domain.Thread) bool
}

// Claims 是 WebSocket 连接令牌的声明。
type Claims struct {
	UserID string `json:"sub"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// upgraderFactory 创建带 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 同源请求没有 Origin
				return true
			}
			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// EventType 定义推送事件类型
type EventType string

const (
	EventNewMessage   EventType = "new_message"
	EventNotification EventType = "notification"
	EventPing         EventType = "ping"
	EventPong         EventType = "pong"
	EventSubscribe    EventType = "subscribe"
	EventUnsubscribe  EventType = "unsubscribe"
	EventSubscribed   EventType = "subscribed"
	EventError        EventType = "error"
)

// Envelope 是 WebSocket 上行/下行的统一消息结构
type Envelope struct {
	Type      EventType       `json:"type"`
	ThreadID  string          `json:"threadId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	threadIDs map[string]bool // 已订阅的线程
	mu        sync.RWMutex
	log       *zap.Logger

	UserID string
	Role   domain.Role
}

// Hub 管理全部 WebSocket 连接，按线程与用户两个维度索引。
type Hub struct {
	clients    map[string]*Client
	threads    map[string]map[string]*Client // threadID -> clientID -> Client
	users      map[string]map[string]*Client // userID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *outbound
	mu         sync.RWMutex
	log        *zap.Logger

	allowedOrigins []string
	jwtSecret      string
	access         ThreadAccess
	metrics        *monitoring.Metrics
}

type outbound struct {
	threadID string
	userID   string
	envelope *Envelope
}

// NewHub 创建 WebSocket Hub。metrics 可为 nil。
func NewHub(allowedOrigins []string, jwtSecret string, access ThreadAccess, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Hub{
		clients:        make(map[string]*Client),
		threads:        make(map[string]map[string]*Client),
		users:          make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *outbound, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		jwtSecret:      jwtSecret,
		access:         access,
		metrics:        metrics,
	}
}

// Run 启动 Hub 主循环，ctx 取消后关闭全部连接。
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("realtime hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.users[client.UserID] == nil {
				h.users[client.UserID] = make(map[string]*Client)
			}
			h.users[client.UserID][client.ID] = client
			h.mu.Unlock()
			h.metrics.ClientConnected()
			h.log.Info("client registered",
				zap.String("id", client.ID), zap.String("userID", client.UserID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for threadID := range client.threadIDs {
					if clients, exists := h.threads[threadID]; exists {
						delete(clients, client.ID)
						if len(clients) == 0 {
							delete(h.threads, threadID)
						}
					}
				}
				if clients, exists := h.users[client.UserID]; exists {
					delete(clients, client.ID)
					if len(clients) == 0 {
						delete(h.users, client.UserID)
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.metrics.ClientDisconnected()
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// PushThread 把消息推给线程的全部订阅者，实现 service.Pusher。
func (h *Hub) PushThread(threadID string, payload any) {
	env, err := wrap(EventNewMessage, threadID, payload)
	if err != nil {
		h.log.Error("failed to marshal thread push", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &outbound{threadID: threadID, envelope: env}:
	default:
		h.metrics.RecordPush(false)
		h.log.Warn("broadcast channel full, dropping thread push",
			zap.String("threadID", threadID))
	}
}

// PushUser 把通知推给用户的全部在线连接。
func (h *Hub) PushUser(userID string, payload any) {
	env, err := wrap(EventNotification, "", payload)
	if err != nil {
		h.log.Error("failed to marshal user push", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &outbound{userID: userID, envelope: env}:
	default:
		h.metrics.RecordPush(false)
		h.log.Warn("broadcast channel full, dropping user push",
			zap.String("userID", userID))
	}
}

func wrap(t EventType, threadID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      t,
		ThreadID:  threadID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// deliver 按线程或用户维度投递。隐藏消息仍会推给订阅了
// 线程的内部人员连接，对非内部连接过滤。
func (h *Hub) deliver(msg *outbound) {
	data, err := json.Marshal(msg.envelope)
	if err != nil {
		h.log.Error("failed to marshal envelope", zap.Error(err))
		return
	}

	h.mu.RLock()
	var targets []*Client
	if msg.threadID != "" {
		hidden := envelopeHidden(msg.envelope)
		for _, client := range h.threads[msg.threadID] {
			if hidden && !client.Role.IsStaff() {
				continue
			}
			targets = append(targets, client)
		}
	} else if msg.userID != "" {
		for _, client := range h.users[msg.userID] {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
			h.metrics.RecordPush(true)
		default:
			h.metrics.RecordPush(false)
			h.log.Warn("client channel blocked, skipping",
				zap.String("clientID", client.ID))
		}
	}
}

// envelopeHidden 检查负载里的消息是否处于隐藏态。
func envelopeHidden(env *Envelope) bool {
	if env.Type != EventNewMessage {
		return false
	}
	var probe struct {
		IsHidden bool `json:"isHidden"`
	}
	if err := json.Unmarshal(env.Data, &probe); err != nil {
		return false
	}
	return probe.IsHidden
}

// pingAllClients 向所有客户端发送 ping
func (h *Hub) pingAllClients() {
	env := &Envelope{Type: EventPing, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.threads = make(map[string]map[string]*Client)
	h.users = make(map[string]map[string]*Client)
}

// authenticateClient 从 query 或 Authorization 头取 JWT 并验证。
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}
	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	userID, role, err := h.validateJWT(token)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:        generateClientID(),
		UserID:    userID,
		Role:      domain.ParseRole(role),
		threadIDs: make(map[string]bool),
		log:       h.log,
	}, nil
}

// validateJWT 验证连接令牌。
func (h *Hub) validateJWT(tokenString string) (userID, role string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", "", err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.UserID, claims.Role, nil
	}
	return "", "", errors.New("invalid token claims")
}

// HandleWebSocket 处理 WebSocket 连接升级与双泵启动。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端上行消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var env Envelope
		err := c.conn.ReadJSON(&env)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}
		c.handleEnvelope(&env)
	}
}

// writePump 发送下行消息
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEnvelope 处理接收到的上行消息
func (c *Client) handleEnvelope(env *Envelope) {
	switch env.Type {
	case EventSubscribe:
		c.subscribeThread(env.ThreadID)
	case EventUnsubscribe:
		c.unsubscribeThread(env.ThreadID)
	case EventPong:
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	default:
		c.log.Warn("unknown envelope type", zap.String("type", string(env.Type)))
	}
}

// subscribeThread 订阅线程，订阅前校验读取权限。
func (c *Client) subscribeThread(threadID string) {
	if threadID == "" {
		c.sendError("thread ID is required")
		return
	}

	thread, err := c.hub.access.GetThread(threadID)
	if err != nil {
		c.sendError(fmt.Sprintf("thread not found: %s", threadID))
		return
	}
	user, err := c.hub.access.GetUserByID(c.UserID)
	if err != nil || !c.hub.access.CanRead(user, thread) {
		c.log.Warn("subscription denied: no permission",
			zap.String("clientID", c.ID),
			zap.String("threadID", threadID))
		c.sendError(fmt.Sprintf("no permission to access thread: %s", threadID))
		return
	}

	c.mu.Lock()
	c.threadIDs[threadID] = true
	c.mu.Unlock()

	c.hub.mu.Lock()
	if c.hub.threads[threadID] == nil {
		c.hub.threads[threadID] = make(map[string]*Client)
	}
	c.hub.threads[threadID][c.ID] = c
	c.hub.mu.Unlock()

	c.log.Info("subscribed to thread",
		zap.String("clientID", c.ID),
		zap.String("threadID", threadID),
		zap.String("userID", c.UserID))

	c.sendEnvelope(&Envelope{
		Type:      EventSubscribed,
		ThreadID:  threadID,
		Timestamp: time.Now().UTC(),
	})
}

// unsubscribeThread 取消订阅线程。
func (c *Client) unsubscribeThread(threadID string) {
	c.mu.Lock()
	delete(c.threadIDs, threadID)
	c.mu.Unlock()

	c.hub.mu.Lock()
	if clients, exists := c.hub.threads[threadID]; exists {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(c.hub.threads, threadID)
		}
	}
	c.hub.mu.Unlock()

	c.log.Info("unsubscribed from thread",
		zap.String("clientID", c.ID),
		zap.String("threadID", threadID))
}

// sendError 发送错误消息给客户端
func (c *Client) sendError(errMsg string) {
	c.sendEnvelope(&Envelope{
		Type:      EventError,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
}

// sendEnvelope 发送消息给客户端
func (c *Client) sendEnvelope(env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("failed to marshal envelope", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}

// generateClientID 生成客户端ID
func generateClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405")
	}
	return time.Now().Format("20060102150405") + "-" + hex.EncodeToString(b)
}
