package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

const (
	banListKey           = "moderation:banlist"
	banListReloadChannel = "moderation:banlist:reload"

	unreadCountKeyFmt = "notify:unread:%s"
)

// Cache 是消息核心的 Redis 缓存层：违禁词快照、
// 多实例间的词表重载广播、未读计数。
type Cache struct {
	client *Client
	log    *zap.Logger
}

// NewCache 创建缓存层。
func NewCache(client *Client, log *zap.Logger) *Cache {
	return &Cache{client: client, log: log}
}

// ========== 违禁词缓存 ==========

// CacheBanList 缓存违禁词快照。
func (c *Cache) CacheBanList(words []string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(words)
	if err != nil {
		return err
	}
	return c.client.Client().Set(ctx, banListKey, data, ttl).Err()
}

// GetCachedBanList 读取违禁词快照。
func (c *Cache) GetCachedBanList() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Client().Get(ctx, banListKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, fmt.Errorf("ban list not cached")
		}
		return nil, err
	}

	var words []string
	if err := json.Unmarshal([]byte(data), &words); err != nil {
		return nil, err
	}
	return words, nil
}

// PublishBanListReload 广播词表重载信号，所有实例收到后重建匹配器。
func (c *Cache) PublishBanListReload(ctx context.Context) error {
	return c.client.Publish(ctx, banListReloadChannel, "reload")
}

// ListenBanListReload 阻塞监听重载信号，每收到一次调用一次 onReload。
// ctx 取消后返回。
func (c *Cache) ListenBanListReload(ctx context.Context, onReload func()) {
	sub := c.client.Subscribe(ctx, banListReloadChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			c.log.Info("ban list reload signal received")
			onReload()
		}
	}
}

// ========== 未读计数 ==========

// IncrUnread 自增用户未读计数。
func (c *Cache) IncrUnread(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Client().Incr(ctx, fmt.Sprintf(unreadCountKeyFmt, userID)).Err()
}

// ResetUnread 清零用户未读计数。
func (c *Cache) ResetUnread(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Client().Del(ctx, fmt.Sprintf(unreadCountKeyFmt, userID)).Err()
}

// GetUnread 读取用户未读计数，键不存在按 0 处理。
func (c *Cache) GetUnread(userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := c.client.Client().Get(ctx, fmt.Sprintf(unreadCountKeyFmt, userID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return n, err
}

// ========== 通知联动 ==========

// OnNotificationsSaved 通知批量落库后刷新未读计数，尽力而为。
func (c *Cache) OnNotificationsSaved(batch []*domain.Notification) {
	for _, n := range batch {
		if err := c.IncrUnread(n.RecipientID); err != nil {
			c.log.Debug("unread counter update failed",
				zap.String("userID", n.RecipientID), zap.Error(err))
		}
	}
}
