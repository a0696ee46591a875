package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// incrWithExpire 原子执行自增并在首次自增时设置过期时间。
// 放在 Lua 里执行，INCR 与 EXPIRE 之间不会有其他客户端插队。
var incrWithExpire = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RateLimiter 基于 Redis 的固定窗口计数器，
// 实现 storage.RateLimitRepository。
type RateLimiter struct {
	client *Client
	log    *zap.Logger
}

// NewRateLimiter 创建 Redis 限流器。
func NewRateLimiter(client *Client, log *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, log: log}
}

// IncrementRateLimit 自增限流计数并返回窗口内的当前值。
func (r *RateLimiter) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := incrWithExpire.Run(ctx, r.client.Client(),
		[]string{"ratelimit:" + key}, window.Milliseconds()).Int64()
	if err != nil {
		r.log.Warn("rate limit increment failed", zap.String("key", key), zap.Error(err))
		return 0, err
	}
	return result, nil
}
