package storage

import "time"

// storeWithLimiter 用独立限流后端覆盖存储自带的限流实现。
type storeWithLimiter struct {
	Store
	limiter RateLimitRepository
}

// WithRateLimiter 把 SQL 存储与 Redis 限流器组合成一个 Store。
// limiter 为 nil 时原样返回。
func WithRateLimiter(s Store, limiter RateLimitRepository) Store {
	if limiter == nil {
		return s
	}
	return &storeWithLimiter{Store: s, limiter: limiter}
}

func (s *storeWithLimiter) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return s.limiter.IncrementRateLimit(key, window)
}
