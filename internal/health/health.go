package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"scribemarket/backend/internal/storage"
)

// Pinger 是外部依赖的探活接口（Redis、审计库）。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewChecker 创建健康检查器。redis 可为 nil（内存模式）。
func NewChecker(store storage.Store, redis Pinger, logger *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	c.health.AddLivenessCheck("goroutine-threshold",
		healthcheck.GoroutineCountCheck(500))

	c.health.AddReadinessCheck("database", func() error {
		return store.Health()
	})

	if redis != nil {
		c.health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redis.Ping(ctx)
		})
	}

	return c
}

// Handler 返回健康检查处理器，挂 /live 与 /ready。
func (c *Checker) Handler() http.Handler {
	return c.health
}
