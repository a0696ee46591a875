package units

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// 订单/特殊订单/班课的真实数据由外部交易系统维护，消息核心
// 只读取守卫所需的投影。这里提供 HTTP 客户端实现与开发环境
// 用的静态实现。

const defaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	unit      *domain.WorkUnit
	expiresAt time.Time
}

// HTTPProvider 通过内部 API 读取工作单元。
type HTTPProvider struct {
	baseURL  string
	token    string
	client   *http.Client
	cacheTTL time.Duration
	log      *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewHTTPProvider 创建 HTTP 工作单元客户端。
//
// 参数:
//   - baseURL: 交易系统内部 API 根地址
//   - token: 服务间调用令牌，置于 Authorization 头
//   - timeout: 单次请求超时
func NewHTTPProvider(baseURL, token string, timeout time.Duration, log *zap.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL:  baseURL,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		cacheTTL: defaultCacheTTL,
		log:      log,
		cache:    make(map[string]cacheEntry),
	}
}

// GetWorkUnit 读取指定工作单元，短时缓存以抵御守卫的重复查询。
func (p *HTTPProvider) GetWorkUnit(kind domain.UnitKind, id string) (*domain.WorkUnit, error) {
	key := string(kind) + ":" + id

	p.mu.Lock()
	if entry, ok := p.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		p.mu.Unlock()
		return entry.unit, nil
	}
	p.mu.Unlock()

	url := fmt.Sprintf("%s/internal/units/%s/%s", p.baseURL, kind, id)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build unit request: %w", err)
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch unit %s/%s: %w", kind, id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("unit %s/%s: %w", kind, id, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch unit %s/%s: unexpected status %d", kind, id, resp.StatusCode)
	}

	var unit domain.WorkUnit
	if err := json.NewDecoder(resp.Body).Decode(&unit); err != nil {
		return nil, fmt.Errorf("decode unit %s/%s: %w", kind, id, err)
	}

	p.mu.Lock()
	p.cache[key] = cacheEntry{unit: &unit, expiresAt: time.Now().Add(p.cacheTTL)}
	p.mu.Unlock()

	return &unit, nil
}

// StaticProvider 持有内存中的工作单元，用于开发环境与测试。
type StaticProvider struct {
	mu    sync.RWMutex
	units map[string]*domain.WorkUnit
}

// NewStaticProvider 创建静态工作单元源。
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{units: make(map[string]*domain.WorkUnit)}
}

// Register 登记一个工作单元。
func (p *StaticProvider) Register(unit *domain.WorkUnit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.units[string(unit.Kind)+":"+unit.ID] = unit
}

// GetWorkUnit 按种类与 ID 查找工作单元。
func (p *StaticProvider) GetWorkUnit(kind domain.UnitKind, id string) (*domain.WorkUnit, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	unit, ok := p.units[string(kind)+":"+id]
	if !ok {
		return nil, fmt.Errorf("unit %s/%s: %w", kind, id, domain.ErrNotFound)
	}
	return unit, nil
}
