package linkpreview

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/monitoring"
	"scribemarket/backend/internal/pool"
	"scribemarket/backend/internal/storage"
)

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// Preview 是持久化到消息上的链接预览载荷。
type Preview struct {
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Title     string `json:"title,omitempty"`
	FetchedAt string `json:"fetchedAt"`
}

// Fetcher 异步抓取消息链接的预览。
//
// 单次抓取使用短超时；失败按指数退避重试到固定上限；
// 最终失败后消息被标记为 preview failed 且不再自动重试，
// 只能由管理员手工重置。这是刻意的一次性失败策略。
type Fetcher struct {
	repo        storage.MessageRepository
	pool        *pool.WorkerPool
	client      *http.Client
	maxAttempts int
	baseBackoff time.Duration
	metrics     *monitoring.Metrics
	log         *zap.Logger
}

// NewFetcher 创建预览抓取器。
//
// 参数:
//   - timeout: 单次 HTTP 请求超时
//   - maxAttempts: 总尝试次数上限
//   - baseBackoff: 首次重试的退避时长，之后按 2^n 增长
//   - metrics: 可为 nil
func NewFetcher(repo storage.MessageRepository, wp *pool.WorkerPool, timeout time.Duration, maxAttempts int, baseBackoff time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *Fetcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseBackoff <= 0 {
		baseBackoff = 500 * time.Millisecond
	}
	return &Fetcher{
		repo:        repo,
		pool:        wp,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		metrics:     metrics,
		log:         log,
	}
}

// Schedule 将消息的预览抓取排入协程池。
func (f *Fetcher) Schedule(messageID, url string) {
	if !f.pool.TrySubmit(func() { f.fetchWithRetry(messageID, url) }) {
		f.log.Warn("preview queue full, marking preview failed",
			zap.String("messageID", messageID))
		f.markFailed(messageID)
	}
}

// Reset 人工重置失败的预览并重新排队抓取。
func (f *Fetcher) Reset(messageID string) error {
	msg, err := f.repo.GetMessage(messageID)
	if err != nil {
		return err
	}
	if !msg.ContainsLink || msg.LinkURL == "" {
		return fmt.Errorf("message has no link: %w", domain.ErrValidation)
	}
	msg.PreviewState = domain.PreviewStatePending
	msg.LinkPreview = nil
	if err := f.repo.UpdateMessage(msg); err != nil {
		return err
	}
	f.Schedule(msg.ID, msg.LinkURL)
	return nil
}

// RequeuePending 把滞留在 pending 状态的预览重新排队。
//
// 排队后在进程重启中丢失的任务会停在 pending，由后台任务
// 周期性调用本方法挽救。返回重新排队的数量。
func (f *Fetcher) RequeuePending(olderThan time.Duration) (int, error) {
	stale, err := f.repo.ListPendingPreviews(time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	requeued := 0
	for i := range stale {
		if stale[i].LinkURL == "" {
			continue
		}
		f.Schedule(stale[i].ID, stale[i].LinkURL)
		requeued++
	}
	if requeued > 0 {
		f.log.Info("stale link previews requeued", zap.Int("count", requeued))
	}
	return requeued, nil
}

func (f *Fetcher) fetchWithRetry(messageID, url string) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		start := time.Now()
		preview, err := f.fetchOnce(url)
		if err == nil {
			f.metrics.RecordPreviewFetch("success", time.Since(start))
			f.store(messageID, preview)
			return
		}
		f.metrics.RecordPreviewFetch("failure", time.Since(start))
		lastErr = err
		if attempt < f.maxAttempts {
			time.Sleep(Backoff(f.baseBackoff, attempt))
		}
	}

	f.log.Warn("link preview fetch abandoned",
		zap.String("messageID", messageID),
		zap.String("url", url),
		zap.Int("attempts", f.maxAttempts),
		zap.Error(fmt.Errorf("%v: %w", lastErr, domain.ErrTransientDelivery)))
	f.markFailed(messageID)
}

func (f *Fetcher) fetchOnce(url string) (*Preview, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	// 预览只需要文档头部，读满 64KB 即止
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		URL:       url,
		Domain:    domainOf(url),
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if m := titlePattern.FindSubmatch(body); m != nil {
		preview.Title = strings.TrimSpace(string(m[1]))
	}
	return preview, nil
}

func (f *Fetcher) store(messageID string, preview *Preview) {
	msg, err := f.repo.GetMessage(messageID)
	if err != nil {
		f.log.Error("preview fetched but message missing", zap.String("messageID", messageID), zap.Error(err))
		return
	}
	data, err := json.Marshal(preview)
	if err != nil {
		f.markFailed(messageID)
		return
	}
	payload := string(data)
	msg.LinkPreview = &payload
	msg.PreviewState = domain.PreviewStateFetched
	if err := f.repo.UpdateMessage(msg); err != nil {
		f.log.Error("failed to store link preview", zap.String("messageID", messageID), zap.Error(err))
	}
}

func (f *Fetcher) markFailed(messageID string) {
	msg, err := f.repo.GetMessage(messageID)
	if err != nil {
		return
	}
	msg.PreviewState = domain.PreviewStateFailed
	if err := f.repo.UpdateMessage(msg); err != nil {
		f.log.Error("failed to mark preview failed", zap.String("messageID", messageID), zap.Error(err))
	}
}

// Backoff 计算第 attempt 次失败后的指数退避时长。
func Backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func domainOf(url string) string {
	idx := strings.Index(url, "://")
	if idx < 0 {
		return ""
	}
	rest := url[idx+3:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
