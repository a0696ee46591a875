package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// Store 使用内存保存线程与消息数据，主要用于开发验证和测试。
type Store struct {
	mu           sync.RWMutex
	threads      map[string]*domain.Thread
	participants map[string]map[string]bool // threadID -> userID -> true
	byUnit       map[string]string          // kind:unitID -> threadID
	messages     map[string]map[string]*domain.Message // threadID -> messageID -> message
	msgThread    map[string]string                     // messageID -> threadID
	receipts     map[string]*domain.ReadReceipt        // messageID:userID -> receipt
	flags        map[string]*domain.FlaggedMessage     // messageID -> flag
	notifs       map[string]*domain.Notification       // notificationID -> notification
	alerts       map[string]*domain.SystemAlert
	bannedWords  map[string]*domain.BannedWord // word -> entry
	users        map[string]*domain.User
	byUsername   map[string]string

	// 速率限制相关
	rateLimits map[string]*rateLimitEntry
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		threads:      make(map[string]*domain.Thread),
		participants: make(map[string]map[string]bool),
		byUnit:       make(map[string]string),
		messages:     make(map[string]map[string]*domain.Message),
		msgThread:    make(map[string]string),
		receipts:     make(map[string]*domain.ReadReceipt),
		flags:        make(map[string]*domain.FlaggedMessage),
		notifs:       make(map[string]*domain.Notification),
		alerts:       make(map[string]*domain.SystemAlert),
		bannedWords:  make(map[string]*domain.BannedWord),
		users:        make(map[string]*domain.User),
		byUsername:   make(map[string]string),
		rateLimits:   make(map[string]*rateLimitEntry),
	}
}

// ========== Thread Repository ==========

// SaveThread 保存线程。
func (s *Store) SaveThread(thread *domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[thread.ID] = thread
	if _, ok := s.participants[thread.ID]; !ok {
		s.participants[thread.ID] = make(map[string]bool)
	}
	for _, p := range thread.Participants {
		s.participants[thread.ID][p.ID] = true
	}
	if kind, unitID, ok := thread.UnitKind(); ok {
		s.byUnit[unitKey(kind, unitID)] = thread.ID
	}
	return nil
}

// GetThread 根据 ID 获取线程（含参与者快照）。
func (s *Store) GetThread(id string) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[id]
	if !ok {
		return nil, storage.ErrThreadNotFound
	}
	out := *thread
	out.Participants = s.participantsLocked(id)
	return &out, nil
}

// UpdateThread 更新线程。
func (s *Store) UpdateThread(thread *domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[thread.ID]; !ok {
		return storage.ErrThreadNotFound
	}
	thread.UpdatedAt = time.Now().UTC()
	s.threads[thread.ID] = thread
	return nil
}

// DeleteThread 删除线程并级联删除其消息。
func (s *Store) DeleteThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[id]
	if !ok {
		return storage.ErrThreadNotFound
	}
	if kind, unitID, ok := thread.UnitKind(); ok {
		delete(s.byUnit, unitKey(kind, unitID))
	}
	for msgID := range s.messages[id] {
		delete(s.msgThread, msgID)
		delete(s.flags, msgID)
	}
	delete(s.messages, id)
	delete(s.participants, id)
	delete(s.threads, id)
	return nil
}

// ListThreadsByParticipant 返回用户参与的全部线程。
func (s *Store) ListThreadsByParticipant(userID string) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Thread, 0)
	for id, members := range s.participants {
		if !members[userID] {
			continue
		}
		if thread, ok := s.threads[id]; ok {
			out := *thread
			out.Participants = s.participantsLocked(id)
			result = append(result, out)
		}
	}
	sortThreads(result)
	return result, nil
}

// ListThreadsByWebsite 返回租户下的全部线程。
func (s *Store) ListThreadsByWebsite(websiteID string) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Thread, 0)
	for id, thread := range s.threads {
		if thread.WebsiteID != websiteID {
			continue
		}
		out := *thread
		out.Participants = s.participantsLocked(id)
		result = append(result, out)
	}
	sortThreads(result)
	return result, nil
}

// FindThreadByUnit 根据挂靠的工作单元查找线程。
func (s *Store) FindThreadByUnit(kind domain.UnitKind, unitID string) (*domain.Thread, error) {
	s.mu.RLock()
	id, ok := s.byUnit[unitKey(kind, unitID)]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrThreadNotFound
	}
	return s.GetThread(id)
}

// AddParticipant 将用户加入线程参与者集合，重复加入是 no-op。
func (s *Store) AddParticipant(threadID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[threadID]; !ok {
		return storage.ErrThreadNotFound
	}
	if _, ok := s.participants[threadID]; !ok {
		s.participants[threadID] = make(map[string]bool)
	}
	s.participants[threadID][userID] = true
	return nil
}

func (s *Store) participantsLocked(threadID string) []domain.User {
	members := s.participants[threadID]
	result := make([]domain.User, 0, len(members))
	for uid := range members {
		if u, ok := s.users[uid]; ok {
			result = append(result, *u)
		} else {
			result = append(result, domain.User{ID: uid})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ========== Message Repository ==========

// SaveMessage 保存消息。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[message.ThreadID]; !ok {
		return storage.ErrThreadNotFound
	}
	if _, ok := s.messages[message.ThreadID]; !ok {
		s.messages[message.ThreadID] = make(map[string]*domain.Message)
	}
	s.messages[message.ThreadID][message.ID] = message
	s.msgThread[message.ID] = message.ThreadID
	return nil
}

// GetMessage 根据 ID 获取消息。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threadID, ok := s.msgThread[id]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	msg := s.messages[threadID][id]
	out := *msg
	return &out, nil
}

// UpdateMessage 更新消息。
func (s *Store) UpdateMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threadID, ok := s.msgThread[message.ID]
	if !ok {
		return storage.ErrMessageNotFound
	}
	message.UpdatedAt = time.Now().UTC()
	s.messages[threadID][message.ID] = message
	return nil
}

// SoftDeleteMessage 软删除消息，记录保留。
func (s *Store) SoftDeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threadID, ok := s.msgThread[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	s.messages[threadID][id].IsDeleted = true
	return nil
}

// ListMessages 返回线程内的全部消息，按发送时间升序。
func (s *Store) ListMessages(threadID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.threads[threadID]; !ok {
		return nil, storage.ErrThreadNotFound
	}
	msgMap := s.messages[threadID]
	result := make([]domain.Message, 0, len(msgMap))
	for _, msg := range msgMap {
		result = append(result, *msg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SentAt.Before(result[j].SentAt)
	})
	return result, nil
}

// ListPendingPreviews 返回预览仍为 pending 且早于 before 的消息。
func (s *Store) ListPendingPreviews(before time.Time) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Message, 0)
	for _, msgMap := range s.messages {
		for _, msg := range msgMap {
			if msg.PreviewState == domain.PreviewStatePending && msg.SentAt.Before(before) {
				result = append(result, *msg)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SentAt.Before(result[j].SentAt)
	})
	return result, nil
}

// ========== Receipt Repository ==========

// SaveReceipt 保存已读回执，重复创建返回 ErrReceiptExists。
func (s *Store) SaveReceipt(receipt *domain.ReadReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receiptKey(receipt.MessageID, receipt.UserID)
	if _, ok := s.receipts[key]; ok {
		return storage.ErrReceiptExists
	}
	s.receipts[key] = receipt
	return nil
}

// GetReceipt 获取指定消息与用户的回执。
func (s *Store) GetReceipt(messageID, userID string) (*domain.ReadReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, ok := s.receipts[receiptKey(messageID, userID)]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	out := *receipt
	return &out, nil
}

// ListReceiptsByMessage 返回消息的全部回执。
func (s *Store) ListReceiptsByMessage(messageID string) ([]domain.ReadReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ReadReceipt, 0)
	for _, r := range s.receipts {
		if r.MessageID == messageID {
			result = append(result, *r)
		}
	}
	return result, nil
}

// ========== Flag Repository ==========

// SaveFlag 保存标记记录。
func (s *Store) SaveFlag(flag *domain.FlaggedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[flag.MessageID] = flag
	return nil
}

// GetFlagByMessage 获取消息的标记记录。
func (s *Store) GetFlagByMessage(messageID string) (*domain.FlaggedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flag, ok := s.flags[messageID]
	if !ok {
		return nil, storage.ErrFlagNotFound
	}
	out := *flag
	return &out, nil
}

// UpdateFlag 更新标记记录。
func (s *Store) UpdateFlag(flag *domain.FlaggedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flags[flag.MessageID]; !ok {
		return storage.ErrFlagNotFound
	}
	flag.UpdatedAt = time.Now().UTC()
	s.flags[flag.MessageID] = flag
	return nil
}

// ListFlagged 分页返回标记记录（按创建时间倒序），同时返回总数。
func (s *Store) ListFlagged(page, pageSize int) ([]domain.FlaggedMessage, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.FlaggedMessage, 0, len(s.flags))
	for _, f := range s.flags {
		all = append(all, *f)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return []domain.FlaggedMessage{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// CountFlags 返回审查队列统计。
func (s *Store) CountFlags() (*domain.FlagQueueCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &domain.FlagQueueCounts{}
	for _, f := range s.flags {
		counts.Flagged++
		if f.IsUnblocked {
			counts.Reviewed++
		} else {
			counts.Pending++
		}
	}
	return counts, nil
}

// CountRecentFlagsBySender 统计发送者近期被标记的次数。
func (s *Store) CountRecentFlagsBySender(senderID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for msgID, f := range s.flags {
		if f.CreatedAt.Before(since) {
			continue
		}
		threadID, ok := s.msgThread[msgID]
		if !ok {
			continue
		}
		if msg, ok := s.messages[threadID][msgID]; ok && msg.SenderID == senderID {
			count++
		}
	}
	return count, nil
}

// ========== Notification Repository ==========

// SaveNotifications 批量保存通知。
func (s *Store) SaveNotifications(notifications []*domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		s.notifs[n.ID] = n
	}
	return nil
}

// ListNotificationsByRecipient 返回用户的通知，按创建时间倒序。
func (s *Store) ListNotificationsByRecipient(userID string, onlyUnread bool) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range s.notifs {
		if n.RecipientID != userID {
			continue
		}
		if onlyUnread && n.IsRead {
			continue
		}
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// MarkNotificationRead 将通知标记为已读。
func (s *Store) MarkNotificationRead(id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifs[id]
	if !ok || n.RecipientID != userID {
		return storage.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

// DeleteExpiredNotifications 删除已过期的通知，返回删除数量。
func (s *Store) DeleteExpiredNotifications(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, n := range s.notifs {
		if n.ExpiresAt != nil && n.ExpiresAt.Before(before) {
			delete(s.notifs, id)
			count++
		}
	}
	return count, nil
}

// ========== Alert Repository ==========

// SaveAlert 保存运维告警。
func (s *Store) SaveAlert(alert *domain.SystemAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts[alert.ID] = alert
	return nil
}

// ListOpenAlerts 返回未解决的告警。
func (s *Store) ListOpenAlerts() ([]domain.SystemAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SystemAlert, 0)
	for _, a := range s.alerts {
		if !a.Resolved {
			result = append(result, *a)
		}
	}
	return result, nil
}

// ResolveAlert 将告警标记为已解决。
func (s *Store) ResolveAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	now := time.Now().UTC()
	a.Resolved = true
	a.ResolvedAt = &now
	return nil
}

// ========== BanList Repository ==========

// ListBannedWords 返回全部违禁词。
func (s *Store) ListBannedWords() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.bannedWords))
	for w := range s.bannedWords {
		result = append(result, w)
	}
	sort.Strings(result)
	return result, nil
}

// SaveBannedWord 保存违禁词。
func (s *Store) SaveBannedWord(word *domain.BannedWord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bannedWords[strings.ToLower(word.Word)] = word
	return nil
}

// DeleteBannedWord 删除违禁词。
func (s *Store) DeleteBannedWord(word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bannedWords, strings.ToLower(word))
	return nil
}

// ========== User Repository ==========

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return storage.ErrUserExists
	}
	s.users[user.ID] = user
	s.byUsername[user.Username] = user.ID
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *s.users[id]
	return &out, nil
}

// ListStaff 返回租户下的全部内部人员。
func (s *Store) ListStaff(websiteID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0)
	for _, u := range s.users {
		if !u.IsStaff {
			continue
		}
		// 空租户表示全平台人员
		if websiteID != "" && u.WebsiteID != "" && u.WebsiteID != websiteID {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateLastLogin 更新最近登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return nil
}

// ========== RateLimit Repository ==========

// IncrementRateLimit 原子自增窗口计数，窗口首次触发时设置过期。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{ExpiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.Count++
	return entry.Count, nil
}

// ========== 工具方法 ==========

// Close 关闭存储（内存实现为 no-op）。
func (s *Store) Close() error { return nil }

// Health 健康检查（内存实现恒为健康）。
func (s *Store) Health() error { return nil }

func unitKey(kind domain.UnitKind, unitID string) string {
	return string(kind) + ":" + unitID
}

func receiptKey(messageID, userID string) string {
	return messageID + ":" + userID
}

func sortThreads(threads []domain.Thread) {
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}
