package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scribemarket/backend/internal/domain"
	"scribemarket/backend/internal/storage"
)

// rateLimitCounter 是 Redis 不可用时的 SQL 限流退路。
type rateLimitCounter struct {
	Key       string    `gorm:"primaryKey;type:varchar(200)"`
	Count     int64     `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index"`
}

// Store 是消息核心的 SQL 存储实现，实现 storage.Store。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Thread{},
		&domain.Message{},
		&domain.ReadReceipt{},
		&domain.FlaggedMessage{},
		&domain.Notification{},
		&domain.SystemAlert{},
		&domain.BannedWord{},
		&rateLimitCounter{},
	)
}

// DB 返回底层的 gorm 连接，供迁移工具使用。
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ========== Thread Repository ==========

// SaveThread 保存线程与其参与者关联。
func (s *Store) SaveThread(thread *domain.Thread) error {
	return s.db.Save(thread).Error
}

// GetThread 根据 ID 获取线程，预加载参与者。
func (s *Store) GetThread(id string) (*domain.Thread, error) {
	var thread domain.Thread
	err := s.db.Preload("Participants").Where("id = ?", id).First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrThreadNotFound
		}
		return nil, err
	}
	return &thread, nil
}

// UpdateThread 更新线程，不触碰参与者关联。
func (s *Store) UpdateThread(thread *domain.Thread) error {
	return s.db.Omit("Participants").Save(thread).Error
}

// DeleteThread 删除线程并级联删除消息、回执与参与者关联。
func (s *Store) DeleteThread(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var messageIDs []string
		if err := tx.Model(&domain.Message{}).Where("thread_id = ?", id).
			Pluck("id", &messageIDs).Error; err != nil {
			return err
		}
		if len(messageIDs) > 0 {
			if err := tx.Where("message_id IN ?", messageIDs).
				Delete(&domain.ReadReceipt{}).Error; err != nil {
				return err
			}
			if err := tx.Where("message_id IN ?", messageIDs).
				Delete(&domain.FlaggedMessage{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("thread_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM thread_participants WHERE thread_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Thread{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrThreadNotFound
		}
		return nil
	})
}

// ListThreadsByParticipant 返回用户参与的全部线程。
func (s *Store) ListThreadsByParticipant(userID string) ([]domain.Thread, error) {
	var threads []domain.Thread
	err := s.db.Preload("Participants").
		Joins("JOIN thread_participants tp ON tp.thread_id = threads.id").
		Where("tp.user_id = ?", userID).
		Order("updated_at DESC").
		Find(&threads).Error
	return threads, err
}

// ListThreadsByWebsite 返回租户下的全部线程。
func (s *Store) ListThreadsByWebsite(websiteID string) ([]domain.Thread, error) {
	var threads []domain.Thread
	err := s.db.Preload("Participants").
		Where("website_id = ?", websiteID).
		Order("updated_at DESC").
		Find(&threads).Error
	return threads, err
}

// FindThreadByUnit 按挂靠的工作单元查找线程。
func (s *Store) FindThreadByUnit(kind domain.UnitKind, unitID string) (*domain.Thread, error) {
	var column string
	switch kind {
	case domain.UnitOrder:
		column = "order_id"
	case domain.UnitSpecialOrder:
		column = "special_order_id"
	case domain.UnitClassBundle:
		column = "class_bundle_id"
	default:
		return nil, storage.ErrThreadNotFound
	}

	var thread domain.Thread
	err := s.db.Preload("Participants").
		Where(fmt.Sprintf("%s = ?", column), unitID).
		First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrThreadNotFound
		}
		return nil, err
	}
	return &thread, nil
}

// AddParticipant 把用户加入线程参与者。
func (s *Store) AddParticipant(threadID, userID string) error {
	thread := domain.Thread{ID: threadID}
	return s.db.Model(&thread).Association("Participants").
		Append(&domain.User{ID: userID})
}

// ========== Message Repository ==========

// SaveMessage 保存消息。
func (s *Store) SaveMessage(message *domain.Message) error {
	return s.db.Save(message).Error
}

// GetMessage 根据 ID 获取消息。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	var message domain.Message
	err := s.db.Where("id = ?", id).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// UpdateMessage 更新消息。
func (s *Store) UpdateMessage(message *domain.Message) error {
	return s.db.Save(message).Error
}

// SoftDeleteMessage 软删除消息，保留行以供审计追溯。
func (s *Store) SoftDeleteMessage(id string) error {
	result := s.db.Model(&domain.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// ListMessages 按发送时间升序返回线程内的全部消息。
func (s *Store) ListMessages(threadID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.Where("thread_id = ?", threadID).
		Order("sent_at ASC").
		Find(&messages).Error
	return messages, err
}

// ListPendingPreviews 返回预览仍为 pending 且早于 before 的消息。
// 进程重启会丢失在途的抓取任务，后台任务据此重新排队。
func (s *Store) ListPendingPreviews(before time.Time) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.Where("preview_state = ? AND sent_at < ?", domain.PreviewStatePending, before).
		Order("sent_at ASC").
		Find(&messages).Error
	return messages, err
}

// ========== Receipt Repository ==========

// SaveReceipt 保存已读回执，(message_id, user_id) 冲突返回 ErrReceiptExists。
func (s *Store) SaveReceipt(receipt *domain.ReadReceipt) error {
	var existing domain.ReadReceipt
	err := s.db.Where("message_id = ? AND user_id = ?",
		receipt.MessageID, receipt.UserID).First(&existing).Error
	if err == nil {
		return storage.ErrReceiptExists
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.db.Create(receipt).Error
}

// GetReceipt 获取指定用户对指定消息的回执。
func (s *Store) GetReceipt(messageID, userID string) (*domain.ReadReceipt, error) {
	var receipt domain.ReadReceipt
	err := s.db.Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&receipt).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	return &receipt, nil
}

// ListReceiptsByMessage 返回消息的全部回执。
func (s *Store) ListReceiptsByMessage(messageID string) ([]domain.ReadReceipt, error) {
	var receipts []domain.ReadReceipt
	err := s.db.Where("message_id = ?", messageID).
		Order("read_at ASC").
		Find(&receipts).Error
	return receipts, err
}

// ========== Flag Repository ==========

// SaveFlag 保存标记审查记录。
func (s *Store) SaveFlag(flag *domain.FlaggedMessage) error {
	return s.db.Save(flag).Error
}

// GetFlagByMessage 获取消息的审查记录。
func (s *Store) GetFlagByMessage(messageID string) (*domain.FlaggedMessage, error) {
	var flag domain.FlaggedMessage
	err := s.db.Where("message_id = ?", messageID).First(&flag).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrFlagNotFound
		}
		return nil, err
	}
	return &flag, nil
}

// UpdateFlag 更新审查记录。
func (s *Store) UpdateFlag(flag *domain.FlaggedMessage) error {
	return s.db.Save(flag).Error
}

// ListFlagged 分页返回审查记录，最新的在前。
func (s *Store) ListFlagged(page, pageSize int) ([]domain.FlaggedMessage, int, error) {
	var total int64
	if err := s.db.Model(&domain.FlaggedMessage{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var flags []domain.FlaggedMessage
	err := s.db.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&flags).Error
	return flags, int(total), err
}

// CountFlags 返回审查队列统计。
func (s *Store) CountFlags() (*domain.FlagQueueCounts, error) {
	var total, reviewed int64
	if err := s.db.Model(&domain.FlaggedMessage{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.FlaggedMessage{}).
		Where("is_unblocked = ?", true).Count(&reviewed).Error; err != nil {
		return nil, err
	}
	return &domain.FlagQueueCounts{
		Flagged:  int(total),
		Reviewed: int(reviewed),
		Pending:  int(total - reviewed),
	}, nil
}

// CountRecentFlagsBySender 统计发送者 since 之后被标记的消息数。
func (s *Store) CountRecentFlagsBySender(senderID string, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&domain.FlaggedMessage{}).
		Joins("JOIN messages m ON m.id = flagged_messages.message_id").
		Where("m.sender_id = ? AND flagged_messages.created_at >= ?", senderID, since).
		Count(&count).Error
	return count, err
}

// ========== Notification Repository ==========

// SaveNotifications 批量保存通知。
func (s *Store) SaveNotifications(notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return s.db.CreateInBatches(notifications, 100).Error
}

// ListNotificationsByRecipient 返回用户的通知，最新的在前。
func (s *Store) ListNotificationsByRecipient(userID string, onlyUnread bool) ([]domain.Notification, error) {
	query := s.db.Where("recipient_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC())
	if onlyUnread {
		query = query.Where("is_read = ?", false)
	}

	var notifications []domain.Notification
	err := query.Order("created_at DESC").Find(&notifications).Error
	return notifications, err
}

// MarkNotificationRead 把通知标记为已读，只允许收件人本人。
func (s *Store) MarkNotificationRead(id, userID string) error {
	result := s.db.Model(&domain.Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotificationNotFound
	}
	return nil
}

// DeleteExpiredNotifications 删除过期通知，返回删除数量。
func (s *Store) DeleteExpiredNotifications(before time.Time) (int, error) {
	result := s.db.Where("expires_at IS NOT NULL AND expires_at <= ?", before).
		Delete(&domain.Notification{})
	return int(result.RowsAffected), result.Error
}

// ========== Alert Repository ==========

// SaveAlert 保存运维告警。
func (s *Store) SaveAlert(alert *domain.SystemAlert) error {
	return s.db.Create(alert).Error
}

// ListOpenAlerts 返回未解决的告警。
func (s *Store) ListOpenAlerts() ([]domain.SystemAlert, error) {
	var alerts []domain.SystemAlert
	err := s.db.Where("resolved = ?", false).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// ResolveAlert 把告警标记为已解决。
func (s *Store) ResolveAlert(id string) error {
	now := time.Now().UTC()
	result := s.db.Model(&domain.SystemAlert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrAlertNotFound
	}
	return nil
}

// ========== BanList Repository ==========

// ListBannedWords 返回全部违禁词。
func (s *Store) ListBannedWords() ([]string, error) {
	var words []string
	err := s.db.Model(&domain.BannedWord{}).
		Order("word ASC").
		Pluck("word", &words).Error
	return words, err
}

// SaveBannedWord 新增违禁词。
func (s *Store) SaveBannedWord(word *domain.BannedWord) error {
	return s.db.Save(word).Error
}

// DeleteBannedWord 删除违禁词。
func (s *Store) DeleteBannedWord(word string) error {
	return s.db.Where("word = ?", word).Delete(&domain.BannedWord{}).Error
}

// ========== User Repository ==========

// CreateUser 创建用户，用户名冲突返回 ErrUserExists。
func (s *Store) CreateUser(user *domain.User) error {
	var count int64
	if err := s.db.Model(&domain.User{}).
		Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrUserExists
	}
	return s.db.Create(user).Error
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListStaff 返回租户下的全部内部人员。
func (s *Store) ListStaff(websiteID string) ([]domain.User, error) {
	var users []domain.User
	err := s.db.Where("website_id = ? AND role IN ? AND is_active = ?",
		websiteID,
		[]string{"editor", "support", "admin", "superadmin"},
		true).
		Find(&users).Error
	return users, err
}

// UpdateLastLogin 更新用户最后登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login_at", time.Now().UTC()).Error
}

// ========== RateLimit Repository ==========

// IncrementRateLimit 基于 SQL 的固定窗口计数器，是 Redis 缺席时的退路。
// 自增在事务里完成，窗口过期则重置计数。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	var count int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var counter rateLimitCounter
		err := tx.Where("key = ?", key).First(&counter).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			counter = rateLimitCounter{Key: key, Count: 1, ExpiresAt: now.Add(window)}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case now.After(counter.ExpiresAt):
			counter.Count = 1
			counter.ExpiresAt = now.Add(window)
			if err := tx.Save(&counter).Error; err != nil {
				return err
			}
		default:
			counter.Count++
			if err := tx.Save(&counter).Error; err != nil {
				return err
			}
		}
		count = counter.Count
		return nil
	})
	return count, err
}

// ========== 工具方法 ==========

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
