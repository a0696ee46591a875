package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

const createTables = `
CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    actor_id    VARCHAR(36)  NOT NULL,
    website_id  VARCHAR(36)  NOT NULL DEFAULT '',
    action      VARCHAR(50)  NOT NULL,
    description VARCHAR(1000) NOT NULL DEFAULT '',
    metadata    JSONB,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log (actor_id);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log (action);

CREATE TABLE IF NOT EXISTS activity_feed (
    id          BIGSERIAL PRIMARY KEY,
    actor_id    VARCHAR(36)  NOT NULL,
    website_id  VARCHAR(36)  NOT NULL DEFAULT '',
    description VARCHAR(500) NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_activity_actor ON activity_feed (actor_id);
`

// SQLSink 把审计日志与用户动态追加写入独立的 Postgres 表。
//
// 走原生 database/sql 而不是 ORM：审计表只追加不更新，
// 与业务模型的迁移生命周期分离。实现 domain.AuditSink
// 与 domain.ActivitySink。
type SQLSink struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLSink 打开审计库连接并确保表存在。
func NewSQLSink(dsn string, log *zap.Logger) (*SQLSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit tables: %w", err)
	}

	log.Info("audit sink connected")
	return &SQLSink{db: db, log: log}, nil
}

// Write 追加一条审计记录。
func (s *SQLSink) Write(entry domain.AuditEntry) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_log (actor_id, website_id, action, description, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ActorID, entry.WebsiteID, string(entry.Action),
		entry.Description, metadata, createdAt,
	)
	return err
}

// Record 追加一条用户动态。
func (s *SQLSink) Record(actorID, websiteID, description string) error {
	_, err := s.db.Exec(
		`INSERT INTO activity_feed (actor_id, website_id, description, created_at)
		 VALUES ($1, $2, $3, $4)`,
		actorID, websiteID, description, time.Now().UTC(),
	)
	return err
}

// Close 关闭审计库连接。
func (s *SQLSink) Close() error {
	return s.db.Close()
}
