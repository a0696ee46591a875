package audit

import (
	"go.uber.org/zap"

	"scribemarket/backend/internal/domain"
)

// LogSink 把审计记录写进结构化日志，是审计库未配置时的退路
// （内存存储模式、本地开发）。
type LogSink struct {
	log *zap.Logger
}

// NewLogSink 创建日志审计端。
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

// Write 输出一条审计日志。
func (s *LogSink) Write(entry domain.AuditEntry) error {
	s.log.Info("audit",
		zap.String("actorID", entry.ActorID),
		zap.String("websiteID", entry.WebsiteID),
		zap.String("action", string(entry.Action)),
		zap.String("description", entry.Description),
		zap.Any("metadata", entry.Metadata),
	)
	return nil
}

// Record 输出一条动态日志。
func (s *LogSink) Record(actorID, websiteID, description string) error {
	s.log.Info("activity",
		zap.String("actorID", actorID),
		zap.String("websiteID", websiteID),
		zap.String("description", description),
	)
	return nil
}
