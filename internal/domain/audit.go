package domain

import "time"

// AuditAction 审计动作类型
type AuditAction string

const (
	AuditMessageSent      AuditAction = "message_sent"
	AuditMessageEdited    AuditAction = "message_edited"
	AuditMessageDeleted   AuditAction = "message_deleted"
	AuditMessageUnblocked AuditAction = "message_unblocked"
	AuditMessageReflagged AuditAction = "message_reflagged"
	AuditThreadCreated    AuditAction = "thread_created"
	AuditThreadDeleted    AuditAction = "thread_deleted"
	AuditPreviewReset     AuditAction = "preview_reset"
)

// AuditEntry 表示一条追加写入的审计记录。
type AuditEntry struct {
	ActorID     string            `json:"actorId"`
	WebsiteID   string            `json:"websiteId"`
	Action      AuditAction       `json:"action"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// AuditSink 是审计日志的追加写入端。
//
// 调用方（事件订阅者）负责吞掉写入失败，失败绝不回传给消息发送方。
type AuditSink interface {
	Write(entry AuditEntry) error
}

// ActivitySink 是面向用户的动态流写入端，尽力而为。
type ActivitySink interface {
	Record(actorID, websiteID, description string) error
}
