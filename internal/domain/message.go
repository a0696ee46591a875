package domain

import (
	"sort"
	"strings"
	"time"
)

// MessageType 表示消息类型。
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeImage  MessageType = "image"
	MessageTypeLink   MessageType = "link"
	MessageTypeSystem MessageType = "system"
)

// ValidMessageType 判断调用方提交的消息类型是否合法。
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeImage, MessageTypeLink:
		return true
	default:
		return false
	}
}

// PreviewState 表示链接预览抓取状态。
type PreviewState string

const (
	PreviewStateNone    PreviewState = ""        // 无链接
	PreviewStatePending PreviewState = "pending" // 等待抓取
	PreviewStateFetched PreviewState = "fetched" // 抓取成功
	PreviewStateFailed  PreviewState = "failed"  // 抓取失败，需人工重置
)

// Message 表示线程内的一条消息。
//
// 约束：IsFlagged 为真时 IsHidden 必为真；ReplyToID 若非空，
// 必须指向同一线程内的消息。消息只能经 MessageService 创建，
// 正文不可变（管理员更正走审计通道），删除是软删除。
type Message struct {
	ID             string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ThreadID       string       `json:"threadId" gorm:"type:varchar(36);index;not null"`
	SenderID       string       `json:"senderId" gorm:"type:varchar(36);index;not null"`
	RecipientID    string       `json:"recipientId" gorm:"type:varchar(36);index;not null"`
	SenderRole     Role         `json:"senderRole" gorm:"type:varchar(20);not null"` // 发送时快照
	RecipientRole  Role         `json:"recipientRole" gorm:"type:varchar(20)"`
	Body           string       `json:"body" gorm:"type:text"`
	Type           MessageType  `json:"type" gorm:"type:varchar(10);default:'text'"`
	AttachmentID   *string      `json:"attachmentId,omitempty" gorm:"type:varchar(36)"`
	IsFlagged      bool         `json:"isFlagged" gorm:"default:false;index"`
	IsHidden       bool         `json:"isHidden" gorm:"default:false"`
	IsDeleted      bool         `json:"isDeleted" gorm:"default:false;index"`
	ContainsLink   bool         `json:"containsLink" gorm:"default:false"`
	LinkURL        string       `json:"linkUrl,omitempty" gorm:"type:varchar(2048)"`
	LinkDomain     string       `json:"linkDomain,omitempty" gorm:"type:varchar(255)"`
	IsLinkApproved bool         `json:"isLinkApproved" gorm:"default:false"`
	LinkPreview    *string      `json:"linkPreview,omitempty" gorm:"type:text"` // JSON，抓取前为空
	PreviewState   PreviewState `json:"previewState,omitempty" gorm:"type:varchar(10)"`
	// 允许查看该消息的角色对，形如 "client,writer"（去重排序）。
	VisibleToRoles string    `json:"visibleToRoles" gorm:"type:varchar(50)"`
	ReplyToID      *string   `json:"replyToId,omitempty" gorm:"type:varchar(36);index"`
	SentAt         time.Time `json:"sentAt" gorm:"index"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RolePair 计算消息的可见角色对：去重后按字典序排列。
func RolePair(sender, recipient Role) string {
	if sender == recipient {
		return string(sender)
	}
	pair := []string{string(sender), string(recipient)}
	sort.Strings(pair)
	return strings.Join(pair, ",")
}

// VisibleToRole 判断角色是否位于消息的可见角色对中。
func (m *Message) VisibleToRole(r Role) bool {
	for _, part := range strings.Split(m.VisibleToRoles, ",") {
		if part == string(r) {
			return true
		}
	}
	return false
}
