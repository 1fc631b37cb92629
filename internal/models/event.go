package mxm

import (
	"time"

	"gorm.io/datatypes"
)

type EventKind string

const (
	EventFeedbackSubmitted EventKind = "feedback_submitted"
	EventStatusChanged     EventKind = "status_changed"
	EventReplyAdded        EventKind = "reply_added"
)

// FeedbackEvent 每次成功修改后产生的事件，Feedback/Reply 都是快照
// Seq 在同一个 store 内单调递增，消费方丢弃比已见过的更小的序号即可恢复顺序
type FeedbackEvent struct {
	Seq        uint64    `json:"seq"`
	Kind       EventKind `json:"kind"`
	FeedbackID string    `json:"feedbackId"`
	ReplyID    string    `json:"replyId,omitempty"`
	ActorID    string    `json:"actorId"`
	Status     Status    `json:"status,omitempty"`
	Feedback   *Feedback `json:"feedback,omitempty"`
	Reply      *Reply    `json:"reply,omitempty"`
	At         time.Time `json:"at"`
}

// EventRecord 事件流水表
type EventRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Kind       string         `gorm:"size:32" json:"kind"`
	FeedbackID string         `gorm:"column:feedback_id;size:64;index" json:"feedbackId"`
	ReplyID    string         `gorm:"column:reply_id;size:64" json:"replyId,omitempty"`
	ActorID    string         `gorm:"column:actor_id;size:64" json:"actorId"`
	Status     string         `gorm:"size:16" json:"status,omitempty"`
	Payload    datatypes.JSON `gorm:"type:json" json:"payload"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (EventRecord) TableName() string {
	return "feedback_events"
}
