package dao

import (
	mxm "github.com/Daneel-Li/feedback-back/internal/models"
)

// FeedbackRepository 反馈相关数据访问接口
type FeedbackRepository interface {
	// LoadFeedbacks 按创建时间倒序返回全部反馈，回复按创建顺序
	LoadFeedbacks() ([]*mxm.Feedback, error)
	SaveFeedbacks(feedbacks []*mxm.Feedback) error
}

// EventRepository 事件流水相关数据访问接口
type EventRepository interface {
	AddEvent(record *mxm.EventRecord) error
	GetEventsByFeedbackID(feedbackID string, limit, offset int) ([]*mxm.EventRecord, error)
}

// Repository 统一的数据访问接口
type Repository interface {
	FeedbackRepository
	EventRepository
	AutoMigrate() error
}
