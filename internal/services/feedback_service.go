package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Daneel-Li/feedback-back/internal/dao"
	mxm "github.com/Daneel-Li/feedback-back/internal/models"
	"github.com/Daneel-Li/feedback-back/internal/store"
)

var ErrJournalDisabled = errors.New("event journal is disabled")

// FeedbackService 包装 FeedbackStore，负责入参解析、可见性和事件分发
type FeedbackService struct {
	store    *store.FeedbackStore
	notifier Notifier
	events   dao.EventRepository
}

// NewFeedbackService notifier 和 events 都可以为 nil
func NewFeedbackService(st *store.FeedbackStore, notifier Notifier, events dao.EventRepository) *FeedbackService {
	s := &FeedbackService{
		store:    st,
		notifier: notifier,
		events:   events,
	}
	if notifier != nil {
		st.SetListener(notifier.Notify)
	}
	return s
}

// ========== 反馈相关方法 ==========

func (s *FeedbackService) SubmitFeedback(ctx context.Context, user mxm.User, content, typ string, attachments []string) (*mxm.Feedback, error) {
	ft, err := mxm.ParseFeedbackType(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidType, err.Error())
	}
	f, err := s.store.Submit(user, content, ft, attachments)
	if err != nil {
		slog.Warn("submit feedback failed", "userID", user.ID, "error", err)
		return nil, err
	}
	slog.Info("feedback submitted", "feedbackID", f.ID, "userID", user.ID, "type", f.Type)
	return f, nil
}

// ListFeedbacks 按可见性和过滤条件返回列表，最新的在前
func (s *FeedbackService) ListFeedbacks(ctx context.Context, user mxm.User, filter store.Filter) []*mxm.Feedback {
	return s.store.List(user, filter)
}

// GetFeedback 对不可见的反馈同样返回 ErrNotFound，不暴露其存在
func (s *FeedbackService) GetFeedback(ctx context.Context, user mxm.User, feedbackID string) (*mxm.Feedback, error) {
	f, err := s.store.Get(feedbackID)
	if err != nil {
		return nil, err
	}
	if !user.CanView(f) {
		return nil, store.ErrNotFound
	}
	return f, nil
}

func (s *FeedbackService) SetStatus(ctx context.Context, user mxm.User, feedbackID, status string) (*mxm.Feedback, error) {
	st, err := mxm.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrInvalidStatus, err.Error())
	}
	f, err := s.store.ChangeStatus(user, feedbackID, st)
	if err != nil {
		slog.Warn("set status failed", "feedbackID", feedbackID, "userID", user.ID, "error", err)
		return nil, hideForbidden(err)
	}
	slog.Info("feedback status set", "feedbackID", feedbackID, "status", f.Status, "userID", user.ID)
	return f, nil
}

func (s *FeedbackService) ToggleStatus(ctx context.Context, user mxm.User, feedbackID string) (*mxm.Feedback, error) {
	f, err := s.store.ToggleStatus(user, feedbackID)
	if err != nil {
		slog.Warn("toggle status failed", "feedbackID", feedbackID, "userID", user.ID, "error", err)
		return nil, hideForbidden(err)
	}
	slog.Info("feedback status toggled", "feedbackID", feedbackID, "status", f.Status, "userID", user.ID)
	return f, nil
}

// hideForbidden 看不到的反馈当作不存在，不暴露ID是否存在。
// 可见与可改状态是同一条规则，所以查询、回复、改状态都统一返回 ErrNotFound
func hideForbidden(err error) error {
	if errors.Is(err, store.ErrPermissionDenied) {
		return store.ErrNotFound
	}
	return err
}

// ========== 回复相关方法 ==========

func (s *FeedbackService) AddReply(ctx context.Context, user mxm.User, feedbackID, content string, attachments []string) (*mxm.Reply, error) {
	r, err := s.store.AddReplyAs(user, feedbackID, content, attachments)
	if err != nil {
		if errors.Is(err, store.ErrPermissionDenied) {
			return nil, hideForbidden(err)
		}
		slog.Warn("add reply failed", "feedbackID", feedbackID, "userID", user.ID, "error", err)
		return nil, err
	}
	slog.Info("reply added", "feedbackID", feedbackID, "replyID", r.ID, "userID", user.ID)
	return r, nil
}

func (s *FeedbackService) GetReplies(ctx context.Context, user mxm.User, feedbackID string) ([]mxm.Reply, error) {
	f, err := s.GetFeedback(ctx, user, feedbackID)
	if err != nil {
		return nil, err
	}
	return f.Replies, nil
}

// ========== 事件流水 ==========

// GetEvents 仅管理员可查询，需开启 mysql 流水
func (s *FeedbackService) GetEvents(ctx context.Context, user mxm.User, feedbackID string, limit, offset int) ([]*mxm.EventRecord, error) {
	if !user.IsAdmin {
		return nil, store.ErrPermissionDenied
	}
	if s.events == nil {
		return nil, ErrJournalDisabled
	}
	if _, err := s.store.Get(feedbackID); err != nil {
		return nil, err
	}
	records, err := s.events.GetEventsByFeedbackID(feedbackID, limit, offset)
	if err != nil {
		slog.Error("get events failed", "feedbackID", feedbackID, "error", err)
		return nil, fmt.Errorf("get events failed: %w", err)
	}
	return records, nil
}
