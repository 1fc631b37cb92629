package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventRepository 模拟事件流水
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) AddEvent(record *mxm.EventRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockEventRepository) GetEventsByFeedbackID(feedbackID string, limit, offset int) ([]*mxm.EventRecord, error) {
	args := m.Called(feedbackID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*mxm.EventRecord), args.Error(1)
}

func TestJournal_Notify(t *testing.T) {
	repo := &MockEventRepository{}
	at := time.Date(2023, 4, 2, 15, 0, 0, 0, time.UTC)

	var saved *mxm.EventRecord
	repo.On("AddEvent", mock.AnythingOfType("*mxm.EventRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(0).(*mxm.EventRecord) }).
		Return(nil).Once()

	NewJournal(repo).Notify(mxm.FeedbackEvent{
		Kind:       mxm.EventReplyAdded,
		FeedbackID: "2",
		ReplyID:    "1",
		ActorID:    "1",
		Status:     mxm.StatusResolved,
		Reply:      &mxm.Reply{ID: "1", Content: "已修复"},
		At:         at,
	})

	repo.AssertExpectations(t)
	require.NotNil(t, saved)
	assert.Equal(t, "reply_added", saved.Kind)
	assert.Equal(t, "2", saved.FeedbackID)
	assert.Equal(t, "1", saved.ReplyID)
	assert.Equal(t, "resolved", saved.Status)
	assert.Equal(t, at, saved.CreatedAt)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(saved.Payload, &payload))
	assert.Equal(t, "reply_added", payload["kind"])
}

func TestJournal_NotifyRepoErrorSwallowed(t *testing.T) {
	repo := &MockEventRepository{}
	repo.On("AddEvent", mock.Anything).Return(errors.New("db down")).Once()

	assert.NotPanics(t, func() {
		NewJournal(repo).Notify(mxm.FeedbackEvent{Kind: mxm.EventFeedbackSubmitted, FeedbackID: "1"})
	})
	repo.AssertExpectations(t)
}
