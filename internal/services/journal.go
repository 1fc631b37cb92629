package services

import (
	"encoding/json"
	"log/slog"

	"github.com/Daneel-Li/feedback-back/internal/dao"
	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"gorm.io/datatypes"
)

// Journal 把事件写入流水表，只追加，不回读到内存集合
type Journal struct {
	repo dao.EventRepository
}

func NewJournal(repo dao.EventRepository) *Journal {
	return &Journal{repo: repo}
}

func (j *Journal) Notify(event mxm.FeedbackEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal feedback event failed", "kind", event.Kind, "error", err)
		return
	}
	record := &mxm.EventRecord{
		Kind:       string(event.Kind),
		FeedbackID: event.FeedbackID,
		ReplyID:    event.ReplyID,
		ActorID:    event.ActorID,
		Status:     string(event.Status),
		Payload:    datatypes.JSON(payload),
		CreatedAt:  event.At,
	}
	if err := j.repo.AddEvent(record); err != nil {
		slog.Error("journal event failed", "kind", event.Kind, "feedbackID", event.FeedbackID, "error", err)
	}
}
