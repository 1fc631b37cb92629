package dao

import (
	"fmt"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"
)

func (d *MysqlRepository) AddEvent(record *mxm.EventRecord) error {
	if err := d.db.Create(record).Error; err != nil {
		return fmt.Errorf("add event failed: %w", err)
	}
	return nil
}

func (d *MysqlRepository) GetEventsByFeedbackID(feedbackID string, limit, offset int) ([]*mxm.EventRecord, error) {
	var lst []*mxm.EventRecord
	query := d.db.Model(mxm.EventRecord{}).Where("feedback_id=?", feedbackID).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&lst).Error; err != nil {
		return nil, fmt.Errorf("query events by feedback_id(%s) error: %w", feedbackID, err)
	}
	return lst, nil
}
