package dao

import (
	"fmt"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *MysqlRepository) LoadFeedbacks() ([]*mxm.Feedback, error) {
	var feedbacks []*mxm.Feedback
	err := d.db.Model(mxm.Feedback{}).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Order("created_at DESC").
		Find(&feedbacks).Error
	if err != nil {
		return nil, fmt.Errorf("load feedbacks failed: %w", err)
	}
	for _, f := range feedbacks {
		if f.Replies == nil {
			f.Replies = []mxm.Reply{}
		}
		f.Attachments = mxm.CopyAttachments(f.Attachments)
	}
	return feedbacks, nil
}

// SaveFeedbacks 写入（或覆盖）一组反馈及其回复
func (d *MysqlRepository) SaveFeedbacks(feedbacks []*mxm.Feedback) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for _, f := range feedbacks {
			row := *f
			row.Replies = nil
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("save feedback %s failed: %w", f.ID, err)
			}
			for i := range f.Replies {
				r := f.Replies[i]
				r.FeedbackID = f.ID
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&r).Error; err != nil {
					return fmt.Errorf("save reply %s/%s failed: %w", f.ID, r.ID, err)
				}
			}
		}
		return nil
	})
}
