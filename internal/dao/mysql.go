package dao

import (
	"fmt"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"gorm.io/gorm"
)

// MysqlRepository MySQL数据库实现
type MysqlRepository struct {
	db *gorm.DB
}

// NewMysqlRepository 创建MySQL数据访问对象
func NewMysqlRepository(db *gorm.DB) Repository {
	return &MysqlRepository{db: db}
}

// 确保MysqlRepository实现了所有接口
var _ Repository = (*MysqlRepository)(nil)

func (d *MysqlRepository) AutoMigrate() error {
	if err := d.db.AutoMigrate(&mxm.Feedback{}, &mxm.Reply{}, &mxm.EventRecord{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
