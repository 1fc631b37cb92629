package store

import (
	"strconv"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"
	"github.com/Daneel-Li/feedback-back/pkg/utils"

	"github.com/google/uuid"
)

// IDSource 生成反馈和回复的ID，与集合长度无关
type IDSource interface {
	NextFeedbackID() string
	// NextReplyID 回复ID只需在所属反馈内唯一
	NextReplyID(f *mxm.Feedback) string
	// Observe 导入已有数据时调用，避免后续生成的ID与之冲突
	Observe(f *mxm.Feedback)
}

type uuidSource struct{}

// NewUUIDSource 默认ID来源
func NewUUIDSource() IDSource {
	return uuidSource{}
}

func (uuidSource) NextFeedbackID() string            { return uuid.NewString() }
func (uuidSource) NextReplyID(*mxm.Feedback) string { return uuid.NewString() }
func (uuidSource) Observe(*mxm.Feedback)            {}

type sequenceSource struct {
	gen *utils.IDGenerator
}

// NewSequenceSource 单调递增的数字ID，与种子数据的 "1"、"2" 风格一致
func NewSequenceSource() IDSource {
	return &sequenceSource{gen: utils.NewIDGenerator(0)}
}

func (s *sequenceSource) NextFeedbackID() string {
	return s.gen.NextString()
}

// 取已有回复中最大的数字ID加一；回复只追加不删除，不会重复
func (s *sequenceSource) NextReplyID(f *mxm.Feedback) string {
	var max int64
	for _, r := range f.Replies {
		if n, err := strconv.ParseInt(r.ID, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10)
}

func (s *sequenceSource) Observe(f *mxm.Feedback) {
	if n, err := strconv.ParseInt(f.ID, 10, 64); err == nil {
		s.gen.Observe(n)
	}
}
