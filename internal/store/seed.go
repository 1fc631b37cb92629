package store

import (
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"
)

// DefaultUser 会话默认用户
var DefaultUser = mxm.User{ID: "1", Name: "张三", IsAdmin: false}

// SeedFeedbacks 内置的演示数据，代替真实后端
func SeedFeedbacks() []*mxm.Feedback {
	return []*mxm.Feedback{
		{
			ID:          "1",
			Content:     "新功能很棒，但我发现了一个小bug。",
			AuthorID:    "2",
			AuthorName:  "李四",
			CreatedAt:   time.Date(2023, 4, 1, 10, 0, 0, 0, time.Local),
			Status:      mxm.StatusUnresolved,
			Type:        mxm.TypeBug,
			Attachments: mxm.CopyAttachments([]string{"https://example.com/screenshot1.png"}),
			Replies:     []mxm.Reply{},
		},
		{
			ID:          "2",
			Content:     "我喜欢新的设计！现在更直观了。",
			AuthorID:    "3",
			AuthorName:  "王五",
			CreatedAt:   time.Date(2023, 4, 2, 14, 30, 0, 0, time.Local),
			Status:      mxm.StatusResolved,
			Type:        mxm.TypeImprovement,
			Attachments: mxm.CopyAttachments(nil),
			Replies: []mxm.Reply{
				{
					FeedbackID:  "2",
					ID:          "1",
					Content:     "感谢您的反馈！我们很高兴您喜欢它。",
					AuthorID:    "1",
					AuthorName:  "张三",
					CreatedAt:   time.Date(2023, 4, 2, 15, 0, 0, 0, time.Local),
					Attachments: mxm.CopyAttachments(nil),
				},
			},
		},
	}
}
