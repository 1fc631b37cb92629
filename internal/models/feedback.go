package mxm

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Status 反馈处理状态，只有两个取值，可自由切换
type Status string

const (
	StatusUnresolved Status = "unresolved"
	StatusResolved   Status = "resolved"
)

func (s Status) Valid() bool {
	return s == StatusUnresolved || s == StatusResolved
}

// Toggle 返回另一个状态
func (s Status) Toggle() Status {
	if s == StatusResolved {
		return StatusUnresolved
	}
	return StatusResolved
}

// Label 界面显示文字
func (s Status) Label() string {
	if s == StatusResolved {
		return "已解决"
	}
	return "未解决"
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// FeedbackType 反馈类型
type FeedbackType string

const (
	TypeBug         FeedbackType = "Bug"
	TypeFeature     FeedbackType = "Feature"
	TypeImprovement FeedbackType = "Improvement"
	TypePerformance FeedbackType = "Performance"
	TypeOther       FeedbackType = "Other"
)

var typeLabels = map[FeedbackType]string{
	TypeBug:         "BUG",
	TypeFeature:     "新功能",
	TypeImprovement: "功能优化",
	TypePerformance: "性能问题",
	TypeOther:       "其他",
}

// FeedbackTypes 按表单下拉框顺序列出所有类型
func FeedbackTypes() []FeedbackType {
	return []FeedbackType{TypeBug, TypeFeature, TypeImprovement, TypePerformance, TypeOther}
}

func (t FeedbackType) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

func (t FeedbackType) Label() string {
	return typeLabels[t]
}

// ParseFeedbackType 接受类型名(不区分大小写)或界面标签，空串视为"其他"
func ParseFeedbackType(s string) (FeedbackType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeOther, nil
	}
	for t, label := range typeLabels {
		if strings.EqualFold(s, string(t)) || s == label {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown feedback type %q", s)
}

// Feedback 用户提交的反馈，回复按创建顺序追加
type Feedback struct {
	ID          string                      `gorm:"primaryKey;size:64" json:"id"`
	Content     string                      `gorm:"type:text" json:"content"`
	AuthorID    string                      `gorm:"column:author_id;size:64;index" json:"authorId"`
	AuthorName  string                      `gorm:"column:author_name;size:128" json:"authorName"`
	CreatedAt   time.Time                   `gorm:"index" json:"createdAt"`
	Status      Status                      `gorm:"size:16;index" json:"status"`
	Type        FeedbackType                `gorm:"size:16" json:"type"`
	Attachments datatypes.JSONSlice[string] `gorm:"type:json" json:"attachments"`
	Replies     []Reply                     `gorm:"foreignKey:FeedbackID;references:ID" json:"replies"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}

// Clone 深拷贝，调用方拿到的副本与原数据互不影响
func (f *Feedback) Clone() *Feedback {
	if f == nil {
		return nil
	}
	c := *f
	c.Attachments = CopyAttachments(f.Attachments)
	c.Replies = make([]Reply, len(f.Replies))
	for i := range f.Replies {
		c.Replies[i] = *f.Replies[i].Clone()
	}
	return &c
}

// Reply 反馈下的回复，创建后不再修改
type Reply struct {
	FeedbackID  string                      `gorm:"column:feedback_id;primaryKey;size:64" json:"-"`
	ID          string                      `gorm:"primaryKey;size:64" json:"id"`
	Content     string                      `gorm:"type:text" json:"content"`
	AuthorID    string                      `gorm:"column:author_id;size:64" json:"authorId"`
	AuthorName  string                      `gorm:"column:author_name;size:128" json:"authorName"`
	CreatedAt   time.Time                   `json:"createdAt"`
	Attachments datatypes.JSONSlice[string] `gorm:"type:json" json:"attachments"`
}

func (Reply) TableName() string {
	return "feedback_replies"
}

func (r *Reply) Clone() *Reply {
	if r == nil {
		return nil
	}
	c := *r
	c.Attachments = CopyAttachments(r.Attachments)
	return &c
}

// CopyAttachments 复制附件列表；nil 返回空列表，保证序列化为 []。
// 附件引用按不透明字符串处理，唯一的例外是全空白的项会被丢掉，
// 非空项不 trim、不校验
func CopyAttachments(src []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(src))
	for _, a := range src {
		if strings.TrimSpace(a) == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
