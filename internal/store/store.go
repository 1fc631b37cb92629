package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"
)

var (
	ErrNotFound         = errors.New("feedback not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidType      = errors.New("invalid feedback type")
	ErrEmptyContent     = errors.New("content is empty")
	ErrPermissionDenied = errors.New("permission denied")
	ErrDuplicateID      = errors.New("duplicate id")
)

// Listener 每次成功修改后被调用，调用时已释放锁
type Listener func(event mxm.FeedbackEvent)

type Option func(*FeedbackStore)

func WithClock(now func() time.Time) Option {
	return func(s *FeedbackStore) { s.now = now }
}

func WithIDSource(ids IDSource) Option {
	return func(s *FeedbackStore) { s.ids = ids }
}

// WithRejectEmptyContent 拒绝空内容的反馈和回复（默认允许）
func WithRejectEmptyContent(reject bool) Option {
	return func(s *FeedbackStore) { s.rejectEmpty = reject }
}

func WithListener(l Listener) Option {
	return func(s *FeedbackStore) { s.listener = l }
}

// Filter 列表过滤条件，零值表示不过滤
type Filter struct {
	Status mxm.Status
	Type   mxm.FeedbackType
}

func (f Filter) match(fb *mxm.Feedback) bool {
	if f.Status != "" && fb.Status != f.Status {
		return false
	}
	if f.Type != "" && fb.Type != f.Type {
		return false
	}
	return true
}

// FeedbackStore 反馈集合的唯一持有者，按提交时间倒序保存
// 所有读操作返回深拷贝，外部无法修改内部状态
type FeedbackStore struct {
	mu          sync.RWMutex
	items       []*mxm.Feedback
	index       map[string]*mxm.Feedback
	ids         IDSource
	now         func() time.Time
	rejectEmpty bool
	listener    Listener
	seq         uint64 // 事件序号，持锁递增
}

func New(opts ...Option) *FeedbackStore {
	s := &FeedbackStore{
		index: make(map[string]*mxm.Feedback),
		ids:   NewUUIDSource(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetListener 在构造之后挂接事件监听
func (s *FeedbackStore) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Seed 用给定数据替换整个集合，保持给定顺序
func (s *FeedbackStore) Seed(items []*mxm.Feedback) error {
	list := make([]*mxm.Feedback, 0, len(items))
	index := make(map[string]*mxm.Feedback, len(items))
	for _, it := range items {
		f := it.Clone()
		if f.Status == "" {
			f.Status = mxm.StatusUnresolved
		}
		if !f.Status.Valid() {
			return fmt.Errorf("seed feedback %s: %w", f.ID, ErrInvalidStatus)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("seed feedback %s: %w", f.ID, ErrInvalidType)
		}
		if _, dup := index[f.ID]; dup || f.ID == "" {
			return fmt.Errorf("seed feedback %q: %w", f.ID, ErrDuplicateID)
		}
		replyIDs := make(map[string]struct{}, len(f.Replies))
		for i := range f.Replies {
			if _, dup := replyIDs[f.Replies[i].ID]; dup {
				return fmt.Errorf("seed reply %s/%s: %w", f.ID, f.Replies[i].ID, ErrDuplicateID)
			}
			replyIDs[f.Replies[i].ID] = struct{}{}
			f.Replies[i].FeedbackID = f.ID
		}
		list = append(list, f)
		index[f.ID] = f
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = list
	s.index = index
	for _, f := range list {
		s.ids.Observe(f)
	}
	return nil
}

func (s *FeedbackStore) checkContent(content string) error {
	if s.rejectEmpty && strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Submit 创建新反馈并放在最前面
func (s *FeedbackStore) Submit(author mxm.User, content string, typ mxm.FeedbackType, attachments []string) (*mxm.Feedback, error) {
	if !typ.Valid() {
		return nil, ErrInvalidType
	}
	if err := s.checkContent(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	id := s.ids.NextFeedbackID()
	for s.index[id] != nil {
		id = s.ids.NextFeedbackID()
	}
	f := &mxm.Feedback{
		ID:          id,
		Content:     content,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
		CreatedAt:   s.now(),
		Status:      mxm.StatusUnresolved,
		Type:        typ,
		Attachments: mxm.CopyAttachments(attachments),
		Replies:     []mxm.Reply{},
	}
	s.items = append([]*mxm.Feedback{f}, s.items...)
	s.index[id] = f
	snapshot := f.Clone()
	listener := s.listener
	seq := s.nextSeq()
	s.mu.Unlock()

	emit(listener, mxm.FeedbackEvent{
		Seq:        seq,
		Kind:       mxm.EventFeedbackSubmitted,
		FeedbackID: snapshot.ID,
		ActorID:    author.ID,
		Status:     snapshot.Status,
		Feedback:   snapshot.Clone(),
		At:         snapshot.CreatedAt,
	})
	return snapshot, nil
}

// SetStatus 不做权限校验，反馈不存在时返回 ErrNotFound
func (s *FeedbackStore) SetStatus(feedbackID string, status mxm.Status) error {
	_, err := s.updateStatus(nil, feedbackID, func(mxm.Status) mxm.Status { return status })
	return err
}

// ChangeStatus 校验 actor 是否为管理员或作者后修改状态
func (s *FeedbackStore) ChangeStatus(actor mxm.User, feedbackID string, status mxm.Status) (*mxm.Feedback, error) {
	return s.updateStatus(&actor, feedbackID, func(mxm.Status) mxm.Status { return status })
}

// ToggleStatus 切换到另一个状态
func (s *FeedbackStore) ToggleStatus(actor mxm.User, feedbackID string) (*mxm.Feedback, error) {
	return s.updateStatus(&actor, feedbackID, mxm.Status.Toggle)
}

func (s *FeedbackStore) updateStatus(actor *mxm.User, feedbackID string, next func(mxm.Status) mxm.Status) (*mxm.Feedback, error) {
	s.mu.Lock()
	f, ok := s.index[feedbackID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if actor != nil && !actor.CanChangeStatus(f) {
		s.mu.Unlock()
		return nil, ErrPermissionDenied
	}
	status := next(f.Status)
	if !status.Valid() {
		s.mu.Unlock()
		return nil, ErrInvalidStatus
	}
	changed := f.Status != status
	f.Status = status
	snapshot := f.Clone()
	listener := s.listener
	var seq uint64
	if changed {
		seq = s.nextSeq()
	}
	s.mu.Unlock()

	if changed {
		ev := mxm.FeedbackEvent{
			Seq:        seq,
			Kind:       mxm.EventStatusChanged,
			FeedbackID: feedbackID,
			Status:     status,
			Feedback:   snapshot.Clone(),
			At:         s.now(),
		}
		if actor != nil {
			ev.ActorID = actor.ID
		}
		emit(listener, ev)
	}
	return snapshot, nil
}

// AddReply 追加回复，不做权限校验
func (s *FeedbackStore) AddReply(feedbackID string, author mxm.User, content string, attachments []string) (*mxm.Reply, error) {
	return s.addReply(false, feedbackID, author, content, attachments)
}

// AddReplyAs 只有能看到该反馈的用户（管理员或作者）才能回复
func (s *FeedbackStore) AddReplyAs(author mxm.User, feedbackID string, content string, attachments []string) (*mxm.Reply, error) {
	return s.addReply(true, feedbackID, author, content, attachments)
}

func (s *FeedbackStore) addReply(check bool, feedbackID string, author mxm.User, content string, attachments []string) (*mxm.Reply, error) {
	if err := s.checkContent(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	f, ok := s.index[feedbackID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if check && !author.CanView(f) {
		s.mu.Unlock()
		return nil, ErrPermissionDenied
	}
	r := mxm.Reply{
		FeedbackID:  feedbackID,
		ID:          s.ids.NextReplyID(f),
		Content:     content,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
		CreatedAt:   s.now(),
		Attachments: mxm.CopyAttachments(attachments),
	}
	f.Replies = append(f.Replies, r)
	snapshot := r.Clone()
	parent := f.Clone()
	listener := s.listener
	seq := s.nextSeq()
	s.mu.Unlock()

	emit(listener, mxm.FeedbackEvent{
		Seq:        seq,
		Kind:       mxm.EventReplyAdded,
		FeedbackID: feedbackID,
		ReplyID:    snapshot.ID,
		ActorID:    author.ID,
		Status:     parent.Status,
		Feedback:   parent,
		Reply:      snapshot.Clone(),
		At:         snapshot.CreatedAt,
	})
	return snapshot, nil
}

func (s *FeedbackStore) Get(feedbackID string) (*mxm.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.index[feedbackID]
	if !ok {
		return nil, ErrNotFound
	}
	return f.Clone(), nil
}

// ListVisible 管理员返回全部，否则只返回该用户提交的反馈
func (s *FeedbackStore) ListVisible(user mxm.User) []*mxm.Feedback {
	return s.List(user, Filter{})
}

func (s *FeedbackStore) List(user mxm.User, filter Filter) []*mxm.Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*mxm.Feedback, 0, len(s.items))
	for _, f := range s.items {
		if user.CanView(f) && filter.match(f) {
			out = append(out, f.Clone())
		}
	}
	return out
}

func (s *FeedbackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// nextSeq 调用方须持有 s.mu 写锁
func (s *FeedbackStore) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// emit 在锁外执行，并发修改时监听方收到的顺序可能与修改顺序不同，以 Seq 为准
func emit(l Listener, ev mxm.FeedbackEvent) {
	if l != nil {
		l(ev)
	}
}
