package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"github.com/bytedance/gopkg/util/gopool"
)

// Notifier 接收反馈事件，实现方不能修改事件内容
type Notifier interface {
	Notify(event mxm.FeedbackEvent)
}

type NotifierFunc func(event mxm.FeedbackEvent)

func (f NotifierFunc) Notify(event mxm.FeedbackEvent) { f(event) }

type namedNotifier struct {
	name string
	n    Notifier
}

// FanoutNotifier 把事件异步分发给所有已注册的 Notifier
// 分发在协程池中执行，单个 Notifier 出错或 panic 不影响其他
type FanoutNotifier struct {
	mu      sync.RWMutex
	targets []namedNotifier
	pool    gopool.Pool
}

func NewFanoutNotifier(capacity int32) *FanoutNotifier {
	if capacity < 1 {
		capacity = 64
	}
	pool := gopool.NewPool("notify_Pool", capacity, gopool.NewConfig())
	pool.SetPanicHandler(func(ctx context.Context, r interface{}) {
		slog.Error("notifier panic", "panic", fmt.Sprint(r))
	})
	return &FanoutNotifier{pool: pool}
}

func (f *FanoutNotifier) Register(name string, n Notifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, namedNotifier{name: name, n: n})
	slog.Info("Notifier registered", "name", name)
}

func (f *FanoutNotifier) Notify(event mxm.FeedbackEvent) {
	f.mu.RLock()
	targets := make([]namedNotifier, len(f.targets))
	copy(targets, f.targets)
	f.mu.RUnlock()

	for _, t := range targets {
		t := t
		ev := event
		// 每个目标拿到独立的快照
		ev.Feedback = event.Feedback.Clone()
		ev.Reply = event.Reply.Clone()
		f.pool.Go(func() {
			slog.Debug("notify", "target", t.name, "kind", ev.Kind, "feedbackID", ev.FeedbackID)
			t.n.Notify(ev)
		})
	}
}
