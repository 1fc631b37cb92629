package services

import (
	"sync"
	"testing"
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvents(t *testing.T, ch <-chan mxm.FeedbackEvent, n int) []mxm.FeedbackEvent {
	t.Helper()
	var got []mxm.FeedbackEvent
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting events, got %d of %d", len(got), n)
		}
	}
	return got
}

func TestFanoutNotifier_DeliversToAll(t *testing.T) {
	f := NewFanoutNotifier(4)
	a := make(chan mxm.FeedbackEvent, 1)
	b := make(chan mxm.FeedbackEvent, 1)
	f.Register("a", NotifierFunc(func(ev mxm.FeedbackEvent) { a <- ev }))
	f.Register("b", NotifierFunc(func(ev mxm.FeedbackEvent) { b <- ev }))

	f.Notify(mxm.FeedbackEvent{Kind: mxm.EventFeedbackSubmitted, FeedbackID: "x"})

	assert.Equal(t, "x", waitEvents(t, a, 1)[0].FeedbackID)
	assert.Equal(t, "x", waitEvents(t, b, 1)[0].FeedbackID)
}

func TestFanoutNotifier_PanicIsolated(t *testing.T) {
	f := NewFanoutNotifier(4)
	ok := make(chan mxm.FeedbackEvent, 2)
	f.Register("bad", NotifierFunc(func(mxm.FeedbackEvent) { panic("boom") }))
	f.Register("good", NotifierFunc(func(ev mxm.FeedbackEvent) { ok <- ev }))

	f.Notify(mxm.FeedbackEvent{Kind: mxm.EventStatusChanged, FeedbackID: "1"})
	f.Notify(mxm.FeedbackEvent{Kind: mxm.EventStatusChanged, FeedbackID: "2"})

	got := waitEvents(t, ok, 2)
	ids := []string{got[0].FeedbackID, got[1].FeedbackID}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestFanoutNotifier_IndependentSnapshots(t *testing.T) {
	f := NewFanoutNotifier(4)
	var wg sync.WaitGroup
	wg.Add(2)
	seen := make(chan string, 2)
	f.Register("mutator", NotifierFunc(func(ev mxm.FeedbackEvent) {
		defer wg.Done()
		ev.Feedback.Content = "changed"
	}))
	f.Register("reader", NotifierFunc(func(ev mxm.FeedbackEvent) {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		seen <- ev.Feedback.Content
	}))

	src := &mxm.Feedback{ID: "1", Content: "original"}
	f.Notify(mxm.FeedbackEvent{Kind: mxm.EventFeedbackSubmitted, FeedbackID: "1", Feedback: src})
	wg.Wait()

	require.Len(t, seen, 1)
	assert.Equal(t, "original", <-seen)
	assert.Equal(t, "original", src.Content)
}
