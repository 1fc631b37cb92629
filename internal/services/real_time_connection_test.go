package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	mu       sync.Mutex
	msgs     []interface{}
	closed   bool
	pingFail bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error {
	if c.pingFail {
		return errors.New("broken pipe")
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestWSManager_NotifyRecipients(t *testing.T) {
	m := NewWsManager(context.Background(), nil, 0)
	author := &fakeConn{}
	admin := &fakeConn{}
	other := &fakeConn{}
	m.register(TerminalKey{UserID: "2", Random: "a"}, author, false)
	m.register(TerminalKey{UserID: "9", Random: "b"}, admin, true)
	m.register(TerminalKey{UserID: "1", Random: "c"}, other, false)

	m.Notify(mxm.FeedbackEvent{
		Kind:       mxm.EventStatusChanged,
		FeedbackID: "f1",
		Feedback:   &mxm.Feedback{ID: "f1", AuthorID: "2"},
	})

	assert.Equal(t, 1, author.count())
	assert.Equal(t, 1, admin.count())
	assert.Equal(t, 0, other.count())

	msg, ok := author.msgs[0].(WSMessage)
	if assert.True(t, ok) {
		assert.Equal(t, "status_changed", msg.Type)
	}
}

func TestWSManager_NotifyWithoutFeedbackIgnored(t *testing.T) {
	m := NewWsManager(context.Background(), nil, 0)
	admin := &fakeConn{}
	m.register(TerminalKey{UserID: "9", Random: "b"}, admin, true)

	m.Notify(mxm.FeedbackEvent{Kind: mxm.EventReplyAdded, FeedbackID: "f1"})
	assert.Equal(t, 0, admin.count())
}

func TestWSManager_UnregisterKeepsReconnected(t *testing.T) {
	m := NewWsManager(context.Background(), nil, 0)
	key := TerminalKey{UserID: "1", Random: "k"}
	old := &fakeConn{}
	fresh := &fakeConn{}
	m.register(key, old, false)
	m.register(key, fresh, false)

	m.unregister(key, old)
	assert.Equal(t, 1, m.ConnectionCount())
	assert.NoError(t, m.PushMsg(key, WSMessage{Type: "pong"}))
	assert.Equal(t, 1, fresh.count())

	m.unregister(key, fresh)
	assert.Equal(t, 0, m.ConnectionCount())
	assert.Error(t, m.PushMsg(key, WSMessage{Type: "pong"}))
}

func TestWSManager_CleanupDeadConnections(t *testing.T) {
	m := NewWsManager(context.Background(), nil, 0)
	alive := &fakeConn{}
	dead := &fakeConn{pingFail: true}
	m.register(TerminalKey{UserID: "1", Random: "a"}, alive, false)
	m.register(TerminalKey{UserID: "2", Random: "b"}, dead, false)

	m.cleanupDeadConnections()

	assert.Equal(t, 1, m.ConnectionCount())
	assert.True(t, dead.closed)
	assert.False(t, alive.closed)
}

func TestWSManager_UpdateRole(t *testing.T) {
	m := NewWsManager(context.Background(), nil, 0)
	conn := &fakeConn{}
	other := &fakeConn{}
	m.register(TerminalKey{UserID: "1", Random: "a"}, conn, false)
	m.register(TerminalKey{UserID: "3", Random: "b"}, other, false)
	event := mxm.FeedbackEvent{
		Kind:       mxm.EventStatusChanged,
		FeedbackID: "f1",
		Feedback:   &mxm.Feedback{ID: "f1", AuthorID: "2"},
	}

	m.Notify(event)
	assert.Equal(t, 0, conn.count())

	// 切到管理员后，同一连接收到他人反馈的推送
	m.UpdateRole("1", true)
	m.Notify(event)
	assert.Equal(t, 1, conn.count())
	assert.Equal(t, 0, other.count())

	m.UpdateRole("1", false)
	m.Notify(event)
	assert.Equal(t, 1, conn.count())
}
