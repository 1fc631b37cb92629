package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WSMessage struct {
	Type string      `json:"type"` // auth/pong/feedback_submitted/status_changed/reply_added
	Data interface{} `json:"data"`
}

// WSConn 推送用到的连接方法，便于测试替换
type WSConn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type wsClient struct {
	mu      sync.Mutex // gorilla 连接只允许一个并发写
	conn    WSConn
	isAdmin bool // 由 WSManager 的锁保护
}

func (c *wsClient) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

type WSManager struct {
	// 一个连接对应一个用户终端
	connections     map[TerminalKey]*wsClient
	sessions        SessionService
	cleanupInterval time.Duration
	sync.RWMutex
}

func NewWsManager(ctx context.Context, sessions SessionService, cleanupInterval time.Duration) *WSManager {
	m := &WSManager{
		cleanupInterval: cleanupInterval,
		sessions:        sessions,
		connections:     make(map[TerminalKey]*wsClient),
	}
	if cleanupInterval > 0 {
		m.start(ctx)
	}
	return m
}

type TerminalKey struct {
	UserID string `json:"user_id"`
	Random string `json:"random"` //随机短串
}

func (t TerminalKey) ToString() string {
	return fmt.Sprintf("%s:%s", t.UserID, t.Random)
}

func generateTerminalKey(userID string) TerminalKey {
	return TerminalKey{
		UserID: userID,
		Random: uuid.New().String()[:8], // 短随机会话ID
	}
}

func (m *WSManager) register(key TerminalKey, conn WSConn, isAdmin bool) {
	m.Lock()
	defer m.Unlock()
	m.connections[key] = &wsClient{conn: conn, isAdmin: isAdmin}
}

// unregister 只在 key 仍指向该连接时删除，避免误删同 key 重连后的新连接
func (m *WSManager) unregister(key TerminalKey, conn WSConn) {
	m.Lock()
	defer m.Unlock()
	if c, ok := m.connections[key]; ok && c.conn == conn {
		delete(m.connections, key)
	}
}

// UpdateRole 切换角色后同步该用户已有连接的推送范围
func (m *WSManager) UpdateRole(userID string, isAdmin bool) {
	m.Lock()
	defer m.Unlock()
	for key, c := range m.connections {
		if key.UserID == userID {
			c.isAdmin = isAdmin
		}
	}
}

func (m *WSManager) ConnectionCount() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.connections)
}

// AuthenticateAndRegister 首帧鉴权并注册
func (m *WSManager) AuthenticateAndRegister(conn *websocket.Conn) {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("ws register panic", "panic", fmt.Sprint(err))
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "Server Error"),
				time.Now().Add(5*time.Second),
			)
			conn.Close()
		}
	}()

	// 首帧鉴权超时（5秒）
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	var auth struct {
		Token string       `json:"token"`
		WsKey *TerminalKey `json:"ws_key"` //用于ws注册绑定的key，如果已经有了就用原来的
	}
	if json.Unmarshal(msg, &auth) != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid auth msg"))
		conn.Close()
		return
	}
	user, err := m.sessions.ValidateToken(auth.Token)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid Token"))
		conn.Close()
		return
	}

	key := generateTerminalKey(user.ID)
	if auth.WsKey != nil && auth.WsKey.UserID == user.ID && auth.WsKey.Random != "" {
		key = *auth.WsKey
	}
	m.register(key, conn, user.IsAdmin)
	if err := m.PushMsg(key, WSMessage{
		Type: "auth",
		Data: map[string]interface{}{"terminal_key": key, "user": user}}); err != nil {
		slog.Error("push auth msg failed", "error", err)
	}

	go m.handleConnection(key, conn)
}

func (m *WSManager) handleConnection(key TerminalKey, conn *websocket.Conn) {
	defer func() {
		m.unregister(key, conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Time{})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("终端异常断开", "key", key.ToString(), "error", err)
			}
			break
		}

		in := WSMessage{}
		if err := json.Unmarshal(msg, &in); err != nil {
			slog.Error("解析终端消息失败", "key", key.ToString(), "error", err)
			continue
		}
		if in.Type == "ping" {
			if err := m.PushMsg(key, WSMessage{Type: "pong"}); err != nil {
				slog.Error("回送 pong 失败", "key", key.ToString(), "error", err)
			}
		}
	}
}

func (m *WSManager) PushMsg(key TerminalKey, v interface{}) error {
	m.RLock()
	c := m.connections[key]
	m.RUnlock()
	if c == nil {
		return fmt.Errorf("no connection found for key: %s", key.ToString())
	}
	return c.write(v)
}

// recipients 反馈作者的连接加上所有管理员连接，与列表可见性一致
func (m *WSManager) recipients(authorID string) []*wsClient {
	m.RLock()
	defer m.RUnlock()

	var clients []*wsClient
	for key, c := range m.connections {
		if c.isAdmin || key.UserID == authorID {
			clients = append(clients, c)
		}
	}
	return clients
}

// Notify 实现 Notifier，把事件推送给能看到该反馈的终端
func (m *WSManager) Notify(event mxm.FeedbackEvent) {
	if event.Feedback == nil {
		return
	}
	msg := WSMessage{Type: string(event.Kind), Data: event}
	for _, c := range m.recipients(event.Feedback.AuthorID) {
		if err := c.write(msg); err != nil {
			slog.Warn("ws push failed", "kind", event.Kind, "feedbackID", event.FeedbackID, "error", err)
		}
	}
}

func (m *WSManager) start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.cleanupDeadConnections()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *WSManager) cleanupDeadConnections() {
	m.Lock()
	defer m.Unlock()

	for key, c := range m.connections {
		if err := c.conn.WriteControl(
			websocket.PingMessage,
			nil,
			time.Now().Add(100*time.Millisecond),
		); err != nil {
			// 连接已失效
			delete(m.connections, key)
			c.conn.Close()
		}
	}
}
