package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Daneel-Li/feedback-back/internal/config"
	"github.com/Daneel-Li/feedback-back/internal/handlers"
	"github.com/Daneel-Li/feedback-back/internal/services"
	"github.com/Daneel-Li/feedback-back/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.Default()
	st, err := initStore(cfg, nil)
	require.NoError(t, err)

	sessions := services.NewJWTService([]byte("test-secret"), cfg.JwtIssuer, time.Hour)
	wsManager := services.NewWsManager(ctx, sessions, 0)
	notifier := initNotifiers(ctx, cfg, wsManager, nil)
	svc := services.NewFeedbackService(st, notifier, nil)
	limiter := services.NewRateLimiter(ctx, 0, 0)

	srv := httptest.NewServer(setupRoutes(handlers.NewSimpleHandler(svc, wsManager, sessions), sessions, limiter))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type sessionResp struct {
	User struct {
		ID      string `json:"id"`
		IsAdmin bool   `json:"isAdmin"`
	} `json:"user"`
	Token string `json:"token"`
}

type listItem struct {
	ID              string `json:"id"`
	AuthorID        string `json:"authorId"`
	Status          string `json:"status"`
	CanChangeStatus bool   `json:"can_change_status"`
}

func TestFeedbackFlow(t *testing.T) {
	srv := newTestServer(t)

	var user sessionResp
	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/api/v1/sessions", "", nil, &user))
	assert.Equal(t, "1", user.User.ID)
	assert.False(t, user.User.IsAdmin)

	// 默认用户没有提交过反馈
	var items []listItem
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/api/v1/feedbacks", user.Token, nil, &items))
	assert.Empty(t, items)

	var created listItem
	require.Equal(t, http.StatusCreated, call(t, srv, "POST", "/api/v1/feedbacks", user.Token,
		map[string]interface{}{"content": "导出按钮无响应", "type": "Bug"}, &created))
	assert.Equal(t, "unresolved", created.Status)
	assert.True(t, created.CanChangeStatus)

	// 他人的反馈对普通用户不可见
	assert.Equal(t, http.StatusNotFound, call(t, srv, "GET", "/api/v1/feedbacks/1", user.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, "PUT", "/api/v1/feedbacks/1/status", user.Token,
		map[string]string{"status": "resolved"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, "POST", "/api/v1/feedbacks/1/status/toggle", user.Token, nil, nil))

	var adminSession sessionResp
	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/api/v1/sessions/role", user.Token, nil, &adminSession))
	assert.True(t, adminSession.User.IsAdmin)

	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/api/v1/feedbacks", adminSession.Token, nil, &items))
	require.Len(t, items, 3)
	assert.Equal(t, created.ID, items[0].ID)
	for _, it := range items {
		assert.True(t, it.CanChangeStatus)
	}

	var toggled listItem
	require.Equal(t, http.StatusOK, call(t, srv, "POST", "/api/v1/feedbacks/1/status/toggle", adminSession.Token, nil, &toggled))
	assert.Equal(t, "resolved", toggled.Status)

	require.Equal(t, http.StatusCreated, call(t, srv, "POST", "/api/v1/feedbacks/2/replies", adminSession.Token,
		map[string]string{"content": "已排期"}, nil))
	var replies []map[string]interface{}
	require.Equal(t, http.StatusOK, call(t, srv, "GET", "/api/v1/feedbacks/2/replies", adminSession.Token, nil, &replies))
	require.Len(t, replies, 2)
	assert.Equal(t, "已排期", replies[1]["content"])

	assert.Equal(t, http.StatusNotFound, call(t, srv, "GET", "/api/v1/feedbacks/1/events", adminSession.Token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, "GET", "/api/v1/feedbacks", "", nil, nil))
}

func TestInitStoreSequence(t *testing.T) {
	cfg := config.Default()
	cfg.Store.IDMode = config.IDModeSequence
	st, err := initStore(cfg, nil)
	require.NoError(t, err)

	f, err := st.Submit(store.DefaultUser, "x", "Other", nil)
	require.NoError(t, err)
	assert.Equal(t, "3", f.ID)

	cfg.Store.Seed = config.SeedNone
	st, err = initStore(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
}
