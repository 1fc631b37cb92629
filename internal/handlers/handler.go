package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"
	"github.com/Daneel-Li/feedback-back/internal/services"
	"github.com/Daneel-Li/feedback-back/internal/store"
	"github.com/Daneel-Li/feedback-back/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// FeedbackService handler 依赖的业务接口
type FeedbackService interface {
	SubmitFeedback(ctx context.Context, user mxm.User, content, typ string, attachments []string) (*mxm.Feedback, error)
	ListFeedbacks(ctx context.Context, user mxm.User, filter store.Filter) []*mxm.Feedback
	GetFeedback(ctx context.Context, user mxm.User, feedbackID string) (*mxm.Feedback, error)
	SetStatus(ctx context.Context, user mxm.User, feedbackID, status string) (*mxm.Feedback, error)
	ToggleStatus(ctx context.Context, user mxm.User, feedbackID string) (*mxm.Feedback, error)
	AddReply(ctx context.Context, user mxm.User, feedbackID, content string, attachments []string) (*mxm.Reply, error)
	GetReplies(ctx context.Context, user mxm.User, feedbackID string) ([]mxm.Reply, error)
	GetEvents(ctx context.Context, user mxm.User, feedbackID string, limit, offset int) ([]*mxm.EventRecord, error)
}

type WSRegistrar interface {
	AuthenticateAndRegister(conn *websocket.Conn)
	UpdateRole(userID string, isAdmin bool)
}

// SimpleHandler 简化的处理器
type SimpleHandler struct {
	services  FeedbackService
	wsManager WSRegistrar
	sessions  services.SessionService
	validate  *validator.Validate
}

// NewSimpleHandler 创建简化的处理器
func NewSimpleHandler(svc FeedbackService, wsManager WSRegistrar, sessions services.SessionService) *SimpleHandler {
	return &SimpleHandler{
		services:  svc,
		wsManager: wsManager,
		sessions:  sessions,
		validate:  validator.New(),
	}
}

var errInvalidBody = errors.New("Invalid request body")

type sessionRequest struct {
	ID      string `json:"id" validate:"required,max=64"`
	Name    string `json:"name" validate:"max=128"`
	IsAdmin bool   `json:"is_admin"`
}

type roleRequest struct {
	IsAdmin *bool `json:"is_admin"` // 为空时切换
}

type submitRequest struct {
	Content     string   `json:"content" validate:"max=5000"`
	Type        string   `json:"type" validate:"max=32"`
	Attachments []string `json:"attachments" validate:"max=9,dive,max=1024"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=resolved unresolved"`
}

type replyRequest struct {
	Content     string   `json:"content" validate:"max=5000"`
	Attachments []string `json:"attachments" validate:"max=9,dive,max=1024"`
}

// feedbackView 列表项，附带界面文字和状态控件开关
type feedbackView struct {
	*mxm.Feedback
	StatusLabel     string `json:"statusLabel"`
	TypeLabel       string `json:"typeLabel"`
	CanChangeStatus bool   `json:"can_change_status"`
}

func newFeedbackView(user mxm.User, f *mxm.Feedback) feedbackView {
	return feedbackView{
		Feedback:        f,
		StatusLabel:     f.Status.Label(),
		TypeLabel:       f.Type.Label(),
		CanChangeStatus: user.CanChangeStatus(f),
	}
}

// decodeBody 解析并校验请求体，allowEmpty 时空请求体保留零值
func (h *SimpleHandler) decodeBody(r *http.Request, v interface{}, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			slog.Warn("error unmarshal body", "path", r.URL.Path, "err", err)
			return errInvalidBody
		}
	}
	return h.validate.Struct(v)
}

// ========== 会话 ==========

// CreateSession 开启会话，不做凭证校验，空请求体使用默认用户
func (h *SimpleHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	req := sessionRequest{ID: store.DefaultUser.ID, Name: store.DefaultUser.Name}
	if err := h.decodeBody(r, &req, true); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeSession(w, mxm.User{ID: req.ID, Name: req.Name, IsAdmin: req.IsAdmin})
}

// GetSession 当前会话用户
func (h *SimpleHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		utils.WriteHttpError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	utils.WriteHttpResponse(w, http.StatusOK, user)
}

// SwitchRole 切换管理员开关并重新签发令牌
func (h *SimpleHandler) SwitchRole(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		utils.WriteHttpError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req roleRequest
	if err := h.decodeBody(r, &req, true); err != nil {
		h.handleError(w, err)
		return
	}
	isAdmin := utils.Deref(req.IsAdmin, !user.IsAdmin)
	if !h.writeSession(w, user.WithAdmin(isAdmin)) {
		return
	}
	// 已建立的 ws 连接随角色切换调整推送范围
	h.wsManager.UpdateRole(user.ID, isAdmin)
	slog.Info("session role switched", "user", user.ID, "isAdmin", isAdmin)
}

func (h *SimpleHandler) writeSession(w http.ResponseWriter, user mxm.User) bool {
	token, err := h.sessions.IssueToken(user)
	if err != nil {
		slog.Error("issue token failed", "user", user.ID, "error", err)
		utils.WriteHttpError(w, http.StatusInternalServerError, "无法生成令牌")
		return false
	}
	utils.WriteHttpResponse(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
	return true
}

// ========== 反馈 ==========

// GetFeedbackTypes 反馈类型及界面文字，按下拉框顺序
func (h *SimpleHandler) GetFeedbackTypes(w http.ResponseWriter, r *http.Request) {
	types := mxm.FeedbackTypes()
	out := make([]map[string]string, 0, len(types))
	for _, t := range types {
		out = append(out, map[string]string{"value": string(t), "label": t.Label()})
	}
	utils.WriteHttpResponse(w, http.StatusOK, out)
}

// GetFeedbacks 可见反馈列表，支持 status/type 过滤
func (h *SimpleHandler) GetFeedbacks(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	query := r.URL.Query()

	var filter store.Filter
	if s := query.Get("status"); s != "" {
		st, err := mxm.ParseStatus(s)
		if err != nil {
			h.handleError(w, fmt.Errorf("%w: %s", store.ErrInvalidStatus, err.Error()))
			return
		}
		filter.Status = st
	}
	if s := query.Get("type"); s != "" {
		ft, err := mxm.ParseFeedbackType(s)
		if err != nil {
			h.handleError(w, fmt.Errorf("%w: %s", store.ErrInvalidType, err.Error()))
			return
		}
		filter.Type = ft
	}

	feedbacks := h.services.ListFeedbacks(r.Context(), user, filter)
	views := make([]feedbackView, 0, len(feedbacks))
	for _, f := range feedbacks {
		views = append(views, newFeedbackView(user, f))
	}
	utils.WriteHttpResponse(w, http.StatusOK, views)
}

// AddFeedback 提交反馈
func (h *SimpleHandler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req submitRequest
	if err := h.decodeBody(r, &req, false); err != nil {
		h.handleError(w, err)
		return
	}

	f, err := h.services.SubmitFeedback(r.Context(), user, req.Content, req.Type, req.Attachments)
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusCreated, newFeedbackView(user, f))
}

// GetFeedback 单条反馈
func (h *SimpleHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	f, err := h.services.GetFeedback(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusOK, newFeedbackView(user, f))
}

// SetStatus 修改处理状态，仅管理员或作者
func (h *SimpleHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req statusRequest
	if err := h.decodeBody(r, &req, false); err != nil {
		h.handleError(w, err)
		return
	}

	f, err := h.services.SetStatus(r.Context(), user, mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusOK, newFeedbackView(user, f))
}

func (h *SimpleHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	f, err := h.services.ToggleStatus(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusOK, newFeedbackView(user, f))
}

// ========== 回复 ==========

func (h *SimpleHandler) GetReplies(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	replies, err := h.services.GetReplies(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusOK, replies)
}

func (h *SimpleHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req replyRequest
	if err := h.decodeBody(r, &req, false); err != nil {
		h.handleError(w, err)
		return
	}

	reply, err := h.services.AddReply(r.Context(), user, mux.Vars(r)["id"], req.Content, req.Attachments)
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusCreated, reply)
}

// GetEvents 事件流水，limit 默认50
func (h *SimpleHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	query := r.URL.Query()

	limit, offset := 50, 0
	var err error
	if s := query.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			utils.WriteHttpError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	if s := query.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil || offset < 0 {
			utils.WriteHttpError(w, http.StatusBadRequest, "invalid offset")
			return
		}
	}

	records, err := h.services.GetEvents(r.Context(), user, mux.Vars(r)["id"], limit, offset)
	if err != nil {
		h.handleError(w, err)
		return
	}
	utils.WriteHttpResponse(w, http.StatusOK, records)
}

// UpgradeWS WebSocket升级处理
func (h *SimpleHandler) UpgradeWS(w http.ResponseWriter, r *http.Request) {
	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // 根据安全需求调整
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	slog.Debug("新建连接", "connptr", fmt.Sprintf("%p", conn))

	// 首帧鉴权并注册
	h.wsManager.AuthenticateAndRegister(conn)
}

// handleError 统一错误处理
func (h *SimpleHandler) handleError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.WriteHttpError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, services.ErrJournalDisabled):
		utils.WriteHttpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrPermissionDenied):
		utils.WriteHttpError(w, http.StatusForbidden, "Permission denied")
	case errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidType),
		errors.Is(err, store.ErrEmptyContent),
		errors.Is(err, errInvalidBody):
		utils.WriteHttpError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &verrs):
		utils.WriteHttpError(w, http.StatusBadRequest, verrs.Error())
	default:
		slog.Error("Handler error", "error", err)
		utils.WriteHttpError(w, http.StatusInternalServerError, "Internal server error")
	}
}
