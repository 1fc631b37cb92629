package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Daneel-Li/feedback-back/internal/config"
	mxm "github.com/Daneel-Li/feedback-back/internal/models"
	"github.com/Daneel-Li/feedback-back/internal/services"
	"github.com/Daneel-Li/feedback-back/pkg/utils"
)

type Middleware func(http.HandlerFunc) http.HandlerFunc

// WithMidWare 后面的中间件在外层，先执行
func WithMidWare(finalHandler http.HandlerFunc, middlwares ...Middleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := finalHandler
		for _, m := range middlwares {
			f = m(f)
		}
		f(w, r)
	}
}

type ctxKey string

const userCtxKey ctxKey = "user"

// WithUser 把会话用户放进上下文
func WithUser(ctx context.Context, user mxm.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

func UserFromContext(ctx context.Context) (mxm.User, bool) {
	user, ok := ctx.Value(userCtxKey).(mxm.User)
	return user, ok
}

// ApiAuthCheck 校验 appKey 请求头，未配置 api_key 时放行
func ApiAuthCheck(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expected := config.GetConfig().APIKey
		if expected != "" && r.Header.Get("appKey") != expected {
			utils.WriteHttpError(w, http.StatusUnauthorized, "Invalid appKey")
			return
		}
		h.ServeHTTP(w, r)
	}
}

// JWTMiddleware 解析 Authorization 中的会话令牌
func JWTMiddleware(sessions services.SessionService) Middleware {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if len(tokenString) < 1 {
				utils.WriteHttpError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			user, err := sessions.ValidateToken(tokenString)
			if err != nil {
				slog.Debug("invalid session token", "path", r.URL.Path, "error", err)
				utils.WriteHttpError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			slog.Debug(fmt.Sprintf("[%s] %s user:[%s] admin:[%v]", r.Method, r.URL.Path, user.ID, user.IsAdmin))

			h.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		}
	}
}

// RateLimit 只限制写操作，必须放在 JWTMiddleware 内层
func RateLimit(limiter services.RateLimiter) Middleware {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				h.ServeHTTP(w, r)
				return
			}
			user, _ := UserFromContext(r.Context())
			if !limiter.Allow(user.ID) {
				slog.Warn("rate limited", "user", user.ID, "path", r.URL.Path)
				utils.WriteHttpError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			h.ServeHTTP(w, r)
		}
	}
}
