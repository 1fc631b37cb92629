package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Daneel-Li/feedback-back/internal/config"
	"github.com/Daneel-Li/feedback-back/internal/dao"
	"github.com/Daneel-Li/feedback-back/internal/handlers"
	"github.com/Daneel-Li/feedback-back/internal/services"
	"github.com/Daneel-Li/feedback-back/internal/store"
	"github.com/Daneel-Li/feedback-back/pkg/db"

	mux "github.com/gorilla/mux"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupLogging(logLevel string) {
	switch strings.ToLower(logLevel) {
	case "debug":
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "info":
		slog.SetLogLoggerLevel(slog.LevelInfo)
	case "warn":
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		slog.SetLogLoggerLevel(slog.LevelError)
	}
}

// initDatabase 初始化数据库连接，未配置 mysql 时返回 nil
func initDatabase(ctx context.Context, cfg *config.Config) *gorm.DB {
	if !cfg.Mysql.Enabled() {
		return nil
	}

	sqlCfg := cfg.Mysql
	sqlDB, err := db.NewDB(db.MysqlConfig{
		Username: sqlCfg.Username,
		Password: sqlCfg.Password,
		Host:     sqlCfg.Host,
		Port:     sqlCfg.Port,
		DBName:   sqlCfg.DBName,
	})
	if err != nil {
		log.Fatal("Could not connect to the database ", err)
	}

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB.DB}), &gorm.Config{
		PrepareStmt: true, // 开启预编译提升性能
		NowFunc: func() time.Time {
			return time.Now().UTC() // 写入用 UTC
		},
	})
	if err != nil {
		log.Fatal("Could not open gorm session ", err)
	}

	// 添加连接健康检查
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				sqlDB.Close()
				return
			case <-ticker.C:
				if err := sqlDB.Ping(); err != nil {
					slog.Warn("Database connection health check failed", "error", err)
				}
			}
		}
	}()

	return gdb
}

// initStore 按配置选择ID来源和初始数据
func initStore(cfg *config.Config, repo dao.Repository) (*store.FeedbackStore, error) {
	opts := []store.Option{store.WithRejectEmptyContent(cfg.Store.RejectEmptyContent)}
	if cfg.Store.IDMode == config.IDModeSequence {
		opts = append(opts, store.WithIDSource(store.NewSequenceSource()))
	}
	st := store.New(opts...)

	switch cfg.Store.Seed {
	case config.SeedStatic:
		if err := st.Seed(store.SeedFeedbacks()); err != nil {
			return nil, fmt.Errorf("seed static feedbacks: %w", err)
		}
	case config.SeedMysql:
		items, err := repo.LoadFeedbacks()
		if err != nil {
			return nil, err
		}
		if err := st.Seed(items); err != nil {
			return nil, fmt.Errorf("seed feedbacks from mysql: %w", err)
		}
	}
	slog.Info("feedback store ready", "seed", cfg.Store.Seed, "idMode", cfg.Store.IDMode, "count", st.Len())
	return st, nil
}

// initNotifiers 注册事件的推送目标
func initNotifiers(ctx context.Context, cfg *config.Config, wsManager *services.WSManager, repo dao.Repository) *services.FanoutNotifier {
	fanout := services.NewFanoutNotifier(64)
	fanout.Register("ws", wsManager)

	if cfg.Mqtt.Enabled() {
		publisher := services.NewMqttPublisher(cfg.Mqtt)
		if err := publisher.Start(); err != nil {
			slog.Error("mqtt publisher start failed, events will not be published", "error", err)
		} else {
			fanout.Register("mqtt", publisher)
			go func() {
				<-ctx.Done()
				publisher.Stop()
			}()
		}
	}
	if cfg.Store.Journal && repo != nil {
		fanout.Register("journal", services.NewJournal(repo))
	}
	return fanout
}

// startServer 启动HTTP服务器，配置了证书时走 HTTPS
func startServer(ctx context.Context, router *mux.Router, cfg *config.Config) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	var err error
	if cfg.Tls.CertPath != "" && cfg.Tls.KeyPath != "" {
		slog.Info("Starting HTTPS server: " + server.Addr + "...")
		err = server.ListenAndServeTLS(cfg.Tls.CertPath, cfg.Tls.KeyPath)
	} else {
		slog.Info("Starting HTTP server: " + server.Addr + "...")
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server: " + err.Error())
	}
}

func main() {
	configPath := flag.String("config", "", "config file path (default $FEEDBACK_CONFIG or ./config.json)")
	initSeed := flag.Bool("init-seed", false, "write the built-in seed feedbacks to mysql and exit")
	flag.Parse()

	if *configPath != "" {
		if err := config.LoadConfig(*configPath); err != nil {
			log.Fatal("load config failed: ", err)
		}
	}
	cfg := config.GetConfig()

	// 设置日志级别
	setupLogging(cfg.Loglevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库连接
	var repo dao.Repository
	if gdb := initDatabase(ctx, cfg); gdb != nil {
		repo = dao.NewMysqlRepository(gdb)
		if cfg.Mysql.AutoMigrate || *initSeed {
			if err := repo.AutoMigrate(); err != nil {
				log.Fatal(err)
			}
		}
	}

	if *initSeed {
		if repo == nil {
			log.Fatal("-init-seed requires mysql.host")
		}
		if err := repo.SaveFeedbacks(store.SeedFeedbacks()); err != nil {
			log.Fatal(err)
		}
		slog.Info("seed feedbacks written to mysql")
		return
	}

	st, err := initStore(cfg, repo)
	if err != nil {
		log.Fatal(err)
	}

	sessions := services.NewJWTService(cfg.JwtKey, cfg.JwtIssuer, time.Duration(cfg.SessionTTLHours)*time.Hour)
	wsManager := services.NewWsManager(ctx, sessions, time.Duration(cfg.WsCleanupSecond)*time.Second)
	notifier := initNotifiers(ctx, cfg, wsManager, repo)

	var events dao.EventRepository
	if cfg.Store.Journal && repo != nil {
		events = repo
	}
	feedbackService := services.NewFeedbackService(st, notifier, events)
	limiter := services.NewRateLimiter(ctx, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	// 设置路由
	router := setupRoutes(handlers.NewSimpleHandler(feedbackService, wsManager, sessions), sessions, limiter)

	// 启动HTTP服务器
	startServer(ctx, router, cfg)
}

// setupRoutes 设置路由
func setupRoutes(h *handlers.SimpleHandler, sessions services.SessionService, limiter services.RateLimiter) *mux.Router {
	r := mux.NewRouter()

	// 设置中间件，后面的先执行
	midWares := []handlers.Middleware{
		handlers.RateLimit(limiter),
		handlers.JWTMiddleware(sessions),
		handlers.ApiAuthCheck,
	}

	r.HandleFunc("/api/v1/sessions", handlers.WithMidWare(h.CreateSession, handlers.ApiAuthCheck)).Methods("POST")
	r.HandleFunc("/api/v1/sessions/me", handlers.WithMidWare(h.GetSession, midWares...)).Methods("GET")
	r.HandleFunc("/api/v1/sessions/role", handlers.WithMidWare(h.SwitchRole, midWares...)).Methods("POST")

	r.HandleFunc("/api/v1/feedback-types", handlers.WithMidWare(h.GetFeedbackTypes, handlers.ApiAuthCheck)).Methods("GET")

	r.HandleFunc("/api/v1/feedbacks", handlers.WithMidWare(h.GetFeedbacks, midWares...)).Methods("GET")
	r.HandleFunc("/api/v1/feedbacks", handlers.WithMidWare(h.AddFeedback, midWares...)).Methods("POST")
	r.HandleFunc("/api/v1/feedbacks/{id}", handlers.WithMidWare(h.GetFeedback, midWares...)).Methods("GET")
	r.HandleFunc("/api/v1/feedbacks/{id}/status", handlers.WithMidWare(h.SetStatus, midWares...)).Methods("PUT")
	r.HandleFunc("/api/v1/feedbacks/{id}/status/toggle", handlers.WithMidWare(h.ToggleStatus, midWares...)).Methods("POST")
	r.HandleFunc("/api/v1/feedbacks/{id}/replies", handlers.WithMidWare(h.GetReplies, midWares...)).Methods("GET")
	r.HandleFunc("/api/v1/feedbacks/{id}/replies", handlers.WithMidWare(h.AddReply, midWares...)).Methods("POST")
	r.HandleFunc("/api/v1/feedbacks/{id}/events", handlers.WithMidWare(h.GetEvents, midWares...)).Methods("GET")

	r.HandleFunc("/ws", h.UpgradeWS).Methods("GET")
	return r
}
