package config

import (
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

// MysqlConfig 存储数据库连接信息，Host 为空表示不启用
type MysqlConfig struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	DBName      string `json:"dbname"`
	AutoMigrate bool   `json:"auto_migrate"`
}

func (c MysqlConfig) Enabled() bool {
	return c.Host != ""
}

// MqttConfig 事件推送的 broker，Broker 为空表示不启用
type MqttConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"clientid"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

func (c MqttConfig) Enabled() bool {
	return c.Broker != ""
}

type Tls struct {
	CertPath string `json:"cert_path"`
	KeyPath  string `json:"key_path"`
}

const (
	SeedStatic = "static"
	SeedMysql  = "mysql"
	SeedNone   = "none"

	IDModeUUID     = "uuid"
	IDModeSequence = "sequence"
)

// StoreConfig 反馈集合相关参数
type StoreConfig struct {
	Seed               string `json:"seed"`    // static/mysql/none
	IDMode             string `json:"id_mode"` // uuid/sequence
	RejectEmptyContent bool   `json:"reject_empty_content"`
	Journal            bool   `json:"journal"` // 事件写入 mysql 流水表
}

// RateLimitConfig 每个会话的写操作限流
type RateLimitConfig struct {
	PerSecond float64 `json:"per_second"`
	Burst     int     `json:"burst"`
}

type Config struct {
	ServerPort      int32           `json:"server_port"`
	Loglevel        string          `json:"log_level"`
	APIKey          string          `json:"api_key"`
	JwtIssuer       string          `json:"jwt_issuer"`
	JwtKeyPath      string          `json:"jwt_key_path"` // jwt加密密钥路径
	JwtKey          []byte          `json:"-"`
	SessionTTLHours int             `json:"session_ttl_hours"`
	WsCleanupSecond int             `json:"ws_cleanup_seconds"`
	Tls             Tls             `json:"tls"`
	Mysql           MysqlConfig     `json:"mysql"`
	Mqtt            MqttConfig      `json:"mqtt"`
	Store           StoreConfig     `json:"store"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
}

var (
	config *Config
)

// Default 未提供配置文件时使用的参数
func Default() *Config {
	return &Config{
		ServerPort:      8080,
		Loglevel:        "info",
		JwtIssuer:       "feedback-back",
		SessionTTLHours: 24,
		WsCleanupSecond: 600,
		Mqtt:            MqttConfig{ClientID: "feedback-back", TopicPrefix: "feedback/events"},
		Store:           StoreConfig{Seed: SeedStatic, IDMode: IDModeUUID},
		RateLimit:       RateLimitConfig{PerSecond: 5, Burst: 10},
	}
}

// LoadConfig 读取 json 配置，再用 .env 和环境变量覆盖
func LoadConfig(path string) error {
	cfg := Default()

	configData, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(configData, cfg); err != nil {
			slog.Error("error load config:"+err.Error(), "path", path)
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		slog.Warn("config file not found, using defaults", "path", path)
	default:
		slog.Error("error load config:"+err.Error(), "path", path)
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env failed", "error", err)
	}
	applyEnv(cfg)

	if err := loadJwtKey(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	config = cfg
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FEEDBACK_LOG_LEVEL"); v != "" {
		cfg.Loglevel = v
	}
	if v := os.Getenv("FEEDBACK_SERVER_PORT"); v != "" {
		if port, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.ServerPort = int32(port)
		} else {
			slog.Warn("ignore invalid FEEDBACK_SERVER_PORT", "value", v)
		}
	}
	if v := os.Getenv("FEEDBACK_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("FEEDBACK_MYSQL_PASSWORD"); v != "" {
		cfg.Mysql.Password = v
	}
	if v := os.Getenv("FEEDBACK_MQTT_PASSWORD"); v != "" {
		cfg.Mqtt.Password = v
	}
	if v := os.Getenv("FEEDBACK_STORE_SEED"); v != "" {
		cfg.Store.Seed = v
	}
}

// loadJwtKey 优先读 PEM 文件，其次 FEEDBACK_JWT_SECRET，都没有则生成进程内随机密钥
func loadJwtKey(cfg *Config) error {
	if cfg.JwtKeyPath != "" {
		pemData, err := os.ReadFile(cfg.JwtKeyPath)
		if err != nil {
			return fmt.Errorf("无法读取jwt私钥文件: %w", err)
		}
		// 解码PEM格式的密钥
		block, _ := pem.Decode(pemData)
		if block == nil {
			return fmt.Errorf("无效的PEM格式: %s", cfg.JwtKeyPath)
		}
		cfg.JwtKey = block.Bytes
		return nil
	}
	if secret := os.Getenv("FEEDBACK_JWT_SECRET"); secret != "" {
		cfg.JwtKey = []byte(secret)
		return nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate jwt key: %w", err)
	}
	slog.Warn("no jwt key configured, sessions will not survive restart")
	cfg.JwtKey = key
	return nil
}

func (c *Config) Validate() error {
	switch c.Store.Seed {
	case SeedStatic, SeedNone:
	case SeedMysql:
		if !c.Mysql.Enabled() {
			return fmt.Errorf("store.seed=mysql requires mysql.host")
		}
	default:
		return fmt.Errorf("unknown store.seed %q", c.Store.Seed)
	}
	switch c.Store.IDMode {
	case IDModeUUID, IDModeSequence:
	default:
		return fmt.Errorf("unknown store.id_mode %q", c.Store.IDMode)
	}
	if c.Store.Journal && !c.Mysql.Enabled() {
		return fmt.Errorf("store.journal requires mysql.host")
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("session_ttl_hours must be positive")
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		path := os.Getenv("FEEDBACK_CONFIG")
		if path == "" {
			path = "./config.json"
		}
		if err := LoadConfig(path); err != nil {
			slog.Error("load config failed, using defaults", "error", err)
			cfg := Default()
			_ = loadJwtKey(cfg)
			config = cfg
		}
	}
	return config
}
