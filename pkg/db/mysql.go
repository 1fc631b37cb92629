package db

import (
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

type MysqlConfig struct {
	Username string
	Password string
	Host     string
	Port     string
	DBName   string
}

// DSN 生成 go-sql-driver 连接串，时间统一按 UTC 解析
func (c MysqlConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	port := c.Port
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(c.Host, port)
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// NewDB 返回一个新的 *DB 实例
func NewDB(config MysqlConfig) (*DB, error) {
	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s failed: %w", config.Host, err)
	}

	// 连接池配置
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(20)
	db.SetMaxOpenConns(100)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &DB{db}, nil
}
