package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/VaTka/wakame/common/config"

	_ "github.com/lib/pq"
)

// pingTimeout 启动时探测数据库的最长等待
const pingTimeout = 5 * time.Second

// NewPostgresDB 打开 PostgreSQL 连接池并探测可用性
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close 关闭连接池（允许 nil）
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
