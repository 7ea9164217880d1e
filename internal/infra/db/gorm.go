package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketplace/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
// プロセス起動時に1回だけ呼び、コネクションプールをリクエスト間で共有する。
func Connect(cfg config.Config, log *slog.Logger) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: newGormLogger(log, cfg.IsDev()),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	return gormDB, nil
}

// Close はプールを閉じる（シャットダウン時）
func Close(gormDB *gorm.DB) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// /healthz 用
type Pinger struct {
	DB *gorm.DB
}

func (p Pinger) Ping(ctx context.Context) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GORMのログはslogに流す。devだけSQLも出す。
func newGormLogger(log *slog.Logger, dev bool) logger.Interface {
	level := logger.Warn
	if dev {
		level = logger.Info
	}
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelDebug),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}
