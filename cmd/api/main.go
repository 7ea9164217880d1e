package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/infra/cache"
	"marketplace/internal/infra/db"
	"marketplace/internal/infra/events"
	"marketplace/internal/infra/memory"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/logger"
	"marketplace/internal/server"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Options{
		Service:   "marketplace-api",
		Env:       cfg.GoEnv,
		Level:     cfg.LogLevel,
		AddSource: !cfg.IsDev(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var b server.Backends
	switch cfg.Store {
	case config.StoreMemory:
		b = memoryBackends(log)
	default:
		gormDB, err := db.Connect(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(gormDB); err != nil {
				log.Error("db close failed", "err", err)
			}
		}()
		if err := db.Migrate(gormDB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		b = postgresBackends(gormDB)
	}

	//キャッシュとイベントは無くても動く
	b.Cache = cache.NoopProductCache{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisProductCache(cfg.RedisURL, cfg.ProductCacheTTL)
		if err != nil {
			log.Warn("redis unavailable, product cache disabled", "err", err)
		} else {
			defer rc.Close()
			b.Cache = rc
		}
	}

	b.Events = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer kp.Close()
		b.Events = kp
	}

	log.Info("starting", "store", cfg.Store, "order_tx_timeout", cfg.OrderTxTimeout.String())
	e := server.NewApp(cfg, log, b)
	return server.Run(ctx, e, cfg.Addr(), log)
}

func postgresBackends(gormDB *gorm.DB) server.Backends {
	carts := infraRepo.NewCartGormRepository(gormDB)
	return server.Backends{
		Tx:        infraRepo.NewTxManagerGorm(gormDB),
		Products:  infraRepo.NewProductGormRepository(gormDB),
		Orders:    infraRepo.NewOrderGormRepository(gormDB),
		OrderItem: infraRepo.NewOrderItemGormRepository(gormDB),
		Carts:     carts,
		CartItems: carts,
		Addresses: infraRepo.NewAddressGormRepository(gormDB),
		Users:     infraRepo.NewUserGormRepository(gormDB),
		AuditLogs: infraRepo.NewAuditLogGormRepository(gormDB),
		DB:        db.Pinger{DB: gormDB},
	}
}

// STORE=memory はローカル確認用。再起動で消える。
func memoryBackends(log *slog.Logger) server.Backends {
	s := memory.New()
	seedUsers(s, log)
	return server.Backends{
		Tx:        s,
		Products:  s.Products(),
		Orders:    s.Orders(),
		OrderItem: s.OrderItems(),
		Carts:     s.Carts(),
		CartItems: s.CartItems(),
		Addresses: s.Addresses(),
		Users:     s.Users(),
		AuditLogs: s.AuditLogs(),
	}
}

// cmd/devtoken で -user 1 (ADMIN) / -user 2 (USER) のトークンを作って使う
func seedUsers(s *memory.Store, log *slog.Logger) {
	for _, u := range []model.User{
		{ID: 1, Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true},
		{ID: 2, Email: "user@example.com", Role: model.RoleUser, IsActive: true},
	} {
		u = s.PutUser(u)
		log.Info("seeded user", "user_id", u.ID, "role", u.Role)
	}
}
