package environment

import (
	"context"
	"fmt"
	"log/slog"

	"channel-subs-bot/internal/config"
	"channel-subs-bot/internal/infra/postgres"
	"channel-subs-bot/internal/infra/redis"
	"channel-subs-bot/internal/infra/sqlite3"
	"channel-subs-bot/internal/infra/telegram"
	"channel-subs-bot/internal/migrations"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
)

type Clients struct {
	DB          *sqlx.DB
	DBDriver    string
	Redis       *goredis.Client
	TelegramBot *telegram.Client

	closers []closer
}

// Close освобождает клиентов в обратном порядке создания.
func (c *Clients) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	var c Clients

	db, err := provideDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.DBDriver = cfg.DB.Driver
	c.closers = append(c.closers, func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", slog.Any("error", err))
		}
	})

	if err := migrations.Run(db.DB, cfg.DB.Driver); err != nil {
		c.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database ready", slog.String("driver", cfg.DB.Driver))

	if cfg.Session.Backend == config.SessionBackendRedis {
		rdb, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Redis = rdb
		c.closers = append(c.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error("Failed to close redis", slog.Any("error", err))
			}
		})
	}

	telegramBot, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.RateLimit, cfg.Telegram.Timeout, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create telegram client: %w", err)
	}
	c.TelegramBot = telegramBot

	return &c, nil
}

func provideDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	switch cfg.DB.Driver {
	case config.DriverSQLite3:
		// Размеры пула не берём из конфига: SQLite работает с одним писателем.
		db, err := sqlite3.New(ctx,
			sqlite3.WithDSN(cfg.DB.DSN),
			sqlite3.WithConnMaxLifetime(cfg.DB.MaxLifetime),
		)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	default:
		db, err := postgres.New(ctx,
			postgres.WithDSN(cfg.DB.DSN),
			postgres.WithMaxOpenConns(cfg.DB.MaxOpenConns),
			postgres.WithMaxIdleConns(cfg.DB.MaxIdleConns),
			postgres.WithConnMaxLifetime(cfg.DB.MaxLifetime),
		)
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	}
}
