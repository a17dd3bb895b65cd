package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env              string                  `env:"ENV,default=local"`
	Locale           string                  `env:"LOCALE,default=ru"`
	Logger           LoggerConfig            `env:",prefix=LOGGER_"`
	Observability    ObservabilityHTTPConfig `env:",prefix=OBSERVABILITY_"`
	ShutdownDuration time.Duration           `env:"SHUTDOWN_DURATION,default=30s"`
	DB               DBConfig                `env:",prefix=DB_"`
	Session          SessionConfig           `env:",prefix=SESSION_"`
	Telegram         TelegramConfig          `env:",prefix=TELEGRAM_"`
	Payment          PaymentConfig           `env:",prefix=PAYMENT_"`
	Channel          ChannelConfig           `env:",prefix=CHANNEL_"`
	Settlement       SettlementConfig        `env:",prefix=SETTLEMENT_"`
	Reconcile        ReconcileConfig         `env:",prefix=RECONCILE_"`
}

type TelegramConfig struct {
	BotToken  string        `env:"BOT_TOKEN,required"`
	Timeout   time.Duration `env:"TIMEOUT,default=30s"`
	AdminIDs  []int64       `env:"ADMIN_IDS"`
	RateLimit float64       `env:"RATE_LIMIT,default=30"`
}

type PaymentConfig struct {
	ProviderToken string `env:"PROVIDER_TOKEN,required"`
	// Price per month in whole currency units.
	Price    int    `env:"PRICE,required"`
	Currency string `env:"CURRENCY,default=RUB"`
	VATCode  int    `env:"VAT_CODE,default=1"`
}

type ChannelConfig struct {
	ID int64 `env:"ID,required"`
	// ChatID is the companion discussion chat, 0 when there is none.
	ChatID            int64         `env:"CHAT_ID"`
	InviteTTL         time.Duration `env:"INVITE_TTL,default=24h"`
	RevokeBanDuration time.Duration `env:"REVOKE_BAN_DURATION,default=60s"`
}

type SettlementConfig struct {
	MaxAttempts   int           `env:"MAX_ATTEMPTS,default=5"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF,default=200ms"`
	RetrySchedule string        `env:"RETRY_SCHEDULE,default=*/5 * * * *"`
}

type ReconcileConfig struct {
	Schedule string `env:"SCHEDULE,default=0 22 * * *"`
	Timezone string `env:"TIMEZONE,default=Europe/Moscow"`
}

// Location resolves the reconciliation timezone. The same zone defines "today"
// for the ledger.
func (c ReconcileConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", c.Timezone, err)
	}
	return loc, nil
}

type LoggerConfig struct {
	Level string `env:"LEVEL,default=debug"`
}

type ObservabilityHTTPConfig struct {
	Host         string        `env:"HOST,default=127.0.0.1"`
	Port         uint16        `env:"PORT,default=8383"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=1m"`
}

func (a ObservabilityHTTPConfig) ADDR() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite3  = "sqlite3"
)

type DBConfig struct {
	Driver       string        `env:"DRIVER,default=postgres"`
	DSN          string        `env:"DSN,required"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS,default=25"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS,default=5"`
	MaxLifetime  time.Duration `env:"MAX_LIFETIME,default=5m"`
}

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type SessionConfig struct {
	Backend       string        `env:"BACKEND,default=memory"`
	TTL           time.Duration `env:"TTL,default=24h"`
	RedisAddr     string        `env:"REDIS_ADDR,default=127.0.0.1:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
}

// Validate checks cross-field constraints envconfig tags cannot express.
func (c Config) Validate() error {
	if c.Payment.Price <= 0 {
		return fmt.Errorf("PAYMENT_PRICE must be positive, got %d", c.Payment.Price)
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite3:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Settlement.MaxAttempts < 1 {
		return fmt.Errorf("SETTLEMENT_MAX_ATTEMPTS must be at least 1")
	}
	if _, err := c.Reconcile.Location(); err != nil {
		return err
	}
	return nil
}
