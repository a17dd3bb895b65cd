package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"TELEGRAM_BOT_TOKEN":     "123:abc",
		"PAYMENT_PROVIDER_TOKEN": "provider",
		"PAYMENT_PRICE":          "3499",
		"CHANNEL_ID":             "-1001234567890",
		"DB_DSN":                 "postgres://bot@localhost/bot",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), envconfig.MapLookuper(requiredEnv()))
	require.NoError(t, err)

	assert.Equal(t, 3499, cfg.Payment.Price)
	assert.Equal(t, "RUB", cfg.Payment.Currency)
	assert.Equal(t, int64(-1001234567890), cfg.Channel.ID)
	assert.Zero(t, cfg.Channel.ChatID)
	assert.Equal(t, 24*time.Hour, cfg.Channel.InviteTTL)
	assert.Equal(t, 60*time.Second, cfg.Channel.RevokeBanDuration)
	assert.Equal(t, 5, cfg.Settlement.MaxAttempts)
	assert.Equal(t, "0 22 * * *", cfg.Reconcile.Schedule)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)

	loc, err := cfg.Reconcile.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}

func TestLoadMissingRequired(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN",
		"PAYMENT_PROVIDER_TOKEN",
		"PAYMENT_PRICE",
		"CHANNEL_ID",
		"DB_DSN",
	} {
		t.Run(key, func(t *testing.T) {
			env := requiredEnv()
			delete(env, key)

			_, err := Load(context.Background(), envconfig.MapLookuper(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero price", key: "PAYMENT_PRICE", val: "0"},
		{name: "unknown driver", key: "DB_DRIVER", val: "mysql"},
		{name: "unknown session backend", key: "SESSION_BACKEND", val: "memcached"},
		{name: "no attempts", key: "SETTLEMENT_MAX_ATTEMPTS", val: "0"},
		{name: "bad timezone", key: "RECONCILE_TIMEZONE", val: "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := requiredEnv()
			env[tt.key] = tt.val

			_, err := Load(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
