package reconciliation

import (
	"context"
	"time"

	"channel-subs-bot/internal/stories/subscribers"
)

type (
	Ledger interface {
		EndingIn(ctx context.Context, days int) ([]*subscribers.Subscriber, error)
		Expired(ctx context.Context) ([]*subscribers.Subscriber, error)
		Remove(ctx context.Context, userID int64) error
	}

	TelegramBot interface {
		SendText(ctx context.Context, chatID int64, text string) error
		BanChatMember(ctx context.Context, chatID, userID int64, until time.Time) error
		UnbanChatMember(ctx context.Context, chatID, userID int64) error
	}

	Localizer interface {
		Get(lang, key string, params map[string]interface{}) string
		Plural(lang, key string, n int) string
	}
)
