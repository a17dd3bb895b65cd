package settlement

import (
	"context"
	"time"

	"channel-subs-bot/internal/stories/subscribers"

	"github.com/google/uuid"
)

type (
	Ledger interface {
		Extend(ctx context.Context, userID int64, months int) (*subscribers.Subscriber, error)
	}

	ChannelAdmin interface {
		CreateInviteLink(ctx context.Context, chatID int64, name string, expireAt time.Time, memberLimit int) (string, error)
	}

	Notifier interface {
		SendText(ctx context.Context, chatID int64, text string) error
	}

	FailedStore interface {
		SaveFailedSettlement(ctx context.Context, item FailedSettlement) error
		ListFailedSettlements(ctx context.Context) ([]FailedSettlement, error)
		DeleteFailedSettlement(ctx context.Context, id uuid.UUID) error
	}

	Localizer interface {
		Get(lang, key string, params map[string]interface{}) string
		FormatDate(lang string, t time.Time) string
	}
)
