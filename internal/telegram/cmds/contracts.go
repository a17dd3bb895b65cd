package cmds

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-subs-bot/internal/stories/subscribers"
	"channel-subs-bot/internal/workers/reconciliation"
)

type (
	botApi interface {
		Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	}

	statusService interface {
		GetStatus(ctx context.Context, userID int64) (subscribers.Status, error)
	}

	ledgerService interface {
		Extend(ctx context.Context, userID int64, months int) (*subscribers.Subscriber, error)
	}

	reconciler interface {
		RunNow(ctx context.Context) (reconciliation.Report, error)
	}

	localizer interface {
		Get(lang, key string, params map[string]interface{}) string
		FormatDate(lang string, t time.Time) string
	}
)
