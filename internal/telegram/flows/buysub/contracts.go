package buysub

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-subs-bot/internal/stories/settlement"
	"channel-subs-bot/internal/telegram/states"
)

type (
	botApi interface {
		Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
		Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
		SendInvoice(ctx context.Context, invoice tgbotapi.InvoiceConfig) error
		AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error
	}

	sessionStore interface {
		Get(ctx context.Context, userID int64) (states.Session, error)
		Save(ctx context.Context, userID int64, session states.Session) error
	}

	settlementService interface {
		BuildInvoice(chatID, userID int64, months int) (settlement.Invoice, error)
		Settle(ctx context.Context, userID int64, months int) (settlement.Result, error)
	}

	localizer interface {
		Get(lang, key string, params map[string]interface{}) string
		FormatDate(lang string, t time.Time) string
	}
)
