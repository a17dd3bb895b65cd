package cmds

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StatusCommand показывает срок подписки. Только чтение, сессию не трогает.
type StatusCommand struct {
	bot    botApi
	ledger statusService
	l10n   localizer
	lang   string
}

func NewStatusCommand(bot botApi, ledger statusService, l10n localizer, lang string) *StatusCommand {
	return &StatusCommand{
		bot:    bot,
		ledger: ledger,
		l10n:   l10n,
		lang:   lang,
	}
}

func (c *StatusCommand) Execute(ctx context.Context, chatID, userID int64) error {
	status, err := c.ledger.GetStatus(ctx, userID)
	if err != nil {
		_, _ = c.bot.Send(tgbotapi.NewMessage(chatID, c.l10n.Get(c.lang, "common.error", nil)))
		return fmt.Errorf("get status: %w", err)
	}

	text := c.l10n.Get(c.lang, "status.inactive", nil)
	if status.Active {
		text = c.l10n.Get(c.lang, "status.active", map[string]interface{}{
			"date": c.l10n.FormatDate(c.lang, status.Until),
		})
	}

	_, err = c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
