package cmds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-subs-bot/internal/stories/subscribers"
	"channel-subs-bot/internal/workers/reconciliation"
)

// AdminCommand команды администратора: /reconcile и /extend.
type AdminCommand struct {
	bot        botApi
	reconciler reconciler
	ledger     ledgerService
	l10n       localizer
	lang       string
	logger     *slog.Logger
}

func NewAdminCommand(
	bot botApi,
	reconciler reconciler,
	ledger ledgerService,
	l10n localizer,
	lang string,
	logger *slog.Logger,
) *AdminCommand {
	return &AdminCommand{
		bot:        bot,
		reconciler: reconciler,
		ledger:     ledger,
		l10n:       l10n,
		lang:       lang,
		logger:     logger,
	}
}

// Reconcile запускает сверку немедленно и присылает итог.
func (c *AdminCommand) Reconcile(ctx context.Context, chatID int64) error {
	report, err := c.reconciler.RunNow(ctx)
	switch {
	case errors.Is(err, reconciliation.ErrAlreadyRunning):
		return c.reply(chatID, c.l10n.Get(c.lang, "admin.reconcile_busy", nil))
	case err != nil:
		_ = c.reply(chatID, c.l10n.Get(c.lang, "admin.error", map[string]interface{}{"error": err.Error()}))
		return fmt.Errorf("run reconciliation: %w", err)
	}

	c.logger.Info("Manual reconciliation finished",
		slog.Int64("chat_id", chatID),
		slog.Int("reminded", report.Reminded),
		slog.Int("revoked", report.Revoked),
		slog.Int("failed", report.Failed))

	return c.reply(chatID, c.l10n.Get(c.lang, "admin.reconcile_done", map[string]interface{}{
		"reminded": report.Reminded,
		"revoked":  report.Revoked,
		"failed":   report.Failed,
	}))
}

// Extend ручное продление: "/extend <user_id> <months>".
func (c *AdminCommand) Extend(ctx context.Context, chatID int64, args string) error {
	userID, months, ok := parseExtendArgs(args)
	if !ok {
		return c.reply(chatID, c.l10n.Get(c.lang, "admin.extend_usage", nil))
	}

	sub, err := c.ledger.Extend(ctx, userID, months)
	if err != nil {
		_ = c.reply(chatID, c.l10n.Get(c.lang, "admin.error", map[string]interface{}{"error": err.Error()}))
		return fmt.Errorf("extend subscription of %d: %w", userID, err)
	}

	c.logger.Info("Subscription extended by admin",
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
		slog.Int("months", months),
		slog.String("subscription_end", sub.SubscriptionEnd.Format(subscribers.DateLayout)))

	return c.reply(chatID, c.l10n.Get(c.lang, "admin.extended", map[string]interface{}{
		"user_id": userID,
		"date":    c.l10n.FormatDate(c.lang, sub.SubscriptionEnd),
	}))
}

func parseExtendArgs(args string) (int64, int, bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, false
	}

	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, false
	}

	months, err := strconv.Atoi(fields[1])
	if err != nil || !subscribers.ValidMonths(months) {
		return 0, 0, false
	}
	return userID, months, true
}

func (c *AdminCommand) reply(chatID int64, text string) error {
	_, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
