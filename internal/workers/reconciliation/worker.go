package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"channel-subs-bot/internal/metrics"
	"channel-subs-bot/internal/stories/subscribers"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Offsets дни до окончания в порядке обработки. 0 означает отзыв доступа.
var Offsets = []int{3, 2, 1, 0}

var ErrAlreadyRunning = errors.New("reconciliation is already running")

type Config struct {
	Schedule    string
	Location    *time.Location
	ChannelID   int64
	ChatID      int64
	BanDuration time.Duration
	Lang        string
}

type Report struct {
	Reminded int
	Revoked  int
	Failed   int
}

// Worker ежедневная сверка реестра: напоминания за 3, 2 и 1 день, отзыв доступа у истёкших.
type Worker struct {
	cfg    Config
	ledger Ledger
	bot    TelegramBot
	l10n   Localizer
	logger *slog.Logger
	cron   *cron.Cron
	tracer trace.Tracer
	now    func() time.Time

	// running не даёт запускам по cron и /reconcile пересекаться.
	running sync.Mutex
}

func NewWorker(cfg Config, ledger Ledger, bot TelegramBot, l10n Localizer, logger *slog.Logger) *Worker {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Worker{
		cfg:    cfg,
		ledger: ledger,
		bot:    bot,
		l10n:   l10n,
		logger: logger,
		cron:   cron.New(cron.WithLocation(loc)),
		tracer: otel.Tracer("channel-subs-bot/reconciliation"),
		now:    time.Now,
	}
}

// Name returns the worker name
func (w *Worker) Name() string {
	return "reconciliation"
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("Panic in reconciliation worker", slog.Any("panic", r))
			}
		}()

		w.logger.Info("Running reconciliation worker")
		report, err := w.RunNow(context.Background())
		if err != nil {
			w.logger.Warn("Reconciliation skipped", slog.Any("error", err))
			return
		}
		w.logReport(report)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation worker: %w", err)
	}

	w.cron.Start()
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

// RunNow выполняет полный проход сразу. Если проход уже идёт, возвращает ErrAlreadyRunning.
func (w *Worker) RunNow(ctx context.Context) (Report, error) {
	if !w.running.TryLock() {
		return Report{}, ErrAlreadyRunning
	}
	defer w.running.Unlock()

	started := w.now()
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
	}()

	ctx, span := w.tracer.Start(ctx, "reconciliation.Run")
	defer span.End()

	var report Report
	for _, days := range Offsets {
		if days > 0 {
			w.remind(ctx, days, &report)
		} else {
			w.revokeExpired(ctx, &report)
		}
	}

	span.SetAttributes(
		attribute.Int("reminded", report.Reminded),
		attribute.Int("revoked", report.Revoked),
		attribute.Int("failed", report.Failed),
	)
	return report, nil
}

func (w *Worker) remind(ctx context.Context, days int, report *Report) {
	subs, err := w.ledger.EndingIn(ctx, days)
	if err != nil {
		report.Failed++
		w.logger.Error("Failed to list expiring subscribers",
			slog.Int("days", days),
			slog.Any("error", err))
		return
	}

	text := w.l10n.Get(w.cfg.Lang, "reconcile.reminder", map[string]interface{}{
		"days": w.l10n.Plural(w.cfg.Lang, "days", days),
	})

	for _, sub := range subs {
		if err := w.bot.SendText(ctx, sub.UserID, text); err != nil {
			report.Failed++
			metrics.ReconcileActionsTotal.WithLabelValues("reminder", "error").Inc()
			w.logger.Error("Failed to send expiry reminder",
				slog.Int64("user_id", sub.UserID),
				slog.Int("days", days),
				slog.Any("error", err))
			continue
		}
		report.Reminded++
		metrics.ReconcileActionsTotal.WithLabelValues("reminder", "ok").Inc()
	}
}

// revokeExpired сообщение, удаление из канала и чата, удаление строки. Шаги независимы:
// строка удаляется, даже если бан не удался.
func (w *Worker) revokeExpired(ctx context.Context, report *Report) {
	subs, err := w.ledger.Expired(ctx)
	if err != nil {
		report.Failed++
		w.logger.Error("Failed to list expired subscribers", slog.Any("error", err))
		return
	}

	text := w.l10n.Get(w.cfg.Lang, "reconcile.revoked", nil)

	for _, sub := range subs {
		logger := w.logger.With(slog.Int64("user_id", sub.UserID))

		if err := w.bot.SendText(ctx, sub.UserID, text); err != nil {
			logger.Error("Failed to send revocation notice", slog.Any("error", err))
		}

		if err := w.kick(ctx, w.cfg.ChannelID, sub.UserID); err != nil {
			logger.Error("Failed to remove user from channel", slog.Any("error", err))
		}
		if w.cfg.ChatID != 0 {
			if err := w.kick(ctx, w.cfg.ChatID, sub.UserID); err != nil {
				logger.Error("Failed to remove user from chat", slog.Any("error", err))
			}
		}

		if err := w.ledger.Remove(ctx, sub.UserID); err != nil {
			report.Failed++
			metrics.ReconcileActionsTotal.WithLabelValues("revoke", "error").Inc()
			logger.Error("Failed to delete expired subscriber", slog.Any("error", err))
			continue
		}

		report.Revoked++
		metrics.ReconcileActionsTotal.WithLabelValues("revoke", "ok").Inc()
		logger.Info("Subscription revoked",
			slog.String("subscription_end", sub.SubscriptionEnd.Format(subscribers.DateLayout)))
	}
}

// kick бан и сразу снятие бана: пользователь удалён, но может вернуться по новой ссылке.
// until считается перед каждым вызовом: Bot API считает бан короче 30 секунд вечным.
func (w *Worker) kick(ctx context.Context, chatID, userID int64) error {
	until := w.now().Add(w.cfg.BanDuration)
	if err := w.bot.BanChatMember(ctx, chatID, userID, until); err != nil {
		return err
	}
	return w.bot.UnbanChatMember(ctx, chatID, userID)
}

func (w *Worker) logReport(r Report) {
	w.logger.Info("Reconciliation completed",
		slog.Int("reminded", r.Reminded),
		slog.Int("revoked", r.Revoked),
		slog.Int("failed", r.Failed))
}
