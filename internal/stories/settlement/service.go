package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"channel-subs-bot/internal/metrics"
	"channel-subs-bot/internal/stories/subscribers"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const inviteMemberLimit = 1

type Service struct {
	cfg      Config
	ledger   Ledger
	channel  ChannelAdmin
	notifier Notifier
	texts    Localizer
	queue    *FailedQueue
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewService(
	cfg Config,
	ledger Ledger,
	channel ChannelAdmin,
	notifier Notifier,
	texts Localizer,
	queue *FailedQueue,
	logger *slog.Logger,
) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Service{
		cfg:      cfg,
		ledger:   ledger,
		channel:  channel,
		notifier: notifier,
		texts:    texts,
		queue:    queue,
		logger:   logger,
		tracer:   otel.Tracer("channel-subs-bot/settlement"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildInvoice собирает счёт на months месяцев. Цена строки = цена месяца * months в копейках.
func (s *Service) BuildInvoice(chatID, userID int64, months int) (Invoice, error) {
	if !subscribers.ValidMonths(months) {
		return Invoice{}, subscribers.ErrInvalidMonths
	}

	description := s.texts.Get(s.cfg.Lang, "invoice.description", nil)

	providerData, err := encodeProviderData(newReceipt(description, months, s.cfg.Price, s.cfg.VATCode, s.cfg.Currency))
	if err != nil {
		return Invoice{}, err
	}

	return Invoice{
		ChatID:              chatID,
		Title:               s.texts.Get(s.cfg.Lang, "invoice.title", nil),
		Description:         description,
		Payload:             Payload{UserID: userID, Months: months}.String(),
		ProviderToken:       s.cfg.ProviderToken,
		Currency:            s.cfg.Currency,
		Label:               s.texts.Get(s.cfg.Lang, "invoice.label", map[string]interface{}{"months": months}),
		Amount:              100 * s.cfg.Price * months,
		ProviderData:        providerData,
		NeedEmail:           true,
		SendEmailToProvider: true,
	}, nil
}

// Settle фиксирует успешную оплату: ссылка-приглашение, запись в реестр с повторами,
// сообщение пользователю. Если реестр так и не записался, оплата уходит в очередь,
// а ссылку пользователь всё равно получает.
func (s *Service) Settle(ctx context.Context, userID int64, months int) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("months", months),
	))
	defer span.End()

	logger := s.logger.With(slog.Int64("user_id", userID), slog.Int("months", months))

	var result Result

	link, linkErr := s.issueInvite(ctx, userID)
	if linkErr != nil {
		span.RecordError(linkErr)
		logger.Error("Failed to create invite link", slog.Any("error", linkErr))
	}
	result.InviteLink = link

	sub, attempts, err := s.extendWithRetry(ctx, userID, months)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger write failed")
		metrics.SettlementFailuresTotal.Inc()

		failed := FailedSettlement{
			ID:        uuid.New(),
			UserID:    userID,
			Months:    months,
			FailedAt:  s.now(),
			Attempts:  attempts,
			LastError: err.Error(),
		}
		if err := s.queue.Push(ctx, failed); err != nil {
			logger.Error("Failed settlement kept in memory only", slog.Any("error", err))
		}
		result.Queued = true

		logger.Error("Ledger write failed, settlement queued",
			slog.String("settlement_id", failed.ID.String()),
			slog.Int("attempts", attempts),
			slog.Any("error", err))

		s.notifyAdmins(ctx, s.texts.Get(s.cfg.Lang, "admin.settlement_failed", map[string]interface{}{
			"user_id":  userID,
			"months":   months,
			"attempts": attempts,
			"id":       failed.ID.String(),
		}))
	} else {
		result.Subscriber = sub
		logger.Info("Subscription extended",
			slog.String("subscription_end", sub.SubscriptionEnd.Format(subscribers.DateLayout)),
			slog.Int("attempts", attempts))
	}

	var deliverErr error
	if linkErr == nil {
		deliverErr = s.notifier.SendText(ctx, userID, s.texts.Get(s.cfg.Lang, "settlement.invite", map[string]interface{}{"link": link}))
	} else {
		deliverErr = s.notifier.SendText(ctx, userID, s.texts.Get(s.cfg.Lang, "settlement.link_delayed", nil))
		s.notifyAdmins(ctx, s.texts.Get(s.cfg.Lang, "admin.invite_failed", map[string]interface{}{
			"user_id": userID,
			"error":   linkErr.Error(),
		}))
	}

	switch {
	case result.Queued:
		metrics.PaymentsTotal.WithLabelValues("queued").Inc()
	case linkErr != nil:
		metrics.PaymentsTotal.WithLabelValues("invite_failed").Inc()
	default:
		metrics.PaymentsTotal.WithLabelValues("settled").Inc()
	}

	if deliverErr != nil {
		return result, errors.Wrap(deliverErr, "deliver settlement message")
	}
	return result, nil
}

func (s *Service) issueInvite(ctx context.Context, userID int64) (string, error) {
	name := fmt.Sprintf("sub-%d-%s", userID, uuid.NewString()[:8])
	link, err := s.channel.CreateInviteLink(ctx, s.cfg.ChannelID, name, s.now().Add(s.cfg.InviteTTL), inviteMemberLimit)
	if err != nil {
		return "", errors.Wrap(err, "create invite link")
	}
	return link, nil
}

// extendWithRetry до MaxAttempts попыток, между ними экспоненциальная пауза с джиттером.
func (s *Service) extendWithRetry(ctx context.Context, userID int64, months int) (*subscribers.Subscriber, int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		sub, err := s.ledger.Extend(ctx, userID, months)
		if err == nil {
			return sub, attempt, nil
		}
		lastErr = err

		if errors.Is(err, subscribers.ErrInvalidMonths) {
			return nil, attempt, err
		}

		s.logger.Warn("Ledger write attempt failed",
			slog.Int64("user_id", userID),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		if attempt == s.cfg.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
			return nil, attempt, errors.Wrapf(lastErr, "retry interrupted after %d attempts", attempt)
		}
	}
	return nil, s.cfg.MaxAttempts, lastErr
}

func (s *Service) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	d := base << (attempt - 1)
	return d + time.Duration(rand.Int64N(int64(base)))
}

func (s *Service) notifyAdmins(ctx context.Context, text string) {
	for _, adminID := range s.cfg.AdminIDs {
		if err := s.notifier.SendText(ctx, adminID, text); err != nil {
			s.logger.Error("Failed to notify admin",
				slog.Int64("admin_id", adminID),
				slog.Any("error", err))
		}
	}
}

// RetryFailed повторяет запись для всех оплат из очереди по одному разу.
// Неудачные возвращаются в очередь с увеличенным счётчиком попыток.
func (s *Service) RetryFailed(ctx context.Context) (applied, requeued int) {
	items := s.queue.Drain()
	for _, item := range items {
		logger := s.logger.With(
			slog.String("settlement_id", item.ID.String()),
			slog.Int64("user_id", item.UserID),
			slog.Int("months", item.Months))

		sub, err := s.ledger.Extend(ctx, item.UserID, item.Months)
		if err != nil {
			item.Attempts++
			item.LastError = err.Error()
			if pushErr := s.queue.Push(ctx, item); pushErr != nil {
				logger.Error("Failed settlement kept in memory only", slog.Any("error", pushErr))
			}
			requeued++
			logger.Error("Retry of failed settlement failed",
				slog.Int("attempts", item.Attempts),
				slog.Any("error", err))
			continue
		}

		applied++
		if err := s.queue.Done(ctx, item.ID); err != nil {
			// Запись останется в store и вернётся после рестарта, продление применится повторно
			logger.Error("Failed to delete applied settlement", slog.Any("error", err))
		}
		logger.Info("Failed settlement applied",
			slog.String("subscription_end", sub.SubscriptionEnd.Format(subscribers.DateLayout)))

		text := s.texts.Get(s.cfg.Lang, "settlement.recorded", map[string]interface{}{
			"date": s.texts.FormatDate(s.cfg.Lang, sub.SubscriptionEnd),
		})
		if err := s.notifier.SendText(ctx, item.UserID, text); err != nil {
			logger.Error("Failed to notify user about recorded subscription", slog.Any("error", err))
		}
	}
	return applied, requeued
}

func (s *Service) Pending() int {
	return s.queue.Len()
}
