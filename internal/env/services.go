package environment

import (
	"context"
	"log/slog"

	"channel-subs-bot/internal/config"
	"channel-subs-bot/internal/localization"
	"channel-subs-bot/internal/storage"
	"channel-subs-bot/internal/stories/settlement"
	"channel-subs-bot/internal/stories/subscribers"
	"channel-subs-bot/internal/telegram"
	"channel-subs-bot/internal/telegram/cmds"
	"channel-subs-bot/internal/telegram/flows/buysub"
	"channel-subs-bot/internal/telegram/states"
	"channel-subs-bot/internal/workers"
	"channel-subs-bot/internal/workers/reconciliation"
	"channel-subs-bot/internal/workers/retrysettlement"
	"channel-subs-bot/internal/workers/sessionsweep"

	"github.com/pkg/errors"
)

type Services struct {
	TelegramRouter *telegram.Router
	WorkerService  *workers.Manager
	Reconciliation *reconciliation.Worker
}

func newServices(ctx context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	if clients.TelegramBot == nil {
		return nil, errors.New("telegram bot не инициализирован")
	}

	loc, err := cfg.Reconcile.Location()
	if err != nil {
		return nil, errors.Wrap(err, "reconcile timezone")
	}

	l10n, err := localization.NewService()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load translations")
	}
	lang := cfg.Locale
	if !l10n.Supports(lang) {
		logger.Warn("Unsupported locale, falling back", slog.String("locale", lang), slog.String("fallback", localization.DefaultLang))
		lang = localization.DefaultLang
	}

	storageImpl := storage.New(clients.DB, clients.DBDriver)
	ledger := subscribers.NewService(storageImpl, loc)

	// Сессии диалога покупки
	var (
		sessions    states.Store
		workerItems []workers.Worker
	)
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		sessions = states.NewRedisStore(clients.Redis, cfg.Session.TTL, logger.With(slog.String("component", "sessions")))
	default:
		manager := states.NewManager(cfg.Session.TTL)
		sessions = manager
		if cfg.Session.TTL > 0 {
			workerItems = append(workerItems, sessionsweep.NewWorker(manager, logger.With(slog.String("worker", "session-sweep"))))
		}
	}

	// Очередь неудачных оплат переживает рестарт: записи лежат в реестре
	failedQueue := settlement.NewFailedQueue(storageImpl)
	if loaded, err := failedQueue.Load(ctx); err != nil {
		logger.Error("Failed to load queued settlements", slog.Any("error", err))
	} else if loaded > 0 {
		logger.Warn("Queued settlements restored", slog.Int("count", loaded))
	}

	settlementService := settlement.NewService(
		settlement.Config{
			ChannelID:     cfg.Channel.ID,
			ProviderToken: cfg.Payment.ProviderToken,
			Price:         cfg.Payment.Price,
			Currency:      cfg.Payment.Currency,
			VATCode:       cfg.Payment.VATCode,
			InviteTTL:     cfg.Channel.InviteTTL,
			MaxAttempts:   cfg.Settlement.MaxAttempts,
			RetryBackoff:  cfg.Settlement.RetryBackoff,
			AdminIDs:      cfg.Telegram.AdminIDs,
			Lang:          lang,
		},
		ledger,
		clients.TelegramBot,
		clients.TelegramBot,
		l10n,
		failedQueue,
		logger.With(slog.String("component", "settlement")),
	)

	s.Reconciliation = reconciliation.NewWorker(
		reconciliation.Config{
			Schedule:    cfg.Reconcile.Schedule,
			Location:    loc,
			ChannelID:   cfg.Channel.ID,
			ChatID:      cfg.Channel.ChatID,
			BanDuration: cfg.Channel.RevokeBanDuration,
			Lang:        lang,
		},
		ledger,
		clients.TelegramBot,
		l10n,
		logger.With(slog.String("worker", "reconciliation")),
	)

	workerItems = append(workerItems,
		s.Reconciliation,
		retrysettlement.NewWorker(settlementService, cfg.Settlement.RetrySchedule, logger.With(slog.String("worker", "retry-settlement"))),
	)
	s.WorkerService = workers.NewManager(logger, workerItems...)

	// Создаем buySubHandler - наш клиент уже реализует botApi интерфейс
	buySubHandler := buysub.NewHandler(
		clients.TelegramBot,
		sessions,
		settlementService,
		l10n,
		lang,
		logger.With(slog.String("flow", "buysub")),
	)

	statusCommand := cmds.NewStatusCommand(clients.TelegramBot, ledger, l10n, lang)
	adminCommand := cmds.NewAdminCommand(
		clients.TelegramBot,
		s.Reconciliation,
		ledger,
		l10n,
		lang,
		logger.With(slog.String("component", "admin")),
	)

	// Создаем роутер
	s.TelegramRouter = telegram.NewRouter(
		clients.TelegramBot,
		telegram.NewAdminChecker(cfg.Telegram.AdminIDs),
		l10n,
		lang,
		logger.With(slog.String("component", "router")),
		buySubHandler,
		statusCommand,
		adminCommand,
	)

	return &s, nil
}
