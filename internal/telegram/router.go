package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"channel-subs-bot/internal/metrics"
	"channel-subs-bot/internal/telegram/cmds"
	"channel-subs-bot/internal/telegram/flows"
	"channel-subs-bot/internal/telegram/flows/buysub"
)

type Router struct {
	bot          botApi
	adminChecker adminChecker
	l10n         localizer
	lang         string
	logger       *slog.Logger

	// Handlers
	buySubHandler *buysub.Handler
	statusCommand *cmds.StatusCommand
	adminCommand  *cmds.AdminCommand

	// queues очередь обновлений на пользователя. Ключ есть, пока работает обработчик.
	mu       sync.Mutex
	queues   map[int64][]tgbotapi.Update
	inflight sync.WaitGroup
}

type botApi interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type adminChecker interface {
	IsAdmin(telegramID int64) bool
	AdminIDs() []int64
}

type localizer interface {
	Get(lang, key string, params map[string]interface{}) string
}

// NewRouter создает новый роутер с зависимостями
func NewRouter(
	bot botApi,
	adminChecker adminChecker,
	l10n localizer,
	lang string,
	logger *slog.Logger,
	buySubHandler *buysub.Handler,
	statusCommand *cmds.StatusCommand,
	adminCommand *cmds.AdminCommand,
) *Router {
	return &Router{
		bot:           bot,
		adminChecker:  adminChecker,
		l10n:          l10n,
		lang:          lang,
		logger:        logger,
		buySubHandler: buySubHandler,
		statusCommand: statusCommand,
		adminCommand:  adminCommand,
		queues:        make(map[int64][]tgbotapi.Update),
	}
}

// Dispatch ставит обновление в очередь его пользователя и сразу возвращает управление.
// Обновления одного пользователя обрабатываются по порядку, разных пользователей параллельно.
func (r *Router) Dispatch(ctx context.Context, update tgbotapi.Update) {
	metrics.UpdatesTotal.WithLabelValues(updateKind(&update)).Inc()

	userID := extractUserID(&update)

	r.mu.Lock()
	queue, busy := r.queues[userID]
	r.queues[userID] = append(queue, update)
	if !busy {
		r.inflight.Add(1)
	}
	r.mu.Unlock()

	if !busy {
		go r.drain(ctx, userID)
	}
}

// Wait ждёт завершения всех начатых обработчиков.
func (r *Router) Wait() {
	r.inflight.Wait()
}

func (r *Router) drain(ctx context.Context, userID int64) {
	defer r.inflight.Done()

	for {
		r.mu.Lock()
		queue := r.queues[userID]
		if len(queue) == 0 {
			delete(r.queues, userID)
			r.mu.Unlock()
			return
		}
		update := queue[0]
		r.queues[userID] = queue[1:]
		r.mu.Unlock()

		r.handle(ctx, &update)
	}
}

func (r *Router) handle(ctx context.Context, update *tgbotapi.Update) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic while handling update",
				slog.Int("update_id", update.UpdateID),
				slog.Any("panic", p))
		}
	}()

	if err := r.Route(ctx, update); err != nil {
		r.logger.Error("Ошибка обработки обновления",
			slog.Int("update_id", update.UpdateID),
			slog.Int64("user_id", extractUserID(update)),
			slog.Any("error", err))
	}
}

// Route обрабатывает одно обновление синхронно.
func (r *Router) Route(ctx context.Context, update *tgbotapi.Update) error {
	// Pre-checkout подтверждаем без условий
	if update.PreCheckoutQuery != nil {
		return r.buySubHandler.PreCheckout(ctx, update.PreCheckoutQuery)
	}

	telegramID := extractUserID(update)
	if telegramID == 0 {
		return nil // Некорректный update
	}

	if update.CallbackQuery != nil {
		return r.handleCallback(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil {
		return nil
	}

	if msg.SuccessfulPayment != nil {
		return r.buySubHandler.SuccessfulPayment(ctx, msg)
	}

	// ПРИОРИТЕТ: команды отменяют любой флоу
	if msg.IsCommand() {
		return r.handleCommand(ctx, msg)
	}

	switch {
	case r.buySubHandler.IsBuyButton(msg.Text):
		return r.buySubHandler.ShowPaymentMethods(ctx, msg.Chat.ID)
	case r.buySubHandler.IsStatusButton(msg.Text):
		return r.statusCommand.Execute(ctx, msg.Chat.ID, telegramID)
	default:
		return r.buySubHandler.HandleText(ctx, msg)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	switch cb.Data {
	case flows.CallbackYookassaPayment:
		return r.buySubHandler.ChooseMethod(ctx, cb)
	case flows.CallbackCancel:
		return r.buySubHandler.Cancel(ctx, cb)
	case flows.CallbackConfirmPayment:
		return r.buySubHandler.Pay(ctx, cb)
	default:
		// Неизвестная кнопка, например со старой клавиатуры
		if _, err := r.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			return fmt.Errorf("answer unknown callback %q: %w", cb.Data, err)
		}
		return nil
	}
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		return r.buySubHandler.Restart(ctx, chatID, userID)
	case "status":
		return r.statusCommand.Execute(ctx, chatID, userID)
	case "reconcile":
		if !r.adminChecker.IsAdmin(userID) {
			return r.buySubHandler.Restart(ctx, chatID, userID)
		}
		return r.adminCommand.Reconcile(ctx, chatID)
	case "extend":
		if !r.adminChecker.IsAdmin(userID) {
			return r.buySubHandler.Restart(ctx, chatID, userID)
		}
		return r.adminCommand.Extend(ctx, chatID, msg.CommandArguments())
	default:
		return r.buySubHandler.Restart(ctx, chatID, userID)
	}
}

func extractUserID(update *tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	case update.PreCheckoutQuery != nil && update.PreCheckoutQuery.From != nil:
		return update.PreCheckoutQuery.From.ID
	}
	return 0
}

func updateKind(update *tgbotapi.Update) string {
	switch {
	case update.PreCheckoutQuery != nil:
		return "pre_checkout"
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		return "payment"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil:
		return "message"
	default:
		return "other"
	}
}

var (
	userCommands  = []string{"start", "status"}
	adminCommands = []string{"start", "status", "reconcile", "extend"}
)

// SetupBotCommands устанавливает команды для меню бота
func (r *Router) SetupBotCommands() error {
	setCommandsConfig := tgbotapi.NewSetMyCommands(r.botCommands(userCommands)...)
	if _, err := r.bot.Request(setCommandsConfig); err != nil {
		return fmt.Errorf("set default commands: %w", err)
	}

	// Админам расширенное меню в их личном чате
	for _, adminID := range r.adminChecker.AdminIDs() {
		setCommandsConfig := tgbotapi.SetMyCommandsConfig{
			Commands: r.botCommands(adminCommands),
			Scope:    lo.ToPtr(tgbotapi.NewBotCommandScopeChat(adminID)),
		}

		// Игнорируем ошибку, чтобы не блокировать основной поток
		if _, err := r.bot.Request(setCommandsConfig); err != nil {
			r.logger.Warn("Failed to set admin commands",
				slog.Int64("admin_id", adminID),
				slog.Any("error", err))
		}
	}

	return nil
}

func (r *Router) botCommands(names []string) []tgbotapi.BotCommand {
	return lo.Map(names, func(name string, _ int) tgbotapi.BotCommand {
		return tgbotapi.BotCommand{
			Command:     name,
			Description: r.l10n.Get(r.lang, "commands."+name, nil),
		}
	})
}
