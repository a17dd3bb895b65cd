package buysub

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-subs-bot/internal/stories/settlement"
	"channel-subs-bot/internal/stories/subscribers"
	"channel-subs-bot/internal/telegram/flows"
	"channel-subs-bot/internal/telegram/states"
)

// Handler диалог покупки: меню, способ оплаты, ввод месяцев, счёт, оплата.
type Handler struct {
	bot        botApi
	sessions   sessionStore
	settlement settlementService
	l10n       localizer
	lang       string
	logger     *slog.Logger
}

func NewHandler(
	bot botApi,
	sessions sessionStore,
	settlement settlementService,
	l10n localizer,
	lang string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		bot:        bot,
		sessions:   sessions,
		settlement: settlement,
		l10n:       l10n,
		lang:       lang,
		logger:     logger,
	}
}

func (h *Handler) text(key string, params map[string]interface{}) string {
	return h.l10n.Get(h.lang, key, params)
}

// MainMenuKeyboard клавиатура главного меню.
func (h *Handler) MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(h.text("menu.buy_button", nil)),
			tgbotapi.NewKeyboardButton(h.text("menu.status_button", nil)),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// IsBuyButton / IsStatusButton сравнивают текст с подписями кнопок меню.
func (h *Handler) IsBuyButton(text string) bool {
	return text == h.text("menu.buy_button", nil)
}

func (h *Handler) IsStatusButton(text string) bool {
	return text == h.text("menu.status_button", nil)
}

// Restart сбрасывает сессию (months=1, ожидание ввода снято) и показывает главное меню.
// Перезаписывает любой незавершённый диалог.
func (h *Handler) Restart(ctx context.Context, chatID, userID int64) error {
	if err := h.sessions.Save(ctx, userID, states.MenuShown()); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, h.text("menu.welcome", nil))
	msg.ReplyMarkup = h.MainMenuKeyboard()
	_, err := h.bot.Send(msg)
	return err
}

// ShowPaymentMethods выбор способа оплаты. Сессию не меняет.
func (h *Handler) ShowPaymentMethods(_ context.Context, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, h.text("purchase.choose_method", nil))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.text("purchase.card_button", nil), flows.CallbackYookassaPayment),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.text("purchase.close_button", nil), flows.CallbackCancel),
		),
	)
	_, err := h.bot.Send(msg)
	return err
}

// ChooseMethod после выбора способа оплаты ждём количество месяцев.
func (h *Handler) ChooseMethod(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	h.answer(cb.ID)

	userID := cb.From.ID
	session, err := h.sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	session.State = states.StateAwaitingMonths
	session.AwaitingMonthsInput = true
	if err := h.sessions.Save(ctx, userID, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	cancelOnly := h.cancelKeyboard()

	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, h.text("purchase.enter_months", nil), cancelOnly)
		_, err = h.bot.Send(edit)
		return err
	}

	msg := tgbotapi.NewMessage(userID, h.text("purchase.enter_months", nil))
	msg.ReplyMarkup = cancelOnly
	_, err = h.bot.Send(msg)
	return err
}

// cancelKeyboard единственная кнопка "Отмена" на шаге ввода месяцев.
func (h *Handler) cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.text("purchase.cancel_button", nil), flows.CallbackCancel),
		),
	)
}

// Cancel отвечает на callback, меняет исходное сообщение и полностью перезапускает диалог.
func (h *Handler) Cancel(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	h.answer(cb.ID)

	chatID := cb.From.ID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
		edit := tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID, h.text("purchase.cancelled", nil))
		if _, err := h.bot.Send(edit); err != nil {
			h.logger.Warn("Failed to edit cancelled message",
				slog.Int64("user_id", cb.From.ID),
				slog.Any("error", err))
		}
	}

	return h.Restart(ctx, chatID, cb.From.ID)
}

// HandleText свободный текст. Принимается только пока ждём месяцы, иначе перезапуск.
func (h *Handler) HandleText(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	session, err := h.sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	if !session.AwaitingMonthsInput {
		return h.Restart(ctx, chatID, userID)
	}

	months, ok := parseMonths(msg.Text)
	if !ok {
		reprompt := tgbotapi.NewMessage(chatID, h.text("purchase.invalid_months", nil))
		reprompt.ReplyMarkup = h.cancelKeyboard()
		_, err := h.bot.Send(reprompt)
		return err
	}

	session.Months = months
	session.AwaitingMonthsInput = false
	session.State = states.StateMonthsConfirmed
	if err := h.sessions.Save(ctx, userID, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	reply := tgbotapi.NewMessage(chatID, h.text("purchase.months_chosen", map[string]interface{}{"months": months}))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.text("purchase.pay_button", nil), flows.CallbackConfirmPayment),
			tgbotapi.NewInlineKeyboardButtonData(h.text("purchase.cancel_button", nil), flows.CallbackCancel),
		),
	)
	_, err = h.bot.Send(reply)
	return err
}

// parseMonths целое число от 1 до 12. "7.5", "abc", "0", "13" не проходят.
func parseMonths(text string) (int, bool) {
	months, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || !subscribers.ValidMonths(months) {
		return 0, false
	}
	return months, true
}

// Pay отправляет счёт. Без подтверждённых месяцев диалог начинается заново.
func (h *Handler) Pay(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	h.answer(cb.ID)

	userID := cb.From.ID
	chatID := userID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}

	session, err := h.sessions.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	if session.State != states.StateMonthsConfirmed || !subscribers.ValidMonths(session.Months) {
		return h.Restart(ctx, chatID, userID)
	}

	invoice, err := h.settlement.BuildInvoice(chatID, userID, session.Months)
	if err != nil {
		return fmt.Errorf("build invoice: %w", err)
	}

	if err := h.bot.SendInvoice(ctx, toInvoiceConfig(invoice)); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}

	h.logger.Info("Invoice sent",
		slog.Int64("user_id", userID),
		slog.Int("months", session.Months),
		slog.Int("amount", invoice.Amount))
	return nil
}

func toInvoiceConfig(invoice settlement.Invoice) tgbotapi.InvoiceConfig {
	cfg := tgbotapi.NewInvoice(
		invoice.ChatID,
		invoice.Title,
		invoice.Description,
		invoice.Payload,
		invoice.ProviderToken,
		"",
		invoice.Currency,
		[]tgbotapi.LabeledPrice{{Label: invoice.Label, Amount: invoice.Amount}},
	)
	// nil сериализуется в null, и Bot API отклоняет счёт.
	cfg.SuggestedTipAmounts = []int{}
	cfg.ProviderData = invoice.ProviderData
	cfg.NeedEmail = invoice.NeedEmail
	cfg.SendEmailToProvider = invoice.SendEmailToProvider
	return cfg
}

// PreCheckout одобряется всегда.
func (h *Handler) PreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) error {
	if err := h.bot.AnswerPreCheckout(ctx, q.ID, true, ""); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

// SuccessfulPayment месяцы берутся из payload счёта, сессия только запасной вариант.
func (h *Handler) SuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID
	payment := msg.SuccessfulPayment

	session, err := h.sessions.Get(ctx, userID)
	if err != nil {
		h.logger.Warn("Failed to read session on payment",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		session = states.Idle()
	}

	months := session.Months
	payload, err := settlement.ParsePayload(payment.InvoicePayload)
	if err != nil {
		h.logger.Warn("Unparsable invoice payload, using session months",
			slog.Int64("user_id", userID),
			slog.String("payload", payment.InvoicePayload),
			slog.Int("months", months))
	} else {
		months = payload.Months
		// Оплачивает всегда отправитель сообщения, payload только для сверки
		if payload.UserID != userID {
			h.logger.Warn("Invoice payload user mismatch",
				slog.Int64("user_id", userID),
				slog.Int64("payload_user_id", payload.UserID),
				slog.String("payload", payment.InvoicePayload))
		}
	}

	h.logger.Info("Payment received",
		slog.Int64("user_id", userID),
		slog.Int("months", months),
		slog.Int("total_amount", payment.TotalAmount),
		slog.String("currency", payment.Currency))

	_, settleErr := h.settlement.Settle(ctx, userID, months)

	if err := h.sessions.Save(ctx, userID, states.Idle()); err != nil {
		h.logger.Warn("Failed to reset session after payment",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
	}

	return settleErr
}

func (h *Handler) answer(callbackID string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		h.logger.Warn("Failed to answer callback", slog.Any("error", err))
	}
}
