package buysub

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel-subs-bot/internal/telegram/flows"
	"channel-subs-bot/internal/telegram/states"
)

const testUserID = int64(1001)

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: testUserID},
		Chat:      &tgbotapi.Chat{ID: testUserID},
		Text:      text,
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: testUserID},
		Message: &tgbotapi.Message{MessageID: 20, Chat: &tgbotapi.Chat{ID: testUserID}},
		Data:    data,
	}
}

func sentText(t *testing.T, c tgbotapi.Chattable) string {
	t.Helper()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	default:
		t.Fatalf("unexpected chattable %T", c)
		return ""
	}
}

func session(t *testing.T, sm *states.Manager) states.Session {
	t.Helper()
	s, err := sm.Get(context.Background(), testUserID)
	require.NoError(t, err)
	return s
}

// assertCancelOnly клавиатура из одной кнопки отмены.
func assertCancelOnly(t *testing.T, markup interface{}) {
	t.Helper()
	keyboard, ok := markup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "markup %T", markup)
	require.Len(t, keyboard.InlineKeyboard, 1)
	require.Len(t, keyboard.InlineKeyboard[0], 1)
	button := keyboard.InlineKeyboard[0][0]
	require.NotNil(t, button.CallbackData)
	assert.Equal(t, flows.CallbackCancel, *button.CallbackData)
}

// awaitMonths доводит диалог до ожидания ввода месяцев.
func awaitMonths(t *testing.T, h *Handler) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.Restart(ctx, testUserID, testUserID))
	require.NoError(t, h.ShowPaymentMethods(ctx, testUserID))
	require.NoError(t, h.ChooseMethod(ctx, callback(flows.CallbackYookassaPayment)))
}

func TestRestartShowsMenu(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	ctx := context.Background()

	require.NoError(t, sm.Save(ctx, testUserID, states.Session{State: states.StateMonthsConfirmed, Months: 9}))
	require.NoError(t, h.Restart(ctx, testUserID, testUserID))

	assert.Equal(t, states.Session{State: states.StateMenuShown, Months: 1}, session(t, sm))

	msg, ok := bot.Last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Привет!")
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.Keyboard, 1)
	assert.Equal(t, "📦 Приобрести подписку", keyboard.Keyboard[0][0].Text)
	assert.Equal(t, "🕒 Срок подписки", keyboard.Keyboard[0][1].Text)
	assert.True(t, h.IsBuyButton("📦 Приобрести подписку"))
	assert.True(t, h.IsStatusButton("🕒 Срок подписки"))
}

func TestChooseMethodAwaitsMonths(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	awaitMonths(t, h)

	s := session(t, sm)
	assert.True(t, s.AwaitingMonthsInput)
	assert.Equal(t, states.StateAwaitingMonths, s.State)

	edit, ok := bot.Last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, "Введите количество месяцев подписки (от 1 до 12):", edit.Text)
	require.NotNil(t, edit.ReplyMarkup)
	assertCancelOnly(t, *edit.ReplyMarkup)

	require.NotEmpty(t, bot.Requests)
	answer, ok := bot.Requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-"+flows.CallbackYookassaPayment, answer.CallbackQueryID)
}

func TestInvalidMonthsRePrompts(t *testing.T) {
	for _, input := range []string{"abc", "0", "13", "7.5", "", "-1"} {
		t.Run(input, func(t *testing.T) {
			h, bot, sm, _ := NewMockHandler()
			awaitMonths(t, h)
			before := session(t, sm)

			require.NoError(t, h.HandleText(context.Background(), textMessage(input)))

			reprompt, ok := bot.Last().(tgbotapi.MessageConfig)
			require.True(t, ok)
			assert.Equal(t, "Пожалуйста, введите число от 1 до 12.", reprompt.Text)
			assertCancelOnly(t, reprompt.ReplyMarkup)
			assert.Equal(t, before, session(t, sm))
		})
	}
}

func TestValidMonthsOffersPayment(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	awaitMonths(t, h)

	require.NoError(t, h.HandleText(context.Background(), textMessage("7")))

	assert.Equal(t, states.Session{State: states.StateMonthsConfirmed, Months: 7}, session(t, sm))

	msg, ok := bot.Last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "Вы выбрали 7 мес. подписки.", msg.Text)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, flows.CallbackConfirmPayment, *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, flows.CallbackCancel, *markup.InlineKeyboard[0][1].CallbackData)
}

func TestFreeTextWhenNotAwaitingRestarts(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	ctx := context.Background()
	require.NoError(t, sm.Save(ctx, testUserID, states.Session{State: states.StateMonthsConfirmed, Months: 4}))

	require.NoError(t, h.HandleText(ctx, textMessage("5")))

	assert.Equal(t, states.MenuShown(), session(t, sm))
	assert.Contains(t, sentText(t, bot.Last()), "Привет!")
}

func TestCancelResetsSession(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	awaitMonths(t, h)
	require.NoError(t, h.HandleText(context.Background(), textMessage("3")))

	sentBefore := len(bot.SentMessages)
	require.NoError(t, h.Cancel(context.Background(), callback(flows.CallbackCancel)))

	s := session(t, sm)
	assert.Equal(t, 1, s.Months)
	assert.False(t, s.AwaitingMonthsInput)
	assert.Equal(t, states.StateMenuShown, s.State)

	require.Len(t, bot.SentMessages, sentBefore+2)
	assert.Equal(t, "Действие отменено. Возвращаюсь в главное меню...", sentText(t, bot.SentMessages[sentBefore]))
	assert.Contains(t, sentText(t, bot.SentMessages[sentBefore+1]), "Привет!")
}

func TestPayWithoutConfirmedMonthsRestarts(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	awaitMonths(t, h)

	require.NoError(t, h.Pay(context.Background(), callback(flows.CallbackConfirmPayment)))

	assert.Equal(t, states.MenuShown(), session(t, sm))
	_, isInvoice := bot.Last().(tgbotapi.InvoiceConfig)
	assert.False(t, isInvoice)
}

func TestPaySendsInvoice(t *testing.T) {
	h, bot, sm, _ := NewMockHandler()
	awaitMonths(t, h)
	require.NoError(t, h.HandleText(context.Background(), textMessage("2")))

	require.NoError(t, h.Pay(context.Background(), callback(flows.CallbackConfirmPayment)))

	invoice, ok := bot.Last().(tgbotapi.InvoiceConfig)
	require.True(t, ok)
	assert.Equal(t, testUserID, invoice.ChatID)
	assert.Equal(t, "subscription_1001_2", invoice.Payload)
	assert.Equal(t, "RUB", invoice.Currency)
	assert.Equal(t, "test-provider-token", invoice.ProviderToken)
	require.Len(t, invoice.Prices, 1)
	assert.Equal(t, 100000, invoice.Prices[0].Amount)
	assert.NotNil(t, invoice.SuggestedTipAmounts)
	assert.True(t, invoice.NeedEmail)
	assert.True(t, invoice.SendEmailToProvider)
	assert.Contains(t, invoice.ProviderData, `"quantity":"2.00"`)
	assert.Equal(t, 1, bot.Invoices)

	assert.Equal(t, states.StateMonthsConfirmed, session(t, sm).State)
}

func TestPreCheckoutApproved(t *testing.T) {
	h, bot, _, _ := NewMockHandler()

	require.NoError(t, h.PreCheckout(context.Background(), &tgbotapi.PreCheckoutQuery{ID: "pcq-1", From: &tgbotapi.User{ID: testUserID}}))

	require.Len(t, bot.Requests, 1)
	answer, ok := bot.Requests[0].(tgbotapi.PreCheckoutConfig)
	require.True(t, ok)
	assert.Equal(t, "pcq-1", answer.PreCheckoutQueryID)
	assert.True(t, answer.OK)
	assert.Equal(t, 1, bot.PreCheckoutAnswers)
}

func TestSuccessfulPaymentUsesPayloadMonths(t *testing.T) {
	h, _, sm, settle := NewMockHandler()
	ctx := context.Background()
	require.NoError(t, sm.Save(ctx, testUserID, states.Session{State: states.StateMonthsConfirmed, Months: 5}))

	msg := textMessage("")
	msg.SuccessfulPayment = &tgbotapi.SuccessfulPayment{Currency: "RUB", TotalAmount: 100000, InvoicePayload: "subscription_1001_2"}

	require.NoError(t, h.SuccessfulPayment(ctx, msg))

	require.Len(t, settle.Settled, 1)
	assert.Equal(t, testUserID, settle.Settled[0].UserID)
	assert.Equal(t, 2, settle.Settled[0].Months)
	assert.Equal(t, states.Idle(), session(t, sm))
}

func TestSuccessfulPaymentFallsBackToSession(t *testing.T) {
	h, _, sm, settle := NewMockHandler()
	ctx := context.Background()
	require.NoError(t, sm.Save(ctx, testUserID, states.Session{State: states.StateMonthsConfirmed, Months: 4}))

	msg := textMessage("")
	msg.SuccessfulPayment = &tgbotapi.SuccessfulPayment{Currency: "RUB", InvoicePayload: "legacy"}

	require.NoError(t, h.SuccessfulPayment(ctx, msg))

	require.Len(t, settle.Settled, 1)
	assert.Equal(t, 4, settle.Settled[0].Months)
}

func TestSuccessfulPaymentPayloadForAnotherUser(t *testing.T) {
	h, _, _, settle := NewMockHandler()
	var logs bytes.Buffer
	h.logger = slog.New(slog.NewTextHandler(&logs, nil))

	msg := textMessage("")
	msg.SuccessfulPayment = &tgbotapi.SuccessfulPayment{Currency: "RUB", InvoicePayload: "subscription_2002_3"}

	require.NoError(t, h.SuccessfulPayment(context.Background(), msg))

	require.Len(t, settle.Settled, 1)
	assert.Equal(t, testUserID, settle.Settled[0].UserID)
	assert.Equal(t, 3, settle.Settled[0].Months)
	assert.Contains(t, logs.String(), "Invoice payload user mismatch")
	assert.Contains(t, logs.String(), "payload_user_id=2002")
}

func TestSuccessfulPaymentMatchingPayloadLogsNoMismatch(t *testing.T) {
	h, _, _, _ := NewMockHandler()
	var logs bytes.Buffer
	h.logger = slog.New(slog.NewTextHandler(&logs, nil))

	msg := textMessage("")
	msg.SuccessfulPayment = &tgbotapi.SuccessfulPayment{Currency: "RUB", InvoicePayload: "subscription_1001_3"}

	require.NoError(t, h.SuccessfulPayment(context.Background(), msg))
	assert.NotContains(t, logs.String(), "mismatch")
}

// Сценарий: два месяца от /start до оплаты.
func TestTwoMonthPurchaseEndToEnd(t *testing.T) {
	h, bot, sm, settle := NewMockHandler()
	ctx := context.Background()

	awaitMonths(t, h)
	require.NoError(t, h.HandleText(ctx, textMessage("2")))
	require.NoError(t, h.Pay(ctx, callback(flows.CallbackConfirmPayment)))

	invoice, ok := bot.Last().(tgbotapi.InvoiceConfig)
	require.True(t, ok)

	require.NoError(t, h.PreCheckout(ctx, &tgbotapi.PreCheckoutQuery{ID: "pcq", From: &tgbotapi.User{ID: testUserID}}))

	msg := textMessage("")
	msg.SuccessfulPayment = &tgbotapi.SuccessfulPayment{Currency: invoice.Currency, TotalAmount: invoice.Prices[0].Amount, InvoicePayload: invoice.Payload}
	require.NoError(t, h.SuccessfulPayment(ctx, msg))

	require.Len(t, settle.Settled, 1)
	assert.Equal(t, 2, settle.Settled[0].Months)
	assert.Equal(t, states.Idle(), session(t, sm))
}

func TestParseMonths(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"1", 1, true},
		{"12", 12, true},
		{" 7 ", 7, true},
		{"7.5", 0, false},
		{"0", 0, false},
		{"13", 0, false},
		{"abc", 0, false},
		{"1e1", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseMonths(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}
