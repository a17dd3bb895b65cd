package buysub

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"channel-subs-bot/internal/localization"
	"channel-subs-bot/internal/stories/settlement"
	"channel-subs-bot/internal/stories/subscribers"
	"channel-subs-bot/internal/telegram/states"
)

// MockBotApi - мок Telegram Bot API
type MockBotApi struct {
	mu           sync.Mutex
	SentMessages []tgbotapi.Chattable
	Requests     []tgbotapi.Chattable
	// Вызовы типизированных методов клиента
	Invoices           int
	PreCheckoutAnswers int
}

func (m *MockBotApi) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, c)
	return tgbotapi.Message{MessageID: len(m.SentMessages)}, nil
}

func (m *MockBotApi) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// SendInvoice пишет счёт в SentMessages, как Send.
func (m *MockBotApi) SendInvoice(_ context.Context, invoice tgbotapi.InvoiceConfig) error {
	m.mu.Lock()
	m.Invoices++
	m.mu.Unlock()

	_, err := m.Send(invoice)
	return err
}

func (m *MockBotApi) AnswerPreCheckout(_ context.Context, queryID string, ok bool, errorMessage string) error {
	m.mu.Lock()
	m.PreCheckoutAnswers++
	m.mu.Unlock()

	_, err := m.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	return err
}

// Last последнее отправленное сообщение или nil.
func (m *MockBotApi) Last() tgbotapi.Chattable {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentMessages) == 0 {
		return nil
	}
	return m.SentMessages[len(m.SentMessages)-1]
}

// MockSettlementService - мок расчёта оплат, запоминает вызовы Settle
type MockSettlementService struct {
	invoices *settlement.Service
	Settled  []settlement.Payload
	Err      error
}

func (m *MockSettlementService) BuildInvoice(chatID, userID int64, months int) (settlement.Invoice, error) {
	return m.invoices.BuildInvoice(chatID, userID, months)
}

func (m *MockSettlementService) Settle(_ context.Context, userID int64, months int) (settlement.Result, error) {
	m.Settled = append(m.Settled, settlement.Payload{UserID: userID, Months: months})
	return settlement.Result{Subscriber: &subscribers.Subscriber{UserID: userID}}, m.Err
}

// NewMockHandler создает новый Handler с моками для тестирования
func NewMockHandler() (*Handler, *MockBotApi, *states.Manager, *MockSettlementService) {
	l10n, err := localization.NewService()
	if err != nil {
		panic(err)
	}

	bot := &MockBotApi{}
	sessions := states.NewManager(0) // Используем реальный менеджер вместо мока
	settle := &MockSettlementService{
		invoices: settlement.NewService(settlement.Config{
			ProviderToken: "test-provider-token",
			Price:         500,
			Currency:      "RUB",
			VATCode:       1,
			MaxAttempts:   1,
			Lang:          localization.DefaultLang,
		}, nil, nil, nil, l10n, settlement.NewFailedQueue(nil), slog.Default()),
	}

	return NewHandler(bot, sessions, settle, l10n, localization.DefaultLang, slog.Default()), bot, sessions, settle
}
