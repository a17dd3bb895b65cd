package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const defaultRateLimit = 30

type Client struct {
	api     *tgbotapi.BotAPI
	logger  *slog.Logger
	limiter *rate.Limiter
	updates tgbotapi.UpdatesChannel
	timeout int
	ctx     context.Context
}

// NewClient создаёт клиента Bot API. Все исходящие вызовы проходят через один limiter.
func NewClient(token string, rps float64, pollTimeout time.Duration, logger *slog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	if rps <= 0 {
		rps = defaultRateLimit
	}

	return &Client{
		api:     bot,
		logger:  logger.With(slog.String("bot", bot.Self.UserName)),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: int(pollTimeout.Seconds()),
		ctx:     context.Background(),
	}, nil
}

// Start начинает long polling. Остановка только через Stop: исходящие вызовы
// должны работать, пока обработчики дорабатывают после сигнала.
func (c *Client) Start(_ context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.timeout
	if u.Timeout <= 0 {
		u.Timeout = 60
	}
	u.AllowedUpdates = []string{"message", "callback_query", "pre_checkout_query"}

	c.updates = c.api.GetUpdatesChan(u)

	c.logger.Info("Telegram bot started")
	return nil
}

func (c *Client) Stop() {
	c.api.StopReceivingUpdates()
	c.logger.Info("Telegram bot stopped")
}

func (c *Client) GetUpdates() tgbotapi.UpdatesChannel {
	return c.updates
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiting: %w", err)
	}
	return nil
}

// Send отправляет сообщение (или редактирование) с rate limiting.
func (c *Client) Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := c.wait(c.ctx); err != nil {
		return tgbotapi.Message{}, err
	}

	message, err := c.api.Send(chattable)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("send: %w", err)
	}

	return message, nil
}

// Request вызывает методы, которые не возвращают Message: ответы на callback, ban, invite link.
func (c *Client) Request(chattable tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := c.wait(c.ctx); err != nil {
		return nil, err
	}

	resp, err := c.api.Request(chattable)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	return resp, nil
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (c *Client) SendInvoice(ctx context.Context, invoice tgbotapi.InvoiceConfig) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.Send(invoice); err != nil {
		return fmt.Errorf("send invoice to %d: %w", invoice.ChatID, err)
	}
	return nil
}

func (c *Client) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	if err != nil {
		return fmt.Errorf("answer pre-checkout %s: %w", queryID, err)
	}
	return nil
}

// CreateInviteLink выпускает ссылку-приглашение с ограничением по числу вступлений и сроку жизни.
func (c *Client) CreateInviteLink(ctx context.Context, chatID int64, name string, expireAt time.Time, memberLimit int) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.api.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		Name:        name,
		ExpireDate:  int(expireAt.Unix()),
		MemberLimit: memberLimit,
	})
	if err != nil {
		return "", fmt.Errorf("create invite link for %d: %w", chatID, err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("empty invite link for %d", chatID)
	}

	return link.InviteLink, nil
}

// BanChatMember удаляет пользователя из чата. Бан с until в ближайшем будущем снимается сам,
// и пользователь сможет вернуться по новой ссылке.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		UntilDate: until.Unix(),
	})
	if err != nil {
		return fmt.Errorf("ban user %d in chat %d: %w", userID, chatID, err)
	}
	return nil
}

// UnbanChatMember снимает бан, если он есть. Пользователь остаётся вне чата, но может вернуться.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		OnlyIfBanned: true,
	})
	if err != nil {
		return fmt.Errorf("unban user %d in chat %d: %w", userID, chatID, err)
	}
	return nil
}
