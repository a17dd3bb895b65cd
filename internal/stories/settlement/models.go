package settlement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"channel-subs-bot/internal/stories/subscribers"

	"github.com/google/uuid"
)

const payloadPrefix = "subscription"

// Payload привязывает счёт к пользователю и сроку: subscription_<userID>_<months>.
type Payload struct {
	UserID int64
	Months int
}

func (p Payload) String() string {
	return fmt.Sprintf("%s_%d_%d", payloadPrefix, p.UserID, p.Months)
}

func ParsePayload(s string) (Payload, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return Payload{}, fmt.Errorf("unexpected invoice payload %q", s)
	}

	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Payload{}, fmt.Errorf("parse user id from payload %q: %w", s, err)
	}

	months, err := strconv.Atoi(parts[2])
	if err != nil {
		return Payload{}, fmt.Errorf("parse months from payload %q: %w", s, err)
	}
	if !subscribers.ValidMonths(months) {
		return Payload{}, fmt.Errorf("months out of range in payload %q", s)
	}

	return Payload{UserID: userID, Months: months}, nil
}

// Invoice всё, что нужно для sendInvoice. Amount в копейках.
type Invoice struct {
	ChatID              int64
	Title               string
	Description         string
	Payload             string
	ProviderToken       string
	Currency            string
	Label               string
	Amount              int
	ProviderData        string
	NeedEmail           bool
	SendEmailToProvider bool
}

// FailedSettlement оплата, которую не удалось записать в реестр.
type FailedSettlement struct {
	ID        uuid.UUID
	UserID    int64
	Months    int
	FailedAt  time.Time
	Attempts  int
	LastError string
}

type Result struct {
	Subscriber *subscribers.Subscriber
	InviteLink string
	// Queued оплата ушла в очередь повтора.
	Queued bool
}

type Config struct {
	ChannelID     int64
	ProviderToken string
	Price         int
	Currency      string
	VATCode       int
	InviteTTL     time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	AdminIDs      []int64
	Lang          string
}
