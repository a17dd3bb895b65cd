package subscribers

import (
	"context"
	"time"
)

type (
	Storage interface {
		GetSubscriber(ctx context.Context, userID int64) (*Subscriber, error)
		// ExtendSubscription одним запросом: нет строки или срок истёк -> today+months, иначе end+months.
		ExtendSubscription(ctx context.Context, userID int64, months int, today time.Time) (*Subscriber, error)
		DeleteSubscriber(ctx context.Context, userID int64) error
		ListSubscribersEndingOn(ctx context.Context, today time.Time, days int) ([]*Subscriber, error)
		ListExpiredSubscribers(ctx context.Context, today time.Time) ([]*Subscriber, error)
		ImportSubscribers(ctx context.Context, rows []Subscriber) error
	}
)
