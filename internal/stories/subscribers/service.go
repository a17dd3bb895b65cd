package subscribers

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var ErrInvalidMonths = fmt.Errorf("months must be between %d and %d", MinMonths, MaxMonths)

type Service struct {
	storage Storage
	loc     *time.Location
	now     func() time.Time
}

func NewService(storage Storage, loc *time.Location) *Service {
	return &Service{
		storage: storage,
		loc:     loc,
		now:     time.Now,
	}
}

// Today текущий календарный день в часовом поясе бота.
func (s *Service) Today() time.Time {
	return Date(s.now(), s.loc)
}

// GetStatus только читает реестр. Нет строки или дата в прошлом -> неактивна.
func (s *Service) GetStatus(ctx context.Context, userID int64) (Status, error) {
	sub, err := s.storage.GetSubscriber(ctx, userID)
	if err != nil {
		return Status{}, errors.Wrap(err, "get subscriber")
	}
	if sub == nil || !sub.ActiveOn(s.Today()) {
		return Status{}, nil
	}
	return Status{Active: true, Until: sub.SubscriptionEnd}, nil
}

func (s *Service) Extend(ctx context.Context, userID int64, months int) (*Subscriber, error) {
	if !ValidMonths(months) {
		return nil, ErrInvalidMonths
	}

	sub, err := s.storage.ExtendSubscription(ctx, userID, months, s.Today())
	if err != nil {
		return nil, errors.Wrapf(err, "extend subscription for %d", userID)
	}
	return sub, nil
}

// EndingIn подписчики, у которых срок заканчивается ровно через days дней.
func (s *Service) EndingIn(ctx context.Context, days int) ([]*Subscriber, error) {
	subs, err := s.storage.ListSubscribersEndingOn(ctx, s.Today(), days)
	if err != nil {
		return nil, errors.Wrapf(err, "list subscribers ending in %d days", days)
	}
	return subs, nil
}

// Expired подписчики с датой окончания сегодня или раньше.
func (s *Service) Expired(ctx context.Context) ([]*Subscriber, error) {
	subs, err := s.storage.ListExpiredSubscribers(ctx, s.Today())
	if err != nil {
		return nil, errors.Wrap(err, "list expired subscribers")
	}
	return subs, nil
}

func (s *Service) Remove(ctx context.Context, userID int64) error {
	return errors.Wrapf(s.storage.DeleteSubscriber(ctx, userID), "delete subscriber %d", userID)
}

// Import записывает даты окончания как есть, пачками по batchSize строк, каждая в своей транзакции.
// Возвращает число записанных строк: при ошибке уже записанные пачки остаются.
func (s *Service) Import(ctx context.Context, rows []Subscriber, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(rows)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var imported int
	for _, batch := range lo.Chunk(rows, batchSize) {
		if err := s.storage.ImportSubscribers(ctx, batch); err != nil {
			return imported, errors.Wrapf(err, "import subscribers after %d rows", imported)
		}
		imported += len(batch)
	}
	return imported, nil
}
