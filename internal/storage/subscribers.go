package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"channel-subs-bot/internal/stories/subscribers"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const subscribersTable = "subscribers"

var subscriberRowFields = fields(subscriberRow{})

type subscriberRow struct {
	UserID          int64     `db:"user_id"`
	SubscriptionEnd dateValue `db:"subscription_end"`
}

func (r subscriberRow) ToModel() *subscribers.Subscriber {
	return &subscribers.Subscriber{
		UserID:          r.UserID,
		SubscriptionEnd: r.SubscriptionEnd.Time,
	}
}

func (s *storageImpl) GetSubscriber(ctx context.Context, userID int64) (*subscribers.Subscriber, error) {
	q, args, err := s.stmpBuilder().
		Select(subscriberRowFields).
		From(subscribersTable).
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row subscriberRow
	err = s.db.GetContext(ctx, &row, q, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}

// ExtendSubscription продлевает подписку одним upsert-запросом, без чтения перед записью.
// Две параллельные оплаты одного пользователя сложатся, а не перезапишут друг друга.
func (s *storageImpl) ExtendSubscription(ctx context.Context, userID int64, months int, today time.Time) (*subscribers.Subscriber, error) {
	todayArg := s.dateArg(today)

	query := s.stmpBuilder().
		Insert(subscribersTable).
		Columns("user_id", "subscription_end")

	switch s.dialect {
	case DialectPostgres:
		query = query.
			Values(userID, sq.Expr("(?::date + make_interval(months => ?))::date", todayArg, months)).
			Suffix(`ON CONFLICT (user_id) DO UPDATE SET subscription_end = CASE
				WHEN subscribers.subscription_end > ?::date
				THEN (subscribers.subscription_end + make_interval(months => ?))::date
				ELSE EXCLUDED.subscription_end END
				RETURNING `+subscriberRowFields, todayArg, months)
	default:
		query = query.
			Values(userID, sq.Expr("date(?, '+' || ? || ' months')", todayArg, months)).
			Suffix(`ON CONFLICT (user_id) DO UPDATE SET subscription_end = CASE
				WHEN subscribers.subscription_end > ?
				THEN date(subscribers.subscription_end, '+' || ? || ' months')
				ELSE excluded.subscription_end END
				RETURNING `+subscriberRowFields, todayArg, months)
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row subscriberRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	return row.ToModel(), nil
}

func (s *storageImpl) DeleteSubscriber(ctx context.Context, userID int64) error {
	q, args, err := s.stmpBuilder().
		Delete(subscribersTable).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

// ListSubscribersEndingOn ищет точное совпадение end = today + days. Арифметика дат на стороне БД.
func (s *storageImpl) ListSubscribersEndingOn(ctx context.Context, today time.Time, days int) ([]*subscribers.Subscriber, error) {
	var cond sq.Sqlizer
	switch s.dialect {
	case DialectPostgres:
		cond = sq.Expr("subscription_end = ?::date + ?::int", s.dateArg(today), days)
	default:
		cond = sq.Expr("subscription_end = date(?, '+' || ? || ' days')", s.dateArg(today), days)
	}

	return s.listSubscribers(ctx, cond)
}

func (s *storageImpl) ListExpiredSubscribers(ctx context.Context, today time.Time) ([]*subscribers.Subscriber, error) {
	return s.listSubscribers(ctx, sq.LtOrEq{"subscription_end": s.dateArg(today)})
}

func (s *storageImpl) listSubscribers(ctx context.Context, cond sq.Sqlizer) ([]*subscribers.Subscriber, error) {
	q, args, err := s.stmpBuilder().
		Select(subscriberRowFields).
		From(subscribersTable).
		Where(cond).
		OrderBy("user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []subscriberRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*subscribers.Subscriber, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ToModel())
	}

	return result, nil
}

// ImportSubscribers записывает даты окончания как есть, в одной транзакции.
func (s *storageImpl) ImportSubscribers(ctx context.Context, rows []subscribers.Subscriber) error {
	return WithTx(s.db, nil)(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			q, args, err := s.stmpBuilder().
				Insert(subscribersTable).
				Columns("user_id", "subscription_end").
				Values(row.UserID, s.dateArg(row.SubscriptionEnd)).
				Suffix("ON CONFLICT (user_id) DO UPDATE SET subscription_end = EXCLUDED.subscription_end").
				ToSql()
			if err != nil {
				return fmt.Errorf("build sql query: %w", err)
			}

			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("import subscriber %d: %w", row.UserID, err)
			}
		}
		return nil
	})
}
