package storage

import (
	"context"
	"fmt"
	"time"

	"channel-subs-bot/internal/stories/settlement"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const failedSettlementsTable = "failed_settlements"

var failedSettlementRowFields = fields(failedSettlementRow{})

type failedSettlementRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    int64     `db:"user_id"`
	Months    int       `db:"months"`
	FailedAt  time.Time `db:"failed_at"`
	Attempts  int       `db:"attempts"`
	LastError string    `db:"last_error"`
}

func (r failedSettlementRow) ToModel() settlement.FailedSettlement {
	return settlement.FailedSettlement{
		ID:        r.ID,
		UserID:    r.UserID,
		Months:    r.Months,
		FailedAt:  r.FailedAt.UTC(),
		Attempts:  r.Attempts,
		LastError: r.LastError,
	}
}

// SaveFailedSettlement вставляет запись или обновляет счётчик попыток и последнюю ошибку.
func (s *storageImpl) SaveFailedSettlement(ctx context.Context, item settlement.FailedSettlement) error {
	q, args, err := s.stmpBuilder().
		Insert(failedSettlementsTable).
		Columns("id", "user_id", "months", "failed_at", "attempts", "last_error").
		Values(item.ID, item.UserID, item.Months, item.FailedAt.UTC(), item.Attempts, item.LastError).
		Suffix("ON CONFLICT (id) DO UPDATE SET attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error").
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}

func (s *storageImpl) ListFailedSettlements(ctx context.Context) ([]settlement.FailedSettlement, error) {
	q, args, err := s.stmpBuilder().
		Select(failedSettlementRowFields).
		From(failedSettlementsTable).
		OrderBy("failed_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []failedSettlementRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]settlement.FailedSettlement, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.ToModel())
	}

	return result, nil
}

func (s *storageImpl) DeleteFailedSettlement(ctx context.Context, id uuid.UUID) error {
	q, args, err := s.stmpBuilder().
		Delete(failedSettlementsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("db.ExecContext: %w", err)
	}

	return nil
}
