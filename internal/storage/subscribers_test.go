package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"channel-subs-bot/internal/migrations"
	"channel-subs-bot/internal/stories/subscribers"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := subscribers.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newSQLiteStorage(t *testing.T) *storageImpl {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Run(db.DB, migrations.DriverSQLite3))

	return New(db, DialectSQLite3)
}

// ledgerCases общие сценарии для обоих диалектов.
func runLedgerCases(t *testing.T, newStorage func(t *testing.T) *storageImpl) {
	ctx := context.Background()
	today := date("2026-03-05")

	t.Run("get missing subscriber", func(t *testing.T) {
		s := newStorage(t)

		sub, err := s.GetSubscriber(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	extendTests := []struct {
		name     string
		existing string
		months   int
		expected string
	}{
		{name: "fresh payment starts from today", months: 2, expected: "2026-05-05"},
		{name: "future end is extended", existing: "2026-04-10", months: 1, expected: "2026-05-10"},
		{name: "past end restarts from today", existing: "2026-02-01", months: 2, expected: "2026-05-05"},
		{name: "end equal to today restarts from today", existing: "2026-03-05", months: 1, expected: "2026-04-05"},
		{name: "twelve months", months: 12, expected: "2027-03-05"},
	}

	for _, tt := range extendTests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStorage(t)
			if tt.existing != "" {
				require.NoError(t, s.ImportSubscribers(ctx, []subscribers.Subscriber{
					{UserID: 1, SubscriptionEnd: date(tt.existing)},
				}))
			}

			sub, err := s.ExtendSubscription(ctx, 1, tt.months, today)
			require.NoError(t, err)
			assert.Equal(t, int64(1), sub.UserID)
			assert.Equal(t, date(tt.expected), sub.SubscriptionEnd)

			stored, err := s.GetSubscriber(ctx, 1)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, date(tt.expected), stored.SubscriptionEnd)
		})
	}

	t.Run("ending on matches exact day only", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.ImportSubscribers(ctx, []subscribers.Subscriber{
			{UserID: 1, SubscriptionEnd: today.AddDate(0, 0, 1)},
			{UserID: 2, SubscriptionEnd: today.AddDate(0, 0, 2)},
			{UserID: 3, SubscriptionEnd: today.AddDate(0, 0, 3)},
			{UserID: 4, SubscriptionEnd: today.AddDate(0, 0, 4)},
			{UserID: 5, SubscriptionEnd: today},
			{UserID: 6, SubscriptionEnd: today.AddDate(0, 0, 2)},
		}))

		for days, expected := range map[int][]int64{1: {1}, 2: {2, 6}, 3: {3}, 5: {}} {
			subs, err := s.ListSubscribersEndingOn(ctx, today, days)
			require.NoError(t, err)

			ids := make([]int64, 0, len(subs))
			for _, sub := range subs {
				ids = append(ids, sub.UserID)
			}
			assert.Equal(t, expected, ids, "days=%d", days)
		}
	})

	t.Run("ending on crosses month boundary", func(t *testing.T) {
		s := newStorage(t)
		lastDay := date("2026-01-30")
		require.NoError(t, s.ImportSubscribers(ctx, []subscribers.Subscriber{
			{UserID: 7, SubscriptionEnd: date("2026-02-02")},
		}))

		subs, err := s.ListSubscribersEndingOn(ctx, lastDay, 3)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, int64(7), subs[0].UserID)
	})

	t.Run("expired includes today and past", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.ImportSubscribers(ctx, []subscribers.Subscriber{
			{UserID: 1, SubscriptionEnd: today.AddDate(0, 0, -10)},
			{UserID: 2, SubscriptionEnd: today},
			{UserID: 3, SubscriptionEnd: today.AddDate(0, 0, 1)},
		}))

		subs, err := s.ListExpiredSubscribers(ctx, today)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, int64(1), subs[0].UserID)
		assert.Equal(t, int64(2), subs[1].UserID)

		for _, sub := range subs {
			require.NoError(t, s.DeleteSubscriber(ctx, sub.UserID))
		}

		subs, err = s.ListExpiredSubscribers(ctx, today)
		require.NoError(t, err)
		assert.Empty(t, subs)

		remaining, err := s.GetSubscriber(ctx, 3)
		require.NoError(t, err)
		assert.NotNil(t, remaining)
	})

	t.Run("delete missing subscriber is a no-op", func(t *testing.T) {
		s := newStorage(t)
		assert.NoError(t, s.DeleteSubscriber(ctx, 999))
	})

	t.Run("import overwrites end date", func(t *testing.T) {
		s := newStorage(t)
		require.NoError(t, s.ImportSubscribers(ctx, []subscribers.Subscriber{{UserID: 1, SubscriptionEnd: date("2026-06-01")}}))
		require.NoError(t, s.ImportSubscribers(ctx, []subscribers.Subscriber{{UserID: 1, SubscriptionEnd: date("2026-01-01")}}))

		sub, err := s.GetSubscriber(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, date("2026-01-01"), sub.SubscriptionEnd)
	})

	t.Run("concurrent payments accumulate", func(t *testing.T) {
		s := newStorage(t)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.ExtendSubscription(ctx, 1, 1, today)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		sub, err := s.GetSubscriber(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, date("2026-08-05"), sub.SubscriptionEnd)
	})
}

func TestSubscribersSQLite(t *testing.T) {
	runLedgerCases(t, newSQLiteStorage)
}

func TestDateValueScan(t *testing.T) {
	tests := []struct {
		name     string
		src      any
		expected time.Time
		wantErr  bool
	}{
		{name: "string", src: "2026-03-05", expected: date("2026-03-05")},
		{name: "bytes", src: []byte("2026-03-05"), expected: date("2026-03-05")},
		{name: "timestamp string", src: "2026-03-05 00:00:00+00:00", expected: date("2026-03-05")},
		{name: "time drops clock", src: time.Date(2026, 3, 5, 13, 30, 0, 0, time.UTC), expected: date("2026-03-05")},
		{name: "garbage", src: "yesterday", wantErr: true},
		{name: "unsupported type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d dateValue
			err := d.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Time)
		})
	}
}
