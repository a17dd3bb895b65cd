package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"channel-subs-bot/internal/infra/postgres"
	"channel-subs-bot/internal/infra/sqlite3"
	"channel-subs-bot/internal/migrations"
	"channel-subs-bot/internal/storage"
	"channel-subs-bot/internal/stories/subscribers"
)

const batchSize = 500

// Форматы дат, которые встречаются в выгрузках.
var dateFormats = []string{
	subscribers.DateLayout,
	"02.01.2006",
	"2.1.2006",
}

func main() {
	dsn := flag.String("dsn", os.Getenv("DB_DSN"), "ledger DSN (defaults to DB_DSN)")
	driver := flag.String("driver", envOr("DB_DRIVER", migrations.DriverPostgres), "ledger driver: postgres or sqlite3")
	csvPath := flag.String("csv", "./subscribers.csv", "path to CSV with user_id,subscription_end rows")
	dryRun := flag.Bool("dry-run", false, "show what would be imported without writing to DB")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("DSN is required: -dsn <dsn>")
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *csvPath, err)
	}
	defer file.Close()

	rows, skipped, err := readSubscribers(file)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *csvPath, err)
	}

	if *dryRun {
		for _, row := range rows {
			fmt.Printf("  DRY: user=%d, subscription_end=%s\n", row.UserID, row.SubscriptionEnd.Format(subscribers.DateLayout))
		}
		fmt.Printf("\nRows: %d, Skipped: %d\n", len(rows), skipped)
		fmt.Println("\n(DRY RUN - nothing was written to database)")
		return
	}

	ctx := context.Background()

	db, err := openLedger(ctx, *driver, *dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db.DB, *driver); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Даты пишутся как есть, часовой пояс сервиса не участвует
	ledger := subscribers.NewService(storage.New(db, *driver), time.UTC)

	imported, err := ledger.Import(ctx, rows, batchSize)
	if err != nil {
		log.Fatalf("import stopped after %d rows: %v", imported, err)
	}

	fmt.Printf("\n=== TOTAL ===\n")
	fmt.Printf("Imported: %d\n", imported)
	fmt.Printf("Skipped: %d\n", skipped)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openLedger(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case migrations.DriverSQLite3:
		db, err := sqlite3.New(ctx, sqlite3.WithDSN(dsn))
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	case migrations.DriverPostgres:
		db, err := postgres.New(ctx, postgres.WithDSN(dsn))
		if err != nil {
			return nil, err
		}
		return db.DB, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// readSubscribers разбирает CSV user_id,subscription_end. Строка заголовка и битые строки
// пропускаются, при повторе user_id побеждает последняя строка.
func readSubscribers(r io.Reader) ([]subscribers.Subscriber, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		rows    []subscribers.Subscriber
		index   = make(map[int64]int)
		skipped int
		line    int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		line++

		if len(record) < 2 {
			fmt.Printf("  SKIP row %d: expected 2 columns, got %d\n", line, len(record))
			skipped++
			continue
		}

		userID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil || userID <= 0 {
			// Заголовок не считаем пропуском
			if line > 1 {
				fmt.Printf("  SKIP row %d: invalid user_id '%s'\n", line, record[0])
				skipped++
			}
			continue
		}

		end, err := parseDate(record[1])
		if err != nil {
			fmt.Printf("  SKIP row %d: invalid subscription_end '%s': %v\n", line, record[1], err)
			skipped++
			continue
		}

		row := subscribers.Subscriber{UserID: userID, SubscriptionEnd: end}
		if i, ok := index[userID]; ok {
			rows[i] = row
			continue
		}
		index[userID] = len(rows)
		rows = append(rows, row)
	}

	return rows, skipped, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, format := range dateFormats {
		t, err := time.ParseInLocation(format, s, time.UTC)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse date: %s", s)
}
