package storage

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"channel-subs-bot/internal/stories/subscribers"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite3  = "sqlite3"
)

type storageImpl struct {
	db      *sqlx.DB
	dialect string
}

func New(db *sqlx.DB, dialect string) *storageImpl {
	return &storageImpl{db: db, dialect: dialect}
}

func (s *storageImpl) stmpBuilder() sq.StatementBuilderType {
	if s.dialect == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// dateArg в Postgres уходит time.Time (колонка DATE), в SQLite строка YYYY-MM-DD (колонка TEXT).
func (s *storageImpl) dateArg(t time.Time) any {
	if s.dialect == DialectPostgres {
		return t
	}
	return t.Format(subscribers.DateLayout)
}

// Fields возвращает список всех полей структуры, которые есть в БД.
func fields(data any) string {
	var s string
	r := reflect.TypeOf(data)
	for i := 0; i < r.NumField(); i++ {
		tag := r.Field(i).Tag.Get("db")
		if tag != "" {
			s += tag + ","
		}
	}
	return s[:len(s)-1]
}

// dateValue читает календарную дату независимо от того, что вернул драйвер.
type dateValue struct {
	time.Time
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
}

func (d *dateValue) parse(s string) error {
	if len(s) > len(subscribers.DateLayout) {
		s = s[:len(subscribers.DateLayout)]
	}
	t, err := subscribers.ParseDate(s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d dateValue) Value() (driver.Value, error) {
	return d.Format(subscribers.DateLayout), nil
}
