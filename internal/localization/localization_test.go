package localization

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService()
	require.NoError(t, err)
	return s
}

func TestPluralDays(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		lang     string
		n        int
		expected string
	}{
		{"ru", 1, "1 день"},
		{"ru", 2, "2 дня"},
		{"ru", 3, "3 дня"},
		{"ru", 5, "5 дней"},
		{"ru", 11, "11 дней"},
		{"ru", 21, "21 день"},
		{"ru", 22, "22 дня"},
		{"ru", 14, "14 дней"},
		{"en", 1, "1 day"},
		{"en", 3, "3 days"},
		{"de", 2, "2 дня"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, s.Plural(tt.lang, "days", tt.n), "%s/%d", tt.lang, tt.n)
	}
}

func TestReminderText(t *testing.T) {
	s := newTestService(t)

	text := s.Get("ru", "reconcile.reminder", map[string]interface{}{"days": s.Plural("ru", "days", 2)})
	assert.Equal(t, "⏳ Ваша подписка заканчивается через 2 дня! Не забудьте продлить, чтобы не потерять доступ.", text)
}

func TestFormatDate(t *testing.T) {
	s := newTestService(t)
	d := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "5 марта 2026 г.", s.FormatDate("ru", d))
	assert.Equal(t, "March 5, 2026", s.FormatDate("en", d))
}

func TestDateTemplatesEndWithDate(t *testing.T) {
	s := newTestService(t)
	d := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)

	for _, key := range []string{"status.active", "settlement.recorded", "admin.extended"} {
		params := map[string]interface{}{"date": s.FormatDate("ru", d), "user_id": 42}
		text := s.Get("ru", key, params)
		assert.True(t, strings.HasSuffix(text, "5 мая 2026 г."), "%s: %q", key, text)

		params["date"] = s.FormatDate("en", d)
		assert.True(t, strings.HasSuffix(s.Get("en", key, params), "May 5, 2026"), key)
	}
}

func TestGetFallbacks(t *testing.T) {
	s := newTestService(t)

	assert.Equal(t, "Подписка неактивна", s.Get("", "status.inactive", nil))
	assert.Equal(t, "Подписка неактивна", s.Get("fr", "status.inactive", nil))
	assert.Equal(t, "status.unknown", s.Get("ru", "status.unknown", nil))
	assert.Equal(t, "status", s.Get("ru", "status", nil))
}

func TestLanguagesHaveSameKeys(t *testing.T) {
	s := newTestService(t)

	var walk func(prefix string, m map[string]interface{}) []string
	walk = func(prefix string, m map[string]interface{}) []string {
		var keys []string
		for k, v := range m {
			if nested, ok := v.(map[string]interface{}); ok && prefix != "plural." {
				keys = append(keys, walk(prefix+k+".", nested)...)
				continue
			}
			keys = append(keys, prefix+k)
		}
		return keys
	}

	assert.ElementsMatch(t, walk("", s.translations["ru"]), walk("", s.translations["en"]))
}
