package subscribers

import "time"

const (
	MinMonths = 1
	MaxMonths = 12

	// DateLayout формат календарной даты в реестре.
	DateLayout = "2006-01-02"
)

// Subscriber строка реестра подписок. SubscriptionEnd это календарная дата:
// полночь UTC, время суток не несёт смысла.
type Subscriber struct {
	UserID          int64
	SubscriptionEnd time.Time
}

// ActiveOn подписка действует включительно по SubscriptionEnd.
func (s Subscriber) ActiveOn(today time.Time) bool {
	return !s.SubscriptionEnd.Before(today)
}

type Status struct {
	Active bool
	Until  time.Time
}

// Date возвращает календарный день момента t в зоне loc.
func Date(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func ValidMonths(months int) bool {
	return months >= MinMonths && months <= MaxMonths
}
