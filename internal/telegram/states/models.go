package states

type State string

const (
	StateIdle      State = "idle"
	StateMenuShown State = "menu_shown"

	// user buy sub states
	StateAwaitingMonths  State = "ubs_wt_months"
	StateMonthsConfirmed State = "ubs_wt_payment"
)

const defaultMonths = 1

// Session данные диалога покупки одного пользователя.
type Session struct {
	State               State
	Months              int
	AwaitingMonthsInput bool
}

// Idle сессия без диалога. Отсутствующая сессия читается как Idle.
func Idle() Session {
	return Session{State: StateIdle, Months: defaultMonths}
}

// MenuShown сессия после /start или любого перезапуска.
func MenuShown() Session {
	return Session{State: StateMenuShown, Months: defaultMonths}
}

func (s Session) normalize() Session {
	if s.State == "" {
		s.State = StateIdle
	}
	if s.Months <= 0 {
		s.Months = defaultMonths
	}
	return s
}
