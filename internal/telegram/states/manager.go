package states

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	session   Session
	expiresAt time.Time
}

// Manager хранит сессии в памяти процесса. После рестарта все пользователи в Idle.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]entry
	ttl      time.Duration
	now      func() time.Time
}

// NewManager создает новый менеджер состояний. ttl <= 0 отключает устаревание.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[int64]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Manager) Get(_ context.Context, userID int64) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, exists := m.sessions[userID]
	if !exists || (m.ttl > 0 && m.now().After(e.expiresAt)) {
		return Idle(), nil
	}
	return e.session, nil
}

func (m *Manager) Save(_ context.Context, userID int64, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[userID] = entry{
		session:   session.normalize(),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *Manager) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}

// Sweep удаляет устаревшие сессии, возвращает сколько удалено.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
