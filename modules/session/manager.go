package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher receives every session mutation.
type Publisher interface {
	Publish(ev Event)
}

// Manager serialises read-modify-write cycles per session id on top of a
// Store and publishes the result.
type Manager struct {
	store Store
	pub   Publisher
	locks sync.Map // id -> *sync.Mutex
	now   func() time.Time
	log   zerolog.Logger
}

// NewManager - pub은 nil 허용
func NewManager(store Store, pub Publisher, log zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		pub:   pub,
		now:   time.Now,
		log:   log.With().Str("module", "session").Logger(),
	}
}

// Create starts a fresh session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := newSession(uuid.NewString(), m.now().UTC())
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info().Str("session", s.ID).Msg("✅ Created new session")
	return s, nil
}

// Get loads a session without touching it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return m.store.Get(ctx, id)
}

// Update applies fn under the session's lock and saves the result when fn
// succeeds. A failing fn leaves the stored session untouched.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	mu := m.lock(id)
	mu.Lock()
	defer mu.Unlock()

	s, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		m.locks.Delete(id)
	}
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.LastActivity = m.now().UTC()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}

	if m.pub != nil {
		m.pub.Publish(Event{Type: "session_updated", SessionID: id, Session: s})
	}
	return s, nil
}

// Delete discards a session. Deleting an unknown id is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.locks.Delete(id)
	if m.pub != nil {
		m.pub.Publish(Event{Type: "session_deleted", SessionID: id})
	}
	m.log.Info().Str("session", id).Msg("🗑️  Session deleted")
	return nil
}

func (m *Manager) lock(id string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// sweeper is implemented by stores that need an explicit expiry pass.
type sweeper interface {
	CleanupExpired() int
}

// CleanupExpired sweeps the store when it needs it and forgets the locks of
// sessions the store no longer holds. Redis expires keys itself, so only the
// lock table is pruned there.
func (m *Manager) CleanupExpired() int {
	cleaned := 0
	if sw, ok := m.store.(sweeper); ok {
		cleaned = sw.CleanupExpired()
	}
	m.pruneLocks(context.Background())
	return cleaned
}

func (m *Manager) pruneLocks(ctx context.Context) {
	pruned := 0
	m.locks.Range(func(key, _ any) bool {
		id := key.(string)
		if _, err := m.store.Get(ctx, id); errors.Is(err, ErrNotFound) {
			m.locks.Delete(id)
			pruned++
		}
		return true
	})
	if pruned > 0 {
		m.log.Debug().Int("pruned", pruned).Msg("🔓 Dropped locks of expired sessions")
	}
}

// StartCleanupRoutine runs CleanupExpired every interval until ctx is done.
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupExpired()
			}
		}
	}()
	m.log.Info().Dur("interval", interval).Msg("🔄 Started session cleanup routine")
}
