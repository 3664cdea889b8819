package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store persists sessions. Get returns ErrNotFound for missing or expired ids.
// Returned sessions are copies; callers write back with Save.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

const maxSessionAge = 24 * time.Hour

// MemoryStore keeps sessions in process memory. Sessions idle longer than
// the TTL, or older than 24 hours, are dropped by the cleanup routine and are
// invisible to Get in the meantime.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

type memoryEntry struct {
	data         []byte
	createdAt    time.Time
	lastActivity time.Time
}

func NewMemoryStore(ttl time.Duration, log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("module", "session").Logger(),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || m.expired(entry, m.now()) {
		return nil, ErrNotFound
	}

	var s Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = memoryEntry{data: data, createdAt: s.CreatedAt, lastActivity: s.LastActivity}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpired - 만료/비활성 세션 정리
func (m *MemoryStore) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cleaned := 0
	for id, entry := range m.sessions {
		if m.expired(entry, now) {
			delete(m.sessions, id)
			cleaned++
			m.log.Debug().Str("session", id).Dur("age", now.Sub(entry.createdAt)).Msg("⏰ Cleaned up session")
		}
	}
	if cleaned > 0 {
		m.log.Info().Int("cleaned", cleaned).Int("active", len(m.sessions)).Msg("🧼 Cleaned up expired/inactive sessions")
	}
	return cleaned
}

func (m *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	if now.Sub(e.createdAt) > maxSessionAge {
		return true
	}
	return m.ttl > 0 && now.Sub(e.lastActivity) > m.ttl
}
