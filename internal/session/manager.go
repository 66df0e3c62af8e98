package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bassista/go_gallery/internal/gallery"
	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
)

// Manager owns the bounded table of live sessions. The least recently used session
// is evicted and torn down when the table is full.
type Manager struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
	views    *gallery.Service
}

func NewManager(maxSessions int, views *gallery.Service) (*Manager, error) {
	sessions, err := lru.NewWithEvict[string, *Session](maxSessions, func(id string, s *Session) {
		go s.Unmount()
		logger.WithSession("session", id).Debug("session evicted")
	})
	if err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &Manager{sessions: sessions, views: views}, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return m.sessions.Get(id)
}

// Ensure returns the session id names, creating a fresh one under a new id when id
// is empty or unknown. created reports whether a new session was made.
func (m *Manager) Ensure(id string) (s *Session, created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Get(id); ok {
		return s, false, nil
	}
	newID, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	s = newSession(newID.String(), m.views)
	m.sessions.Add(s.id, s)
	return s, true, nil
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Watch forwards invalidation events to the sessions they affect until events closes.
func (m *Manager) Watch(ctx context.Context, events <-chan invalidation.Event) {
	log := logger.WithComponent("session")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n := 0
			for _, id := range m.sessions.Keys() {
				if s, ok := m.sessions.Peek(id); ok && s.Notify(ev) {
					n++
				}
			}
			if n > 0 {
				log.Debugf("invalidation touched %d sessions", n)
			}
		}
	}
}
