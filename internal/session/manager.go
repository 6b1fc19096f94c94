// Package session is the Session Manager (spec.md §4.12): in-memory,
// process-local playback sessions. A session is created on playback start,
// updated on each progress ping, and closed either explicitly or by an idle
// janitor. Nothing here is persisted; a process restart drops all sessions,
// matching the port's contract that the Session Manager is not a
// source-of-truth store, only a live-state cache.
package session

import (
	"context"
	"sync"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/domain/ports"
	"mediavault/internal/metrics"

	"github.com/google/uuid"
)

// idleTimeout is how long a session may go without a progress ping before
// the janitor reaps it. Updates arrive at most once per second per player,
// so this comfortably tolerates a missed ping or two.
const idleTimeout = 60 * time.Second

// janitorInterval is how often the reaper sweeps for idle sessions.
const janitorInterval = 15 * time.Second

// Manager implements ports.SessionManager. Unlike the teacher's
// PlayerSettingsManager, which guards a handful of scalar fields for a
// single active torrent focus, Manager guards a map keyed by session ID —
// the same mutex-guarded-state shape, generalized from one slot to many and
// paired with a background sweep, since sessions here end by timeout as
// often as by explicit Stop.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session

	now func() time.Time
}

var _ ports.SessionManager = (*Manager)(nil)

// New constructs a Manager and starts its idle janitor, which stops when
// ctx is cancelled.
func New(ctx context.Context) *Manager {
	m := &Manager{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
	go m.runJanitor(ctx)
	return m
}

// Start creates a new session for a just-begun playback and registers it.
func (m *Manager) Start(itemID, mediaFileID string, route domain.Route) *domain.Session {
	s := domain.NewSession(context.Background(), uuid.NewString(), itemID, mediaFileID, route)

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return s
}

// Progress records a position update and refreshes the session's idle
// clock. Returns domain.NotFound if sessionID is unknown (e.g. already
// reaped).
func (m *Manager) Progress(sessionID string, positionTicks int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.NotFound(nil)
	}
	s.PositionTicks = positionTicks
	s.LastPingAt = m.now()
	return nil
}

// Stop closes and removes a session explicitly (the player sent a stop
// event rather than going idle).
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return domain.NotFound(nil)
	}
	s.Cancel()
	metrics.ActiveSessions.Set(float64(count))
	return nil
}

// Get returns the session for sessionID, if still active.
func (m *Manager) Get(sessionID string) (*domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// List returns a snapshot of all currently active sessions.
func (m *Manager) List() []*domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

// reapIdle removes and cancels every session whose last ping is older than
// idleTimeout, returning how many it reaped.
func (m *Manager) reapIdle() int {
	now := m.now()

	m.mu.Lock()
	var stale []*domain.Session
	for id, s := range m.sessions {
		if s.Idle(now, idleTimeout) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		s.Cancel()
	}
	if n := len(stale); n > 0 {
		metrics.SessionsExpiredTotal.Add(float64(n))
	}
	metrics.ActiveSessions.Set(float64(count))
	return len(stale)
}
