// Package session provides per-user conversational state with TTL expiry.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cantorbot/cantor/pkg/models"
)

// CleanupInterval is how often the background sweeper removes expired
// records.
const CleanupInterval = 5 * time.Minute

// State classifies a user's session record.
type State int

const (
	// StateAbsent means the user has never searched (or was swept).
	StateAbsent State = iota
	// StateActive means the record exists and is inside the TTL window.
	StateActive
	// StateExpired means the record exists but the inactivity window has
	// elapsed. Expired records are never resurrected.
	StateExpired
)

// Session is one user's conversational state. It is owned exclusively by
// the Manager; callers receive snapshots.
type Session struct {
	UserID       string
	LastSearch   *models.SearchResult
	ShownTitles  []string
	LastActivity time.Time
}

// Manager owns the session map. All operations are atomic with respect to
// one another; sessions for different users share no mutable state beyond
// the map itself.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	contexts map[string]*Context
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a manager with the given sliding TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		contexts: make(map[string]*Context),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Lookup returns a snapshot of the user's session and its state. An expired
// record is reported as StateExpired exactly once and removed; later
// lookups see StateAbsent.
func (m *Manager) Lookup(userID string) (*Session, State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, StateAbsent
	}
	if m.expired(s) {
		delete(m.sessions, userID)
		return nil, StateExpired
	}
	return snapshot(s), StateActive
}

// StartSearch creates or replaces the user's session for a fresh search:
// the shown-titles set is reset to exactly the titles just returned.
func (m *Manager) StartSearch(userID string, result *models.SearchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	titles := make([]string, 0, len(result.Songs))
	for _, song := range result.Songs {
		titles = append(titles, song.Title)
	}
	m.sessions[userID] = &Session{
		UserID:       userID,
		LastSearch:   result,
		ShownTitles:  titles,
		LastActivity: m.now(),
	}
}

// AppendResults extends the shown-titles set after a successful "more" page
// and refreshes activity. The last search is left untouched; feedback
// addresses positions in the originally shown list. Returns false if the
// session is not active.
func (m *Manager) AppendResults(userID string, titles []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || m.expired(s) {
		return false
	}
	s.ShownTitles = append(s.ShownTitles, titles...)
	s.LastActivity = m.now()
	return true
}

// Touch refreshes the activity timestamp of an active session. The TTL is
// a sliding window over every interaction, not just searches.
func (m *Manager) Touch(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok || m.expired(s) {
		return false
	}
	s.LastActivity = m.now()
	return true
}

// Count returns the number of session records currently held, expired or
// not.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes expired records and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for userID, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, userID)
			removed++
		}
	}
	for userID, c := range m.contexts {
		if m.contextExpired(c) {
			delete(m.contexts, userID)
		}
	}
	return removed
}

// Run sweeps expired sessions on CleanupInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Swept expired sessions")
			}
		}
	}
}

// expired reports whether the session's inactivity window has elapsed. The
// boundary itself counts as expired.
func (m *Manager) expired(s *Session) bool {
	return m.now().Sub(s.LastActivity) >= m.ttl
}

func snapshot(s *Session) *Session {
	cp := &Session{
		UserID:       s.UserID,
		LastSearch:   s.LastSearch,
		LastActivity: s.LastActivity,
	}
	cp.ShownTitles = append(cp.ShownTitles, s.ShownTitles...)
	return cp
}
