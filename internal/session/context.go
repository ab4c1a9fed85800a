package session

import (
	"time"

	"github.com/cantorbot/cantor/pkg/models"
)

// Context is the last parsed query's gist, kept per user independently of
// the session record. Sessions only exist after a search returns results;
// context is remembered for every parsed message, so a "more" after a
// no-result search can still rebuild a query.
type Context struct {
	Themes      []string
	Intent      models.Intent
	LastUpdated time.Time
}

// RememberContext records the themes and intent of the user's latest parsed
// message. Empty theme lists overwrite nothing so a bare "more" does not
// clobber the context it needs.
func (m *Manager) RememberContext(userID string, themes []string, intent models.Intent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.contexts[userID]
	if len(themes) == 0 {
		if ok && !m.contextExpired(existing) {
			existing.LastUpdated = m.now()
		}
		return
	}

	m.contexts[userID] = &Context{
		Themes:      append([]string(nil), themes...),
		Intent:      intent,
		LastUpdated: m.now(),
	}
}

// LookupContext returns a snapshot of the user's live context, or false when
// none exists or it has aged out. Expired contexts are removed.
func (m *Manager) LookupContext(userID string) (*Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[userID]
	if !ok {
		return nil, false
	}
	if m.contextExpired(c) {
		delete(m.contexts, userID)
		return nil, false
	}

	cp := &Context{
		Intent:      c.Intent,
		LastUpdated: c.LastUpdated,
	}
	cp.Themes = append(cp.Themes, c.Themes...)
	return cp, true
}

// contextExpired uses the same sliding window as sessions.
func (m *Manager) contextExpired(c *Context) bool {
	return m.now().Sub(c.LastUpdated) >= m.ttl
}
