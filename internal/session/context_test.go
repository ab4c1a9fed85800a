package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantorbot/cantor/pkg/models"
)

func TestContext_RememberAndLookup(t *testing.T) {
	m, _ := testManager(time.Hour)

	m.RememberContext("u1", []string{"grace", "hope"}, models.IntentSearch)

	c, ok := m.LookupContext("u1")
	require.True(t, ok)
	assert.Equal(t, []string{"grace", "hope"}, c.Themes)
	assert.Equal(t, models.IntentSearch, c.Intent)
}

func TestContext_AbsentUser(t *testing.T) {
	m, _ := testManager(time.Hour)

	_, ok := m.LookupContext("nobody")
	assert.False(t, ok)
}

func TestContext_EmptyThemesRefreshWithoutClobbering(t *testing.T) {
	m, now := testManager(time.Hour)

	m.RememberContext("u1", []string{"grace"}, models.IntentSearch)

	*now = now.Add(45 * time.Minute)
	m.RememberContext("u1", nil, models.IntentMore)

	*now = now.Add(45 * time.Minute)
	c, ok := m.LookupContext("u1")
	require.True(t, ok, "refresh should have slid the window")
	assert.Equal(t, []string{"grace"}, c.Themes)
	assert.Equal(t, models.IntentSearch, c.Intent)
}

func TestContext_ExpiresAfterTTL(t *testing.T) {
	m, now := testManager(time.Hour)

	m.RememberContext("u1", []string{"grace"}, models.IntentSearch)

	*now = now.Add(time.Hour)
	_, ok := m.LookupContext("u1")
	assert.False(t, ok)
}

func TestContext_SnapshotIsolation(t *testing.T) {
	m, _ := testManager(time.Hour)

	m.RememberContext("u1", []string{"grace"}, models.IntentSearch)

	c, _ := m.LookupContext("u1")
	c.Themes[0] = "tampered"

	again, _ := m.LookupContext("u1")
	assert.Equal(t, []string{"grace"}, again.Themes)
}

func TestSweep_RemovesExpiredContexts(t *testing.T) {
	m, now := testManager(time.Hour)

	m.RememberContext("stale", []string{"grace"}, models.IntentSearch)

	*now = now.Add(2 * time.Hour)
	m.RememberContext("fresh", []string{"joy"}, models.IntentSearch)
	m.Sweep()

	_, ok := m.LookupContext("stale")
	assert.False(t, ok)
	_, ok = m.LookupContext("fresh")
	assert.True(t, ok)
}
