package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testGuard() (*PresenceGuard, *time.Time) {
	guard := NewPresenceGuard(time.Hour * 12)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }
	return guard, &now
}

func TestPresence_LastWriterWins(t *testing.T) {
	t.Parallel()
	guard, _ := testGuard()

	first := guard.AttemptActivate("naruto", "session-laptop", "10.0.0.1")
	assert.False(t, first.DuplicateSession)

	// same user, new device: the laptop session is marked for eviction
	second := guard.AttemptActivate("naruto", "session-phone", "10.0.0.2")
	assert.True(t, second.DuplicateSession)
	assert.Equal(t, "session-laptop", second.EvictedSessionId)

	active, ok := guard.ActiveSession("naruto")
	assert.True(t, ok)
	assert.Equal(t, "session-phone", active)
}

func TestPresence_ExpiredSessionIsNotDuplicate(t *testing.T) {
	t.Parallel()
	guard, now := testGuard()

	guard.AttemptActivate("naruto", "session-old", "10.0.0.1")
	*now = now.Add(time.Hour*12 + time.Minute)

	result := guard.AttemptActivate("naruto", "session-new", "10.0.0.1")
	assert.False(t, result.DuplicateSession)
	assert.Empty(t, result.EvictedSessionId)
}

func TestPresence_SharedOriginIsAdvisoryOnly(t *testing.T) {
	t.Parallel()
	guard, _ := testGuard()

	guard.AttemptActivate("naruto", "session-1", "192.168.1.7")
	result := guard.AttemptActivate("sasuke", "session-2", "192.168.1.7")

	// flagged but never refused
	assert.True(t, result.DuplicateOrigin)
	assert.False(t, result.DuplicateSession)

	_, narutoLive := guard.ActiveSession("naruto")
	_, sasukeLive := guard.ActiveSession("sasuke")
	assert.True(t, narutoLive)
	assert.True(t, sasukeLive)
}

func TestPresence_StaleDeactivateKeepsNewSession(t *testing.T) {
	t.Parallel()
	guard, _ := testGuard()

	guard.AttemptActivate("naruto", "session-laptop", "10.0.0.1")
	guard.AttemptActivate("naruto", "session-phone", "10.0.0.2")

	// the evicted laptop connection unwinds late
	guard.Deactivate("naruto", "session-laptop")

	active, ok := guard.ActiveSession("naruto")
	assert.True(t, ok)
	assert.Equal(t, "session-phone", active)

	guard.Deactivate("naruto", "session-phone")
	_, ok = guard.ActiveSession("naruto")
	assert.False(t, ok)
}
