package game

import (
	"log/slog"
	"sync"
	"time"
)

type sessionRecord struct {
	sessionId string
	origin    string
	expiry    time.Time
}

// PresenceGuard enforces one live session per user. Newest login always
// wins: activating over a live record signals the old holder for eviction
// and overwrites. Shared-origin detection is advisory telemetry only, since
// NAT and campus networks produce false positives.
type PresenceGuard struct {
	locker sync.Mutex
	ttl    time.Duration
	byUser map[string]sessionRecord
	now    func() time.Time
}

type Activation struct {
	DuplicateSession bool
	DuplicateOrigin  bool
	// EvictedSessionId is the session to send the one-shot kicked
	// notification to, when DuplicateSession is set.
	EvictedSessionId string
}

func NewPresenceGuard(ttl time.Duration) *PresenceGuard {
	return &PresenceGuard{
		ttl:    ttl,
		byUser: make(map[string]sessionRecord),
		now:    time.Now,
	}
}

func (g *PresenceGuard) AttemptActivate(userId, sessionId, origin string) Activation {
	g.locker.Lock()
	defer g.locker.Unlock()

	now := g.now()
	result := Activation{}

	if prev, ok := g.byUser[userId]; ok && prev.expiry.After(now) && prev.sessionId != sessionId {
		result.DuplicateSession = true
		result.EvictedSessionId = prev.sessionId
	}

	for otherId, record := range g.byUser {
		if otherId == userId || !record.expiry.After(now) {
			continue
		}
		if record.origin == origin {
			result.DuplicateOrigin = true
			slog.Warn("presence: shared origin address", "user", userId, "other", otherId, "origin", origin)
			break
		}
	}

	g.byUser[userId] = sessionRecord{sessionId: sessionId, origin: origin, expiry: now.Add(g.ttl)}
	return result
}

// Deactivate drops the record, but only if the given session still holds
// it. A stale deactivate from an evicted session must not kill the new one.
func (g *PresenceGuard) Deactivate(userId, sessionId string) {
	g.locker.Lock()
	defer g.locker.Unlock()

	if record, ok := g.byUser[userId]; ok && record.sessionId == sessionId {
		delete(g.byUser, userId)
	}
}

// ActiveSession returns the live session id for a user, if any. Expired
// records are inert.
func (g *PresenceGuard) ActiveSession(userId string) (string, bool) {
	g.locker.Lock()
	defer g.locker.Unlock()

	record, ok := g.byUser[userId]
	if !ok || !record.expiry.After(g.now()) {
		return "", false
	}
	return record.sessionId, true
}
