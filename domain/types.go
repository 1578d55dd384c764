package domain

import "time"

type User struct {
	Id           string
	Username     string
	PasswordHash string
}

// Question is one entry from the question bank. CorrectIndex must never
// reach a client before the reveal.
type Question struct {
	Id           string
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
	Difficulty   string
}

// StandingDelta is one player's final score for a finished set, flushed to
// the leaderboard store. Writes are idempotent per (SequenceId, UserId).
type StandingDelta struct {
	UserId     string
	Delta      int
	Period     string
	SequenceId string
}

// BadgeEvent is an earned-badge notification for the badge issuer.
// Delivery is at-least-once; consumers dedupe on (UserId, BadgeId, SequenceId).
type BadgeEvent struct {
	UserId     string    `json:"userId"`
	BadgeId    string    `json:"badgeId"`
	SequenceId string    `json:"sequenceId"`
	EarnedAt   time.Time `json:"earnedAt"`
}
