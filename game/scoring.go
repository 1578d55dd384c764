package game

import (
	"time"

	"github.com/quizhive/api/domain"
)

// DifficultyPoints is the (correct, wrong) score pair for one tier. The
// table is inverse-correlated: hard questions pay more and punish less, so
// expected value stays comparable while risk-taking on hard tiers pays off.
type DifficultyPoints struct {
	Correct int
	Wrong   int
}

var defaultDifficultyPoints = map[Difficulty]DifficultyPoints{
	DifficultyEasy:   {Correct: 100, Wrong: -50},
	DifficultyMedium: {Correct: 200, Wrong: -40},
	DifficultyHard:   {Correct: 400, Wrong: -25},
}

func PointsFor(difficulty Difficulty) DifficultyPoints {
	if pts, ok := defaultDifficultyPoints[difficulty]; ok {
		return pts
	}
	return defaultDifficultyPoints[DifficultyMedium]
}

type GuessOutcome int

const (
	OutcomeRejected GuessOutcome = iota
	OutcomeWinner
	OutcomeCorrectButSlow
	OutcomeWrong
)

// GuessResult carries the score delta for one accepted guess. Deltas only:
// the caller owns the sequence-scoped running totals.
type GuessResult struct {
	Outcome GuessOutcome
	Delta   int
	// WrongGuessCount is the player's running wrong-guess count for this
	// round after the guess, for callers applying escalating-penalty
	// policies. The base design never rescales the penalty.
	WrongGuessCount int
}

type guessAttempt struct {
	playerId    string
	optionIndex int
	acceptedAt  time.Time
}

// QuestionRound is one in-flight question. It is owned by a single sequence
// runner; RecordGuess is deterministic over the round state it is handed.
type QuestionRound struct {
	Question domain.Question
	Points   DifficultyPoints
	OpensAt  time.Time
	ClosesAt time.Time

	attempts    []guessAttempt
	triedOption map[string]map[int]bool
	wrongCount  map[string]int
	barred      map[string]bool
	winnerId    string
}

func NewQuestionRound(question domain.Question, points DifficultyPoints, opensAt, closesAt time.Time) *QuestionRound {
	return &QuestionRound{
		Question:    question,
		Points:      points,
		OpensAt:     opensAt,
		ClosesAt:    closesAt,
		triedOption: make(map[string]map[int]bool),
		wrongCount:  make(map[string]int),
		barred:      make(map[string]bool),
	}
}

func (r *QuestionRound) WinnerId() string { return r.winnerId }

func (r *QuestionRound) HasWinner() bool { return r.winnerId != "" }

// Bar excludes a player from scoring this round (anti-cheat). The bar does
// not carry into later rounds.
func (r *QuestionRound) Bar(playerId string) { r.barred[playerId] = true }

func (r *QuestionRound) IsBarred(playerId string) bool { return r.barred[playerId] }

// Closed reports whether the round accepts no further guesses: a winner
// exists or the answer deadline has passed.
func (r *QuestionRound) Closed(now time.Time) bool {
	return r.winnerId != "" || !now.Before(r.ClosesAt)
}

// RecordGuess scores one guess at the moment the coordinator accepted it.
// First correct guess in acceptance order wins; later correct guesses earn a
// distinguished zero-delta outcome. A player never retries an option, and a
// barred player cannot score. Rejections are silent no-ops, they are
// expected races rather than errors.
func (r *QuestionRound) RecordGuess(playerId string, optionIndex int, acceptedAt time.Time) GuessResult {
	rejected := GuessResult{Outcome: OutcomeRejected, WrongGuessCount: r.wrongCount[playerId]}

	if r.barred[playerId] {
		return rejected
	}
	if acceptedAt.Before(r.OpensAt) || !acceptedAt.Before(r.ClosesAt) {
		return rejected
	}
	if optionIndex < 0 || optionIndex >= len(r.Question.Options) {
		return rejected
	}
	if r.triedOption[playerId][optionIndex] {
		return rejected
	}

	wrong := optionIndex != r.Question.CorrectIndex
	if wrong && r.winnerId != "" {
		// round already decided; no late penalties
		return rejected
	}

	if r.triedOption[playerId] == nil {
		r.triedOption[playerId] = make(map[int]bool)
	}
	r.triedOption[playerId][optionIndex] = true
	r.attempts = append(r.attempts, guessAttempt{playerId: playerId, optionIndex: optionIndex, acceptedAt: acceptedAt})

	if !wrong {
		if r.winnerId == "" {
			r.winnerId = playerId
			return GuessResult{Outcome: OutcomeWinner, Delta: r.Points.Correct, WrongGuessCount: r.wrongCount[playerId]}
		}
		// correct but someone was accepted first: distinguished, zero bonus
		return GuessResult{Outcome: OutcomeCorrectButSlow, Delta: 0, WrongGuessCount: r.wrongCount[playerId]}
	}

	r.wrongCount[playerId]++
	return GuessResult{Outcome: OutcomeWrong, Delta: r.Points.Wrong, WrongGuessCount: r.wrongCount[playerId]}
}
