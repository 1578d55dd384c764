package game

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/quizhive/api/domain"
)

func makeRound(correctIndex int) (*QuestionRound, time.Time) {
	opensAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	question := domain.Question{
		Id:           "q1",
		Text:         "Which planet is known as the red planet?",
		Options:      []string{"Venus", "Mars", "Jupiter", "Saturn"},
		CorrectIndex: correctIndex,
		Difficulty:   string(DifficultyMedium),
	}
	round := NewQuestionRound(question, PointsFor(DifficultyMedium), opensAt, opensAt.Add(time.Second*15))
	return round, opensAt
}

func TestScoring_FirstCorrectWins(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	first := round.RecordGuess("naruto", 1, opensAt.Add(time.Second))
	second := round.RecordGuess("sasuke", 1, opensAt.Add(time.Second*2))

	assert.Equal(t, OutcomeWinner, first.Outcome)
	assert.Equal(t, 200, first.Delta)
	assert.Equal(t, OutcomeCorrectButSlow, second.Outcome)
	assert.Equal(t, 0, second.Delta)
	assert.Equal(t, "naruto", round.WinnerId())
}

func TestScoring_WrongGuessPenalty(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	result := round.RecordGuess("naruto", 0, opensAt.Add(time.Second))

	assert.Equal(t, OutcomeWrong, result.Outcome)
	assert.Equal(t, -40, result.Delta)
	assert.Equal(t, 1, result.WrongGuessCount)
	assert.False(t, round.HasWinner())
}

func TestScoring_NoOptionRetry(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	round.RecordGuess("naruto", 0, opensAt.Add(time.Second))
	retry := round.RecordGuess("naruto", 0, opensAt.Add(time.Second*2))
	fresh := round.RecordGuess("naruto", 2, opensAt.Add(time.Second*3))

	assert.Equal(t, OutcomeRejected, retry.Outcome)
	assert.Equal(t, OutcomeWrong, fresh.Outcome)
	assert.Equal(t, 2, fresh.WrongGuessCount)
}

func TestScoring_WrongAfterWinnerDropsWithoutPenalty(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	round.RecordGuess("naruto", 1, opensAt.Add(time.Second))
	late := round.RecordGuess("sasuke", 0, opensAt.Add(time.Second*2))

	assert.Equal(t, OutcomeRejected, late.Outcome)
	assert.Equal(t, 0, late.Delta)
}

func TestScoring_WindowEnforced(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	early := round.RecordGuess("naruto", 1, opensAt.Add(-time.Second))
	late := round.RecordGuess("naruto", 1, opensAt.Add(time.Second*15))

	assert.Equal(t, OutcomeRejected, early.Outcome)
	assert.Equal(t, OutcomeRejected, late.Outcome)
	assert.False(t, round.HasWinner())
}

func TestScoring_OutOfRangeOption(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	assert.Equal(t, OutcomeRejected, round.RecordGuess("naruto", -1, opensAt.Add(time.Second)).Outcome)
	assert.Equal(t, OutcomeRejected, round.RecordGuess("naruto", 4, opensAt.Add(time.Second)).Outcome)
}

func TestScoring_BarredPlayerCannotScore(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)
	round.Bar("naruto")

	result := round.RecordGuess("naruto", 1, opensAt.Add(time.Second))

	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.False(t, round.HasWinner())
	assert.True(t, round.IsBarred("naruto"))
}

// Acceptance order decides the winner, not wall-clock send order. Replaying
// the same intake order against a fresh round must give identical results.
func TestScoring_DeterministicOverAcceptanceOrder(t *testing.T) {
	t.Parallel()

	type accepted struct {
		player string
		option int
		offset time.Duration
	}
	intake := []accepted{
		{"sasuke", 1, time.Second * 3}, // B's later send accepted first
		{"naruto", 1, time.Second * 2},
		{"itachi", 0, time.Second * 4},
	}

	run := func() []GuessResult {
		round, opensAt := makeRound(1)
		results := make([]GuessResult, 0, len(intake))
		for _, guess := range intake {
			results = append(results, round.RecordGuess(guess.player, guess.option, opensAt.Add(guess.offset)))
		}
		return results
	}

	first := run()
	second := run()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("replay diverged (-first +second):\n%s", diff)
	}
	assert.Equal(t, OutcomeWinner, first[0].Outcome)
	assert.Equal(t, OutcomeCorrectButSlow, first[1].Outcome)
	assert.Equal(t, OutcomeRejected, first[2].Outcome)
}

func TestScoring_Closed(t *testing.T) {
	t.Parallel()
	round, opensAt := makeRound(1)

	assert.False(t, round.Closed(opensAt.Add(time.Second)))
	assert.True(t, round.Closed(opensAt.Add(time.Second*15)))

	round.RecordGuess("naruto", 1, opensAt.Add(time.Second))
	assert.True(t, round.Closed(opensAt.Add(time.Second*2)))
}

func TestScoring_PointsTableInverseCorrelated(t *testing.T) {
	t.Parallel()

	easy, medium, hard := PointsFor(DifficultyEasy), PointsFor(DifficultyMedium), PointsFor(DifficultyHard)

	assert.Greater(t, hard.Correct, medium.Correct)
	assert.Greater(t, medium.Correct, easy.Correct)
	assert.Greater(t, hard.Wrong, medium.Wrong)
	assert.Greater(t, medium.Wrong, easy.Wrong)
}
