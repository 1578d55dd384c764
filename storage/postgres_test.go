package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quizhive/api/domain"
	"github.com/quizhive/api/game"
	"github.com/quizhive/api/migrations"
	"github.com/quizhive/api/storage"
)

var repo *storage.PostgresRepo

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine3.22",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	migrations.Migrate(connString)

	repo, err = storage.NewPostgresRepo(ctx, connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	repo.Close()
	postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func TestPostgresRepo_Users(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateUser", func(t *testing.T) {
		id, err := repo.CreateUser(ctx, "oussama", "hashed_secret")
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("CreateUser_Duplicate", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, "oussama", "new_hash")
		assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		user, err := repo.GetUserByUsername(ctx, "oussama")
		assert.NoError(t, err)
		assert.Equal(t, "oussama", user.Username)
		assert.Equal(t, "hashed_secret", user.PasswordHash)
		assert.NotEmpty(t, user.Id)
	})

	t.Run("GetUserByUsername_NotFound", func(t *testing.T) {
		_, err := repo.GetUserByUsername(ctx, "ghost_user")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("GetUserById", func(t *testing.T) {
		id, err := repo.CreateUser(ctx, "tester2", "hash2")
		require.NoError(t, err)

		user, err := repo.GetUserById(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, "hash2", user.PasswordHash)
		assert.Equal(t, "tester2", user.Username)
	})
}

func seedQuestion(t *testing.T, text string, options []string, correctIndex int, difficulty string) string {
	t.Helper()
	var id string
	err := repo.GetPool().QueryRow(context.Background(),
		`INSERT INTO questions(text, options, correct_index, difficulty) VALUES($1, $2, $3, $4) RETURNING id`,
		text, options, correctIndex, difficulty,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgresRepo_DrawQuestion(t *testing.T) {
	ctx := context.Background()

	q1 := seedQuestion(t, "capital of france?", []string{"Lyon", "Paris"}, 1, "hard")
	q2 := seedQuestion(t, "capital of spain?", []string{"Madrid", "Seville"}, 0, "hard")

	t.Run("draws from the requested tier", func(t *testing.T) {
		question, err := repo.DrawQuestion(ctx, game.DifficultyHard, nil)
		require.NoError(t, err)
		assert.Contains(t, []string{q1, q2}, question.Id)
		assert.Equal(t, "hard", question.Difficulty)
		assert.Len(t, question.Options, 2)
	})

	t.Run("exclusion removes seen questions", func(t *testing.T) {
		question, err := repo.DrawQuestion(ctx, game.DifficultyHard, []string{q1})
		require.NoError(t, err)
		assert.Equal(t, q2, question.Id)
	})

	t.Run("exhausted tier fails the draw", func(t *testing.T) {
		_, err := repo.DrawQuestion(ctx, game.DifficultyHard, []string{q1, q2})
		assert.ErrorIs(t, err, domain.ErrNoQuestionAvailable)
	})
}

func TestPostgresRepo_Standings(t *testing.T) {
	ctx := context.Background()

	aliceId, err := repo.CreateUser(ctx, "alice_standings", "hash")
	require.NoError(t, err)
	bobId, err := repo.CreateUser(ctx, "bob_standings", "hash")
	require.NoError(t, err)

	deltas := []domain.StandingDelta{
		{UserId: aliceId, Delta: 300, Period: "2025-06-01", SequenceId: "seq-1"},
		{UserId: bobId, Delta: 150, Period: "2025-06-01", SequenceId: "seq-1"},
	}
	require.NoError(t, repo.FlushStandings(ctx, deltas))

	// replaying the same flush must not double-count
	require.NoError(t, repo.FlushStandings(ctx, deltas))

	require.NoError(t, repo.FlushStandings(ctx, []domain.StandingDelta{
		{UserId: bobId, Delta: 400, Period: "2025-06-01", SequenceId: "seq-2"},
	}))

	standings, err := repo.TopStandings(ctx, "2025-06-01", 10)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, storage.StandingRow{Username: "bob_standings", Score: 550}, standings[0])
	assert.Equal(t, storage.StandingRow{Username: "alice_standings", Score: 300}, standings[1])
}

func TestPostgresRepo_IssueBadge(t *testing.T) {
	ctx := context.Background()

	userId, err := repo.CreateUser(ctx, "badge_user", "hash")
	require.NoError(t, err)

	event := domain.BadgeEvent{
		UserId:     userId,
		BadgeId:    "set_winner",
		SequenceId: "seq-9",
		EarnedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.IssueBadge(ctx, event))

	// at-least-once delivery: replays are absorbed
	require.NoError(t, repo.IssueBadge(ctx, event))

	var count int
	err = repo.GetPool().QueryRow(ctx,
		`SELECT COUNT(*) FROM badges WHERE user_id = $1 AND sequence_id = 'seq-9'`, userId,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
