package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizhive/api/domain"
	"github.com/quizhive/api/game"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (repo *PostgresRepo) Close() {
	repo.pool.Close()
}

func (repo *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	user := domain.User{Username: username}

	row := repo.pool.QueryRow(ctx, "SELECT id, password_hash FROM users WHERE username = $1", username)

	err := row.Scan(&user.Id, &user.PasswordHash)

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, domain.ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.User{}, err
		default:
			return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return user, nil
}

func (repo *PostgresRepo) GetUserById(ctx context.Context, id string) (domain.User, error) {
	user := domain.User{Id: id}

	row := repo.pool.QueryRow(ctx, "SELECT username, password_hash FROM users WHERE id = $1", id)

	err := row.Scan(&user.Username, &user.PasswordHash)

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, domain.ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.User{}, err
		default:
			return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return user, nil
}

func (repo *PostgresRepo) CreateUser(ctx context.Context, username string, passwordHash string) (string, error) {
	row := repo.pool.QueryRow(ctx, "INSERT INTO users(username, password_hash) VALUES($1, $2) RETURNING id", username, passwordHash)

	var id string
	err := row.Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is the PostgreSQL error code for unique_violation
			if pgErr.Code == "23505" {
				return "", domain.ErrDuplicateUsername
			}
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		return "", fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	return id, nil
}

// DrawQuestion implements game.QuestionBank. The exclusion list keeps a set
// free of repeats; with the whole tier exhausted the draw fails rather than
// recycling.
func (repo *PostgresRepo) DrawQuestion(ctx context.Context, difficulty game.Difficulty, exclude []string) (domain.Question, error) {
	if exclude == nil {
		exclude = []string{}
	}

	query := `SELECT id, text, options, correct_index, explanation, difficulty
		FROM questions
		WHERE difficulty = $1 AND NOT (id = ANY($2))
		ORDER BY RANDOM() LIMIT 1`

	var question domain.Question
	row := repo.pool.QueryRow(ctx, query, string(difficulty), exclude)
	err := row.Scan(&question.Id, &question.Text, &question.Options,
		&question.CorrectIndex, &question.Explanation, &question.Difficulty)

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.Question{}, domain.ErrNoQuestionAvailable
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.Question{}, err
		default:
			return domain.Question{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return question, nil
}

// FlushStandings implements game.LeaderboardStore. Rows conflict on
// (sequence_id, user_id) and conflicts are dropped, so a retried flush for
// the same set never double-counts.
func (repo *PostgresRepo) FlushStandings(ctx context.Context, deltas []domain.StandingDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, delta := range deltas {
		batch.Queue(
			`INSERT INTO leaderboard_entries(user_id, sequence_id, period, score)
			VALUES($1, $2, $3, $4)
			ON CONFLICT (sequence_id, user_id) DO NOTHING`,
			delta.UserId, delta.SequenceId, delta.Period, delta.Delta,
		)
	}

	results := repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range deltas {
		if _, err := results.Exec(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}
	return nil
}

// IssueBadge implements game.BadgeIssuer against the database directly,
// for deployments without a message broker.
func (repo *PostgresRepo) IssueBadge(ctx context.Context, event domain.BadgeEvent) error {
	_, err := repo.pool.Exec(ctx,
		`INSERT INTO badges(user_id, badge_id, sequence_id, earned_at)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (user_id, badge_id, sequence_id) DO NOTHING`,
		event.UserId, event.BadgeId, event.SequenceId, event.EarnedAt,
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

// StandingRow is one leaderboard line for a period.
type StandingRow struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

func (repo *PostgresRepo) TopStandings(ctx context.Context, period string, limit int) ([]StandingRow, error) {
	query := `SELECT u.username, SUM(le.score) AS total
		FROM leaderboard_entries le
		JOIN users u ON u.id = le.user_id
		WHERE le.period = $1
		GROUP BY u.username
		ORDER BY total DESC, u.username ASC
		LIMIT $2`

	rows, err := repo.pool.Query(ctx, query, period, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	standings := make([]StandingRow, 0, limit)
	for rows.Next() {
		var row StandingRow
		if err := rows.Scan(&row.Username, &row.Score); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		standings = append(standings, row)
	}
	return standings, rows.Err()
}
