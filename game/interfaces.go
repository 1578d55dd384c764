package game

import (
	"context"
	"time"

	"github.com/quizhive/api/domain"
)

type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type UserGetter interface {
	GetUserById(ctx context.Context, id string) (domain.User, error)
}

// QuestionBank draws one unused question per round. Implementations must not
// repeat a question whose id is in exclude.
type QuestionBank interface {
	DrawQuestion(ctx context.Context, difficulty Difficulty, exclude []string) (domain.Question, error)
}

// LeaderboardStore accepts the final standings of a finished set. Writes are
// idempotent per (sequenceId, userId); a failed flush is logged and dropped.
type LeaderboardStore interface {
	FlushStandings(ctx context.Context, deltas []domain.StandingDelta) error
}

// BadgeIssuer delivers earned-badge events at least once.
type BadgeIssuer interface {
	IssueBadge(ctx context.Context, event domain.BadgeEvent) error
}

// SnapshotSink receives the periodic room-list snapshot for out-of-process
// pollers. Optional; a nil sink disables publication.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snapshot RoomListSnapshot) error
}

// KickPublisher fans the one-shot session-kicked notification out to other
// nodes that may hold the evicted connection. Optional.
type KickPublisher interface {
	PublishKick(ctx context.Context, userId string, sessionId string) error
}

type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}
