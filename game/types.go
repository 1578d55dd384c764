package game

import (
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"
	StatusInProgress RoomStatus = "in_progress"
	StatusCompleted  RoomStatus = "completed"
)

// RoomInfo is a snapshot of one room's registry state. Components never hold
// a reference into the registry; mutation goes through registry methods.
type RoomInfo struct {
	Id             string
	Name           string
	Difficulty     Difficulty
	Status         RoomStatus
	MaxPlayers     int
	CurrentPlayers int
	ReservedSeats  int
	ActiveSetId    string
}

// Merge describes one applied room merge: every seated player of From moved
// into To, From marked completed.
type Merge struct {
	FromId string
	ToId   string
}

// RoomListSnapshot is the poll-friendly payload exposed to clients that
// cannot hold a subscription. It carries no player-identifying detail.
type RoomListSnapshot struct {
	Rooms            []RoomListEntry `json:"rooms"`
	LobbyPlayerCount int             `json:"lobbyPlayerCount"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type RoomListEntry struct {
	Id             string     `json:"id"`
	Name           string     `json:"name"`
	Difficulty     Difficulty `json:"difficulty"`
	CurrentPlayers int        `json:"currentPlayers"`
	MaxPlayers     int        `json:"maxPlayers"`
	Status         RoomStatus `json:"status"`
}

// Config carries the engine tunables. DefaultConfig matches production.
type Config struct {
	MaxPlayers        int
	MinPlayersToStart int
	InitialRoomsPerDifficulty int

	QuestionsPerSet   int
	CountdownDuration time.Duration
	ResultsDuration   time.Duration
	FillGrace         time.Duration

	// Reading-time estimate for question deadlines. The estimate scales with
	// text length but only the resulting deadline is ever sent to clients.
	ReadingTimeBase    time.Duration
	ReadingTimePerRune time.Duration
	DisplayMin         time.Duration
	DisplayMax         time.Duration
	AnswerWindow       time.Duration

	ReservationTTL   time.Duration
	SessionTTL       time.Duration
	PeriodDuration   time.Duration
	SnapshotInterval time.Duration
	SweepInterval    time.Duration
	TickInterval     time.Duration
	PingInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers:                20,
		MinPlayersToStart:         2,
		InitialRoomsPerDifficulty: 2,
		QuestionsPerSet:           20,
		CountdownDuration:         time.Second * 5,
		ResultsDuration:           time.Second * 8,
		FillGrace:                 time.Second * 10,
		ReadingTimeBase:           time.Second * 4,
		ReadingTimePerRune:        time.Millisecond * 40,
		DisplayMin:                time.Second * 5,
		DisplayMax:                time.Second * 20,
		AnswerWindow:              time.Second * 15,
		ReservationTTL:            time.Minute * 30,
		SessionTTL:                time.Hour * 12,
		PeriodDuration:            time.Hour * 24,
		SnapshotInterval:          time.Second * 10,
		SweepInterval:             time.Minute,
		TickInterval:              time.Second,
		PingInterval:              time.Second * 30,
	}
}
