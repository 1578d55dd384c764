package game

import "time"

// The wire protocol is a closed set of tagged envelopes. Every packet
// carries exactly one payload matching its Type; unknown types are dropped
// at the intake boundary.

const (
	ClientJoin       = "join"
	ClientAnswer     = "answer"
	ClientLeave      = "leave"
	ClientVisibility = "visibility"
)

type ClientPacket struct {
	Type       string             `json:"type"`
	Join       *JoinPayload       `json:"join,omitempty"`
	Answer     *AnswerPayload     `json:"answer,omitempty"`
	Leave      *LeavePayload      `json:"leave,omitempty"`
	Visibility *VisibilityPayload `json:"visibility,omitempty"`
}

type JoinPayload struct {
	// RoomId empty means auto-assign.
	RoomId     string     `json:"roomId,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

type AnswerPayload struct {
	OptionIndex int `json:"optionIndex"`
}

type LeavePayload struct {
	Reserve bool `json:"reserve"`
}

type VisibilityPayload struct {
	Hidden bool `json:"hidden"`
}

const (
	ServerRoomSnapshot = "roomSnapshot"
	ServerPlayerJoined = "playerJoined"
	ServerPlayerLeft   = "playerLeft"
	ServerCountdown    = "countdown"
	ServerQuestion     = "question"
	ServerGuessResult  = "guessResult"
	ServerRoundResult  = "roundResult"
	ServerSetEnd       = "setEnd"
	ServerKicked       = "kicked"
	ServerError        = "error"
)

type ServerPacket struct {
	Type         string               `json:"type"`
	RoomSnapshot *RoomSnapshotPayload `json:"roomSnapshot,omitempty"`
	PlayerJoined *PlayerEventPayload  `json:"playerJoined,omitempty"`
	PlayerLeft   *PlayerEventPayload  `json:"playerLeft,omitempty"`
	Countdown    *CountdownPayload    `json:"countdown,omitempty"`
	Question     *QuestionPayload     `json:"question,omitempty"`
	GuessResult  *GuessResultPayload  `json:"guessResult,omitempty"`
	RoundResult  *RoundResultPayload  `json:"roundResult,omitempty"`
	SetEnd       *SetEndPayload       `json:"setEnd,omitempty"`
	Kicked       *KickedPayload       `json:"kicked,omitempty"`
	Error        *ErrorPayload        `json:"error,omitempty"`
}

// RoomSnapshotPayload is the initial (or idempotent re-join) room state for
// one player. During the question phase it repeats the open question so a
// reconnecting player can resume, still without the correct index.
type RoomSnapshotPayload struct {
	RoomId        string          `json:"roomId"`
	RoomName      string          `json:"roomName"`
	Difficulty    Difficulty      `json:"difficulty"`
	Phase         string          `json:"phase"`
	Players       []PlayerView    `json:"players"`
	QuestionIndex int             `json:"questionIndex"`
	QuestionCount int             `json:"questionCount"`
	Question      *QuestionPayload `json:"question,omitempty"`
}

type PlayerView struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type PlayerEventPayload struct {
	PlayerId string `json:"playerId"`
	Name     string `json:"name"`
}

type CountdownPayload struct {
	SecondsLeft int `json:"secondsLeft"`
}

// QuestionPayload deliberately omits the correct index; it is revealed only
// in the round result.
type QuestionPayload struct {
	Index          int       `json:"index"`
	Text           string    `json:"text"`
	Options        []string  `json:"options"`
	OpensAt        time.Time `json:"opensAt"`
	ClosesAt       time.Time `json:"closesAt"`
}

type GuessResultPayload struct {
	PlayerId    string `json:"playerId"`
	OptionIndex int    `json:"optionIndex"`
	Correct     bool   `json:"correct"`
	Winner      bool   `json:"winner"`
	Delta       int    `json:"delta"`
}

type RoundResultPayload struct {
	Index        int            `json:"index"`
	CorrectIndex int            `json:"correctIndex"`
	Explanation  string         `json:"explanation"`
	WinnerId     string         `json:"winnerId,omitempty"`
	Deltas       map[string]int `json:"deltas"`
	Standings    []PlayerView   `json:"standings"`
}

type SetEndPayload struct {
	SequenceId string       `json:"sequenceId"`
	Standings  []PlayerView `json:"standings"`
	Badges     []BadgeView  `json:"badges"`
}

type BadgeView struct {
	PlayerId string `json:"playerId"`
	BadgeId  string `json:"badgeId"`
}

type KickedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

func MakePacketRoomSnapshot(snapshot RoomSnapshotPayload) *ServerPacket {
	return &ServerPacket{Type: ServerRoomSnapshot, RoomSnapshot: &snapshot}
}

func MakePacketPlayerJoined(playerId, name string) *ServerPacket {
	return &ServerPacket{Type: ServerPlayerJoined, PlayerJoined: &PlayerEventPayload{PlayerId: playerId, Name: name}}
}

func MakePacketPlayerLeft(playerId, name string) *ServerPacket {
	return &ServerPacket{Type: ServerPlayerLeft, PlayerLeft: &PlayerEventPayload{PlayerId: playerId, Name: name}}
}

func MakePacketCountdown(secondsLeft int) *ServerPacket {
	return &ServerPacket{Type: ServerCountdown, Countdown: &CountdownPayload{SecondsLeft: secondsLeft}}
}

func MakePacketQuestion(question QuestionPayload) *ServerPacket {
	return &ServerPacket{Type: ServerQuestion, Question: &question}
}

func MakePacketGuessResult(result GuessResultPayload) *ServerPacket {
	return &ServerPacket{Type: ServerGuessResult, GuessResult: &result}
}

func MakePacketRoundResult(result RoundResultPayload) *ServerPacket {
	return &ServerPacket{Type: ServerRoundResult, RoundResult: &result}
}

func MakePacketSetEnd(end SetEndPayload) *ServerPacket {
	return &ServerPacket{Type: ServerSetEnd, SetEnd: &end}
}

func MakePacketKicked(reason string) *ServerPacket {
	return &ServerPacket{Type: ServerKicked, Kicked: &KickedPayload{Reason: reason}}
}

func MakePacketError(reason string) *ServerPacket {
	return &ServerPacket{Type: ServerError, Error: &ErrorPayload{Reason: reason}}
}
