package game

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/quizhive/api/domain"
)

type RoomPhase int

const (
	PHASE_WAITING RoomPhase = iota
	PHASE_COUNTDOWN
	PHASE_QUESTION
	PHASE_RESULTS
	PHASE_SET_END
)

func (p RoomPhase) String() string {
	switch p {
	case PHASE_WAITING:
		return "waiting"
	case PHASE_COUNTDOWN:
		return "countdown"
	case PHASE_QUESTION:
		return "question"
	case PHASE_RESULTS:
		return "results"
	case PHASE_SET_END:
		return "set_end"
	}
	return "unknown"
}

type roomJoinRequest struct {
	roomId  string
	player  RoomPlayer
	errChan chan error
}

type evacuateRequest struct {
	resp chan []RoomPlayer
}

// roomParent is the runner's view of the lobby. Calls must never block the
// runner's state transitions.
type roomParent interface {
	SequenceEnded(roomId string)
}

// roomRunner drives one room through its question-round state machine. One
// goroutine per room; all state below is owned by that goroutine and only
// ever touched through the inbox/tick channels.
type roomRunner struct {
	roomId     string
	difficulty Difficulty
	cfg        Config

	registry    *Registry
	bank        QuestionBank
	leaderboard LeaderboardStore
	badges      BadgeIssuer
	parent      roomParent
	lobbyIntake chan<- clientPacketEnvelope

	phase    RoomPhase
	nextTick time.Time

	seats map[string]RoomPlayer
	order []string // seating order, for stable broadcast and standings ties

	sequenceId    string
	questionIndex int // 1-based once the first question opens
	askedIds      []string
	round         *QuestionRound
	scores        map[string]int
	roundsWon     map[string]int
	wrongTotal    map[string]int
	roundDeltas   map[string]int
	drawFailures  int

	inbox        chan clientPacketEnvelope
	joinRequests chan roomJoinRequest
	adoptions    chan []RoomPlayer
	starts       chan string
	evacuations  chan evacuateRequest
	ticks        chan time.Time
	pingPlayers  chan struct{}
	stopChan     chan struct{}

	now func() time.Time
}

func newRoomRunner(info RoomInfo, cfg Config, registry *Registry, bank QuestionBank,
	leaderboard LeaderboardStore, badges BadgeIssuer, parent roomParent,
	lobbyIntake chan<- clientPacketEnvelope) *roomRunner {
	return &roomRunner{
		roomId:       info.Id,
		difficulty:   info.Difficulty,
		cfg:          cfg,
		registry:     registry,
		bank:         bank,
		leaderboard:  leaderboard,
		badges:       badges,
		parent:       parent,
		lobbyIntake:  lobbyIntake,
		phase:        PHASE_WAITING,
		seats:        make(map[string]RoomPlayer),
		scores:       make(map[string]int),
		roundsWon:    make(map[string]int),
		wrongTotal:   make(map[string]int),
		roundDeltas:  make(map[string]int),
		inbox:        make(chan clientPacketEnvelope, 1024),
		joinRequests: make(chan roomJoinRequest, 64),
		adoptions:    make(chan []RoomPlayer, 8),
		starts:       make(chan string, 1),
		evacuations:  make(chan evacuateRequest, 1),
		ticks:        make(chan time.Time, 24),
		pingPlayers:  make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}
}

func (r *roomRunner) GameLoop() {
	for {
		select {
		case envelope := <-r.inbox:
			r.handleClientPacket(envelope)
		case jreq := <-r.joinRequests:
			r.handleJoinRequest(jreq)
		case players := <-r.adoptions:
			r.handleAdoptPlayers(players)
		case setId := <-r.starts:
			r.handleStartSequence(setId)
		case evac := <-r.evacuations:
			r.handleEvacuate(evac)
		case now := <-r.ticks:
			r.handleTick(now)
		case <-r.pingPlayers:
			for _, id := range r.order {
				r.seats[id].Ping()
			}
		case <-r.stopChan:
			r.handleStop()
			return
		}
	}
}

func (r *roomRunner) broadcast(packet *ServerPacket) {
	for _, id := range r.order {
		r.seats[id].Send(packet)
	}
}

func (r *roomRunner) broadcastExcept(packet *ServerPacket, exceptId string) {
	for _, id := range r.order {
		if id != exceptId {
			r.seats[id].Send(packet)
		}
	}
}

func (r *roomRunner) sequenceActive() bool {
	switch r.phase {
	case PHASE_COUNTDOWN, PHASE_QUESTION, PHASE_RESULTS:
		return true
	}
	return false
}

func (r *roomRunner) handleClientPacket(envelope clientPacketEnvelope) {
	player := envelope.from
	switch envelope.packet.Type {
	case ClientJoin:
		// duplicate join from a seated player is an idempotent resend
		if seated, ok := r.seats[player.Id()]; ok {
			if seated.SessionId() != player.SessionId() {
				r.rebindSeat(player)
			}
			player.Send(MakePacketRoomSnapshot(r.snapshotFor()))
		}
	case ClientAnswer:
		if envelope.packet.Answer != nil {
			r.handleGuess(player, envelope.packet.Answer.OptionIndex)
		}
	case ClientLeave:
		reserve := envelope.packet.Leave != nil && envelope.packet.Leave.Reserve
		r.handleRemovePlayer(player, reserve)
	case ClientVisibility:
		if envelope.packet.Visibility != nil && envelope.packet.Visibility.Hidden &&
			r.phase == PHASE_QUESTION && r.round != nil {
			// left the foreground during an open round: no scoring this
			// round, future rounds unaffected
			r.round.Bar(player.Id())
			slog.Info("room: player barred for round", "room", r.roomId, "player", player.Id(), "question", r.questionIndex)
		}
	}
}

func (r *roomRunner) handleGuess(player RoomPlayer, optionIndex int) {
	if r.phase != PHASE_QUESTION || r.round == nil {
		return
	}
	if _, seated := r.seats[player.Id()]; !seated {
		return
	}

	result := r.round.RecordGuess(player.Id(), optionIndex, r.now())
	if result.Outcome == OutcomeRejected {
		return
	}

	r.scores[player.Id()] += result.Delta
	r.roundDeltas[player.Id()] += result.Delta
	if result.Outcome == OutcomeWrong {
		r.wrongTotal[player.Id()]++
	}

	r.broadcast(MakePacketGuessResult(GuessResultPayload{
		PlayerId:    player.Id(),
		OptionIndex: optionIndex,
		Correct:     result.Outcome == OutcomeWinner || result.Outcome == OutcomeCorrectButSlow,
		Winner:      result.Outcome == OutcomeWinner,
		Delta:       result.Delta,
	}))

	if result.Outcome == OutcomeWinner {
		r.roundsWon[player.Id()]++
		r.transitionToResults()
	}
}

func (r *roomRunner) handleJoinRequest(jreq roomJoinRequest) {
	player := jreq.player

	if seated, ok := r.seats[player.Id()]; ok {
		if seated.SessionId() != player.SessionId() {
			r.rebindSeat(player)
		}
		player.Send(MakePacketRoomSnapshot(r.snapshotFor()))
		jreq.errChan <- nil
		return
	}

	if err := r.registry.JoinRoom(r.roomId, player.Id()); err != nil {
		jreq.errChan <- err
		return
	}

	r.seatPlayer(player)
	jreq.errChan <- nil
}

func (r *roomRunner) seatPlayer(player RoomPlayer) {
	r.seats[player.Id()] = player
	r.order = append(r.order, player.Id())
	if _, ok := r.scores[player.Id()]; !ok {
		r.scores[player.Id()] = 0
	}
	player.SetIntake(r.inbox)

	r.broadcastExcept(MakePacketPlayerJoined(player.Id(), player.Name()), player.Id())
	player.Send(MakePacketRoomSnapshot(r.snapshotFor()))
	slog.Info("room: player seated", "room", r.roomId, "player", player.Id(), "seats", len(r.seats))
}

// rebindSeat swaps a seat's connection for a newer session of the same
// user. Score, seat order and registry count stay as they are; the stale
// connection was already released by the lobby.
func (r *roomRunner) rebindSeat(player RoomPlayer) {
	r.seats[player.Id()] = player
	player.SetIntake(r.inbox)
	slog.Info("room: seat rebound to newer session", "room", r.roomId, "player", player.Id(), "session", player.SessionId())
}

// handleAdoptPlayers seats players moved in by a lobby merge. The registry
// already carried their counts over, so no capacity check runs here.
func (r *roomRunner) handleAdoptPlayers(players []RoomPlayer) {
	for _, player := range players {
		if _, seated := r.seats[player.Id()]; seated {
			continue
		}
		r.seatPlayer(player)
	}
}

func (r *roomRunner) handleEvacuate(evac evacuateRequest) {
	players := make([]RoomPlayer, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, r.seats[id])
	}
	r.seats = make(map[string]RoomPlayer)
	r.order = nil
	evac.resp <- players
}

func (r *roomRunner) handleRemovePlayer(player RoomPlayer, reserve bool) {
	if _, seated := r.seats[player.Id()]; !seated {
		return
	}
	delete(r.seats, player.Id())
	for i, id := range r.order {
		if id == player.Id() {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	player.SetIntake(r.lobbyIntake)
	r.registry.LeaveRoom(r.roomId, player.Id(), reserve)
	r.broadcast(MakePacketPlayerLeft(player.Id(), player.Name()))
	slog.Info("room: player left", "room", r.roomId, "player", player.Id(), "reserve", reserve, "seats", len(r.seats))

	// an empty room mid-sequence is abandoned, not left hanging; no
	// partial leaderboard flush
	if r.sequenceActive() && len(r.seats) == 0 {
		slog.Warn("room: sequence abandoned, room emptied", "room", r.roomId, "sequence", r.sequenceId)
		r.endSequence(false)
	}
}

func (r *roomRunner) handleStartSequence(setId string) {
	if r.phase != PHASE_WAITING {
		return
	}
	r.sequenceId = setId
	r.questionIndex = 0
	r.askedIds = nil
	r.drawFailures = 0
	r.scores = make(map[string]int)
	r.roundsWon = make(map[string]int)
	r.wrongTotal = make(map[string]int)
	for id := range r.seats {
		r.scores[id] = 0
	}
	r.phase = PHASE_COUNTDOWN
	r.nextTick = r.now().Add(r.cfg.CountdownDuration)
	r.broadcast(MakePacketCountdown(int(r.cfg.CountdownDuration.Seconds())))
	slog.Info("room: sequence starting", "room", r.roomId, "sequence", setId, "seats", len(r.seats))
}

func (r *roomRunner) handleTick(now time.Time) {
	if r.phase == PHASE_COUNTDOWN && now.Before(r.nextTick) {
		r.broadcast(MakePacketCountdown(int(r.nextTick.Sub(now).Round(time.Second).Seconds())))
		return
	}
	if now.Before(r.nextTick) {
		return
	}

	switch r.phase {
	case PHASE_COUNTDOWN:
		r.beginQuestion(now)
	case PHASE_QUESTION:
		r.transitionToResults()
	case PHASE_RESULTS:
		if r.questionIndex >= r.cfg.QuestionsPerSet {
			r.finishSet()
		} else {
			r.beginQuestion(now)
		}
	}
}

// readingTime estimates how long players need before answering opens. Only
// the resulting deadline leaves the server; raw content length would be a
// trivial timing side-channel.
func (r *roomRunner) readingTime(question domain.Question) time.Duration {
	runes := len([]rune(question.Text))
	for _, option := range question.Options {
		runes += len([]rune(option))
	}
	d := r.cfg.ReadingTimeBase + time.Duration(runes)*r.cfg.ReadingTimePerRune
	if d < r.cfg.DisplayMin {
		return r.cfg.DisplayMin
	}
	if d > r.cfg.DisplayMax {
		return r.cfg.DisplayMax
	}
	return d
}

func (r *roomRunner) beginQuestion(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	question, err := r.bank.DrawQuestion(ctx, r.difficulty, r.askedIds)
	cancel()
	if err != nil {
		r.drawFailures++
		slog.Error("room: question draw failed", "room", r.roomId, "attempt", r.drawFailures, "error", err)
		if r.drawFailures >= 3 {
			r.endSequence(false)
			return
		}
		r.nextTick = now.Add(r.cfg.TickInterval)
		return
	}
	r.drawFailures = 0

	opensAt := now.Add(r.readingTime(question))
	closesAt := opensAt.Add(r.cfg.AnswerWindow)

	r.questionIndex++
	r.askedIds = append(r.askedIds, question.Id)
	r.round = NewQuestionRound(question, PointsFor(r.difficulty), opensAt, closesAt)
	r.roundDeltas = make(map[string]int)
	r.phase = PHASE_QUESTION
	r.nextTick = closesAt

	r.broadcast(MakePacketQuestion(QuestionPayload{
		Index:    r.questionIndex,
		Text:     question.Text,
		Options:  question.Options,
		OpensAt:  opensAt,
		ClosesAt: closesAt,
	}))
}

func (r *roomRunner) transitionToResults() {
	if r.phase != PHASE_QUESTION || r.round == nil {
		return
	}
	r.phase = PHASE_RESULTS
	r.nextTick = r.now().Add(r.cfg.ResultsDuration)

	r.broadcast(MakePacketRoundResult(RoundResultPayload{
		Index:        r.questionIndex,
		CorrectIndex: r.round.Question.CorrectIndex,
		Explanation:  r.round.Question.Explanation,
		WinnerId:     r.round.WinnerId(),
		Deltas:       r.roundDeltas,
		Standings:    r.standings(),
	}))
}

func (r *roomRunner) standings() []PlayerView {
	views := make([]PlayerView, 0, len(r.scores))
	for id, score := range r.scores {
		name := id
		if player, seated := r.seats[id]; seated {
			name = player.Name()
		}
		views = append(views, PlayerView{Id: id, Name: name, Score: score})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		return views[i].Id < views[j].Id
	})
	return views
}

func (r *roomRunner) earnedBadges() []BadgeView {
	standings := r.standings()
	var badges []BadgeView
	if len(standings) > 0 && standings[0].Score > 0 {
		badges = append(badges, BadgeView{PlayerId: standings[0].Id, BadgeId: "set_winner"})
	}
	for id, won := range r.roundsWon {
		if won*2 >= r.cfg.QuestionsPerSet {
			badges = append(badges, BadgeView{PlayerId: id, BadgeId: "round_dominator"})
		}
		if won > 0 && r.wrongTotal[id] == 0 {
			badges = append(badges, BadgeView{PlayerId: id, BadgeId: "sharpshooter"})
		}
	}
	return badges
}

func (r *roomRunner) finishSet() {
	standings := r.standings()
	badges := r.earnedBadges()
	r.broadcast(MakePacketSetEnd(SetEndPayload{
		SequenceId: r.sequenceId,
		Standings:  standings,
		Badges:     badges,
	}))
	r.flushStandings(standings, badges)
	r.endSequence(true)
}

// flushStandings hands the final scores to the external collaborators.
// Fire-and-forget: a slow or failing downstream must never stall a room,
// and gameplay already completed, so failures are logged and swallowed.
func (r *roomRunner) flushStandings(standings []PlayerView, badges []BadgeView) {
	sequenceId := r.sequenceId
	period := r.now().UTC().Format("2006-01-02")
	deltas := make([]domain.StandingDelta, 0, len(standings))
	for _, view := range standings {
		deltas = append(deltas, domain.StandingDelta{
			UserId:     view.Id,
			Delta:      view.Score,
			Period:     period,
			SequenceId: sequenceId,
		})
	}
	earnedAt := r.now().UTC()
	leaderboard, issuer := r.leaderboard, r.badges

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := leaderboard.FlushStandings(ctx, deltas); err != nil {
			slog.Error("room: leaderboard flush failed", "sequence", sequenceId, "error", err)
		}
		for _, badge := range badges {
			event := domain.BadgeEvent{
				UserId:     badge.PlayerId,
				BadgeId:    badge.BadgeId,
				SequenceId: sequenceId,
				EarnedAt:   earnedAt,
			}
			if err := issuer.IssueBadge(ctx, event); err != nil {
				slog.Error("room: badge issue failed", "sequence", sequenceId, "badge", badge.BadgeId, "error", err)
			}
		}
	}()
}

// endSequence closes out the set. flushed distinguishes a played-out set
// from an abandoned one; either way the room completes and its
// reservations die with it.
func (r *roomRunner) endSequence(flushed bool) {
	r.phase = PHASE_SET_END
	r.round = nil
	r.registry.EndSequence(r.roomId)
	r.parent.SequenceEnded(r.roomId)
	slog.Info("room: sequence ended", "room", r.roomId, "sequence", r.sequenceId, "flushed", flushed)
}

func (r *roomRunner) handleStop() {
	for _, id := range r.order {
		r.seats[id].SetIntake(r.lobbyIntake)
	}
	r.seats = make(map[string]RoomPlayer)
	r.order = nil
}

func (r *roomRunner) snapshotFor() RoomSnapshotPayload {
	info, _ := r.registry.Room(r.roomId)
	payload := RoomSnapshotPayload{
		RoomId:        r.roomId,
		RoomName:      info.Name,
		Difficulty:    r.difficulty,
		Phase:         r.phase.String(),
		QuestionIndex: r.questionIndex,
		QuestionCount: r.cfg.QuestionsPerSet,
		Players:       r.standingsSeatedOnly(),
	}
	if r.phase == PHASE_QUESTION && r.round != nil {
		payload.Question = &QuestionPayload{
			Index:    r.questionIndex,
			Text:     r.round.Question.Text,
			Options:  r.round.Question.Options,
			OpensAt:  r.round.OpensAt,
			ClosesAt: r.round.ClosesAt,
		}
	}
	return payload
}

func (r *roomRunner) standingsSeatedOnly() []PlayerView {
	views := make([]PlayerView, 0, len(r.order))
	for _, id := range r.order {
		views = append(views, PlayerView{Id: id, Name: r.seats[id].Name(), Score: r.scores[id]})
	}
	return views
}
