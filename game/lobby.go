package game

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LobbyActor owns everything that crosses room boundaries: the connected
// player set, the runner per room, sequence starts and merges, the period
// rollover and the periodic room-list snapshot. One goroutine; every input
// arrives on a channel.
type LobbyActor struct {
	cfg      Config
	registry *Registry
	presence *PresenceGuard

	idGen         UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
	bank          QuestionBank
	leaderboard   LeaderboardStore
	badges        BadgeIssuer
	snapshots     SnapshotSink
	kicks         KickPublisher

	players    map[string]RoomPlayer
	runners    map[string]*roomRunner
	activeSets map[string]string // roomId -> setId, disposed on end
	readySince map[string]time.Time

	intake       chan clientPacketEnvelope
	connects     chan RoomPlayer
	disconnects  chan RoomPlayer
	sequenceEnds chan string
	stopChan     chan struct{}
	stoppedChan  chan struct{}

	snapMu       sync.RWMutex
	lastSnapshot RoomListSnapshot

	runnerWg sync.WaitGroup
	now      func() time.Time
}

func NewLobbyActor(cfg Config, registry *Registry, presence *PresenceGuard,
	idGen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator,
	bank QuestionBank, leaderboard LeaderboardStore, badges BadgeIssuer,
	snapshots SnapshotSink, kicks KickPublisher) *LobbyActor {
	return &LobbyActor{
		cfg:           cfg,
		registry:      registry,
		presence:      presence,
		idGen:         idGen,
		tickerCreator: tickerCreator,
		bank:          bank,
		leaderboard:   leaderboard,
		badges:        badges,
		snapshots:     snapshots,
		kicks:         kicks,
		players:       make(map[string]RoomPlayer),
		runners:       make(map[string]*roomRunner),
		activeSets:    make(map[string]string),
		readySince:    make(map[string]time.Time),
		intake:        make(chan clientPacketEnvelope, 1024),
		connects:      make(chan RoomPlayer, 64),
		disconnects:   make(chan RoomPlayer, 64),
		sequenceEnds:  make(chan string, 64),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
		now:           time.Now,
	}
}

// Intake exposes the unseated-player packet channel; the websocket handler
// wires new players to it.
func (l *LobbyActor) Intake() chan<- clientPacketEnvelope { return l.intake }

func (l *LobbyActor) Connects() chan<- RoomPlayer { return l.connects }

func (l *LobbyActor) Disconnects() chan<- RoomPlayer { return l.disconnects }

// SequenceEnded is called from runner goroutines; it must never block them.
func (l *LobbyActor) SequenceEnded(roomId string) {
	select {
	case l.sequenceEnds <- roomId:
	default:
		slog.Error("lobby: sequence-end queue full", "room", roomId)
	}
}

// Seed creates the initial waiting rooms. Call once before Run.
func (l *LobbyActor) Seed() {
	for _, difficulty := range Difficulties {
		for i := 0; i < l.cfg.InitialRoomsPerDifficulty; i++ {
			l.ensureRunner(l.registry.CreateRoom(difficulty))
		}
	}
	l.publishSnapshot()
}

func (l *LobbyActor) Run() {
	tick := l.tickerCreator.Create(l.cfg.TickInterval)
	ping := l.tickerCreator.Create(l.cfg.PingInterval)
	snapshot := l.tickerCreator.Create(l.cfg.SnapshotInterval)
	sweep := l.tickerCreator.Create(l.cfg.SweepInterval)
	period := l.tickerCreator.Create(l.cfg.PeriodDuration)

	for {
		select {
		case player := <-l.connects:
			l.handleConnect(player)
		case player := <-l.disconnects:
			l.handleDisconnect(player)
		case envelope := <-l.intake:
			l.handleClientPacket(envelope)
		case roomId := <-l.sequenceEnds:
			l.handleSequenceEnded(roomId)
		case now := <-tick:
			l.handleTick(now)
		case <-ping:
			// unseated connections keep their read deadline alive here;
			// seated ones are pinged by their runner
			for _, player := range l.players {
				if player.Intake() == (chan<- clientPacketEnvelope)(l.intake) {
					player.Ping()
				}
			}
			for _, runner := range l.runners {
				select {
				case runner.pingPlayers <- struct{}{}:
				default:
				}
			}
		case <-snapshot:
			l.publishSnapshot()
		case <-sweep:
			if released := l.registry.CleanupExpiredReservations(); released > 0 {
				slog.Info("lobby: expired reservations released", "count", released)
			}
		case <-period:
			l.handlePeriodRollover()
		case <-l.stopChan:
			l.shutdown()
			return
		}
	}
}

// Stop shuts the lobby and all runners down and disconnects every player.
// Blocks until the actor goroutine has exited.
func (l *LobbyActor) Stop() {
	close(l.stopChan)
	<-l.stoppedChan
}

func (l *LobbyActor) shutdown() {
	for roomId, runner := range l.runners {
		close(runner.stopChan)
		delete(l.runners, roomId)
	}
	l.runnerWg.Wait()
	for _, player := range l.players {
		player.CancelAndRelease("server-shutdown")
	}
	close(l.stoppedChan)
}

// handleConnect registers the player, evicting any previous connection of
// the same user. Last writer wins; the presence record was already swapped
// by the websocket handler.
func (l *LobbyActor) handleConnect(player RoomPlayer) {
	if old, ok := l.players[player.Id()]; ok && old.SessionId() != player.SessionId() {
		old.Send(MakePacketKicked("session-superseded"))
		old.CancelAndRelease("session-superseded")
		l.publishKick(player.Id(), old.SessionId())
	}
	l.players[player.Id()] = player
	slog.Info("lobby: player connected", "player", player.Id(), "session", player.SessionId(), "online", len(l.players))
}

func (l *LobbyActor) handleDisconnect(player RoomPlayer) {
	current, ok := l.players[player.Id()]
	if !ok || current.SessionId() != player.SessionId() {
		// an evicted session unwinding after its replacement registered
		return
	}
	delete(l.players, player.Id())
	l.presence.Deactivate(player.Id(), player.SessionId())

	// unseat through the room the player was routed to; a dropped
	// connection keeps its seat reserved for the rest of the sequence
	if intake := player.Intake(); intake != (chan<- clientPacketEnvelope)(l.intake) {
		intake <- clientPacketEnvelope{
			packet: ClientPacket{Type: ClientLeave, Leave: &LeavePayload{Reserve: true}},
			from:   player,
		}
	}
	slog.Info("lobby: player disconnected", "player", player.Id(), "online", len(l.players))
}

// handleClientPacket routes packets from unseated players. Only join means
// anything here; gameplay packets without a seat are protocol noise.
func (l *LobbyActor) handleClientPacket(envelope clientPacketEnvelope) {
	if envelope.packet.Type != ClientJoin || envelope.packet.Join == nil {
		return
	}
	player := envelope.from
	join := envelope.packet.Join

	var info RoomInfo
	if join.RoomId != "" {
		room, ok := l.registry.Room(join.RoomId)
		if !ok {
			player.Send(MakePacketError("room-not-found"))
			return
		}
		info = room
	} else {
		difficulty := join.Difficulty
		if _, ok := defaultDifficultyPoints[difficulty]; !ok {
			difficulty = DifficultyMedium
		}
		info = l.registry.FindAvailableRoom(difficulty)
	}

	runner := l.ensureRunner(info)
	jreq := roomJoinRequest{roomId: info.Id, player: player, errChan: make(chan error, 1)}
	select {
	case runner.joinRequests <- jreq:
		go func() {
			if err := <-jreq.errChan; err != nil {
				player.Send(MakePacketError(joinErrorReason(err)))
			}
		}()
	default:
		player.Send(MakePacketError("room-busy"))
	}
}

func joinErrorReason(err error) string {
	switch err {
	case ErrRoomFull:
		return "room-full"
	case ErrRoomClosed:
		return "room-closed"
	case ErrRoomNotFound:
		return "room-not-found"
	}
	return "join-failed"
}

func (l *LobbyActor) ensureRunner(info RoomInfo) *roomRunner {
	if runner, ok := l.runners[info.Id]; ok {
		return runner
	}
	runner := newRoomRunner(info, l.cfg, l.registry, l.bank, l.leaderboard, l.badges, l, l.intake)
	l.runners[info.Id] = runner
	l.runnerWg.Add(1)
	go func() {
		defer l.runnerWg.Done()
		runner.GameLoop()
	}()
	return runner
}

// handleTick fans the clock out to runners and drives sequence starts. A
// room with quorum must hold it for the fill grace before its set begins,
// and small waiting rooms are folded together right before starting.
func (l *LobbyActor) handleTick(now time.Time) {
	for _, runner := range l.runners {
		select {
		case runner.ticks <- now:
		default:
		}
	}

	due := false
	for _, room := range l.registry.Rooms() {
		if room.Status != StatusWaiting || room.CurrentPlayers < l.cfg.MinPlayersToStart {
			delete(l.readySince, room.Id)
			continue
		}
		since, ok := l.readySince[room.Id]
		if !ok {
			l.readySince[room.Id] = now
			continue
		}
		if now.Sub(since) >= l.cfg.FillGrace {
			due = true
		}
	}
	if !due {
		return
	}

	l.applyMerges(l.registry.MergeSmallRooms())

	for _, room := range l.registry.Rooms() {
		since, ok := l.readySince[room.Id]
		if !ok || now.Sub(since) < l.cfg.FillGrace {
			continue
		}
		delete(l.readySince, room.Id)
		setId := l.idGen.Generate()
		if !l.registry.BeginSequence(room.Id, setId) {
			l.idGen.Dispose(setId)
			continue
		}
		l.activeSets[room.Id] = setId
		runner := l.ensureRunner(room)
		select {
		case runner.starts <- setId:
		default:
		}
		slog.Info("lobby: sequence started", "room", room.Id, "set", setId)
	}
}

// applyMerges moves the seated players of each absorbed room into its
// target runner. The registry already carried the counts over; the runner
// adoption is a pure seat transfer.
func (l *LobbyActor) applyMerges(merges []Merge) {
	for _, merge := range merges {
		from, ok := l.runners[merge.FromId]
		if !ok {
			continue
		}
		resp := make(chan []RoomPlayer, 1)
		from.evacuations <- evacuateRequest{resp: resp}
		moved := <-resp
		close(from.stopChan)
		delete(l.runners, merge.FromId)
		delete(l.readySince, merge.FromId)

		if target, ok := l.runners[merge.ToId]; ok && len(moved) > 0 {
			target.adoptions <- moved
		}
		slog.Info("lobby: merge applied", "from", merge.FromId, "into", merge.ToId, "moved", len(moved))
	}
}

func (l *LobbyActor) handleSequenceEnded(roomId string) {
	if setId, ok := l.activeSets[roomId]; ok {
		l.idGen.Dispose(setId)
		delete(l.activeSets, roomId)
	}
	if runner, ok := l.runners[roomId]; ok {
		close(runner.stopChan)
		delete(l.runners, roomId)
	}
	delete(l.readySince, roomId)
}

func (l *LobbyActor) handlePeriodRollover() {
	purged, forced, created := l.registry.CreateRoomsForNewPeriod()
	for _, roomId := range append(append([]string{}, purged...), forced...) {
		if runner, ok := l.runners[roomId]; ok {
			runner.broadcast(MakePacketError("period-ended"))
			close(runner.stopChan)
			delete(l.runners, roomId)
		}
		if setId, ok := l.activeSets[roomId]; ok {
			l.idGen.Dispose(setId)
			delete(l.activeSets, roomId)
		}
		delete(l.readySince, roomId)
	}
	for _, room := range created {
		l.ensureRunner(room)
	}
	slog.Info("lobby: period rolled over", "purged", len(purged), "forced", len(forced), "created", len(created))
	l.publishSnapshot()
}

func (l *LobbyActor) lobbyPlayerCount() int {
	seated := 0
	for _, room := range l.registry.Rooms() {
		if room.Status != StatusCompleted {
			seated += room.CurrentPlayers
		}
	}
	if count := len(l.players) - seated; count > 0 {
		return count
	}
	return 0
}

func (l *LobbyActor) publishSnapshot() {
	snapshot := l.registry.Snapshot(l.lobbyPlayerCount())
	l.snapMu.Lock()
	l.lastSnapshot = snapshot
	l.snapMu.Unlock()

	if l.snapshots == nil {
		return
	}
	sink := l.snapshots
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := sink.PublishSnapshot(ctx, snapshot); err != nil {
			slog.Error("lobby: snapshot publish failed", "error", err)
		}
	}()
}

// LatestSnapshot serves the poll endpoint without touching the actor
// goroutine.
func (l *LobbyActor) LatestSnapshot() RoomListSnapshot {
	l.snapMu.RLock()
	defer l.snapMu.RUnlock()
	return l.lastSnapshot
}

func (l *LobbyActor) publishKick(userId, sessionId string) {
	if l.kicks == nil {
		return
	}
	kicks := l.kicks
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := kicks.PublishKick(ctx, userId, sessionId); err != nil {
			slog.Error("lobby: kick publish failed", "user", userId, "error", err)
		}
	}()
}
