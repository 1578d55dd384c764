package game

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// roomState is the registry's private record for one room. The registry is
// the only writer; everything handed out is a copy.
type roomState struct {
	id             string
	name           string
	difficulty     Difficulty
	status         RoomStatus
	maxPlayers     int
	currentPlayers int
	activeSetId    string
	reservations   map[string]time.Time // playerId -> expiry
}

// Registry owns all Room and Reservation state. Critical sections are short
// and non-blocking, so a single mutex is enough.
type Registry struct {
	locker sync.Mutex
	cfg    Config
	idGen  UniqueIdGenerator
	rooms  map[string]*roomState
	now    func() time.Time
}

func NewRegistry(cfg Config, idGen UniqueIdGenerator) *Registry {
	return &Registry{
		cfg:   cfg,
		idGen: idGen,
		rooms: make(map[string]*roomState),
		now:   time.Now,
	}
}

func (reg *Registry) snapshotLocked(room *roomState) RoomInfo {
	return RoomInfo{
		Id:             room.id,
		Name:           room.name,
		Difficulty:     room.difficulty,
		Status:         room.status,
		MaxPlayers:     room.maxPlayers,
		CurrentPlayers: room.currentPlayers,
		ReservedSeats:  reg.liveReservationsLocked(room),
		ActiveSetId:    room.activeSetId,
	}
}

func (reg *Registry) liveReservationsLocked(room *roomState) int {
	count := 0
	now := reg.now()
	for _, expiry := range room.reservations {
		if expiry.After(now) {
			count++
		}
	}
	return count
}

func (reg *Registry) CreateRoom(difficulty Difficulty) RoomInfo {
	reg.locker.Lock()
	defer reg.locker.Unlock()
	return reg.snapshotLocked(reg.createRoomLocked(difficulty))
}

func (reg *Registry) createRoomLocked(difficulty Difficulty) *roomState {
	room := &roomState{
		id:           reg.idGen.Generate(),
		name:         generateRoomName(),
		difficulty:   difficulty,
		status:       StatusWaiting,
		maxPlayers:   reg.cfg.MaxPlayers,
		reservations: make(map[string]time.Time),
	}
	reg.rooms[room.id] = room
	slog.Info("registry: room created", "room", room.id, "name", room.name, "difficulty", difficulty)
	return room
}

// JoinRoom seats a player. A live reservation is consumed first; otherwise
// the effective capacity (seated + reserved) is checked. Unknown rooms and
// completed rooms fail with an error, never a panic: lookups race with purges.
func (reg *Registry) JoinRoom(roomId, playerId string) error {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok {
		return ErrRoomNotFound
	}
	if room.status == StatusCompleted {
		return ErrRoomClosed
	}

	if expiry, held := room.reservations[playerId]; held && expiry.After(reg.now()) {
		delete(room.reservations, playerId)
		room.currentPlayers++
		slog.Info("registry: reservation consumed", "room", roomId, "player", playerId)
		return nil
	}
	// expired reservations get no special treatment; drop on the way through
	delete(room.reservations, playerId)

	if room.currentPlayers+reg.liveReservationsLocked(room) >= room.maxPlayers {
		return ErrRoomFull
	}
	room.currentPlayers++
	return nil
}

// LeaveRoom always decrements, floored at zero. When reserve is set and the
// room is mid-sequence, the seat is held so the room's effective population
// is unchanged for the remaining players.
func (reg *Registry) LeaveRoom(roomId, playerId string, reserve bool) {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok {
		return
	}
	if room.currentPlayers > 0 {
		room.currentPlayers--
	}
	if reserve && room.status == StatusInProgress {
		room.reservations[playerId] = reg.now().Add(reg.cfg.ReservationTTL)
		slog.Info("registry: seat reserved", "room", roomId, "player", playerId)
	}
}

// FindAvailableRoom returns the lowest-population waiting room with spare
// effective capacity, creating one when none qualifies. The deterministic
// preference (fewest players first, id as tiebreak) fills existing rooms
// before spawning new ones.
func (reg *Registry) FindAvailableRoom(difficulty Difficulty) RoomInfo {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	var best *roomState
	for _, room := range reg.rooms {
		if room.status != StatusWaiting || room.difficulty != difficulty {
			continue
		}
		if room.currentPlayers+reg.liveReservationsLocked(room) >= room.maxPlayers {
			continue
		}
		if best == nil ||
			room.currentPlayers < best.currentPlayers ||
			(room.currentPlayers == best.currentPlayers && room.id < best.id) {
			best = room
		}
	}
	if best == nil {
		best = reg.createRoomLocked(difficulty)
	}
	return reg.snapshotLocked(best)
}

// MergeSmallRooms greedily folds the smallest waiting, non-empty room into
// the next-smallest of the same difficulty when the combined population
// (reservations included) still fits. The absorbed room is marked completed
// for the next period purge. In-progress rooms never merge.
func (reg *Registry) MergeSmallRooms() []Merge {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	var merges []Merge
	for _, difficulty := range Difficulties {
		merges = append(merges, reg.mergeDifficultyLocked(difficulty)...)
	}
	return merges
}

func (reg *Registry) mergeDifficultyLocked(difficulty Difficulty) []Merge {
	var merges []Merge
	for {
		candidates := make([]*roomState, 0)
		for _, room := range reg.rooms {
			if room.status == StatusWaiting && room.difficulty == difficulty && room.currentPlayers > 0 {
				candidates = append(candidates, room)
			}
		}
		if len(candidates) < 2 {
			return merges
		}
		sort.Slice(candidates, func(i, j int) bool {
			pi := candidates[i].currentPlayers + reg.liveReservationsLocked(candidates[i])
			pj := candidates[j].currentPlayers + reg.liveReservationsLocked(candidates[j])
			if pi != pj {
				return pi < pj
			}
			return candidates[i].id < candidates[j].id
		})

		src, dst := candidates[0], candidates[1]
		combined := src.currentPlayers + reg.liveReservationsLocked(src) +
			dst.currentPlayers + reg.liveReservationsLocked(dst)
		if combined > dst.maxPlayers {
			return merges
		}

		dst.currentPlayers += src.currentPlayers
		for playerId, expiry := range src.reservations {
			if expiry.After(reg.now()) {
				dst.reservations[playerId] = expiry
			}
		}
		src.currentPlayers = 0
		src.reservations = make(map[string]time.Time)
		src.status = StatusCompleted
		slog.Info("registry: rooms merged", "from", src.id, "into", dst.id, "population", dst.currentPlayers)
		merges = append(merges, Merge{FromId: src.id, ToId: dst.id})
	}
}

// CleanupExpiredReservations releases seats whose hold has lapsed.
func (reg *Registry) CleanupExpiredReservations() int {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	released := 0
	now := reg.now()
	for _, room := range reg.rooms {
		for playerId, expiry := range room.reservations {
			if !expiry.After(now) {
				delete(room.reservations, playerId)
				released++
			}
		}
	}
	return released
}

// BeginSequence moves a waiting room to in_progress under the given set id.
func (reg *Registry) BeginSequence(roomId, setId string) bool {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok || room.status != StatusWaiting {
		return false
	}
	if room.currentPlayers < reg.cfg.MinPlayersToStart {
		return false
	}
	room.status = StatusInProgress
	room.activeSetId = setId
	return true
}

// EndSequence completes the room and reclaims its reservations: a
// reservation never outlives the sequence it was made for.
func (reg *Registry) EndSequence(roomId string) {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	room, ok := reg.rooms[roomId]
	if !ok {
		return
	}
	room.status = StatusCompleted
	room.activeSetId = ""
	room.reservations = make(map[string]time.Time)
}

// CreateRoomsForNewPeriod purges completed rooms, force-completes any room
// still mid-sequence (safety net against orphaned sequences) and seeds the
// initial room set for the new period.
func (reg *Registry) CreateRoomsForNewPeriod() (purged []string, forced []string, created []RoomInfo) {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	for id, room := range reg.rooms {
		switch room.status {
		case StatusCompleted:
			delete(reg.rooms, id)
			reg.idGen.Dispose(id)
			purged = append(purged, id)
		case StatusInProgress:
			slog.Warn("registry: force-completing orphaned room at period boundary", "room", id)
			room.status = StatusCompleted
			room.activeSetId = ""
			room.reservations = make(map[string]time.Time)
			forced = append(forced, id)
		}
	}
	for _, difficulty := range Difficulties {
		for i := 0; i < reg.cfg.InitialRoomsPerDifficulty; i++ {
			created = append(created, reg.snapshotLocked(reg.createRoomLocked(difficulty)))
		}
	}
	return purged, forced, created
}

func (reg *Registry) Room(roomId string) (RoomInfo, bool) {
	reg.locker.Lock()
	defer reg.locker.Unlock()
	room, ok := reg.rooms[roomId]
	if !ok {
		return RoomInfo{}, false
	}
	return reg.snapshotLocked(room), true
}

func (reg *Registry) Rooms() []RoomInfo {
	reg.locker.Lock()
	defer reg.locker.Unlock()
	infos := make([]RoomInfo, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		infos = append(infos, reg.snapshotLocked(room))
	}
	return infos
}

// Snapshot builds the poll-friendly room list. Completed rooms are omitted;
// they are gone from the player's point of view.
func (reg *Registry) Snapshot(lobbyPlayerCount int) RoomListSnapshot {
	reg.locker.Lock()
	defer reg.locker.Unlock()

	entries := make([]RoomListEntry, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		if room.status == StatusCompleted {
			continue
		}
		entries = append(entries, RoomListEntry{
			Id:             room.id,
			Name:           room.name,
			Difficulty:     room.difficulty,
			CurrentPlayers: room.currentPlayers,
			MaxPlayers:     room.maxPlayers,
			Status:         room.status,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Id < entries[j].Id })
	return RoomListSnapshot{
		Rooms:            entries,
		LobbyPlayerCount: lobbyPlayerCount,
		UpdatedAt:        reg.now(),
	}
}
