package game

import (
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// RoomPlayer is the seat-side view of a connected player. The concrete
// *Player satisfies it; tests substitute mocks.
type RoomPlayer interface {
	Id() string
	Name() string
	SessionId() string
	Send(packet *ServerPacket)
	Ping()
	// SetIntake reroutes the player's inbound packets, to a room when
	// seated and back to the lobby once unseated.
	SetIntake(intake chan<- clientPacketEnvelope)
	Intake() chan<- clientPacketEnvelope
	CancelAndRelease(reason string)
}

type clientPacketEnvelope struct {
	packet ClientPacket
	from   RoomPlayer
}

type Player struct {
	id        string
	name      string
	sessionId string
	origin    string

	socket      NetworkSession
	rateLimiter *rate.Limiter
	sendChan    chan []byte
	pingChan    chan struct{}
	done        chan struct{}
	closeOnce   sync.Once

	intakeMu    sync.Mutex
	intake      chan<- clientPacketEnvelope
	disconnects chan<- RoomPlayer
}

func NewPlayer(id, name, sessionId, origin string, socket NetworkSession,
	actions chan<- clientPacketEnvelope, disconnects chan<- RoomPlayer) *Player {
	return &Player{
		id:          id,
		name:        name,
		sessionId:   sessionId,
		origin:      origin,
		socket:      socket,
		rateLimiter: rate.NewLimiter(4, 8),
		sendChan:    make(chan []byte, 64),
		pingChan:    make(chan struct{}, 1),
		done:        make(chan struct{}),
		intake:      actions,
		disconnects: disconnects,
	}
}

func (p *Player) Id() string        { return p.id }
func (p *Player) Name() string      { return p.name }
func (p *Player) SessionId() string { return p.sessionId }
func (p *Player) Origin() string    { return p.origin }

func (p *Player) SetIntake(intake chan<- clientPacketEnvelope) {
	p.intakeMu.Lock()
	p.intake = intake
	p.intakeMu.Unlock()
}

func (p *Player) Intake() chan<- clientPacketEnvelope {
	return p.currentIntake()
}

func (p *Player) currentIntake() chan<- clientPacketEnvelope {
	p.intakeMu.Lock()
	defer p.intakeMu.Unlock()
	return p.intake
}

// Send marshals and queues a packet. A slow consumer loses packets rather
// than stalling the room clock.
func (p *Player) Send(packet *ServerPacket) {
	data, err := json.Marshal(packet)
	if err != nil {
		slog.Error("player: failed to marshal packet", "player", p.id, "type", packet.Type, "error", err)
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.sendChan <- data:
	default:
		slog.Warn("player: send buffer full, dropping packet", "player", p.id, "type", packet.Type)
	}
}

func (p *Player) Ping() {
	select {
	case p.pingChan <- struct{}{}:
	default:
	}
}

// CancelAndRelease closes the connection and releases the pumps. Safe to
// call more than once.
func (p *Player) CancelAndRelease(reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		p.socket.Close(reason)
	})
}

func (p *Player) ReadPump() {
	defer func() {
		p.disconnects <- p
	}()

	for {
		data, err := p.socket.Read()
		if err != nil {
			return
		}
		if !p.rateLimiter.Allow() {
			continue
		}

		var packet ClientPacket
		if err := json.Unmarshal(data, &packet); err != nil {
			continue
		}
		switch packet.Type {
		case ClientJoin, ClientAnswer, ClientLeave, ClientVisibility:
			p.currentIntake() <- clientPacketEnvelope{packet: packet, from: p}
		default:
			// protocol drift from an old client; drop at the boundary
		}
	}
}

func (p *Player) WritePump() {
loop:
	for {
		select {
		case <-p.done:
			break loop
		case data := <-p.sendChan:
			if err := p.socket.Write(data); err != nil {
				break loop
			}
		case <-p.pingChan:
			if err := p.socket.Ping(); err != nil {
				break loop
			}
		}
	}
}
