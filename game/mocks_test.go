package game

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/quizhive/api/domain"
)

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Close(errCode string) {
	m.Called(errCode)
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- QuestionBank ---

type MockQuestionBank struct {
	mock.Mock
}

func (m *MockQuestionBank) DrawQuestion(ctx context.Context, difficulty Difficulty, exclude []string) (domain.Question, error) {
	args := m.Called(ctx, difficulty, exclude)
	return args.Get(0).(domain.Question), args.Error(1)
}

// --- LeaderboardStore ---

type MockLeaderboardStore struct {
	mock.Mock
}

func (m *MockLeaderboardStore) FlushStandings(ctx context.Context, deltas []domain.StandingDelta) error {
	args := m.Called(ctx, deltas)
	return args.Error(0)
}

// --- BadgeIssuer ---

type MockBadgeIssuer struct {
	mock.Mock
}

func (m *MockBadgeIssuer) IssueBadge(ctx context.Context, event domain.BadgeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// --- SnapshotSink ---

type MockSnapshotSink struct {
	mock.Mock
}

func (m *MockSnapshotSink) PublishSnapshot(ctx context.Context, snapshot RoomListSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// --- KickPublisher ---

type MockKickPublisher struct {
	mock.Mock
}

func (m *MockKickPublisher) PublishKick(ctx context.Context, userId string, sessionId string) error {
	args := m.Called(ctx, userId, sessionId)
	return args.Error(0)
}

// --- UserGetter ---

type MockUserGetter struct {
	mock.Mock
}

func (m *MockUserGetter) GetUserById(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

// --- RoomPlayer ---

// fakePlayer records everything sent to it so scenario tests can assert on
// the packet stream per seat. Mutex-guarded because lobby tests exercise it
// from the actor goroutines.
type fakePlayer struct {
	id        string
	name      string
	sessionId string

	locker   sync.Mutex
	sent     []*ServerPacket
	pings    int
	released []string
	intake   chan<- clientPacketEnvelope
}

func newFakePlayer(id, name string) *fakePlayer {
	return &fakePlayer{id: id, name: name, sessionId: "session-" + id}
}

func (p *fakePlayer) Id() string        { return p.id }
func (p *fakePlayer) Name() string      { return p.name }
func (p *fakePlayer) SessionId() string { return p.sessionId }

func (p *fakePlayer) Send(packet *ServerPacket) {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.sent = append(p.sent, packet)
}

func (p *fakePlayer) Ping() {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.pings++
}

func (p *fakePlayer) SetIntake(intake chan<- clientPacketEnvelope) {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.intake = intake
}

func (p *fakePlayer) Intake() chan<- clientPacketEnvelope {
	p.locker.Lock()
	defer p.locker.Unlock()
	return p.intake
}

func (p *fakePlayer) CancelAndRelease(reason string) {
	p.locker.Lock()
	defer p.locker.Unlock()
	p.released = append(p.released, reason)
}

func (p *fakePlayer) pingCount() int {
	p.locker.Lock()
	defer p.locker.Unlock()
	return p.pings
}

func (p *fakePlayer) releasedReasons() []string {
	p.locker.Lock()
	defer p.locker.Unlock()
	return append([]string{}, p.released...)
}

// lastPacket returns the most recent packet of the given type, or nil.
func (p *fakePlayer) lastPacket(packetType string) *ServerPacket {
	p.locker.Lock()
	defer p.locker.Unlock()
	for i := len(p.sent) - 1; i >= 0; i-- {
		if p.sent[i].Type == packetType {
			return p.sent[i]
		}
	}
	return nil
}

func (p *fakePlayer) countPackets(packetType string) int {
	p.locker.Lock()
	defer p.locker.Unlock()
	count := 0
	for _, packet := range p.sent {
		if packet.Type == packetType {
			count++
		}
	}
	return count
}
