package system

import (
	stdnet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxelhall/worldgate/internal/config"
	"github.com/voxelhall/worldgate/internal/core/event"
	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/policy"
	"github.com/voxelhall/worldgate/internal/world"
	"go.uber.org/zap"
)

type fakeSource struct {
	ch   chan *net.Session
	dead []uint64
}

func (f *fakeSource) NewSessions() <-chan *net.Session { return f.ch }

func (f *fakeSource) NotifyDead(id uint64) { f.dead = append(f.dead, id) }

const (
	opLogin packet.Opcode = 0x10
	opPing  packet.Opcode = 0x20
)

// testRegistry has a login command that moves to Startup, or denies when
// the payload starts with 0xFF, and a ping command valid in Startup.
func testRegistry(t *testing.T) *packet.Registry {
	t.Helper()
	login := packet.HandlerFunc(func(conn packet.Conn, payload []byte) (any, error) {
		sess := conn.(*net.Session)
		if len(payload) > 0 && payload[0] == 0xFF {
			w := packet.NewWriter(packet.TOCLIENT_ACCESS_DENIED)
			w.WriteU8(packet.DenyWrongPassword)
			sess.Send(w.Bytes())
			return nil, packet.Fatal("denied")
		}
		return nil, sess.Transition(packet.StateStartup)
	})
	ping := packet.HandlerFunc(func(packet.Conn, []byte) (any, error) { return "pong", nil })

	reg, err := packet.NewBuilder().
		NullRange(0x00, 0x0f).
		Command(opLogin, "TEST_LOGIN", packet.Requires(packet.StateNotConnected), login).
		NullRange(0x11, 0x1f).
		Command(opPing, "TEST_PING", packet.Requires(packet.StateStartup), ping).
		NullRange(0x21, packet.NumToServer-1).
		Build()
	require.NoError(t, err)
	return reg
}

type inputHarness struct {
	input  *InputSystem
	source *fakeSource
	guard  *policy.Guard
	world  *world.State
	bus    *event.Bus
	stats  *Stats
}

func newInputHarness(t *testing.T, maxViolations, maxPerTick int) *inputHarness {
	t.Helper()
	source := &fakeSource{ch: make(chan *net.Session, 4)}
	guard := policy.NewGuard(config.PolicyConfig{MaxViolations: maxViolations, Window: time.Minute}, nil, zap.NewNop())
	ws := world.NewState()
	bus := event.NewBus()
	stats := &Stats{}
	disp := packet.NewDispatcher(testRegistry(t), zap.NewNop())
	return &inputHarness{
		input:  NewInputSystem(source, disp, guard, net.NewSessionStore(), ws, bus, stats, maxPerTick, zap.NewNop()),
		source: source,
		guard:  guard,
		world:  ws,
		bus:    bus,
		stats:  stats,
	}
}

func (h *inputHarness) connect(t *testing.T, id uint64) *net.Session {
	t.Helper()
	server, client := stdnet.Pipe()
	t.Cleanup(func() { client.Close() })
	sess := net.NewSession(server, id, net.SessionOptions{InQueueSize: 16, OutQueueSize: 16}, zap.NewNop())
	t.Cleanup(sess.Close)
	h.source.ch <- sess
	return sess
}

func frame(op packet.Opcode, payload ...byte) []byte {
	return append([]byte{byte(op >> 8), byte(op)}, payload...)
}

func TestInputDispatchesQueuedCommands(t *testing.T) {
	h := newInputHarness(t, 0, 8)
	sess := h.connect(t, 1)
	sess.InQueue <- frame(opPing)
	sess.InQueue <- frame(opLogin)
	sess.InQueue <- frame(opPing)
	sess.InQueue <- frame(0x05)

	h.input.Update(0)

	assert.Equal(t, 1, h.input.SessionCount())
	assert.Equal(t, packet.StateStartup, sess.State())
	assert.Equal(t, uint64(2), h.stats.Count(packet.OutcomeInvoked))
	assert.Equal(t, uint64(1), h.stats.Count(packet.OutcomeWrongState), "ping before login")
	assert.Equal(t, uint64(1), h.stats.Count(packet.OutcomeUnknownOpcode))
	assert.False(t, sess.IsKicked(), "violations alone never disconnect without a limit")

	var rejected []event.CommandRejected
	event.Subscribe(h.bus, func(ev event.CommandRejected) { rejected = append(rejected, ev) })
	h.bus.SwapBuffers()
	h.bus.DispatchAll()
	require.Len(t, rejected, 2)
	assert.Equal(t, "WrongState", rejected[0].Outcome)
	assert.Equal(t, "TEST_PING", rejected[0].Command)
	assert.Equal(t, "UnknownOpcode", rejected[1].Outcome)
}

func TestInputRespectsPerTickBudget(t *testing.T) {
	h := newInputHarness(t, 0, 2)
	sess := h.connect(t, 1)
	for i := 0; i < 3; i++ {
		sess.InQueue <- frame(0x01)
	}

	h.input.Update(0)
	assert.Len(t, sess.InQueue, 1)
	h.input.Update(0)
	assert.Empty(t, sess.InQueue)
}

func TestInputFatalKicksAfterFlushingReply(t *testing.T) {
	h := newInputHarness(t, 0, 8)
	sess := h.connect(t, 1)
	sess.InQueue <- frame(opLogin, 0xFF)
	sess.InQueue <- frame(opLogin)

	h.input.Update(0)

	assert.True(t, sess.IsKicked())
	assert.Equal(t, packet.StateNotConnected, sess.State(), "commands after a fatal one are not run")
	assert.Len(t, sess.InQueue, 1)
	require.Len(t, sess.OutQueue, 1)
	reply := <-sess.OutQueue
	assert.Equal(t, []byte{0x00, byte(packet.TOCLIENT_ACCESS_DENIED), packet.DenyWrongPassword}, reply)
	assert.Equal(t, uint64(1), h.stats.Count(packet.OutcomeFatal))

	var terminated []event.SessionTerminated
	event.Subscribe(h.bus, func(ev event.SessionTerminated) { terminated = append(terminated, ev) })
	h.bus.SwapBuffers()
	h.bus.DispatchAll()
	require.Len(t, terminated, 1)
	assert.Contains(t, terminated[0].Reason, "denied")

	h.input.Update(0)
	assert.Len(t, sess.InQueue, 1, "kicked sessions are not read")
}

func TestInputShortFrameIsFatal(t *testing.T) {
	h := newInputHarness(t, 0, 8)
	sess := h.connect(t, 1)
	sess.InQueue <- []byte{0x10}

	h.input.Update(0)
	assert.True(t, sess.IsKicked())
}

func TestInputPolicyDisconnect(t *testing.T) {
	h := newInputHarness(t, 2, 8)
	sess := h.connect(t, 1)
	for i := 0; i < 4; i++ {
		sess.InQueue <- frame(0x01)
	}

	h.input.Update(0)

	assert.True(t, sess.IsKicked())
	assert.Len(t, sess.InQueue, 1, "dispatch stops at the third violation")
	require.Len(t, sess.OutQueue, 1)
	reply := <-sess.OutQueue
	assert.Equal(t, byte(packet.TOCLIENT_ACCESS_DENIED), reply[1])
	assert.Equal(t, packet.DenyCustomString, reply[2])
}

func TestInputReleasesClosedSessions(t *testing.T) {
	h := newInputHarness(t, 5, 8)
	sess := h.connect(t, 7)
	sess.InQueue <- frame(0x01)
	h.input.Update(0)
	h.world.AddPlayer(world.NewPlayer(sess, "alice", 20, 11))
	require.Equal(t, 1, h.guard.Count(7))

	sess.Close()
	h.input.Update(0)

	assert.Zero(t, h.input.SessionCount())
	assert.Nil(t, h.world.GetBySession(7))
	assert.Zero(t, h.guard.Count(7))
	assert.Equal(t, []uint64{7}, h.source.dead)
}

func TestInputCloseAll(t *testing.T) {
	h := newInputHarness(t, 0, 8)
	a := h.connect(t, 1)
	b := h.connect(t, 2)
	h.input.Update(0)
	require.Equal(t, 2, h.input.SessionCount())

	h.input.CloseAll()
	assert.Zero(t, h.input.SessionCount())
	assert.True(t, a.IsKicked())
	assert.True(t, b.IsKicked())
	assert.Len(t, a.OutQueue, 1)
	assert.ElementsMatch(t, []uint64{1, 2}, h.source.dead)
}
