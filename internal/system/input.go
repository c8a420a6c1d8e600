package system

import (
	"time"

	"github.com/voxelhall/worldgate/internal/core/event"
	coresys "github.com/voxelhall/worldgate/internal/core/system"
	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/policy"
	"github.com/voxelhall/worldgate/internal/world"
	"go.uber.org/zap"
)

// SessionSource hands new sessions to the game loop and is told when one
// is released. *net.Server implements it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	NotifyDead(sessionID uint64)
}

// InputSystem drains command queues from all sessions and runs them through
// the dispatcher. Phase 0 (Input).
//
// The dispatcher never closes connections. This system does, when an
// outcome is fatal or the violation guard gives up on a session.
type InputSystem struct {
	source     SessionSource
	dispatcher *packet.Dispatcher
	guard      *policy.Guard
	store      *net.SessionStore
	world      *world.State
	bus        *event.Bus
	stats      *Stats
	maxPerTick int
	now        func() time.Time
	log        *zap.Logger
}

func NewInputSystem(
	source SessionSource,
	dispatcher *packet.Dispatcher,
	guard *policy.Guard,
	store *net.SessionStore,
	ws *world.State,
	bus *event.Bus,
	stats *Stats,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		source:     source,
		dispatcher: dispatcher,
		guard:      guard,
		store:      store,
		world:      ws,
		bus:        bus,
		stats:      stats,
		maxPerTick: maxPerTick,
		now:        time.Now,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()

	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			s.handleDisconnect(sess)
			s.store.Remove(id)
			s.source.NotifyDead(id)
			continue
		}
		if sess.IsKicked() {
			// writer is flushing the final reply; nothing more is read
			continue
		}
		s.drain(sess)
	}

	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick queued commands, in arrival order.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case body := <-sess.InQueue:
			if !s.handle(sess, body) {
				return
			}
		default:
			return
		}
	}
}

// handle dispatches one frame body. It returns false once the session has
// been terminated.
func (s *InputSystem) handle(sess *net.Session, body []byte) bool {
	op, payload, err := net.SplitCommand(body)
	var out packet.Outcome
	if err != nil {
		out = packet.Outcome{Kind: packet.OutcomeFatal, Err: err}
	} else {
		out = s.dispatcher.Dispatch(sess, op, payload)
	}
	if s.stats != nil {
		s.stats.Record(out)
	}

	if out.Kind != packet.OutcomeInvoked && !out.IsFatal() {
		event.Emit(s.bus, event.CommandRejected{
			SessionID: sess.ID,
			Player:    sess.PlayerName,
			IP:        sess.IP,
			Opcode:    uint16(out.Opcode),
			Command:   out.Name,
			Outcome:   out.Kind.String(),
			State:     sess.State().String(),
			Detail:    out.Reason(),
			At:        s.now(),
		})
	}

	sub := policy.Subject{SessionID: sess.ID, Player: sess.PlayerName, State: sess.State()}
	if s.guard.Observe(sub, out, s.now()) == policy.Disconnect {
		s.terminate(sess, out)
		return false
	}
	return true
}

// terminate flushes whatever the handler queued (typically ACCESS_DENIED)
// and lets the writer close the connection once it is sent.
func (s *InputSystem) terminate(sess *net.Session, out packet.Outcome) {
	reason := out.Reason()
	if !out.IsFatal() {
		reason = "too many protocol violations: " + reason
		sendDisconnect(sess, "Too many protocol violations.")
	}

	s.log.Info("session terminated",
		zap.Uint64("session", sess.ID),
		zap.String("player", sess.PlayerName),
		zap.String("ip", sess.IP),
		zap.String("command", out.Name),
		zap.Stringer("state", sess.State()),
		zap.String("reason", reason),
	)
	event.Emit(s.bus, event.SessionTerminated{
		SessionID: sess.ID,
		Player:    sess.PlayerName,
		IP:        sess.IP,
		Opcode:    uint16(out.Opcode),
		Command:   out.Name,
		Reason:    reason,
		State:     sess.State().String(),
		At:        s.now(),
	})

	sess.FlushOutput()
	sess.Kick()
}

// handleDisconnect releases everything tied to a closed session.
func (s *InputSystem) handleDisconnect(sess *net.Session) {
	if p := s.world.RemovePlayer(sess.ID); p != nil {
		s.log.Info("player left", zap.String("player", p.Name), zap.Uint64("session", sess.ID))
	}
	s.guard.Forget(sess.ID)
	s.log.Debug("session closed",
		zap.Uint64("session", sess.ID),
		zap.String("ip", sess.IP),
		zap.Stringer("state", sess.State()),
	)
}

// CloseAll tells every client the server is going away and kicks it. Used
// on shutdown.
func (s *InputSystem) CloseAll() {
	for id, sess := range s.store.Raw() {
		sendDisconnect(sess, "Server shutting down.")
		sess.FlushOutput()
		sess.Kick()
		s.handleDisconnect(sess)
		s.store.Remove(id)
		s.source.NotifyDead(id)
	}
}

// SessionCount returns the number of sessions the game loop tracks.
func (s *InputSystem) SessionCount() int {
	return s.store.Count()
}

// sendDisconnect sends ACCESS_DENIED with a custom message.
func sendDisconnect(sess *net.Session, msg string) {
	w := packet.NewWriter(packet.TOCLIENT_ACCESS_DENIED)
	w.WriteU8(packet.DenyCustomString)
	w.WriteWideString(msg)
	sess.Send(w.Bytes())
}
