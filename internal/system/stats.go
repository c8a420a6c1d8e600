package system

import (
	"time"

	"github.com/voxelhall/worldgate/internal/core/event"
	coresys "github.com/voxelhall/worldgate/internal/core/system"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"go.uber.org/zap"
)

// Stats counts dispatch outcomes by kind. Game loop only.
type Stats struct {
	counts     [packet.OutcomeFatal + 1]uint64
	terminated uint64
}

// Record counts one outcome.
func (st *Stats) Record(out packet.Outcome) {
	if int(out.Kind) < len(st.counts) {
		st.counts[out.Kind]++
	}
}

// Count returns the number of outcomes of kind k seen so far.
func (st *Stats) Count(k packet.OutcomeKind) uint64 {
	if int(k) >= len(st.counts) {
		return 0
	}
	return st.counts[k]
}

// Terminated returns the number of sessions ended by the game loop.
func (st *Stats) Terminated() uint64 { return st.terminated }

// StatsSystem logs a dispatch summary every interval. Phase 4 (Output).
type StatsSystem struct {
	stats    *Stats
	last     Stats
	interval time.Duration
	elapsed  time.Duration
	sessions func() int
	log      *zap.Logger
}

// NewStatsSystem subscribes to session terminations on bus. sessions
// reports the current session count for the summary; it may be nil.
func NewStatsSystem(stats *Stats, bus *event.Bus, interval time.Duration, sessions func() int, log *zap.Logger) *StatsSystem {
	event.Subscribe(bus, func(event.SessionTerminated) {
		stats.terminated++
	})
	return &StatsSystem{
		stats:    stats,
		interval: interval,
		sessions: sessions,
		log:      log,
	}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *StatsSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.report()
}

func (s *StatsSystem) report() {
	cur := *s.stats
	delta := func(k packet.OutcomeKind) uint64 { return cur.Count(k) - s.last.Count(k) }

	fields := make([]zap.Field, 0, 8)
	for k := packet.OutcomeInvoked; k <= packet.OutcomeFatal; k++ {
		fields = append(fields, zap.Uint64(k.String(), delta(k)))
	}
	fields = append(fields, zap.Uint64("terminated", cur.terminated-s.last.terminated))
	if s.sessions != nil {
		fields = append(fields, zap.Int("sessions", s.sessions()))
	}
	s.log.Info("dispatch stats", fields...)
	s.last = cur
}
