// Package policy escalates repeated protocol violations into disconnects.
// The dispatcher only classifies commands; this layer decides when a stream
// of non-fatal violations has gone on long enough to drop the client.
package policy

import (
	"time"

	"github.com/voxelhall/worldgate/internal/config"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/scripting"
	"go.uber.org/zap"
)

// maxHistory bounds the violations held per session when neither the
// window nor the threshold would trim them.
const maxHistory = 256

// Verdict is the policy decision for one outcome.
type Verdict uint8

const (
	Continue Verdict = iota
	Disconnect
)

func (v Verdict) String() string {
	if v == Disconnect {
		return "Disconnect"
	}
	return "Continue"
}

// Hook lets a script override the threshold rule. scripting.Engine
// implements it.
type Hook interface {
	OnViolation(ctx scripting.ViolationContext) (disconnect, handled bool)
}

// Subject identifies the session an outcome belongs to.
type Subject struct {
	SessionID uint64
	Player    string
	State     packet.ConnState
}

// Guard counts violations per session inside a sliding window.
// Game loop only.
type Guard struct {
	limit  int
	window time.Duration
	hook   Hook
	seen   map[uint64][]time.Time
	log    *zap.Logger
}

// NewGuard builds a guard. hook may be nil.
func NewGuard(cfg config.PolicyConfig, hook Hook, log *zap.Logger) *Guard {
	return &Guard{
		limit:  cfg.MaxViolations,
		window: cfg.Window,
		hook:   hook,
		seen:   make(map[uint64][]time.Time),
		log:    log,
	}
}

// Observe records out for sub and returns the decision. Fatal outcomes
// always disconnect; outcomes that are not violations never do.
func (g *Guard) Observe(sub Subject, out packet.Outcome, now time.Time) Verdict {
	if out.IsFatal() {
		return Disconnect
	}
	if !out.IsViolation() {
		return Continue
	}
	if g.limit <= 0 && g.hook == nil {
		return Continue
	}

	count := g.record(sub.SessionID, now)

	if g.hook != nil {
		disc, handled := g.hook.OnViolation(scripting.ViolationContext{
			SessionID: sub.SessionID,
			Player:    sub.Player,
			Kind:      out.Kind.String(),
			Command:   out.Name,
			Opcode:    int(out.Opcode),
			State:     sub.State.String(),
			Count:     count,
			Limit:     g.limit,
		})
		if handled {
			return g.verdict(sub, out, count, disc)
		}
	}

	return g.verdict(sub, out, count, g.limit > 0 && count > g.limit)
}

func (g *Guard) verdict(sub Subject, out packet.Outcome, count int, disconnect bool) Verdict {
	if !disconnect {
		return Continue
	}
	g.log.Warn("violation limit reached",
		zap.Uint64("session", sub.SessionID),
		zap.String("player", sub.Player),
		zap.String("last", out.Kind.String()),
		zap.Int("count", count),
		zap.Duration("window", g.window),
	)
	return Disconnect
}

// record appends a violation at now, drops those outside the window and
// returns how many remain. At most limit+1 (or maxHistory without a limit)
// are kept, so the count saturates rather than growing without bound.
func (g *Guard) record(id uint64, now time.Time) int {
	times := append(g.seen[id], now)
	if g.window > 0 {
		cutoff := now.Add(-g.window)
		i := 0
		for i < len(times) && !times[i].After(cutoff) {
			i++
		}
		times = times[i:]
	}
	keep := maxHistory
	if g.limit > 0 {
		keep = g.limit + 1
	}
	if n := len(times); n > keep {
		times = append(times[:0:0], times[n-keep:]...)
	}
	g.seen[id] = times
	return len(times)
}

// Count returns the violations currently held for a session.
func (g *Guard) Count(id uint64) int {
	return len(g.seen[id])
}

// Forget drops all history for a session.
func (g *Guard) Forget(id uint64) {
	delete(g.seen, id)
}
