package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes registered systems phase by phase each tick. Systems in
// the same phase run in registration order.
//
// A panicking system is logged and skipped for that tick; the rest of the
// tick still runs. Ticks that take longer than the budget are reported.
type Runner struct {
	phases [PhaseCleanup + 1][]System
	count  int
	budget time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewRunner creates a runner. budget is the tick interval; zero disables
// slow-tick warnings.
func NewRunner(budget time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		budget: budget,
		now:    time.Now,
		log:    log,
	}
}

// Register adds s to its phase. Systems reporting an unknown phase run in
// PhaseCleanup.
func (r *Runner) Register(s System) {
	p := s.Phase()
	if p < PhaseInput || p > PhaseCleanup {
		r.log.Warn("system registered with unknown phase", zap.Int("phase", int(p)))
		p = PhaseCleanup
	}
	r.phases[p] = append(r.phases[p], s)
	r.count++
}

// Len returns the number of registered systems.
func (r *Runner) Len() int { return r.count }

// Tick runs every phase in order.
func (r *Runner) Tick(dt time.Duration) {
	start := r.now()
	for p := range r.phases {
		r.runPhase(Phase(p), dt)
	}
	if elapsed := r.now().Sub(start); r.budget > 0 && elapsed > r.budget {
		r.log.Warn("tick over budget",
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", r.budget),
		)
	}
}

// TickPhase runs only the systems of one phase. Used on shutdown to
// deliver pending events outside the regular tick.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	if phase < PhaseInput || phase > PhaseCleanup {
		return
	}
	r.runPhase(phase, dt)
}

func (r *Runner) runPhase(phase Phase, dt time.Duration) {
	for _, s := range r.phases[phase] {
		r.update(phase, s, dt)
	}
}

func (r *Runner) update(phase Phase, s System, dt time.Duration) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("system panic recovered",
				zap.Stringer("phase", phase),
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Any("panic", v),
				zap.Stack("stack"),
			)
		}
	}()
	s.Update(dt)
}
