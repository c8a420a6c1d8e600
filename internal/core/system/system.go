package system

import "time"

// Phase orders systems within one tick.
type Phase int

const (
	PhaseInput      Phase = iota // drain session queues and dispatch commands
	PhasePreUpdate               // deliver last tick's events
	PhaseUpdate                  // game logic
	PhasePostUpdate              // housekeeping after game logic
	PhaseOutput                  // counters and periodic reports
	PhasePersist                 // batched database writes
	PhaseCleanup                 // release finished sessions
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is one unit of per-tick work.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
