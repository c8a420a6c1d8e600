package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }

func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

type panicky struct{}

func (panicky) Phase() Phase { return PhaseUpdate }

func (panicky) Update(time.Duration) { panic("boom") }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner(0, zap.NewNop())
	r.Register(recorder{"persist", PhasePersist, &log})
	r.Register(recorder{"input-a", PhaseInput, &log})
	r.Register(recorder{"output", PhaseOutput, &log})
	r.Register(recorder{"input-b", PhaseInput, &log})
	assert.Equal(t, 4, r.Len())

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input-a", "input-b", "output", "persist"}, log)

	log = nil
	r.TickPhase(PhaseInput, time.Millisecond)
	assert.Equal(t, []string{"input-a", "input-b"}, log)

	log = nil
	r.TickPhase(Phase(42), time.Millisecond)
	assert.Empty(t, log)
}

func TestRunnerRecoversPanickingSystem(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var log []string
	r := NewRunner(0, zap.New(core))
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(panicky{})
	r.Register(recorder{"persist", PhasePersist, &log})

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input", "persist"}, log)
	require.Equal(t, 1, logs.FilterMessage("system panic recovered").Len())
	assert.Equal(t, "system.panicky", logs.All()[0].ContextMap()["system"])
}

func TestRunnerWarnsWhenTickOverBudget(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRunner(50*time.Millisecond, zap.New(core))
	t0 := time.Unix(1000, 0)
	calls := 0
	r.now = func() time.Time {
		calls++
		if calls == 1 {
			return t0
		}
		return t0.Add(80 * time.Millisecond)
	}

	r.Tick(time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("tick over budget").Len())
}

func TestRunnerUnknownPhaseRunsLast(t *testing.T) {
	var log []string
	r := NewRunner(0, zap.NewNop())
	r.Register(recorder{"odd", Phase(42), &log})
	r.Register(recorder{"cleanup", PhaseCleanup, &log})
	r.Register(recorder{"input", PhaseInput, &log})

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input", "odd", "cleanup"}, log)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "input", PhaseInput.String())
	assert.Equal(t, "persist", PhasePersist.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
