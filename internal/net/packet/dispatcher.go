package packet

import (
	"fmt"

	"go.uber.org/zap"
)

type deprecatedStub struct{}

// Handle does nothing. Retired commands are accepted so that older clients
// are not treated as hostile, but they never reach domain logic.
func (deprecatedStub) Handle(Conn, []byte) (any, error) { return nil, nil }

// DeprecatedStub is the fixed handler of every retired command.
var DeprecatedStub Handler = deprecatedStub{}

// Dispatcher routes client commands through the registry after validating
// the issuing connection's state. It never closes connections; it only
// classifies what happened.
type Dispatcher struct {
	reg *Registry
	log *zap.Logger
}

func NewDispatcher(reg *Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log}
}

// Registry returns the table the dispatcher routes through.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Dispatch validates op against conn's state and runs its handler.
// Calls for the same conn must not overlap.
func (d *Dispatcher) Dispatch(conn Conn, op Opcode, payload []byte) Outcome {
	state := conn.State()

	if !d.reg.Valid(op) {
		d.log.Debug("opcode out of range",
			zap.Uint16("opcode", uint16(op)),
			zap.String("state", state.String()),
		)
		return Outcome{Kind: OutcomeUnknownOpcode, Opcode: op}
	}

	desc := d.reg.Lookup(op)
	if desc.IsNull() {
		d.log.Debug("unassigned opcode",
			zap.Uint16("opcode", uint16(op)),
			zap.String("state", state.String()),
		)
		return Outcome{Kind: OutcomeUnknownOpcode, Opcode: op, Name: desc.Name}
	}

	if desc.Deprecated {
		d.log.Debug("deprecated command",
			zap.String("cmd", desc.Name),
			zap.String("state", state.String()),
		)
		if _, err := d.safeCall(DeprecatedStub, conn, payload, op, desc.Name); err != nil {
			return classifyError(op, desc.Name, err)
		}
		return Outcome{Kind: OutcomeDeprecatedStub, Opcode: op, Name: desc.Name}
	}

	if !desc.Requires.Allows(state) {
		d.log.Warn("command not allowed in state",
			zap.String("cmd", desc.Name),
			zap.String("requires", desc.Requires.String()),
			zap.String("state", state.String()),
		)
		return Outcome{
			Kind:     OutcomeWrongState,
			Opcode:   op,
			Name:     desc.Name,
			Expected: desc.Requires,
			Actual:   state,
		}
	}

	d.log.Debug("dispatch",
		zap.String("cmd", desc.Name),
		zap.Int("size", len(payload)),
		zap.String("state", state.String()),
	)
	result, err := d.safeCall(desc.Handler, conn, payload, op, desc.Name)
	if err != nil {
		out := classifyError(op, desc.Name, err)
		if out.IsFatal() {
			d.log.Warn("command fatal", zap.String("cmd", desc.Name), zap.Error(err))
		} else {
			d.log.Debug("command rejected", zap.String("cmd", desc.Name), zap.Error(err))
		}
		return out
	}
	return Outcome{Kind: OutcomeInvoked, Opcode: op, Name: desc.Name, Result: result}
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot take down the game loop.
func (d *Dispatcher) safeCall(h Handler, conn Conn, payload []byte, op Opcode, name string) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("handler panic recovered",
				zap.String("cmd", name),
				zap.Uint16("opcode", uint16(op)),
				zap.Any("panic", rec),
			)
			result = nil
			err = fmt.Errorf("handler panic for %s: %v", name, rec)
		}
	}()
	return h.Handle(conn, payload)
}
