package packet

import (
	"errors"
	"fmt"
)

// OutcomeKind classifies one dispatch attempt.
type OutcomeKind uint8

const (
	OutcomeInvoked OutcomeKind = iota
	OutcomeUnknownOpcode
	OutcomeWrongState
	OutcomeDeprecatedStub
	OutcomeHandlerFailure
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInvoked:
		return "Invoked"
	case OutcomeUnknownOpcode:
		return "UnknownOpcode"
	case OutcomeWrongState:
		return "WrongState"
	case OutcomeDeprecatedStub:
		return "DeprecatedStub"
	case OutcomeHandlerFailure:
		return "HandlerFailure"
	case OutcomeFatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Outcome is the result of one Dispatch call. The session layer uses it for
// logging, metrics and disconnect decisions.
type Outcome struct {
	Kind   OutcomeKind
	Opcode Opcode
	Name   string // descriptor name; empty for out-of-range opcodes

	Result any // OutcomeInvoked

	Expected Requirement // OutcomeWrongState
	Actual   ConnState   // OutcomeWrongState

	Err error // OutcomeHandlerFailure, OutcomeFatal
}

// IsFatal reports whether the session must be torn down.
func (o Outcome) IsFatal() bool { return o.Kind == OutcomeFatal }

// IsViolation reports whether the outcome counts toward the escalation
// policy: unknown opcodes, wrong-state commands and rejected payloads.
func (o Outcome) IsViolation() bool {
	switch o.Kind {
	case OutcomeUnknownOpcode, OutcomeWrongState, OutcomeHandlerFailure:
		return true
	}
	return false
}

// Reason returns a short text describing a non-invoked outcome.
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomeWrongState:
		return fmt.Sprintf("requires %s, connection is %s", o.Expected, o.Actual)
	case OutcomeHandlerFailure, OutcomeFatal:
		if o.Err != nil {
			return o.Err.Error()
		}
	}
	return o.Kind.String()
}

func classifyError(op Opcode, name string, err error) Outcome {
	kind := OutcomeHandlerFailure
	if errors.Is(err, ErrFatal) {
		kind = OutcomeFatal
	}
	return Outcome{Kind: kind, Opcode: op, Name: name, Err: err}
}
