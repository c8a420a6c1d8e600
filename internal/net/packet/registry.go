package packet

import (
	"errors"
	"fmt"
)

// Conn is the view of a connection the dispatcher needs. Handlers receive
// the concrete session behind it.
type Conn interface {
	State() ConnState
}

// Handler executes one client command. The returned result is opaque to the
// dispatcher. An error wrapping ErrFatal ends the session; any other error is
// a recoverable handler failure.
type Handler interface {
	Handle(conn Conn, payload []byte) (any, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(conn Conn, payload []byte) (any, error)

func (f HandlerFunc) Handle(conn Conn, payload []byte) (any, error) {
	return f(conn, payload)
}

// NullHandler is bound to every unassigned opcode. The dispatcher never calls
// it; it exists so every descriptor carries a callable handler.
var NullHandler Handler = HandlerFunc(func(Conn, []byte) (any, error) {
	return nil, nil
})

// Descriptor binds an opcode to its name, required state and handler.
type Descriptor struct {
	Name       string
	Requires   Requirement
	Handler    Handler
	Deprecated bool

	null bool
}

// IsNull reports whether d is the sentinel for an unassigned opcode.
func (d Descriptor) IsNull() bool { return d.null }

var nullDescriptor = Descriptor{
	Name:     "TOSERVER_NULL",
	Requires: Any,
	Handler:  NullHandler,
	null:     true,
}

// Registry is the immutable opcode table. Every slot in [0, NumToServer)
// holds exactly one descriptor; build it with a Builder.
type Registry struct {
	table [NumToServer]Descriptor
}

// Len returns the table size.
func (reg *Registry) Len() int { return len(reg.table) }

// Valid reports whether op addresses a registry slot.
func (reg *Registry) Valid(op Opcode) bool { return int(op) < len(reg.table) }

// Lookup returns the descriptor for op. op must satisfy Valid.
func (reg *Registry) Lookup(op Opcode) Descriptor {
	return reg.table[op]
}

// Range calls fn for every slot in opcode order.
func (reg *Registry) Range(fn func(op Opcode, d Descriptor)) {
	for i := range reg.table {
		fn(Opcode(i), reg.table[i])
	}
}

var (
	ErrUnassignedOpcode = errors.New("opcode slot left unassigned")
	ErrDuplicateOpcode  = errors.New("opcode assigned twice")
	ErrOpcodeRange      = errors.New("opcode out of table range")
	ErrNilHandler       = errors.New("nil handler")
)

// Builder assembles a Registry by explicit assignment. Every slot must be
// assigned exactly once, either to a command or to the null descriptor.
type Builder struct {
	slots    [NumToServer]Descriptor
	assigned [NumToServer]bool
	errs     []error
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) set(op Opcode, d Descriptor) *Builder {
	if int(op) >= NumToServer {
		b.errs = append(b.errs, fmt.Errorf("%w: %s %s", ErrOpcodeRange, op, d.Name))
		return b
	}
	if b.assigned[op] {
		b.errs = append(b.errs, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateOpcode, op, b.slots[op].Name, d.Name))
		return b
	}
	if d.Handler == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: %s %s", ErrNilHandler, op, d.Name))
		return b
	}
	b.slots[op] = d
	b.assigned[op] = true
	return b
}

// Command assigns a live command.
func (b *Builder) Command(op Opcode, name string, req Requirement, h Handler) *Builder {
	return b.set(op, Descriptor{Name: name, Requires: req, Handler: h})
}

// Deprecated assigns a retired command. Its handler is always
// DeprecatedStub; the original logic is never reachable.
func (b *Builder) Deprecated(op Opcode, name string, req Requirement) *Builder {
	return b.set(op, Descriptor{Name: name, Requires: req, Handler: DeprecatedStub, Deprecated: true})
}

// Null assigns the null descriptor to each op.
func (b *Builder) Null(ops ...Opcode) *Builder {
	for _, op := range ops {
		b.set(op, nullDescriptor)
	}
	return b
}

// NullRange assigns the null descriptor to every op in [from, to].
func (b *Builder) NullRange(from, to Opcode) *Builder {
	for op := int(from); op <= int(to); op++ {
		b.set(Opcode(op), nullDescriptor)
	}
	return b
}

// Build validates exhaustiveness and returns the frozen registry.
func (b *Builder) Build() (*Registry, error) {
	errs := append([]error(nil), b.errs...)
	for i, ok := range b.assigned {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnassignedOpcode, Opcode(i)))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	reg := &Registry{table: b.slots}
	return reg, nil
}
