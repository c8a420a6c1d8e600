package event

import "time"

// CommandRejected is emitted for every dispatch that did not run a handler
// successfully: unknown opcodes, wrong-state commands, deprecated stubs and
// handler failures.
type CommandRejected struct {
	SessionID uint64
	Player    string
	IP        string
	Opcode    uint16
	Command   string
	Outcome   string
	State     string
	Detail    string
	At        time.Time
}

// SessionTerminated is emitted when the game loop ends a session, either
// after a fatal outcome or because the violation policy gave up on it.
type SessionTerminated struct {
	SessionID uint64
	Player    string
	IP        string
	Opcode    uint16
	Command   string
	Reason    string
	State     string
	At        time.Time
}
