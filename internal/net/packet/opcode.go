package packet

import "fmt"

// Opcode identifies a client-to-server command. The wire carries it as a
// big-endian uint16; only [0, NumToServer) addresses the registry.
type Opcode uint16

// Client -> server opcodes. Gaps are reserved and resolve to the null
// descriptor. Values are the protocol's compatibility contract.
const (
	TOSERVER_INIT  Opcode = 0x10
	TOSERVER_INIT2 Opcode = 0x11

	TOSERVER_PLAYERPOS     Opcode = 0x23
	TOSERVER_GOTBLOCKS     Opcode = 0x24
	TOSERVER_DELETEDBLOCKS Opcode = 0x25

	TOSERVER_CLICK_OBJECT  Opcode = 0x27 // retired
	TOSERVER_GROUND_ACTION Opcode = 0x28 // retired
	TOSERVER_RELEASE       Opcode = 0x29 // retired

	TOSERVER_SIGNTEXT           Opcode = 0x30 // retired
	TOSERVER_INVENTORY_ACTION   Opcode = 0x31
	TOSERVER_CHAT_MESSAGE       Opcode = 0x32
	TOSERVER_SIGNNODETEXT       Opcode = 0x33 // retired
	TOSERVER_CLICK_ACTIVEOBJECT Opcode = 0x34 // retired
	TOSERVER_DAMAGE             Opcode = 0x35
	TOSERVER_PASSWORD           Opcode = 0x36
	TOSERVER_PLAYERITEM         Opcode = 0x37
	TOSERVER_RESPAWN            Opcode = 0x38
	TOSERVER_INTERACT           Opcode = 0x39
	TOSERVER_REMOVED_SOUNDS     Opcode = 0x3a
	TOSERVER_NODEMETA_FIELDS    Opcode = 0x3b
	TOSERVER_INVENTORY_FIELDS   Opcode = 0x3c

	TOSERVER_REQUEST_MEDIA  Opcode = 0x40
	TOSERVER_RECEIVED_MEDIA Opcode = 0x41
	TOSERVER_BREATH         Opcode = 0x42
	TOSERVER_CLIENT_READY   Opcode = 0x43

	// NumToServer is the size of the client command table.
	NumToServer = 0x44
)

// Server -> client opcodes sent by the command handlers.
const (
	TOCLIENT_AUTH_ACCEPT    uint16 = 0x03
	TOCLIENT_ACCESS_DENIED  uint16 = 0x0A
	TOCLIENT_CHAT_MESSAGE   uint16 = 0x30
	TOCLIENT_HP             uint16 = 0x33
	TOCLIENT_DEATHSCREEN    uint16 = 0x37
	TOCLIENT_MEDIA          uint16 = 0x38
	TOCLIENT_ANNOUNCE_MEDIA uint16 = 0x3C
	TOCLIENT_BREATH         uint16 = 0x4E
)

// Access denied reason codes carried by TOCLIENT_ACCESS_DENIED.
const (
	DenyWrongPassword    byte = 0
	DenyWrongName        byte = 1
	DenyWrongCharsInName byte = 2
	DenyWrongVersion     byte = 3
	DenyServerFail       byte = 6
	DenyAlreadyConnected byte = 8
	DenyUnexpectedData   byte = 10
	DenyCustomString     byte = 11
)

func (op Opcode) String() string {
	return fmt.Sprintf("0x%02X", uint16(op))
}
