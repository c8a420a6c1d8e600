package handler

import (
	"context"
	"fmt"

	"github.com/voxelhall/worldgate/internal/config"
	"github.com/voxelhall/worldgate/internal/data"
	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/persist"
	"github.com/voxelhall/worldgate/internal/world"
	"go.uber.org/zap"
)

// AccountStore is the account persistence used by the handshake and
// password commands. *persist.AccountRepo satisfies it.
type AccountStore interface {
	Load(ctx context.Context, name string) (*persist.AccountRow, error)
	Create(ctx context.Context, name, rawPassword, ip string) (*persist.AccountRow, error)
	SetPassword(ctx context.Context, name, rawPassword string) error
	TouchLogin(ctx context.Context, name, ip string) error
}

// Deps holds shared dependencies injected into all command handlers.
type Deps struct {
	Accounts AccountStore
	Config   *config.Config
	Log      *zap.Logger
	World    *world.State
	Media    *data.MediaTable
}

// Transition is the result of a command that advanced the session state.
type Transition struct {
	From packet.ConnState
	To   packet.ConnState
}

// commandFunc is the shape every handler in this package has.
type commandFunc func(sess *net.Session, r *packet.Reader, deps *Deps) (any, error)

// bind adapts a commandFunc to packet.Handler. The dispatcher hands over the
// connection as packet.Conn; handlers need the concrete session.
func bind(fn commandFunc, deps *Deps) packet.Handler {
	return packet.HandlerFunc(func(conn packet.Conn, payload []byte) (any, error) {
		sess, ok := conn.(*net.Session)
		if !ok {
			return nil, packet.Fatal(fmt.Sprintf("unexpected connection type %T", conn))
		}
		return fn(sess, packet.NewReader(payload), deps)
	})
}

// decodeErr wraps a payload decode failure. It is never fatal.
func decodeErr(cmd string, r *packet.Reader) error {
	return fmt.Errorf("decode %s: %w", cmd, r.Err())
}

// NewRegistry builds the client command table. Every opcode below
// NumToServer is assigned exactly once; the layout is the protocol contract.
func NewRegistry(deps *Deps) (*packet.Registry, error) {
	var (
		notConnected = packet.Requires(packet.StateNotConnected)
		startup      = packet.Requires(packet.StateStartup)
		inGame       = packet.Requires(packet.StateInGame)
	)

	b := packet.NewBuilder()

	b.NullRange(0x00, 0x0f)
	b.Command(packet.TOSERVER_INIT, "TOSERVER_INIT", notConnected, bind(HandleInit, deps))
	b.Command(packet.TOSERVER_INIT2, "TOSERVER_INIT2", notConnected, bind(HandleInit2, deps))
	b.NullRange(0x12, 0x22)

	b.Command(packet.TOSERVER_PLAYERPOS, "TOSERVER_PLAYERPOS", inGame, bind(HandlePlayerPos, deps))
	b.Command(packet.TOSERVER_GOTBLOCKS, "TOSERVER_GOTBLOCKS", startup, bind(HandleGotBlocks, deps))
	b.Command(packet.TOSERVER_DELETEDBLOCKS, "TOSERVER_DELETEDBLOCKS", inGame, bind(HandleDeletedBlocks, deps))
	b.Null(0x26)

	b.Deprecated(packet.TOSERVER_CLICK_OBJECT, "TOSERVER_CLICK_OBJECT", inGame)
	b.Deprecated(packet.TOSERVER_GROUND_ACTION, "TOSERVER_GROUND_ACTION", inGame)
	b.Deprecated(packet.TOSERVER_RELEASE, "TOSERVER_RELEASE", inGame)
	b.NullRange(0x2a, 0x2f)

	b.Deprecated(packet.TOSERVER_SIGNTEXT, "TOSERVER_SIGNTEXT", inGame)
	b.Command(packet.TOSERVER_INVENTORY_ACTION, "TOSERVER_INVENTORY_ACTION", inGame, bind(HandleInventoryAction, deps))
	b.Command(packet.TOSERVER_CHAT_MESSAGE, "TOSERVER_CHAT_MESSAGE", inGame, bind(HandleChatMessage, deps))
	b.Deprecated(packet.TOSERVER_SIGNNODETEXT, "TOSERVER_SIGNNODETEXT", inGame)
	b.Deprecated(packet.TOSERVER_CLICK_ACTIVEOBJECT, "TOSERVER_CLICK_ACTIVEOBJECT", inGame)
	b.Command(packet.TOSERVER_DAMAGE, "TOSERVER_DAMAGE", inGame, bind(HandleDamage, deps))
	b.Command(packet.TOSERVER_PASSWORD, "TOSERVER_PASSWORD", inGame, bind(HandlePassword, deps))
	b.Command(packet.TOSERVER_PLAYERITEM, "TOSERVER_PLAYERITEM", inGame, bind(HandlePlayerItem, deps))
	b.Command(packet.TOSERVER_RESPAWN, "TOSERVER_RESPAWN", inGame, bind(HandleRespawn, deps))
	b.Command(packet.TOSERVER_INTERACT, "TOSERVER_INTERACT", inGame, bind(HandleInteract, deps))
	b.Command(packet.TOSERVER_REMOVED_SOUNDS, "TOSERVER_REMOVED_SOUNDS", inGame, bind(HandleRemovedSounds, deps))
	b.Command(packet.TOSERVER_NODEMETA_FIELDS, "TOSERVER_NODEMETA_FIELDS", inGame, bind(HandleNodeMetaFields, deps))
	b.Command(packet.TOSERVER_INVENTORY_FIELDS, "TOSERVER_INVENTORY_FIELDS", inGame, bind(HandleInventoryFields, deps))
	b.NullRange(0x3d, 0x3f)

	b.Command(packet.TOSERVER_REQUEST_MEDIA, "TOSERVER_REQUEST_MEDIA", startup, bind(HandleRequestMedia, deps))
	b.Command(packet.TOSERVER_RECEIVED_MEDIA, "TOSERVER_RECEIVED_MEDIA", startup, bind(HandleReceivedMedia, deps))
	b.Command(packet.TOSERVER_BREATH, "TOSERVER_BREATH", inGame, bind(HandleBreath, deps))
	b.Command(packet.TOSERVER_CLIENT_READY, "TOSERVER_CLIENT_READY", startup, bind(HandleClientReady, deps))

	return b.Build()
}

// playerOf returns the world player for sess. Commands past INIT2 always
// have one; a missing player means the session was torn down underneath us.
func playerOf(sess *net.Session, deps *Deps) (*world.PlayerInfo, error) {
	p := deps.World.GetBySession(sess.ID)
	if p == nil {
		return nil, packet.Fatal("no player attached to session")
	}
	return p, nil
}
