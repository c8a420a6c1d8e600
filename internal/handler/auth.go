package handler

import (
	"context"
	"errors"
	"time"

	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/persist"
	"github.com/voxelhall/worldgate/internal/world"
	"go.uber.org/zap"
)

// serializationVersion is the highest map serialization format we speak.
const serializationVersion = 28

const accountTimeout = 5 * time.Second

var (
	ErrWrongPassword = errors.New("wrong password")
	ErrEmptyPassword = errors.New("empty password")
	ErrNoAccount     = errors.New("account not found")
)

// Login is the result of a successful TOSERVER_INIT.
type Login struct {
	Name     string
	Protocol uint16
	Created  bool
}

// HandleInit processes TOSERVER_INIT (0x10).
// Format: [u8 ser_ver][u16 proto_min][u16 proto_max][string name][string password]
//
// Authentication does not change the session state; INIT2 does. Every
// rejection sends ACCESS_DENIED and ends the session.
func HandleInit(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	serVer := r.ReadU8()
	protoMin := r.ReadU16()
	protoMax := r.ReadU16()
	name := r.ReadString()
	password := r.ReadString()
	if r.Err() != nil {
		return nil, deny(sess, packet.DenyUnexpectedData, decodeErr("TOSERVER_INIT", r).Error())
	}
	if sess.Authenticated {
		return nil, deny(sess, packet.DenyUnexpectedData, "duplicate TOSERVER_INIT")
	}
	if serVer < serializationVersion {
		return nil, deny(sess, packet.DenyWrongVersion, "serialization version too old")
	}

	auth := deps.Config.Auth
	proto := min(protoMax, auth.MaxProtocol)
	if proto < max(protoMin, auth.MinProtocol) {
		deps.Log.Info("protocol mismatch",
			zap.String("ip", sess.IP),
			zap.Uint16("client_min", protoMin),
			zap.Uint16("client_max", protoMax),
		)
		return nil, deny(sess, packet.DenyWrongVersion, "unsupported protocol version")
	}

	if name == "" || len(name) > auth.MaxNameLength {
		return nil, deny(sess, packet.DenyWrongName, "bad name length")
	}
	if !validName(name) {
		return nil, deny(sess, packet.DenyWrongCharsInName, "bad characters in name")
	}
	if deps.World.GetByName(name) != nil {
		return nil, deny(sess, packet.DenyAlreadyConnected, "player already connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), accountTimeout)
	defer cancel()

	created := false
	account, err := deps.Accounts.Load(ctx, name)
	if err != nil {
		deps.Log.Error("load account", zap.String("account", name), zap.Error(err))
		return nil, deny(sess, packet.DenyServerFail, "account lookup failed")
	}
	if account == nil {
		if !auth.AutoCreateAccounts || password == "" {
			return nil, deny(sess, packet.DenyWrongPassword, "unknown account")
		}
		account, err = deps.Accounts.Create(ctx, name, password, sess.IP)
		if err != nil {
			deps.Log.Error("create account", zap.String("account", name), zap.Error(err))
			return nil, deny(sess, packet.DenyServerFail, "account creation failed")
		}
		created = true
		deps.Log.Info("account created", zap.String("account", name), zap.String("ip", sess.IP))
	} else if !persist.CheckPassword(account.PasswordHash, password) {
		return nil, deny(sess, packet.DenyWrongPassword, "wrong password")
	}

	if account.Banned {
		deps.Log.Info("banned account refused", zap.String("account", name), zap.String("ip", sess.IP))
		return nil, deny(sess, packet.DenyCustomString, "banned")
	}

	if err := deps.Accounts.TouchLogin(ctx, name, sess.IP); err != nil {
		deps.Log.Error("update last login", zap.String("account", name), zap.Error(err))
	}

	sess.PlayerName = name
	sess.Authenticated = true
	sess.ProtoVersion = proto
	sendAuthAccept(sess, proto)

	deps.Log.Info("login accepted",
		zap.String("account", name),
		zap.String("ip", sess.IP),
		zap.Uint16("protocol", proto),
	)
	return Login{Name: name, Protocol: proto, Created: created}, nil
}

// HandleInit2 processes TOSERVER_INIT2 (0x11). Payload is empty.
// It requires an accepted INIT and moves the session to Startup.
func HandleInit2(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	if !sess.Authenticated {
		return nil, packet.Fatal("TOSERVER_INIT2 before successful TOSERVER_INIT")
	}
	if other := deps.World.GetByName(sess.PlayerName); other != nil && other.SessionID != sess.ID {
		return nil, deny(sess, packet.DenyAlreadyConnected, "player already connected")
	}

	from := sess.State()
	if err := sess.Transition(packet.StateStartup); err != nil {
		return nil, err
	}

	cfg := deps.Config.Game
	deps.World.AddPlayer(world.NewPlayer(sess, sess.PlayerName, cfg.MaxHP, cfg.MaxBreath))
	sendAnnounceMedia(sess, deps.Media)

	return Transition{From: from, To: sess.State()}, nil
}

// HandlePassword processes TOSERVER_PASSWORD (0x36).
// Format: [string old][string new]
func HandlePassword(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	oldPw := r.ReadString()
	newPw := r.ReadString()
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_PASSWORD", r)
	}
	if newPw == "" {
		sendChat(sess, "Password change failed: empty password.")
		return nil, ErrEmptyPassword
	}

	ctx, cancel := context.WithTimeout(context.Background(), accountTimeout)
	defer cancel()

	account, err := deps.Accounts.Load(ctx, sess.PlayerName)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrNoAccount
	}
	if !persist.CheckPassword(account.PasswordHash, oldPw) {
		deps.Log.Info("password change refused", zap.String("account", sess.PlayerName))
		sendChat(sess, "Password change failed: wrong old password.")
		return nil, ErrWrongPassword
	}
	if err := deps.Accounts.SetPassword(ctx, sess.PlayerName, newPw); err != nil {
		return nil, err
	}

	sendChat(sess, "Password change successful.")
	deps.Log.Info("password changed", zap.String("account", sess.PlayerName))
	return nil, nil
}

// deny sends ACCESS_DENIED and returns the fatal error that ends the session.
func deny(sess *net.Session, reason byte, detail string) error {
	sendAccessDenied(sess, reason, detail)
	return packet.Fatal("access denied: " + detail)
}

func validName(name string) bool {
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
