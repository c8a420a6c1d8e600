package handler

import (
	"errors"

	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"go.uber.org/zap"
)

var ErrNotDead = errors.New("respawn requested while alive")

// HandlePlayerPos processes TOSERVER_PLAYERPOS (0x23).
// Format: [v3s32 pos][v3s32 speed][s32 pitch][s32 yaw] optionally followed
// by [u32 keys]. Positions from a dead player are ignored.
func HandlePlayerPos(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	pos := r.ReadV3S32()
	speed := r.ReadV3S32()
	pitch := r.ReadS32()
	yaw := r.ReadS32()
	var keys uint32
	if r.Remaining() >= 4 {
		keys = r.ReadU32()
	}
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_PLAYERPOS", r)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	if p.Dead {
		return nil, nil
	}
	p.Pos = pos
	p.Speed = speed
	p.Pitch = pitch
	p.Yaw = yaw
	p.Keys = keys
	return nil, nil
}

// HandleDamage processes TOSERVER_DAMAGE (0x35). Format: [u8 damage]
func HandleDamage(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	damage := int16(r.ReadU8())
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_DAMAGE", r)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	if p.Dead || damage == 0 {
		return p.HP, nil
	}

	p.HP -= damage
	if p.HP <= 0 {
		p.HP = 0
		p.Dead = true
		sendHP(sess, p.HP)
		sendDeathscreen(sess, p.Pos)
		deps.Log.Info("player died", zap.String("player", p.Name))
		return p.HP, nil
	}
	sendHP(sess, p.HP)
	return p.HP, nil
}

// HandleBreath processes TOSERVER_BREATH (0x42). Format: [u16 breath]
func HandleBreath(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	breath := r.ReadU16()
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_BREATH", r)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	if p.Dead {
		return p.Breath, nil
	}
	p.Breath = min(breath, deps.Config.Game.MaxBreath)
	return p.Breath, nil
}

// HandleRespawn processes TOSERVER_RESPAWN (0x38). Payload is empty.
func HandleRespawn(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	if !p.Dead {
		return nil, ErrNotDead
	}

	cfg := deps.Config.Game
	p.Dead = false
	p.HP = cfg.MaxHP
	p.Breath = cfg.MaxBreath
	p.Pos = packet.V3S32{}
	p.Speed = packet.V3S32{}
	sendHP(sess, p.HP)
	sendBreath(sess, p.Breath)

	deps.Log.Info("player respawned", zap.String("player", p.Name))
	return nil, nil
}
