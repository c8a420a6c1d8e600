package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/persist"
)

func TestChatRelaysToPlayersInGame(t *testing.T) {
	h := newHarness(t)
	alice := newTestSession(t, 1)
	bob := newTestSession(t, 2)
	h.join(t, alice, "alice")
	h.join(t, bob, "bob")

	out := h.disp.Dispatch(alice, packet.TOSERVER_CHAT_MESSAGE, body(func(w *packet.Writer) {
		w.WriteWideString("héllo\n")
	}))
	require.Equal(t, packet.OutcomeInvoked, out.Kind, out.Reason())
	assert.Equal(t, 2, out.Result)

	pending := bob.Pending()
	require.Len(t, pending, 1)
	r := packet.NewReader(pending[0][2:])
	assert.Equal(t, "<alice> héllo", r.ReadWideString())
	require.NoError(t, r.Err())
}

func TestChatTooLongIsRejected(t *testing.T) {
	h := newHarness(t)
	h.deps.Config.Game.MaxChatLength = 3
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")

	out := h.disp.Dispatch(sess, packet.TOSERVER_CHAT_MESSAGE, body(func(w *packet.Writer) {
		w.WriteWideString("abcd")
	}))
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
	assert.Equal(t, []uint16{packet.TOCLIENT_CHAT_MESSAGE}, sentCommands(sess))
}

func TestDamageDeathAndRespawn(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")
	p := h.deps.World.GetBySession(sess.ID)

	out := h.disp.Dispatch(sess, packet.TOSERVER_DAMAGE, []byte{5})
	require.Equal(t, packet.OutcomeInvoked, out.Kind)
	assert.Equal(t, int16(15), p.HP)
	assert.Equal(t, []uint16{packet.TOCLIENT_HP}, sentCommands(sess))

	out = h.disp.Dispatch(sess, packet.TOSERVER_RESPAWN, nil)
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
	assert.ErrorIs(t, out.Err, ErrNotDead)

	h.disp.Dispatch(sess, packet.TOSERVER_DAMAGE, []byte{200})
	assert.True(t, p.Dead)
	assert.Zero(t, p.HP)
	assert.Equal(t, []uint16{packet.TOCLIENT_HP, packet.TOCLIENT_DEATHSCREEN}, sentCommands(sess))

	h.disp.Dispatch(sess, packet.TOSERVER_BREATH, []byte{0, 3})
	assert.Equal(t, uint16(11), p.Breath, "dead players keep their breath")

	out = h.disp.Dispatch(sess, packet.TOSERVER_RESPAWN, nil)
	require.Equal(t, packet.OutcomeInvoked, out.Kind)
	assert.False(t, p.Dead)
	assert.Equal(t, int16(20), p.HP)
	assert.Equal(t, []uint16{packet.TOCLIENT_HP, packet.TOCLIENT_BREATH}, sentCommands(sess))
}

func TestBreathIsCapped(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")

	out := h.disp.Dispatch(sess, packet.TOSERVER_BREATH, []byte{0x01, 0x00})
	require.Equal(t, packet.OutcomeInvoked, out.Kind)
	assert.Equal(t, uint16(11), out.Result)

	out = h.disp.Dispatch(sess, packet.TOSERVER_BREATH, []byte{0x01})
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
	assert.ErrorIs(t, out.Err, packet.ErrShortPayload)
}

func TestPlayerPosUpdatesPlayer(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")

	out := h.disp.Dispatch(sess, packet.TOSERVER_PLAYERPOS, body(func(w *packet.Writer) {
		for _, v := range []int32{100, 200, -300, 1, 0, 0, 45, 90} {
			w.WriteS32(v)
		}
	}))
	require.Equal(t, packet.OutcomeInvoked, out.Kind, out.Reason())
	p := h.deps.World.GetBySession(sess.ID)
	assert.Equal(t, packet.V3S32{X: 100, Y: 200, Z: -300}, p.Pos)
	assert.Equal(t, int32(90), p.Yaw)
	assert.Zero(t, p.Keys)

	out = h.disp.Dispatch(sess, packet.TOSERVER_PLAYERPOS, []byte{0, 0, 0})
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
	assert.Equal(t, packet.V3S32{X: 100, Y: 200, Z: -300}, p.Pos, "malformed payload leaves state untouched")
}

func TestPasswordChange(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")

	change := func(oldPw, newPw string) packet.Outcome {
		return h.disp.Dispatch(sess, packet.TOSERVER_PASSWORD, body(func(w *packet.Writer) {
			w.WriteString(oldPw)
			w.WriteString(newPw)
		}))
	}

	out := change("wrong", "fresh")
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
	assert.ErrorIs(t, out.Err, ErrWrongPassword)
	assert.Equal(t, packet.StateInGame, sess.State())

	out = change("secret", "")
	assert.ErrorIs(t, out.Err, ErrEmptyPassword)

	out = change("secret", "fresh")
	require.Equal(t, packet.OutcomeInvoked, out.Kind, out.Reason())
	assert.True(t, persist.CheckPassword(h.accounts.rows["alice"].PasswordHash, "fresh"))
}

func TestPlayerItemBoundedByHotbar(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")

	out := h.disp.Dispatch(sess, packet.TOSERVER_PLAYERITEM, []byte{0, 7})
	require.Equal(t, packet.OutcomeInvoked, out.Kind)
	assert.Equal(t, uint16(7), h.deps.World.GetBySession(sess.ID).WieldIndex)

	out = h.disp.Dispatch(sess, packet.TOSERVER_PLAYERITEM, []byte{0, 8})
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
}

func TestInteractAndInventory(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")
	p := h.deps.World.GetBySession(sess.ID)

	out := h.disp.Dispatch(sess, packet.TOSERVER_INTERACT, body(func(w *packet.Writer) {
		w.WriteU8(InteractPlace)
		w.WriteU16(2)
		w.WriteLongString("node")
		w.WriteS32(1)
		w.WriteS32(2)
		w.WriteS32(3)
	}))
	require.Equal(t, packet.OutcomeInvoked, out.Kind, out.Reason())
	assert.Equal(t, "node", p.LastInteract.Pointed)
	assert.Equal(t, InteractPlace, p.LastInteract.Action)

	out = h.disp.Dispatch(sess, packet.TOSERVER_INTERACT, body(func(w *packet.Writer) {
		w.WriteU8(9)
		w.WriteU16(0)
		w.WriteLongString("")
		w.WriteBytes(make([]byte, 12))
	}))
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)

	out = h.disp.Dispatch(sess, packet.TOSERVER_INVENTORY_ACTION, []byte("Move 1 current:player main 0 current:player craft 1"))
	require.Equal(t, packet.OutcomeInvoked, out.Kind, out.Reason())
	assert.Equal(t, "Move", out.Result)

	out = h.disp.Dispatch(sess, packet.TOSERVER_INVENTORY_ACTION, []byte("Teleport 1"))
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)

	out = h.disp.Dispatch(sess, packet.TOSERVER_REMOVED_SOUNDS, []byte{0, 2, 0, 0, 0, 7, 0, 0, 0, 9})
	require.Equal(t, packet.OutcomeInvoked, out.Kind)
	assert.Equal(t, []int32{7, 9}, p.RemovedSounds)
}

func TestFormFields(t *testing.T) {
	h := newHarness(t)
	h.deps.Config.Game.MaxFormFields = 1
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")
	p := h.deps.World.GetBySession(sess.ID)

	out := h.disp.Dispatch(sess, packet.TOSERVER_INVENTORY_FIELDS, body(func(w *packet.Writer) {
		w.WriteString("main")
		w.WriteU16(1)
		w.WriteString("quit")
		w.WriteLongString("true")
	}))
	require.Equal(t, packet.OutcomeInvoked, out.Kind, out.Reason())
	assert.Equal(t, "main", p.LastForm)
	assert.Equal(t, map[string]string{"quit": "true"}, p.LastFormFields)

	out = h.disp.Dispatch(sess, packet.TOSERVER_NODEMETA_FIELDS, body(func(w *packet.Writer) {
		w.WriteBytes(make([]byte, 6))
		w.WriteString("chest")
		w.WriteU16(2)
	}))
	assert.Equal(t, packet.OutcomeHandlerFailure, out.Kind)
	assert.Equal(t, "main", p.LastForm)
}

func TestCommandsAfterSessionTornDownAreFatal(t *testing.T) {
	h := newHarness(t)
	sess := newTestSession(t, 1)
	h.join(t, sess, "alice")
	h.deps.World.RemovePlayer(sess.ID)

	out := h.disp.Dispatch(sess, packet.TOSERVER_DAMAGE, []byte{1})
	assert.Equal(t, packet.OutcomeFatal, out.Kind)
}
