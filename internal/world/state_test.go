package world

import (
	gonet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/voxelhall/worldgate/internal/net"
	"go.uber.org/zap"
)

func testSession(t *testing.T, id uint64) *net.Session {
	t.Helper()
	a, b := gonet.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return net.NewSession(a, id, net.SessionOptions{}, zap.NewNop())
}

func TestStateAddRemove(t *testing.T) {
	s := NewState()
	p := NewPlayer(testSession(t, 7), "alice", 20, 11)
	s.AddPlayer(p)

	assert.Equal(t, 1, s.PlayerCount())
	assert.Same(t, p, s.GetBySession(7))
	assert.Same(t, p, s.GetByName("alice"))
	assert.Equal(t, int16(20), p.HP)
	assert.Equal(t, uint16(11), p.Breath)

	assert.Same(t, p, s.RemovePlayer(7))
	assert.Nil(t, s.RemovePlayer(7))
	assert.Nil(t, s.GetByName("alice"))
	assert.Zero(t, s.PlayerCount())
}

func TestStateRemoveKeepsNewerNameOwner(t *testing.T) {
	s := NewState()
	old := NewPlayer(testSession(t, 1), "bob", 20, 11)
	s.AddPlayer(old)
	newer := NewPlayer(testSession(t, 2), "bob", 20, 11)
	s.AddPlayer(newer)

	s.RemovePlayer(1)
	assert.Same(t, newer, s.GetByName("bob"))

	n := 0
	s.AllPlayers(func(*PlayerInfo) { n++ })
	assert.Equal(t, 1, n)
}
