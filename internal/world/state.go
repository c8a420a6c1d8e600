package world

import (
	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
)

// PlayerInfo holds in-memory data for a player past the handshake.
// Accessed only from the game loop goroutine; no locks.
type PlayerInfo struct {
	SessionID uint64
	Session   *net.Session
	Name      string

	// Position and speed are fixed-point, 1/100 node units.
	Pos   packet.V3S32
	Speed packet.V3S32
	Pitch int32 // 1/100 degrees
	Yaw   int32 // 1/100 degrees
	Keys  uint32

	HP     int16
	Breath uint16
	Dead   bool

	WieldIndex uint16

	// Blocks the client reports holding; bounded by the handlers.
	Blocks map[packet.V3S16]struct{}

	// Sound handles the client has stopped playing.
	RemovedSounds []int32

	// Last submitted inventory action and form, kept for the game side.
	LastInventoryAction string
	LastForm            string
	LastFormFields      map[string]string
	LastInteract        InteractEvent
}

// InteractEvent is one TOSERVER_INTERACT request as decoded.
type InteractEvent struct {
	Action    uint8
	ItemIndex uint16
	Pointed   string
	Pos       packet.V3S32
}

// NewPlayer creates a player with full health and breath.
func NewPlayer(sess *net.Session, name string, maxHP int16, maxBreath uint16) *PlayerInfo {
	return &PlayerInfo{
		SessionID: sess.ID,
		Session:   sess,
		Name:      name,
		HP:        maxHP,
		Breath:    maxBreath,
		Blocks:    make(map[packet.V3S16]struct{}),
	}
}

// State tracks all players attached to a session.
// Single-goroutine access only (game loop).
type State struct {
	bySession map[uint64]*PlayerInfo // SessionID → PlayerInfo
	byName    map[string]*PlayerInfo // player name → PlayerInfo
}

func NewState() *State {
	return &State{
		bySession: make(map[uint64]*PlayerInfo),
		byName:    make(map[string]*PlayerInfo),
	}
}

// AddPlayer registers a player in the world.
func (s *State) AddPlayer(p *PlayerInfo) {
	s.bySession[p.SessionID] = p
	s.byName[p.Name] = p
}

// RemovePlayer removes a player from the world.
func (s *State) RemovePlayer(sessionID uint64) *PlayerInfo {
	p, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}
	delete(s.bySession, sessionID)
	if s.byName[p.Name] == p {
		delete(s.byName, p.Name)
	}
	return p
}

// GetBySession returns a player by session ID.
func (s *State) GetBySession(sessionID uint64) *PlayerInfo {
	return s.bySession[sessionID]
}

// GetByName returns a player by name.
func (s *State) GetByName(name string) *PlayerInfo {
	return s.byName[name]
}

// PlayerCount returns the number of attached players.
func (s *State) PlayerCount() int {
	return len(s.bySession)
}

// AllPlayers iterates all attached players.
func (s *State) AllPlayers(fn func(*PlayerInfo)) {
	for _, p := range s.bySession {
		fn(p)
	}
}
