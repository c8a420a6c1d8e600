package handler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/world"
	"go.uber.org/zap"
)

// HandleChatMessage processes TOSERVER_CHAT_MESSAGE (0x32).
// Format: [wstring message]
//
// The message is relayed as "<name> text" to every player in game,
// including the sender.
func HandleChatMessage(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	text := r.ReadWideString()
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_CHAT_MESSAGE", r)
	}
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return 0, nil
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}

	limit := deps.Config.Game.MaxChatLength
	if n := utf8.RuneCountInString(text); limit > 0 && n > limit {
		sendChat(sess, fmt.Sprintf("Your message exceeded the maximum chat length (%d).", limit))
		return nil, fmt.Errorf("chat message of %d characters exceeds %d", n, limit)
	}

	deps.Log.Debug("chat", zap.String("player", p.Name), zap.String("text", text))

	line := fmt.Sprintf("<%s> %s", p.Name, text)
	sent := 0
	deps.World.AllPlayers(func(other *world.PlayerInfo) {
		if other.Session.State() != packet.StateInGame {
			return
		}
		sendChat(other.Session, line)
		sent++
	})
	return sent, nil
}
