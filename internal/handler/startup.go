package handler

import (
	"fmt"

	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"go.uber.org/zap"
)

// maxTrackedBlocks bounds the per-player set of acknowledged blocks.
const maxTrackedBlocks = 16384

// ClientVersion is the version a client reports in TOSERVER_CLIENT_READY.
type ClientVersion struct {
	Major, Minor, Patch uint8
	Full                string
}

// HandleGotBlocks processes TOSERVER_GOTBLOCKS (0x24).
// Format: [u8 count]{[v3s16 pos]}
func HandleGotBlocks(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	blocks, err := readBlockList("TOSERVER_GOTBLOCKS", r, deps)
	if err != nil {
		return nil, err
	}
	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if len(p.Blocks) >= maxTrackedBlocks {
			break
		}
		p.Blocks[b] = struct{}{}
	}
	return len(blocks), nil
}

// HandleDeletedBlocks processes TOSERVER_DELETEDBLOCKS (0x25).
// Format: [u8 count]{[v3s16 pos]}
func HandleDeletedBlocks(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	blocks, err := readBlockList("TOSERVER_DELETEDBLOCKS", r, deps)
	if err != nil {
		return nil, err
	}
	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		delete(p.Blocks, b)
	}
	return len(blocks), nil
}

func readBlockList(cmd string, r *packet.Reader, deps *Deps) ([]packet.V3S16, error) {
	count := int(r.ReadU8())
	if r.Err() != nil {
		return nil, decodeErr(cmd, r)
	}
	if count > deps.Config.Game.MaxBlocksPerAck {
		return nil, fmt.Errorf("%s: %d blocks exceeds limit %d", cmd, count, deps.Config.Game.MaxBlocksPerAck)
	}
	blocks := make([]packet.V3S16, 0, count)
	for i := 0; i < count; i++ {
		blocks = append(blocks, r.ReadV3S16())
	}
	if r.Err() != nil {
		return nil, decodeErr(cmd, r)
	}
	return blocks, nil
}

// HandleRequestMedia processes TOSERVER_REQUEST_MEDIA (0x40).
// Format: [u16 count]{[string name]}
//
// Known files are sent back in TOCLIENT_MEDIA bunches of media.max_batch
// files. Unknown names are skipped; a name requested twice is sent once.
func HandleRequestMedia(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	count := int(r.ReadU16())
	names := make([]string, 0, min(count, 256))
	requested := make(map[string]struct{}, min(count, 256))
	for i := 0; i < count; i++ {
		name := r.ReadString()
		if _, dup := requested[name]; dup {
			continue
		}
		requested[name] = struct{}{}
		names = append(names, name)
	}
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_REQUEST_MEDIA", r)
	}

	var files []mediaFile
	for _, name := range names {
		if deps.Media == nil {
			break
		}
		e := deps.Media.Get(name)
		if e == nil {
			deps.Log.Debug("unknown media requested", zap.String("player", sess.PlayerName), zap.String("name", name))
			continue
		}
		content, err := deps.Media.Read(e)
		if err != nil {
			deps.Log.Warn("read media file", zap.String("name", name), zap.Error(err))
			continue
		}
		files = append(files, mediaFile{name: name, data: content})
	}

	batch := max(deps.Config.Media.MaxBatch, 1)
	bunches := max((len(files)+batch-1)/batch, 1)
	for i := 0; i < bunches; i++ {
		lo := i * batch
		hi := min(lo+batch, len(files))
		sendMedia(sess, uint16(bunches), uint16(i), files[lo:hi])
	}
	return len(files), nil
}

// HandleReceivedMedia processes TOSERVER_RECEIVED_MEDIA (0x41). Payload is empty.
func HandleReceivedMedia(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	sess.MediaReceived = true
	return nil, nil
}

// HandleClientReady processes TOSERVER_CLIENT_READY (0x43).
// Format: [u8 major][u8 minor][u8 patch][u8 reserved][string full_version]
//
// Moves the session to InGame and sends the initial HP and breath.
func HandleClientReady(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	var v ClientVersion
	v.Major = r.ReadU8()
	v.Minor = r.ReadU8()
	v.Patch = r.ReadU8()
	r.ReadU8()
	v.Full = r.ReadString()
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_CLIENT_READY", r)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}

	from := sess.State()
	if err := sess.Transition(packet.StateInGame); err != nil {
		return nil, err
	}

	sendHP(sess, p.HP)
	sendBreath(sess, p.Breath)

	deps.Log.Info("player joined",
		zap.String("player", p.Name),
		zap.String("ip", sess.IP),
		zap.String("version", v.Full),
		zap.Bool("media_received", sess.MediaReceived),
	)
	return Transition{From: from, To: sess.State()}, nil
}
