package handler

import (
	"github.com/voxelhall/worldgate/internal/data"
	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
)

// sendAccessDenied sends TOCLIENT_ACCESS_DENIED.
// Format: [u8 reason][wstring detail]
func sendAccessDenied(sess *net.Session, reason byte, detail string) {
	w := packet.NewWriter(packet.TOCLIENT_ACCESS_DENIED)
	w.WriteU8(reason)
	w.WriteWideString(detail)
	sess.Send(w.Bytes())
}

// sendAuthAccept sends TOCLIENT_AUTH_ACCEPT.
// Format: [u16 protocol][u8 ser_ver]
func sendAuthAccept(sess *net.Session, proto uint16) {
	w := packet.NewWriter(packet.TOCLIENT_AUTH_ACCEPT)
	w.WriteU16(proto)
	w.WriteU8(serializationVersion)
	sess.Send(w.Bytes())
}

// sendAnnounceMedia sends TOCLIENT_ANNOUNCE_MEDIA.
// Format: [u16 count]{[string name][string sha1]}[string remote_url]
func sendAnnounceMedia(sess *net.Session, media *data.MediaTable) {
	w := packet.NewWriter(packet.TOCLIENT_ANNOUNCE_MEDIA)
	if media == nil {
		w.WriteU16(0)
		w.WriteString("")
		sess.Send(w.Bytes())
		return
	}
	names := media.Names()
	w.WriteU16(uint16(len(names)))
	for _, n := range names {
		w.WriteString(n)
		w.WriteString(media.Get(n).SHA1)
	}
	w.WriteString("")
	sess.Send(w.Bytes())
}

// mediaFile is one file in a TOCLIENT_MEDIA bunch.
type mediaFile struct {
	name string
	data []byte
}

// sendMedia sends one TOCLIENT_MEDIA bunch.
// Format: [u16 bunches][u16 index][u32 count]{[string name][lstring data]}
func sendMedia(sess *net.Session, bunches, index uint16, files []mediaFile) {
	w := packet.NewWriter(packet.TOCLIENT_MEDIA)
	w.WriteU16(bunches)
	w.WriteU16(index)
	w.WriteU32(uint32(len(files)))
	for _, f := range files {
		w.WriteString(f.name)
		w.WriteLongString(string(f.data))
	}
	sess.Send(w.Bytes())
}

// sendChat sends a server message to one client.
// Format: [wstring text]
func sendChat(sess *net.Session, text string) {
	w := packet.NewWriter(packet.TOCLIENT_CHAT_MESSAGE)
	w.WriteWideString(text)
	sess.Send(w.Bytes())
}

// sendHP sends TOCLIENT_HP. Format: [u16 hp]
func sendHP(sess *net.Session, hp int16) {
	w := packet.NewWriter(packet.TOCLIENT_HP)
	w.WriteU16(uint16(max(hp, 0)))
	sess.Send(w.Bytes())
}

// sendBreath sends TOCLIENT_BREATH. Format: [u16 breath]
func sendBreath(sess *net.Session, breath uint16) {
	w := packet.NewWriter(packet.TOCLIENT_BREATH)
	w.WriteU16(breath)
	sess.Send(w.Bytes())
}

// sendDeathscreen sends TOCLIENT_DEATHSCREEN.
// Format: [u8 set_camera_point_target][v3s32 camera_point_target]
func sendDeathscreen(sess *net.Session, at packet.V3S32) {
	w := packet.NewWriter(packet.TOCLIENT_DEATHSCREEN)
	w.WriteU8(0)
	w.WriteS32(at.X)
	w.WriteS32(at.Y)
	w.WriteS32(at.Z)
	sess.Send(w.Bytes())
}
