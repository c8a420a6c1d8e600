package handler

import (
	"fmt"
	"strings"

	"github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/world"
)

const (
	maxPointedThing  = 256
	maxRemovedSounds = 256
)

// Interact actions carried by TOSERVER_INTERACT.
const (
	InteractStartDigging uint8 = iota
	InteractStopDigging
	InteractDiggingCompleted
	InteractPlace
	InteractUse
)

// Inventory action verbs accepted by TOSERVER_INVENTORY_ACTION.
var inventoryVerbs = map[string]bool{
	"Move":  true,
	"Drop":  true,
	"Craft": true,
}

// HandleInventoryAction processes TOSERVER_INVENTORY_ACTION (0x31).
// Format: [raw text] e.g. "Move 1 current:player main 0 current:player craft 1"
func HandleInventoryAction(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	text := strings.TrimSpace(string(r.ReadBytes(r.Remaining())))
	verb, _, _ := strings.Cut(text, " ")
	if !inventoryVerbs[verb] {
		return nil, fmt.Errorf("TOSERVER_INVENTORY_ACTION: unknown action %q", verb)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	p.LastInventoryAction = text
	return verb, nil
}

// HandlePlayerItem processes TOSERVER_PLAYERITEM (0x37). Format: [u16 index]
func HandlePlayerItem(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	index := r.ReadU16()
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_PLAYERITEM", r)
	}
	if index >= deps.Config.Game.HotbarSize {
		return nil, fmt.Errorf("TOSERVER_PLAYERITEM: index %d outside hotbar of %d", index, deps.Config.Game.HotbarSize)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	p.WieldIndex = index
	return index, nil
}

// HandleInteract processes TOSERVER_INTERACT (0x39).
// Format: [u8 action][u16 item][lstring pointed_thing][v3s32 player_pos]
func HandleInteract(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	ev := world.InteractEvent{
		Action:    r.ReadU8(),
		ItemIndex: r.ReadU16(),
		Pointed:   r.ReadLongString(maxPointedThing),
		Pos:       r.ReadV3S32(),
	}
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_INTERACT", r)
	}
	if ev.Action > InteractUse {
		return nil, fmt.Errorf("TOSERVER_INTERACT: unknown action %d", ev.Action)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	if p.Dead {
		return nil, nil
	}
	p.LastInteract = ev
	return ev, nil
}

// HandleRemovedSounds processes TOSERVER_REMOVED_SOUNDS (0x3a).
// Format: [u16 count]{[s32 id]}
func HandleRemovedSounds(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	count := int(r.ReadU16())
	ids := make([]int32, 0, min(count, maxRemovedSounds))
	for i := 0; i < count; i++ {
		ids = append(ids, r.ReadS32())
	}
	if r.Err() != nil {
		return nil, decodeErr("TOSERVER_REMOVED_SOUNDS", r)
	}

	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	p.RemovedSounds = append(p.RemovedSounds, ids...)
	if n := len(p.RemovedSounds); n > maxRemovedSounds {
		p.RemovedSounds = p.RemovedSounds[n-maxRemovedSounds:]
	}
	return len(ids), nil
}

// HandleNodeMetaFields processes TOSERVER_NODEMETA_FIELDS (0x3b).
// Format: [v3s16 pos][string formname][u16 count]{[string name][lstring value]}
func HandleNodeMetaFields(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	r.ReadV3S16()
	form := r.ReadString()
	fields, err := readFormFields("TOSERVER_NODEMETA_FIELDS", r, deps)
	if err != nil {
		return nil, err
	}
	return recordForm(sess, deps, form, fields)
}

// HandleInventoryFields processes TOSERVER_INVENTORY_FIELDS (0x3c).
// Format: [string formname][u16 count]{[string name][lstring value]}
func HandleInventoryFields(sess *net.Session, r *packet.Reader, deps *Deps) (any, error) {
	form := r.ReadString()
	fields, err := readFormFields("TOSERVER_INVENTORY_FIELDS", r, deps)
	if err != nil {
		return nil, err
	}
	return recordForm(sess, deps, form, fields)
}

func readFormFields(cmd string, r *packet.Reader, deps *Deps) (map[string]string, error) {
	cfg := deps.Config.Game
	count := int(r.ReadU16())
	if r.Err() != nil {
		return nil, decodeErr(cmd, r)
	}
	if count > cfg.MaxFormFields {
		return nil, fmt.Errorf("%s: %d fields exceeds limit %d", cmd, count, cfg.MaxFormFields)
	}
	fields := make(map[string]string, count)
	for i := 0; i < count; i++ {
		name := r.ReadString()
		fields[name] = r.ReadLongString(cfg.MaxFieldLength)
	}
	if r.Err() != nil {
		return nil, decodeErr(cmd, r)
	}
	return fields, nil
}

func recordForm(sess *net.Session, deps *Deps, form string, fields map[string]string) (any, error) {
	p, err := playerOf(sess, deps)
	if err != nil {
		return nil, err
	}
	p.LastForm = form
	p.LastFormFields = fields
	return len(fields), nil
}
