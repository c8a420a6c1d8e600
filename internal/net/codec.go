package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/voxelhall/worldgate/internal/net/packet"
)

// MaxFrameBody is the largest body a frame can carry.
const MaxFrameBody = 0xFFFF

// ErrShortCommand is returned for a body too small to hold a command id.
var ErrShortCommand = errors.New("frame body shorter than command id")

// ReadFrame reads one frame from r.
// Wire format: [2 bytes BE: body length][body], body = [2 bytes BE command][payload].
// Returns the body bytes.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	bodyLen := int(binary.BigEndian.Uint16(header[:]))
	if bodyLen < 2 {
		return nil, fmt.Errorf("invalid frame length: %d", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body (%d bytes): %w", bodyLen, err)
	}
	return body, nil
}

// WriteFrame writes one frame carrying body to w.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameBody {
		return fmt.Errorf("frame body too large: %d", len(body))
	}
	var header [2]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// SplitCommand separates the command id from its payload. The opcode is
// returned as sent; range checking belongs to the dispatcher.
func SplitCommand(body []byte) (packet.Opcode, []byte, error) {
	if len(body) < 2 {
		return 0, nil, ErrShortCommand
	}
	return packet.Opcode(binary.BigEndian.Uint16(body)), body[2:], nil
}
