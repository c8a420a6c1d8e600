package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxelhall/worldgate/internal/net/packet"
	"go.uber.org/zap"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; protocol state is mutated only from the game loop.
type Session struct {
	packet.StateTracker

	ID   uint64
	conn net.Conn

	InQueue  chan []byte // game loop reads frame bodies from here
	OutQueue chan []byte // writer goroutine reads from here

	IP string

	// Handshake data, game loop only.
	PlayerName    string
	Authenticated bool // INIT accepted
	ProtoVersion  uint16
	MediaReceived bool

	outBuf [][]byte // buffered bodies, flushed by FlushOutput (game loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	kickCh   chan struct{}
	kickOnce sync.Once
	kicked   atomic.Bool

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int   // max packets/sec (0 = unlimited)
	pktCount   int   // packets received this second
	pktResetAt int64 // unix second of last counter reset

	writeTimeout time.Duration

	log *zap.Logger
}

// SessionOptions sizes a session's queues and limits.
type SessionOptions struct {
	InQueueSize      int
	OutQueueSize     int
	PacketsPerSecond int
	WriteTimeout     time.Duration
}

func NewSession(conn net.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan []byte, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		kickCh:       make(chan struct{}),
		pktPerSec:    opts.PacketsPerSecond,
		writeTimeout: opts.WriteTimeout,
		log:          log.With(zap.Uint64("session", id)),
	}
}

// Log returns the session-scoped logger.
func (s *Session) Log() *zap.Logger { return s.log }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a command body for sending. Nothing reaches TCP until
// FlushOutput runs. Called only from the game loop goroutine.
func (s *Session) Send(body []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, body)
}

// Pending returns the buffered bodies not yet flushed.
func (s *Session) Pending() [][]byte {
	return s.outBuf
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts the session down. The protocol state is left as it was; a
// closed session is never reused.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Kick ends the session after everything already flushed to OutQueue has
// been written, so a final denial or error reply reaches the client.
func (s *Session) Kick() {
	s.kickOnce.Do(func() {
		s.kicked.Store(true)
		close(s.kickCh)
	})
}

// IsKicked reports whether Kick was called. The game loop stops
// dispatching for kicked sessions.
func (s *Session) IsKicked() bool {
	return s.kicked.Load()
}

// readLoop runs in its own goroutine. It reads frames from the TCP connection
// and pushes their bodies onto InQueue for the game loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		body, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if !s.allowPacket(time.Now().Unix()) {
			s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
			return
		}

		// Block until InQueue has space or the session closes. Dropping
		// frames would reorder the command stream.
		select {
		case s.InQueue <- body:
		case <-s.closeCh:
			return
		}
	}
}

// allowPacket counts one packet against the per-second budget.
func (s *Session) allowPacket(now int64) bool {
	if s.pktPerSec <= 0 {
		return true
	}
	if now != s.pktResetAt {
		s.pktCount = 0
		s.pktResetAt = now
	}
	s.pktCount++
	return s.pktCount <= s.pktPerSec
}

// writeLoop runs in its own goroutine. It reads bodies from OutQueue and
// writes them as frames to the TCP connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOne(data) {
				return
			}
		case <-s.kickCh:
			s.drainOutput()
			return
		case <-s.closeCh:
			return
		}
	}
}

// drainOutput writes whatever is left in OutQueue without waiting for more.
func (s *Session) drainOutput() {
	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOne(data) {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) writeOne(body []byte) bool {
	if len(body) >= 2 {
		s.log.Debug("TX",
			zap.Uint16("cmd", uint16(body[0])<<8|uint16(body[1])),
			zap.Int("len", len(body)),
		)
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := WriteFrame(s.conn, body); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
