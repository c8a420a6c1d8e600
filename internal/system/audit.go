package system

import (
	"context"
	"time"

	"github.com/voxelhall/worldgate/internal/config"
	"github.com/voxelhall/worldgate/internal/core/event"
	coresys "github.com/voxelhall/worldgate/internal/core/system"
	"github.com/voxelhall/worldgate/internal/persist"
	"go.uber.org/zap"
)

const (
	auditWriteTimeout = 5 * time.Second
	auditPruneEvery   = time.Hour
)

// AuditWriter stores audit rows. *persist.AuditRepo implements it.
type AuditWriter interface {
	WriteBatch(ctx context.Context, entries []persist.AuditEntry) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditSystem records rejected commands and terminated sessions in the
// command_audit table. Rows are batched and written every flush interval
// or when a batch fills up. Phase 5 (Persist).
type AuditSystem struct {
	repo       AuditWriter
	cfg        config.AuditConfig
	pending    []persist.AuditEntry
	elapsed    time.Duration
	sincePrune time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewAuditSystem(repo AuditWriter, bus *event.Bus, cfg config.AuditConfig, log *zap.Logger) *AuditSystem {
	s := &AuditSystem{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
		log:  log,
	}
	event.Subscribe(bus, func(ev event.CommandRejected) {
		s.add(persist.AuditEntry{
			SessionID:  ev.SessionID,
			PlayerName: ev.Player,
			IP:         ev.IP,
			Opcode:     ev.Opcode,
			Command:    ev.Command,
			Outcome:    ev.Outcome,
			ConnState:  ev.State,
			Detail:     ev.Detail,
			CreatedAt:  ev.At,
		})
	})
	event.Subscribe(bus, func(ev event.SessionTerminated) {
		s.add(persist.AuditEntry{
			SessionID:  ev.SessionID,
			PlayerName: ev.Player,
			IP:         ev.IP,
			Opcode:     ev.Opcode,
			Command:    ev.Command,
			Outcome:    "Terminated",
			ConnState:  ev.State,
			Detail:     ev.Reason,
			CreatedAt:  ev.At,
		})
	})
	return s
}

func (s *AuditSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// Pending returns the number of rows waiting to be written.
func (s *AuditSystem) Pending() int { return len(s.pending) }

func (s *AuditSystem) add(e persist.AuditEntry) {
	s.pending = append(s.pending, e)
	// bound memory while the database is unreachable
	if limit := s.cfg.MaxBatch * 4; len(s.pending) > limit {
		dropped := len(s.pending) - limit
		s.pending = append(s.pending[:0], s.pending[dropped:]...)
		s.log.Warn("audit backlog full, dropping oldest rows", zap.Int("dropped", dropped))
	}
}

func (s *AuditSystem) Update(dt time.Duration) {
	s.elapsed += dt
	s.sincePrune += dt

	if len(s.pending) >= s.cfg.MaxBatch || (s.elapsed >= s.cfg.FlushInterval && len(s.pending) > 0) {
		s.elapsed = 0
		s.Flush()
	}

	if s.cfg.Retention > 0 && s.sincePrune >= auditPruneEvery {
		s.sincePrune = 0
		s.prune()
	}
}

// Flush writes pending rows in batches of at most max_batch. Rows that fail
// to write stay queued for the next attempt.
func (s *AuditSystem) Flush() {
	for len(s.pending) > 0 {
		n := min(len(s.pending), s.cfg.MaxBatch)
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		err := s.repo.WriteBatch(ctx, s.pending[:n])
		cancel()
		if err != nil {
			s.log.Error("audit write failed", zap.Int("rows", n), zap.Error(err))
			return
		}
		s.pending = append(s.pending[:0], s.pending[n:]...)
	}
}

func (s *AuditSystem) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	n, err := s.repo.Prune(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		s.log.Error("audit prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("audit rows pruned", zap.Int64("rows", n))
	}
}
