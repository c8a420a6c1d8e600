package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AuditEntry records one rejected or fatal client command.
type AuditEntry struct {
	SessionID  uint64
	PlayerName string
	IP         string
	Opcode     uint16
	Command    string
	Outcome    string
	ConnState  string
	Detail     string
	CreatedAt  time.Time
}

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

var auditColumns = []string{
	"session_id", "player_name", "ip", "opcode", "command",
	"outcome", "conn_state", "detail", "created_at",
}

// WriteBatch copies entries into command_audit in one transaction.
func (r *AuditRepo) WriteBatch(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"command_audit"},
			auditColumns,
			pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
				e := entries[i]
				return []any{
					int64(e.SessionID), e.PlayerName, e.IP, int32(e.Opcode), e.Command,
					e.Outcome, e.ConnState, e.Detail, e.CreatedAt,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("audit copy: %w", err)
		}
		if int(n) != len(entries) {
			return fmt.Errorf("audit copy: wrote %d of %d rows", n, len(entries))
		}
		return nil
	})
}

// Prune deletes audit rows older than cutoff.
func (r *AuditRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM command_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
