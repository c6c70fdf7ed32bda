package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry represents a record stored in audit_logs. Old and New carry
// snapshots of the changed fields, not whole records.
type AuditEntry struct {
	ActorID  int64
	Module   string
	Action   string
	RecordID string
	Old      map[string]any
	New      map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs. Writes are best-effort:
// callers log failures and continue, an audit miss never fails the
// primary operation.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Module == "" || entry.Action == "" || entry.RecordID == "" {
		return errors.New("audit entry requires module/action/record_id")
	}
	oldJSON, err := json.Marshal(entry.Old)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(entry.New)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, module, action, record_id, old_value, new_value, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ActorID, entry.Module, entry.Action, entry.RecordID, oldJSON, newJSON, at)
	return err
}

// List returns recent audit entries for a record, newest first.
func (l *AuditLogger) List(ctx context.Context, module, recordID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx,
		`SELECT actor_id, module, action, record_id, old_value, new_value, occurred_at
		 FROM audit_logs
		 WHERE module = $1 AND record_id = $2
		 ORDER BY occurred_at DESC
		 LIMIT $3`, module, recordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var oldJSON, newJSON []byte
		if err := rows.Scan(&e.ActorID, &e.Module, &e.Action, &e.RecordID, &oldJSON, &newJSON, &e.At); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(oldJSON, &e.Old)
		_ = json.Unmarshal(newJSON, &e.New)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
