package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/medvault/internal/vault/storage"
)

// AppendAuditEvent persists one audit event. Events are append-only and
// never updated or deleted.
func (s *Store) AppendAuditEvent(ctx context.Context, event storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if event.EventName == "" {
		return fmt.Errorf("event name is required")
	}
	if event.Severity == "" {
		return fmt.Errorf("event severity is required")
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	var attributesJSON []byte
	if len(event.Attributes) > 0 {
		raw, err := json.Marshal(event.Attributes)
		if err != nil {
			return fmt.Errorf("encode audit attributes: %w", err)
		}
		attributesJSON = raw
	}

	var entryID sql.NullInt64
	if event.EntryID != 0 {
		entryID = sql.NullInt64{Int64: int64(event.EntryID), Valid: true}
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO audit_events (
			timestamp, event_name, severity, principal,
			entry_id, request_id, trace_id, span_id, attributes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		toMillis(timestamp),
		event.EventName,
		event.Severity,
		toNullString(event.Principal),
		entryID,
		toNullString(event.RequestID),
		toNullString(event.TraceID),
		toNullString(event.SpanID),
		attributesJSON,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
