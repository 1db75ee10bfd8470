package audit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/medvault/internal/platform/requestctx"
	"github.com/louisbranch/medvault/internal/vault/storage"
)

// Severity describes the audit severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Emitter records operational audit events.
type Emitter struct {
	store storage.AuditEventStore
	clock func() time.Time
}

// NewEmitter creates a new audit event emitter.
func NewEmitter(store storage.AuditEventStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records an audit event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// WithContextIdentity fills the event's principal, request identifier, and
// trace identifiers from the request context where they are not already set.
func WithContextIdentity(ctx context.Context, evt storage.AuditEvent) storage.AuditEvent {
	if evt.Principal == "" {
		evt.Principal = requestctx.PrincipalFromContext(ctx)
	}
	if evt.RequestID == "" {
		evt.RequestID = requestctx.RequestIDFromContext(ctx)
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		if evt.TraceID == "" {
			evt.TraceID = sc.TraceID().String()
		}
		if evt.SpanID == "" {
			evt.SpanID = sc.SpanID().String()
		}
	}
	return evt
}
