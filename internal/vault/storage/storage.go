// Package storage defines persistence contracts for the vault registry.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested entry or permission record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrAuthorityMismatch indicates a guarded write was attempted by a
	// principal that is not the recorded medical authority.
	ErrAuthorityMismatch = errors.New("authority mismatch")
)

// EntryRecord stores one vault entry's metadata pointer state.
type EntryRecord struct {
	EntryID     uint64
	PatientHash string
	Authority   string
	PayloadSize uint64
	Notes       string
	Tags        []string
	CreatedAt   time.Time
}

// NewEntryRecord describes one entry awaiting identifier allocation.
type NewEntryRecord struct {
	PatientHash string
	Authority   string
	PayloadSize uint64
	Notes       string
	Tags        []string
	CreatedAt   time.Time
}

// EntryMetadataRecord groups the caller-mutable metadata fields of an entry.
type EntryMetadataRecord struct {
	PatientHash string
	PayloadSize uint64
	Notes       string
	Tags        []string
}

// PermissionRecord stores one (entry, accessor) access grant row.
type PermissionRecord struct {
	EntryID   uint64
	Accessor  string
	HasAccess bool
	GrantedAt time.Time
}

// AuditEvent stores one operational audit trail row.
type AuditEvent struct {
	Timestamp  time.Time
	EventName  string
	Severity   string
	Principal  string
	EntryID    uint64 // zero when the event is not entry-scoped
	RequestID  string
	TraceID    string
	SpanID     string
	Attributes map[string]any
}

// EntryStore persists vault entry catalog state.
//
// CreateEntry atomically allocates the next entry identifier, inserts the
// entry, seeds the creator permission row, and advances the registry counter.
// Guarded writes receive the expected current authority and return
// ErrAuthorityMismatch when the stored authority differs.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry NewEntryRecord) (EntryRecord, error)
	GetEntry(ctx context.Context, entryID uint64) (EntryRecord, error)
	TransferEntryAuthority(ctx context.Context, entryID uint64, currentAuthority, newAuthority string) error
	UpdateEntryMetadata(ctx context.Context, entryID uint64, currentAuthority string, metadata EntryMetadataRecord) error
}

// PermissionStore reads access grant rows.
type PermissionStore interface {
	GetPermission(ctx context.Context, entryID uint64, accessor string) (PermissionRecord, error)
}

// CounterStore reads the registry entry counter.
type CounterStore interface {
	TotalEntries(ctx context.Context) (uint64, error)
}

// AuditEventStore appends operational audit events.
type AuditEventStore interface {
	AppendAuditEvent(ctx context.Context, event AuditEvent) error
}

// RegistryStore combines the persistence surfaces one registry process uses.
type RegistryStore interface {
	EntryStore
	PermissionStore
	CounterStore
	AuditEventStore
}
