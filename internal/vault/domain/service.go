// Package domain implements vault registry lifecycle behavior.
package domain

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/medvault/internal/platform/errors"
)

var (
	// ErrPatientHashInvalid indicates a patient hash outside the 1-64 byte range.
	ErrPatientHashInvalid = apperrors.New(apperrors.CodeCorruptedIDFormat, "patient hash must be 1-64 bytes")
	// ErrNotesInvalid indicates diagnostic notes outside the 1-128 byte range.
	ErrNotesInvalid = apperrors.New(apperrors.CodeCorruptedIDFormat, "diagnostic notes must be 1-128 bytes")
	// ErrPayloadSizeInvalid indicates a payload byte size outside the open (0, 1000000000) range.
	ErrPayloadSizeInvalid = apperrors.New(apperrors.CodeOversizedPayload, "payload byte size must be between 1 and 999999999")
	// ErrTagsInvalid indicates a classification tag list outside 1-10 entries of 1-32 bytes each.
	ErrTagsInvalid = apperrors.New(apperrors.CodeForbiddenTagType, "classification tags must be 1-10 entries of 1-32 bytes")
	// ErrVaultEntryAbsent indicates the requested vault entry does not exist.
	ErrVaultEntryAbsent = apperrors.New(apperrors.CodeVaultEntryAbsent, "vault entry does not exist")
	// ErrDuplicateVaultEntry indicates an allocated entry identifier collided with an existing entry.
	ErrDuplicateVaultEntry = apperrors.New(apperrors.CodeDuplicateVaultEntry, "vault entry identifier already exists")
	// ErrInvalidAuthToken indicates the caller is not the entry's controlling medical authority.
	ErrInvalidAuthToken = apperrors.New(apperrors.CodeInvalidAuthToken, "caller is not the controlling medical authority")
	// ErrPermissionBreach indicates no permission row exists for the entry and accessor pair.
	ErrPermissionBreach = apperrors.New(apperrors.CodePermissionBreach, "no access permission recorded for accessor")

	// ErrNotFound indicates a vault record was not found in the store.
	ErrNotFound = errors.New("vault record not found")
	// ErrConflict indicates a write collided with an existing entry identifier.
	ErrConflict = errors.New("vault entry conflict")
	// ErrAuthorityMismatch indicates a guarded write observed a different controlling authority.
	ErrAuthorityMismatch = errors.New("vault entry authority mismatch")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("vault store is not configured")
	// ErrCallerRequired indicates the calling authority identity is required.
	ErrCallerRequired = errors.New("caller identity is required")
	// ErrAccessorRequired indicates an accessor identity is required.
	ErrAccessorRequired = errors.New("accessor identity is required")
	// ErrNewAuthorityRequired indicates a transfer target authority is required.
	ErrNewAuthorityRequired = errors.New("new authority is required")
)

// VaultEntry is one medical-record metadata entry in the registry.
type VaultEntry struct {
	EntryID     uint64
	PatientHash string
	Authority   string
	PayloadSize uint64
	Notes       string
	Tags        []string
	CreatedAt   time.Time
}

// EntryMetadata carries the mutable descriptive fields of a vault entry.
type EntryMetadata struct {
	PatientHash string
	PayloadSize uint64
	Notes       string
	Tags        []string
}

// AccessPermission records whether an accessor may read a vault entry.
type AccessPermission struct {
	EntryID   uint64
	Accessor  string
	HasAccess bool
	GrantedAt time.Time
}

// NewEntry captures the fields persisted for a newly registered entry.
type NewEntry struct {
	PatientHash string
	Authority   string
	PayloadSize uint64
	Notes       string
	Tags        []string
	CreatedAt   time.Time
}

// CreateEntryInput describes one entry registration request.
type CreateEntryInput struct {
	Caller      string
	PatientHash string
	PayloadSize uint64
	Notes       string
	Tags        []string
}

// TransferAuthorityInput identifies an entry and its new controlling authority.
type TransferAuthorityInput struct {
	Caller       string
	EntryID      uint64
	NewAuthority string
}

// UpdateMetadataInput identifies an entry and its replacement metadata.
type UpdateMetadataInput struct {
	Caller   string
	EntryID  uint64
	Metadata EntryMetadata
}

// Store is the domain persistence boundary for registry behavior.
//
// Guarded writes receive the caller's authority and report
// ErrAuthorityMismatch when the stored authority differs at write time.
type Store interface {
	CreateEntry(ctx context.Context, entry NewEntry) (VaultEntry, error)
	GetEntry(ctx context.Context, entryID uint64) (VaultEntry, error)
	TransferEntryAuthority(ctx context.Context, entryID uint64, currentAuthority, newAuthority string) error
	UpdateEntryMetadata(ctx context.Context, entryID uint64, currentAuthority string, metadata EntryMetadata) error
	GetPermission(ctx context.Context, entryID uint64, accessor string) (AccessPermission, error)
	TotalEntries(ctx context.Context) (uint64, error)
}

// Service orchestrates vault registry lifecycle behavior.
type Service struct {
	store Store
	clock func() time.Time
}

// NewService constructs vault registry use-cases.
func NewService(store Store, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store: store,
		clock: clock,
	}
}

// CreateEntry registers one vault entry under the caller's authority. The
// entry identifier is allocated by the store, the caller is recorded as the
// controlling authority, and the caller's access permission is seeded in the
// same write.
func (s *Service) CreateEntry(ctx context.Context, input CreateEntryInput) (VaultEntry, error) {
	if s == nil || s.store == nil {
		return VaultEntry{}, ErrStoreNotConfigured
	}
	if input.Caller == "" {
		return VaultEntry{}, ErrCallerRequired
	}
	metadata := EntryMetadata{
		PatientHash: input.PatientHash,
		PayloadSize: input.PayloadSize,
		Notes:       input.Notes,
		Tags:        input.Tags,
	}
	if err := validateEntryMetadata(metadata); err != nil {
		return VaultEntry{}, err
	}

	entry, err := s.store.CreateEntry(ctx, NewEntry{
		PatientHash: input.PatientHash,
		Authority:   input.Caller,
		PayloadSize: input.PayloadSize,
		Notes:       input.Notes,
		Tags:        input.Tags,
		CreatedAt:   s.nowUTC(),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return VaultEntry{}, ErrDuplicateVaultEntry
		}
		return VaultEntry{}, err
	}
	return entry, nil
}

// TransferAuthority reassigns the entry's controlling authority to
// input.NewAuthority. Only the current authority may transfer control.
func (s *Service) TransferAuthority(ctx context.Context, input TransferAuthorityInput) (VaultEntry, error) {
	if s == nil || s.store == nil {
		return VaultEntry{}, ErrStoreNotConfigured
	}
	if input.Caller == "" {
		return VaultEntry{}, ErrCallerRequired
	}

	entry, err := s.getEntry(ctx, input.EntryID)
	if err != nil {
		return VaultEntry{}, err
	}
	if entry.Authority != input.Caller {
		return VaultEntry{}, ErrInvalidAuthToken
	}
	if input.NewAuthority == "" {
		return VaultEntry{}, ErrNewAuthorityRequired
	}

	if err := s.store.TransferEntryAuthority(ctx, input.EntryID, input.Caller, input.NewAuthority); err != nil {
		return VaultEntry{}, mapGuardedWriteError(err)
	}

	entry.Authority = input.NewAuthority
	return entry, nil
}

// UpdateMetadata replaces the entry's mutable metadata. Only the current
// authority may update, and the replacement fields are validated the same way
// creation validates them. The creation timestamp and controlling authority
// are never modified.
func (s *Service) UpdateMetadata(ctx context.Context, input UpdateMetadataInput) (VaultEntry, error) {
	if s == nil || s.store == nil {
		return VaultEntry{}, ErrStoreNotConfigured
	}
	if input.Caller == "" {
		return VaultEntry{}, ErrCallerRequired
	}

	entry, err := s.getEntry(ctx, input.EntryID)
	if err != nil {
		return VaultEntry{}, err
	}
	if entry.Authority != input.Caller {
		return VaultEntry{}, ErrInvalidAuthToken
	}
	if err := validateEntryMetadata(input.Metadata); err != nil {
		return VaultEntry{}, err
	}

	if err := s.store.UpdateEntryMetadata(ctx, input.EntryID, input.Caller, input.Metadata); err != nil {
		return VaultEntry{}, mapGuardedWriteError(err)
	}

	entry.PatientHash = input.Metadata.PatientHash
	entry.PayloadSize = input.Metadata.PayloadSize
	entry.Notes = input.Metadata.Notes
	entry.Tags = input.Metadata.Tags
	return entry, nil
}

// GetEntry loads one vault entry by identifier.
func (s *Service) GetEntry(ctx context.Context, entryID uint64) (VaultEntry, error) {
	if s == nil || s.store == nil {
		return VaultEntry{}, ErrStoreNotConfigured
	}
	return s.getEntry(ctx, entryID)
}

// ClassificationTags reports the entry's classification tag list.
func (s *Service) ClassificationTags(ctx context.Context, entryID uint64) ([]string, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return entry.Tags, nil
}

// MedicalAuthority reports the entry's controlling medical authority.
func (s *Service) MedicalAuthority(ctx context.Context, entryID uint64) (string, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	return entry.Authority, nil
}

// CreationTimestamp reports when the entry was registered.
func (s *Service) CreationTimestamp(ctx context.Context, entryID uint64) (time.Time, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return time.Time{}, err
	}
	return entry.CreatedAt, nil
}

// PayloadSize reports the entry's payload byte size.
func (s *Service) PayloadSize(ctx context.Context, entryID uint64) (uint64, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return 0, err
	}
	return entry.PayloadSize, nil
}

// DiagnosticNotes reports the entry's diagnostic notes.
func (s *Service) DiagnosticNotes(ctx context.Context, entryID uint64) (string, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	return entry.Notes, nil
}

// TotalEntries reports the lifetime count of registered vault entries.
func (s *Service) TotalEntries(ctx context.Context) (uint64, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	return s.store.TotalEntries(ctx)
}

// CheckAccess reports whether the accessor holds access rights on the entry.
// An absent permission row is a permission breach regardless of whether the
// entry itself exists.
func (s *Service) CheckAccess(ctx context.Context, entryID uint64, accessor string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrStoreNotConfigured
	}
	if accessor == "" {
		return false, ErrAccessorRequired
	}

	permission, err := s.store.GetPermission(ctx, entryID, accessor)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrPermissionBreach
		}
		return false, err
	}
	return permission.HasAccess, nil
}

func (s *Service) getEntry(ctx context.Context, entryID uint64) (VaultEntry, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return VaultEntry{}, ErrVaultEntryAbsent
		}
		return VaultEntry{}, err
	}
	return entry, nil
}

func mapGuardedWriteError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrVaultEntryAbsent
	case errors.Is(err, ErrAuthorityMismatch):
		return ErrInvalidAuthToken
	default:
		return err
	}
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
