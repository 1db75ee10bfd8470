package server

import (
	"context"
	"errors"

	"github.com/louisbranch/medvault/internal/vault/domain"
	"github.com/louisbranch/medvault/internal/vault/storage"
)

type domainStoreAdapter struct {
	entries     storage.EntryStore
	permissions storage.PermissionStore
	counter     storage.CounterStore
}

func newDomainStoreAdapter(store storage.RegistryStore) *domainStoreAdapter {
	return &domainStoreAdapter{
		entries:     store,
		permissions: store,
		counter:     store,
	}
}

func (a *domainStoreAdapter) CreateEntry(ctx context.Context, entry domain.NewEntry) (domain.VaultEntry, error) {
	if a == nil || a.entries == nil {
		return domain.VaultEntry{}, domain.ErrStoreNotConfigured
	}
	record, err := a.entries.CreateEntry(ctx, toStorageNewEntry(entry))
	if err != nil {
		return domain.VaultEntry{}, mapStorageError(err)
	}
	return toDomainEntry(record), nil
}

func (a *domainStoreAdapter) GetEntry(ctx context.Context, entryID uint64) (domain.VaultEntry, error) {
	if a == nil || a.entries == nil {
		return domain.VaultEntry{}, domain.ErrStoreNotConfigured
	}
	record, err := a.entries.GetEntry(ctx, entryID)
	if err != nil {
		return domain.VaultEntry{}, mapStorageError(err)
	}
	return toDomainEntry(record), nil
}

func (a *domainStoreAdapter) TransferEntryAuthority(ctx context.Context, entryID uint64, currentAuthority, newAuthority string) error {
	if a == nil || a.entries == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.entries.TransferEntryAuthority(ctx, entryID, currentAuthority, newAuthority))
}

func (a *domainStoreAdapter) UpdateEntryMetadata(ctx context.Context, entryID uint64, currentAuthority string, metadata domain.EntryMetadata) error {
	if a == nil || a.entries == nil {
		return domain.ErrStoreNotConfigured
	}
	record := storage.EntryMetadataRecord{
		PatientHash: metadata.PatientHash,
		PayloadSize: metadata.PayloadSize,
		Notes:       metadata.Notes,
		Tags:        metadata.Tags,
	}
	return mapStorageError(a.entries.UpdateEntryMetadata(ctx, entryID, currentAuthority, record))
}

func (a *domainStoreAdapter) GetPermission(ctx context.Context, entryID uint64, accessor string) (domain.AccessPermission, error) {
	if a == nil || a.permissions == nil {
		return domain.AccessPermission{}, domain.ErrStoreNotConfigured
	}
	record, err := a.permissions.GetPermission(ctx, entryID, accessor)
	if err != nil {
		return domain.AccessPermission{}, mapStorageError(err)
	}
	return domain.AccessPermission{
		EntryID:   record.EntryID,
		Accessor:  record.Accessor,
		HasAccess: record.HasAccess,
		GrantedAt: record.GrantedAt,
	}, nil
}

func (a *domainStoreAdapter) TotalEntries(ctx context.Context) (uint64, error) {
	if a == nil || a.counter == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	total, err := a.counter.TotalEntries(ctx)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return total, nil
}

func toStorageNewEntry(entry domain.NewEntry) storage.NewEntryRecord {
	return storage.NewEntryRecord{
		PatientHash: entry.PatientHash,
		Authority:   entry.Authority,
		PayloadSize: entry.PayloadSize,
		Notes:       entry.Notes,
		Tags:        entry.Tags,
		CreatedAt:   entry.CreatedAt,
	}
}

func toDomainEntry(record storage.EntryRecord) domain.VaultEntry {
	return domain.VaultEntry{
		EntryID:     record.EntryID,
		PatientHash: record.PatientHash,
		Authority:   record.Authority,
		PayloadSize: record.PayloadSize,
		Notes:       record.Notes,
		Tags:        record.Tags,
		CreatedAt:   record.CreatedAt,
	}
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	case errors.Is(err, storage.ErrAuthorityMismatch):
		return domain.ErrAuthorityMismatch
	default:
		return err
	}
}
