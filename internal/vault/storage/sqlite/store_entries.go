package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/medvault/internal/vault/storage"
)

// CreateEntry allocates the next entry identifier, inserts the entry, seeds
// the creator's access permission, and advances the registry counter in a
// single transaction.
func (s *Store) CreateEntry(ctx context.Context, entry storage.NewEntryRecord) (storage.EntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntryRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EntryRecord{}, fmt.Errorf("storage is not configured")
	}

	normalized, err := normalizeNewEntryRecord(entry)
	if err != nil {
		return storage.EntryRecord{}, err
	}

	tagsJSON, err := encodeTags(normalized.Tags)
	if err != nil {
		return storage.EntryRecord{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.EntryRecord{}, fmt.Errorf("begin entry creation: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO registry_counter (id, total_vault_entries)
		VALUES (1, 0)
	`); err != nil {
		return storage.EntryRecord{}, fmt.Errorf("init registry counter: %w", err)
	}

	var total int64
	if err := tx.QueryRowContext(ctx, `
		SELECT total_vault_entries
		FROM registry_counter
		WHERE id = 1
	`).Scan(&total); err != nil {
		return storage.EntryRecord{}, fmt.Errorf("read registry counter: %w", err)
	}

	entryID := uint64(total) + 1

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vault_entries (
			entry_id,
			patient_hash_code,
			medical_authority,
			payload_byte_size,
			diagnostic_notes,
			classification_tags,
			creation_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		int64(entryID),
		normalized.PatientHash,
		normalized.Authority,
		int64(normalized.PayloadSize),
		normalized.Notes,
		tagsJSON,
		toMillis(normalized.CreatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return storage.EntryRecord{}, storage.ErrConflict
		}
		return storage.EntryRecord{}, fmt.Errorf("insert vault entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO access_permissions (entry_id, accessor_identity, has_access_rights, granted_at)
		VALUES (?, ?, 1, ?)
	`,
		int64(entryID),
		normalized.Authority,
		toMillis(normalized.CreatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return storage.EntryRecord{}, storage.ErrConflict
		}
		return storage.EntryRecord{}, fmt.Errorf("seed creator permission: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registry_counter
		SET total_vault_entries = ?
		WHERE id = 1
	`, int64(entryID)); err != nil {
		return storage.EntryRecord{}, fmt.Errorf("advance registry counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.EntryRecord{}, fmt.Errorf("commit entry creation: %w", err)
	}

	return storage.EntryRecord{
		EntryID:     entryID,
		PatientHash: normalized.PatientHash,
		Authority:   normalized.Authority,
		PayloadSize: normalized.PayloadSize,
		Notes:       normalized.Notes,
		Tags:        normalized.Tags,
		CreatedAt:   normalized.CreatedAt.UTC(),
	}, nil
}

// GetEntry loads a single vault entry by identifier.
func (s *Store) GetEntry(ctx context.Context, entryID uint64) (storage.EntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntryRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EntryRecord{}, fmt.Errorf("storage is not configured")
	}
	if entryID == 0 {
		return storage.EntryRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT entry_id, patient_hash_code, medical_authority, payload_byte_size,
			diagnostic_notes, classification_tags, creation_timestamp
		FROM vault_entries
		WHERE entry_id = ?
	`, int64(entryID))

	record, err := scanEntryRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.EntryRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.EntryRecord{}, fmt.Errorf("load vault entry: %w", err)
	}
	return record, nil
}

// TransferEntryAuthority reassigns the entry's controlling authority after
// verifying the stored authority matches currentAuthority. It reports
// storage.ErrNotFound when the entry does not exist and
// storage.ErrAuthorityMismatch when the stored authority differs.
func (s *Store) TransferEntryAuthority(ctx context.Context, entryID uint64, currentAuthority, newAuthority string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if newAuthority == "" {
		return fmt.Errorf("new authority is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin authority transfer: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := verifyEntryAuthority(ctx, tx, entryID, currentAuthority); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vault_entries
		SET medical_authority = ?
		WHERE entry_id = ?
	`, newAuthority, int64(entryID)); err != nil {
		return fmt.Errorf("transfer entry authority: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit authority transfer: %w", err)
	}
	return nil
}

// UpdateEntryMetadata rewrites the entry's mutable metadata after verifying
// the stored authority matches currentAuthority. The creation timestamp and
// controlling authority are left untouched.
func (s *Store) UpdateEntryMetadata(ctx context.Context, entryID uint64, currentAuthority string, metadata storage.EntryMetadataRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tagsJSON, err := encodeTags(metadata.Tags)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metadata update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := verifyEntryAuthority(ctx, tx, entryID, currentAuthority); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vault_entries
		SET patient_hash_code = ?,
			payload_byte_size = ?,
			diagnostic_notes = ?,
			classification_tags = ?
		WHERE entry_id = ?
	`,
		metadata.PatientHash,
		int64(metadata.PayloadSize),
		metadata.Notes,
		tagsJSON,
		int64(entryID),
	); err != nil {
		return fmt.Errorf("update entry metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metadata update: %w", err)
	}
	return nil
}

func verifyEntryAuthority(ctx context.Context, tx *sql.Tx, entryID uint64, currentAuthority string) error {
	var stored string
	err := tx.QueryRowContext(ctx, `
		SELECT medical_authority
		FROM vault_entries
		WHERE entry_id = ?
	`, int64(entryID)).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load entry authority: %w", err)
	}
	if stored != currentAuthority {
		return storage.ErrAuthorityMismatch
	}
	return nil
}

func normalizeNewEntryRecord(entry storage.NewEntryRecord) (storage.NewEntryRecord, error) {
	if entry.PatientHash == "" {
		return storage.NewEntryRecord{}, fmt.Errorf("patient hash is required")
	}
	if entry.Authority == "" {
		return storage.NewEntryRecord{}, fmt.Errorf("medical authority is required")
	}
	if entry.Notes == "" {
		return storage.NewEntryRecord{}, fmt.Errorf("diagnostic notes are required")
	}
	if entry.CreatedAt.IsZero() {
		return storage.NewEntryRecord{}, fmt.Errorf("creation timestamp is required")
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	return entry, nil
}

func scanEntryRecord(scan scanner) (storage.EntryRecord, error) {
	var (
		entryID     int64
		payloadSize int64
		createdAt   int64
		tagsJSON    string
		record      storage.EntryRecord
	)
	if err := scan(
		&entryID,
		&record.PatientHash,
		&record.Authority,
		&payloadSize,
		&record.Notes,
		&tagsJSON,
		&createdAt,
	); err != nil {
		return storage.EntryRecord{}, err
	}

	tags, err := decodeTags(tagsJSON)
	if err != nil {
		return storage.EntryRecord{}, err
	}

	record.EntryID = uint64(entryID)
	record.PayloadSize = uint64(payloadSize)
	record.Tags = tags
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
