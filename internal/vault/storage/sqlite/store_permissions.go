package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/medvault/internal/vault/storage"
)

// GetPermission loads the access permission row for the given entry and
// accessor pair. It reports storage.ErrNotFound when no row exists,
// regardless of whether the entry itself does.
func (s *Store) GetPermission(ctx context.Context, entryID uint64, accessor string) (storage.PermissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PermissionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PermissionRecord{}, fmt.Errorf("storage is not configured")
	}
	if accessor == "" {
		return storage.PermissionRecord{}, fmt.Errorf("accessor identity is required")
	}

	var (
		hasAccess int64
		grantedAt int64
		record    storage.PermissionRecord
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT has_access_rights, granted_at
		FROM access_permissions
		WHERE entry_id = ? AND accessor_identity = ?
	`, int64(entryID), accessor).Scan(&hasAccess, &grantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PermissionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PermissionRecord{}, fmt.Errorf("load access permission: %w", err)
	}

	record.EntryID = entryID
	record.Accessor = accessor
	record.HasAccess = hasAccess != 0
	record.GrantedAt = fromMillis(grantedAt)
	return record, nil
}
