package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TotalEntries reports the lifetime count of created vault entries. A
// registry with no entries yet has no counter row and reports zero.
func (s *Store) TotalEntries(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var total int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT total_vault_entries
		FROM registry_counter
		WHERE id = 1
	`).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read registry counter: %w", err)
	}
	return uint64(total), nil
}
