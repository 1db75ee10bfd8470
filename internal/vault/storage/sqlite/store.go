// Package sqlite provides the SQLite-backed vault registry store.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/medvault/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/medvault/internal/vault/storage"
	"github.com/louisbranch/medvault/internal/vault/storage/sqlite/migrations"
)

// Store persists vault entries, access permissions, the registry counter,
// and audit events in a SQLite database.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.RegistryStore = (*Store)(nil)

// Open opens (creating if needed) a SQLite-backed store at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func ensureForeignKeysEnabled(sqlDB *sql.DB) error {
	var enabled int
	if err := sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check foreign keys pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("foreign keys pragma is disabled")
	}
	return nil
}

func runMigrations(sqlDB *sql.DB) error {
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type scanner func(dest ...any) error

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode classification tags: %w", err)
	}
	return string(raw), nil
}

func decodeTags(raw string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode classification tags: %w", err)
	}
	return tags, nil
}

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
