package store

import (
	"context"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many
// have run. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS probe_cache (
		domain TEXT PRIMARY KEY,
		status_code INTEGER,
		status_label TEXT,
		message TEXT,
		response_time REAL,
		category TEXT NOT NULL,
		check_id TEXT,
		checked_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		endpoint TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		window_start INTEGER NOT NULL,
		backoff_until INTEGER,
		last_429_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_probe_cache_expires ON probe_cache(expires_at)`,
}

// SchemaVersion returns the number of migrations applied to the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	var version int
	if err := s.DB.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Migrate applies pending migrations. Running it again is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("store schema version %d is newer than this build (%d)", current, len(migrations))
	}

	for i := current; i < len(migrations); i++ {
		if _, err := s.DB.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("store migration %d failed: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := s.DB.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return fmt.Errorf("record schema version %d: %w", i+1, err)
		}
	}
	return nil
}
