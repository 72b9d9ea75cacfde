package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

// GetCachedProbe returns a cached probe result if it has not expired.
func (s *Store) GetCachedProbe(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	key := cacheKey(domain)
	if key == "" {
		return nil, errors.New("cache domain is required")
	}

	var (
		statusCode   sql.NullInt64
		statusLabel  sql.NullString
		message      sql.NullString
		responseTime sql.NullFloat64
		category     string
		checkID      sql.NullString
		checkedAt    int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT status_code, status_label, message, response_time, category, check_id, checked_at
		FROM probe_cache
		WHERE domain = ? AND expires_at > ?
	`, key, s.now().Unix())

	if err := row.Scan(&statusCode, &statusLabel, &message, &responseTime, &category, &checkID, &checkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached probe: %w", err)
	}

	result := &core.CheckResult{
		CheckID:   checkID.String,
		Domain:    domain,
		Status:    core.Status{Code: int(statusCode.Int64), Label: statusLabel.String},
		Message:   message.String,
		Category:  core.Category(category),
		CheckedAt: time.Unix(checkedAt, 0).UTC(),
	}
	if responseTime.Valid {
		result.ResponseTimeSeconds = core.Seconds(responseTime.Float64)
	}

	return result, nil
}

// SetCachedProbe stores a probe result with a TTL.
func (s *Store) SetCachedProbe(ctx context.Context, result *core.CheckResult, ttl time.Duration) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	if ttl <= 0 || result == nil {
		return nil
	}

	key := cacheKey(result.Domain)
	if key == "" {
		return errors.New("cache domain is required")
	}

	var statusCode sql.NullInt64
	if result.Status.IsNumeric() {
		statusCode = sql.NullInt64{Int64: int64(result.Status.Code), Valid: true}
	}
	var responseTime sql.NullFloat64
	if result.ResponseTimeSeconds != nil {
		responseTime = sql.NullFloat64{Float64: *result.ResponseTimeSeconds, Valid: true}
	}

	checked := result.CheckedAt
	if checked.IsZero() {
		checked = s.now()
	}
	expires := s.now().Add(ttl)

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO probe_cache (domain, status_code, status_label, message, response_time, category, check_id, checked_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			status_code = excluded.status_code,
			status_label = excluded.status_label,
			message = excluded.message,
			response_time = excluded.response_time,
			category = excluded.category,
			check_id = excluded.check_id,
			checked_at = excluded.checked_at,
			expires_at = excluded.expires_at
	`, key, statusCode, result.Status.Label, result.Message, responseTime, string(result.Category), result.CheckID, checked.UTC().Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached probe: %w", err)
	}

	return nil
}

// PurgeExpired deletes expired cache rows and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM probe_cache WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge probe cache: %w", err)
	}
	return res.RowsAffected()
}

func cacheKey(domain core.Domain) string {
	return strings.ToLower(strings.TrimSpace(string(domain)))
}
