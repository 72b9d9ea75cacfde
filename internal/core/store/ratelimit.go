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

// RateLimitEntry is one stored endpoint window.
type RateLimitEntry struct {
	Endpoint string              `json:"endpoint"`
	State    core.RateLimitState `json:"state"`
}

// RateLimitQuery selects endpoints for the admin commands. Exactly one of
// All, Endpoint or Prefix is honored, in that order.
type RateLimitQuery struct {
	All      bool
	Endpoint string
	Prefix   string
}

// ErrEmptyQuery is returned when a RateLimitQuery selects nothing.
var ErrEmptyQuery = errors.New("must specify --all, --endpoint, or --prefix")

// Validate reports whether the query names a selection.
func (q RateLimitQuery) Validate() error {
	_, _, err := q.filter()
	return err
}

func (q RateLimitQuery) filter() (string, []any, error) {
	switch {
	case q.All:
		return "", nil, nil
	case strings.TrimSpace(q.Endpoint) != "":
		return " WHERE endpoint = ?", []any{strings.TrimSpace(q.Endpoint)}, nil
	case strings.TrimSpace(q.Prefix) != "":
		return " WHERE endpoint LIKE ? ESCAPE '\\'", []any{likePrefix(strings.TrimSpace(q.Prefix))}, nil
	default:
		return "", nil, ErrEmptyQuery
	}
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

const rateLimitColumns = `endpoint, request_count, window_start, backoff_until, last_429_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRateLimit(row rowScanner) (RateLimitEntry, error) {
	var (
		entry        RateLimitEntry
		windowStart  int64
		backoffUntil sql.NullInt64
		last429At    sql.NullInt64
	)
	if err := row.Scan(&entry.Endpoint, &entry.State.RequestCount, &windowStart, &backoffUntil, &last429At); err != nil {
		return RateLimitEntry{}, err
	}
	entry.State.WindowStart = time.Unix(windowStart, 0).UTC()
	entry.State.BackoffUntil = unixPtr(backoffUntil)
	entry.State.Last429At = unixPtr(last429At)
	return entry, nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

// GetRateLimit returns the stored window for endpoint, or nil when none exists.
func (s *Store) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+rateLimitColumns+` FROM rate_limits WHERE endpoint = ?`, endpoint)
	entry, err := scanRateLimit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	return &entry.State, nil
}

// UpdateRateLimit upserts the window for endpoint.
func (s *Store) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (`+rateLimitColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at`,
		endpoint, state.RequestCount, state.WindowStart.UTC().Unix(), nullUnix(state.BackoffUntil), nullUnix(state.Last429At))
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}
	return nil
}

// ListRateLimits returns the matching windows ordered by endpoint.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	where, args, err := q.filter()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+rateLimitColumns+` FROM rate_limits`+where+` ORDER BY endpoint`, args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		entry, err := scanRateLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

// CountRateLimits counts the matching windows.
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.filter()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM rate_limits`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

// ResetRateLimits deletes the matching windows and returns how many were removed.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	where, args, err := q.filter()
	if err != nil {
		return 0, err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM rate_limits`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return res.RowsAffected()
}
