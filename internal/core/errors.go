package core

import "errors"

// Failure classes shared by the status checkers. Callers match them with errors.Is.
var (
	// ErrTimeout means the request exceeded its time box.
	ErrTimeout = errors.New("request timed out")
	// ErrUnreachable means the remote end could not be reached at all.
	ErrUnreachable = errors.New("connection failed")
	// ErrBadResponse covers non-2xx statuses and undecodable bodies.
	ErrBadResponse = errors.New("invalid response")
	// ErrRateLimited means a local or remote rate limit refused the request.
	ErrRateLimited = errors.New("rate limited")
)

// FailureMessage returns the user-facing message for a failed probe.
func FailureMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "Request timed out"
	case errors.Is(err, ErrRateLimited):
		return "Rate limited"
	case errors.Is(err, ErrUnreachable):
		return "Connection Failed"
	default:
		return err.Error()
	}
}
