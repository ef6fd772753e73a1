package review

import "errors"

// Sentinel errors for collaborator failures. Clients wrap these with
// %w so the runner and worker can classify via errors.Is.
var (
	// ErrNotFound: unknown repo or PR number.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited: the collaborator refused due to rate limiting.
	// Fatal to the task; the external queue owns redelivery policy.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuth: credentials rejected. Fatal, never retried.
	ErrAuth = errors.New("authentication failed")
	// ErrTransient: collaborator hiccup. Retried at the stage level
	// with bounded backoff before escalating to fatal.
	ErrTransient = errors.New("transient error")
)

// Kind maps an error to the structured error kind recorded on a
// failed task.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrTransient):
		return "transient_error"
	default:
		return "internal_error"
	}
}
