package fetch

import (
	"errors"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
)

// ErrRateLimited marks a fetch that failed because the RPC provider refused
// the request outright. Retrying only digs the hole deeper, so the retry
// policy treats it as terminal.
var ErrRateLimited = errors.New("rate limited")

// IsRateLimited reports whether err signals an RPC quota violation, either as
// the sentinel or by message content (public providers are not consistent
// about how they say 429).
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}

// ShouldRetry implements the fetch retry policy. failureCount is the number
// of failures observed before this one (0 on the first failure). Rate-limit
// errors are never retried; anything else is retried while
// failureCount < MaxFetchRetries, i.e. up to MaxFetchRetries+1 total attempts.
func ShouldRetry(failureCount int, err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) {
		return false
	}
	return failureCount < constants.MaxFetchRetries
}

// RetryDelay returns the backoff before retry attempt n (0-based):
// 1s, 2s, 4s, ... capped at 30s.
func RetryDelay(attempt int) time.Duration {
	d := constants.RetryBaseDelay << uint(attempt)
	if d > constants.RetryMaxDelay || d <= 0 {
		return constants.RetryMaxDelay
	}
	return d
}
