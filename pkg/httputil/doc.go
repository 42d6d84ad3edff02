// Package httputil provides retry helpers for package index clients.
//
// # Retry
//
// Transient failures are marked by wrapping them with [Retryable]:
//
//   - Network errors and timeouts
//   - 5xx server errors
//   - 429 rate limit responses
//
// A [Policy] then retries only those errors with bounded exponential
// backoff:
//
//	attempts, err := httputil.DefaultPolicy().Do(ctx, func(attempt int) error {
//	    return client.fetch(ctx, name)
//	})
//
// Anything not wrapped, such as a 404, is returned after the first attempt.
//
// # Defaults
//
//   - Attempts: 4
//   - Base delay: 250ms, doubling
//   - Delay ceiling: 4s
package httputil
