// Package connector provides market data sources for the scanner.
//
// A Connector is long-lived and stateful: the remote variant keeps a
// per-market previous cumulative volume across calls so that flow can be
// derived as the non-negative volume delta between consecutive fetches.
// A single connector instance must therefore be shared across poll ticks,
// and Fetch must not be called concurrently from multiple goroutines.
package connector

import (
	"context"
	"errors"
	"fmt"

	"github.com/oddsflow/scanner/internal/models"
)

// Connector fetches the current batch of market observations.
type Connector interface {
	Fetch(ctx context.Context) ([]models.Observation, error)
}

// RateLimitError indicates that the upstream API kept responding with
// rate-limit statuses until the retry budget was exhausted. It is fatal for
// the current fetch; the next scheduled poll retries naturally.
type RateLimitError struct {
	URL      string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d retries for url=%s", e.Attempts, e.URL)
}

// IsRateLimit reports whether err is a rate-limit exhaustion error.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
