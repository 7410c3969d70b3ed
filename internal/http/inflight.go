package http

import (
	"context"
	"sync/atomic"
	"time"
)

// globalInFlight counts requests currently inside MetricsMiddleware.
var globalInFlight atomic.Int64

// InFlightCount returns the current number of in-flight requests.
func InFlightCount() int64 {
	return globalInFlight.Load()
}

// WaitForInFlight polls every checkInterval until no request is in flight or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if globalInFlight.Load() <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
