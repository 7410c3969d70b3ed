// Package traffic keeps sliding windows of weather enrichment outcomes and API
// rate-limit denials. Health reports degraded when the fallback share is high.
package traffic

import (
	"sync"
	"time"
)

var defaultTracker Tracker

// RecordResolved records an enrichment that produced a weather summary.
func RecordResolved() {
	defaultTracker.RecordResolved()
}

// RecordFallback records an enrichment that ended with the unavailable marker.
func RecordFallback() {
	defaultTracker.RecordFallback()
}

// RecordDenied records an API rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// EnrichmentCount returns resolved + fallback outcomes within the window.
func EnrichmentCount(window time.Duration) int {
	return defaultTracker.EnrichmentCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// FallbackRate returns (fallbacks, total) within the window.
func FallbackRate(window time.Duration) (fallbacks, total int) {
	return defaultTracker.FallbackRate(window)
}

// FallbackRatio returns fallbacks/total within the window, 0 when nothing was recorded.
func FallbackRatio(window time.Duration) float64 {
	fallbacks, total := defaultTracker.FallbackRate(window)
	if total == 0 {
		return 0
	}
	return float64(fallbacks) / float64(total)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu            sync.Mutex
	resolvedTimes []time.Time
	fallbackTimes []time.Time
	deniedTimes   []time.Time
}

func (t *Tracker) RecordResolved() {
	t.recordOutcome(&t.resolvedTimes)
}

func (t *Tracker) RecordFallback() {
	t.recordOutcome(&t.fallbackTimes)
}

func (t *Tracker) RecordDenied() {
	t.recordOutcome(&t.deniedTimes)
}

// recordOutcome appends current timestamp to the specified slice and prunes old entries.
func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

func (t *Tracker) EnrichmentCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	return t.countInWindow(t.resolvedTimes, cutoff) + t.countInWindow(t.fallbackTimes, cutoff)
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countInWindow(t.deniedTimes, time.Now().Add(-window))
}

// FallbackRate returns (fallbackCount, totalCount) within the window.
// Denials are not enrichments and are excluded.
func (t *Tracker) FallbackRate(window time.Duration) (fallbacks, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	fb := t.countInWindow(t.fallbackTimes, cutoff)
	ok := t.countInWindow(t.resolvedTimes, cutoff)
	return fb, fb + ok
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolvedTimes = nil
	t.fallbackTimes = nil
	t.deniedTimes = nil
}

// countInWindow counts timestamps that are not before the cutoff time.
func (t *Tracker) countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked removes timestamps older than 15 minutes from all outcome slices.
// Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-15 * time.Minute)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.resolvedTimes)
	prune(&t.fallbackTimes)
	prune(&t.deniedTimes)
}
