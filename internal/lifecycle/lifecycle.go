package lifecycle

import "sync/atomic"

// Phase is the process phase reported by /health.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "starting"
	}
}

var phase atomic.Int32

// SetPhase records the current process phase. main moves Starting → Ready once the
// session is loaded, and Ready → ShuttingDown on SIGTERM/SIGINT.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the recorded phase.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return CurrentPhase() == PhaseShuttingDown
}

// IsReady returns true once the session has been loaded and before shutdown starts.
func IsReady() bool {
	return CurrentPhase() == PhaseReady
}
