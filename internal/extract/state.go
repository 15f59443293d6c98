// Package extract drives a page load in a browser session and derives the
// page and resource metric documents from what the browser reports.
package extract

// State is a step of the extraction state machine.
type State int

// Extraction states. Completed, TimedOut and LoadError are terminal load
// states; every run ends in MetricsBuilt.
const (
	Idle State = iota
	Navigating
	WaitingForComplete
	Completed
	TimedOut
	LoadError
	MetricsBuilt
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Navigating:
		return "navigating"
	case WaitingForComplete:
		return "waiting_for_complete"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case LoadError:
		return "load_error"
	case MetricsBuilt:
		return "metrics_built"
	default:
		return "unknown"
	}
}

// Outcome is the result of one navigation attempt.
type Outcome struct {
	Completed  bool
	TimedOut   bool
	StatusCode *int
	// LoadState is the terminal load state reached before metrics were built.
	LoadState State
	State     State
}
