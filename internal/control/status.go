package control

import "github.com/jonesrussell/gobotctl/internal/engine"

// Worker status values reported per website. Precedence runs top to bottom:
// a deactivated website is always disabled no matter what the engine says,
// and a missing worker beats any engine-side state.
const (
	WorkerStatusDisabled   = "disabled"
	WorkerStatusNotStarted = "not_started"
	WorkerStatusPaused     = "paused"
	WorkerStatusRunning    = "running"
	WorkerStatusIdle       = "idle"
)

// ClassifyWorkerStatus resolves the effective status of one website's worker
// from the activation flag and the engine's view. worker is nil when the
// engine has no worker for the site.
func ClassifyWorkerStatus(isActive bool, worker *engine.WorkerInfo) string {
	if !isActive {
		return WorkerStatusDisabled
	}
	if worker == nil {
		return WorkerStatusNotStarted
	}
	switch worker.Status {
	case WorkerStatusPaused:
		return WorkerStatusPaused
	case WorkerStatusRunning:
		return WorkerStatusRunning
	default:
		return WorkerStatusIdle
	}
}
