package experiment

// State is the lifecycle position of an experiment. The cell holding it is
// atomic so observers poll it lock-free while the worker mutates it.
type State int32

const (
	// Initial means no dataset is registered.
	Initial State = iota
	// Ready means setup registered a dataset and the run can start.
	Ready
	// Running means a worker executes the measurement loop (or a preview).
	Running
	// Finished means the full pixel loop completed.
	Finished
	// Aborted means the run was stopped, by request or by a worker crash.
	Aborted
)

func (s State) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Sentinel values of the current-pixel-index cell. Valid pixel indices are
// 0-based; after a completed run the cell holds the pixel count.
const (
	// PixelNotStarted is the index value before the first pixel of a run.
	PixelNotStarted = -2
	// PixelIdle is the index value while no pixel of the selected list is in
	// flight, e.g. during a preview.
	PixelIdle = -1
)
