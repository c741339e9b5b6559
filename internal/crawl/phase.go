package crawl

// Phase is the controller's coarse position in the job lifecycle.
// Comment fetching runs concurrently with the listing walk, so
// PhaseListing covers both until the listing is drained; the phase
// tracks what the controller itself is driving, not every worker.
type Phase int

const (
	// PhaseIdle is the state before Run is called.
	PhaseIdle Phase = iota

	// PhaseListing means the target's listing is being walked and
	// per-post work is being dispatched.
	PhaseListing

	// PhaseFetchingComments means the listing is drained and in-flight
	// comment workers are finishing.
	PhaseFetchingComments

	// PhaseExporting means the final records are being flushed: the
	// user comment feed, the stats snapshot, and the export sink.
	PhaseExporting

	// PhaseDone is the terminal state of complete and partial jobs.
	PhaseDone

	// PhaseAborted is the terminal state of aborted jobs.
	PhaseAborted
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListing:
		return "listing"
	case PhaseFetchingComments:
		return "fetching comments"
	case PhaseExporting:
		return "exporting"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
