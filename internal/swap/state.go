package swap

// State identifies where in its lifecycle one swap run is. Any state can
// transition to StateFailed; the happy path runs strictly left to right.
type State string

const (
	StateQuoting    State = "quoting"
	StateBuilding   State = "building"
	StateSubmitting State = "submitting"
	StateConfirming State = "confirming"
	StateRecording  State = "recording"
	StateDone       State = "done"
	StateFailed     State = "failed"
)
