package uploads

type State int

const (
	StateIdle State = iota
	StateInitiating
	StateUploadingPart
	StateCompleting
	StateDone
	StateAborting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateUploadingPart:
		return "uploading_part"
	case StateCompleting:
		return "completing"
	case StateDone:
		return "done"
	case StateAborting:
		return "aborting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is reported to Uploader.OnStateChange. PartNumber is set while
// To is StateUploadingPart; UploadID is empty until initiation succeeds.
type Transition struct {
	UploadID   string
	From       State
	To         State
	PartNumber int
}
