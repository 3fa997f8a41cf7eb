package model

type State uint8

const (
	_state_beg State = iota
	StateInitializing
	StateRunning
	StateFinished
	StateFailed
	_state_end
)

func (s State) IsAvailable() bool {
	return s > _state_beg && s < _state_end
}

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is one element of the ordered status stream surfaced by
// long-running pipelines: initializing -> running -> finished/failed.
type Status struct {
	State  State
	Reason string
}

func StatusInitializing() Status { return Status{State: StateInitializing} }

func StatusRunning() Status { return Status{State: StateRunning} }

func StatusFinished() Status { return Status{State: StateFinished} }

func StatusFailed(reason string) Status {
	return Status{State: StateFailed, Reason: reason}
}
