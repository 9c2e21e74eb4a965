package readiness

type State int

const (
	StateIdle State = iota
	StatePolling
	StateDone
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateStopped
}

var transitions = map[State][]State{
	StateIdle:    {StatePolling, StateStopped},
	StatePolling: {StateDone, StateFailed, StateStopped},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
