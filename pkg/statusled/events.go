package statusled

// State represents the lifecycle state of an Indicator.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// HeadChangeEvent is emitted when a tick renders a different request than the last one.
// Current is the zero Handle when the stack became empty.
type HeadChangeEvent struct {
	Previous Handle
	Current  Handle
	Color    Color
}

// ExpireEvent is emitted when a request removes itself.
// Reason is "cycles" or "duration".
type ExpireEvent struct {
	Handle Handle
	Reason string
}

// EventHandler receives Indicator events.
// Render events are called from the render goroutine and must return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnHeadChange(HeadChangeEvent)
	OnExpire(ExpireEvent)
}

// BaseEventHandler implements EventHandler with no-ops, for embedding.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnHeadChange(HeadChangeEvent)   {}
func (BaseEventHandler) OnExpire(ExpireEvent)           {}
