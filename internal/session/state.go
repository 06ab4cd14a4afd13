package session

// State is a session's lifecycle stage (spec.md §4.3).
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateWaitAccept
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateConnecting:
		return "CONNECTING"
	case StateWaitAccept:
		return "WAIT_ACCEPT"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}
