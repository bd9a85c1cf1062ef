package bridge

// Frame is the single JSON envelope exchanged with the relay.
//
// Inbound:  snapshot, ack.
// Outbound: play, login, requeue.
type Frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Pieces     []string `json:"pieces,omitempty"`
	MyTurn     bool     `json:"my_turn,omitempty"`
	InProgress bool     `json:"in_progress,omitempty"`
	Color      string   `json:"color,omitempty"`

	Move    string `json:"move,omitempty"`
	Flipped bool   `json:"flipped,omitempty"`

	OK     bool   `json:"ok,omitempty"`
	Result bool   `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	frameSnapshot = "snapshot"
	frameAck      = "ack"
	framePlay     = "play"
	frameLogin    = "login"
	frameRequeue  = "requeue"
)

// State is the connection state of the relay link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}
