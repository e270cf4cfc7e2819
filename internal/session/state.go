package session

import (
	"fmt"

	"github.com/satriahrh/mockmaster-client/domain/entities"
)

// ConnectFailedMessage is shown when the socket closes before the interview starts
const ConnectFailedMessage = "WebSocket connection failed. Is the backend running?"

// State is the part of the session driven by the reducer
type State struct {
	Connection entities.ConnectionState
	StatusText string
	Error      string
	MicBlocked bool
}

// InitialState is the state before the socket opens
func InitialState() State {
	return State{
		Connection: entities.StateConnecting,
		StatusText: "Connecting to interview server...",
	}
}

// Event is an input to Reduce
type Event interface {
	isEvent()
}

type (
	SocketOpened   struct{}
	StatusReceived struct{ Message string }
	ReadyReceived  struct{}
	ServerError    struct{ Message string }
	SocketClosed   struct{}
	SocketFailed   struct{ Err error }
	EndRequested   struct{}
	MicFailed      struct{ Err error }
)

func (SocketOpened) isEvent()   {}
func (StatusReceived) isEvent() {}
func (ReadyReceived) isEvent()  {}
func (ServerError) isEvent()    {}
func (SocketClosed) isEvent()   {}
func (SocketFailed) isEvent()   {}
func (EndRequested) isEvent()   {}
func (MicFailed) isEvent()      {}

// Effect is a side effect the controller performs after a reduction
type Effect int

const (
	EffectStartMic Effect = iota
	EffectStopMedia
	EffectSendEnd
	EffectCloseSocket
	EffectStartClock
	EffectStopClock
	EffectArchive
)

func (e Effect) String() string {
	switch e {
	case EffectStartMic:
		return "start_mic"
	case EffectStopMedia:
		return "stop_media"
	case EffectSendEnd:
		return "send_end"
	case EffectCloseSocket:
		return "close_socket"
	case EffectStartClock:
		return "start_clock"
	case EffectStopClock:
		return "stop_clock"
	case EffectArchive:
		return "archive"
	default:
		return fmt.Sprintf("effect(%d)", int(e))
	}
}

// teardownEffects release everything a terminal session holds
var teardownEffects = []Effect{EffectStopClock, EffectStopMedia, EffectCloseSocket, EffectArchive}

// Reduce is the session state machine. It is pure: it returns the next state
// and the effects to run, and never touches the socket or devices itself.
// Events that are not valid in the current state leave it unchanged.
func Reduce(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case SocketOpened:
		if s.Connection == entities.StateConnecting {
			s.StatusText = "Connected, waiting for AI..."
		}
		return s, nil

	case StatusReceived:
		if !s.Connection.IsTerminal() {
			s.StatusText = e.Message
		}
		return s, nil

	case ReadyReceived:
		next := s.Connection
		if next == entities.StateConnecting {
			next, _ = next.Transition(entities.StateReady)
		}
		// ready is transient: the session goes live as the microphone starts
		next, err := next.Transition(entities.StateActive)
		if err != nil {
			return s, nil
		}
		s.Connection = next
		s.Error = ""
		return s, []Effect{EffectStartMic, EffectStartClock}

	case ServerError:
		if s.Connection.IsTerminal() {
			return s, nil
		}
		s.Error = e.Message
		if s.Connection == entities.StateActive {
			// shown inline, an active interview is not aborted
			return s, nil
		}
		s.Connection = entities.StateError
		return s, teardownEffects

	case SocketClosed, SocketFailed:
		switch s.Connection {
		case entities.StateActive:
			s.Connection = entities.StateEnded
			return s, teardownEffects
		case entities.StateConnecting, entities.StateReady:
			s.Connection = entities.StateError
			s.Error = ConnectFailedMessage
			return s, teardownEffects
		default:
			return s, nil
		}

	case EndRequested:
		next, err := s.Connection.Transition(entities.StateEnded)
		if err != nil {
			return s, nil
		}
		s.Connection = next
		return s, []Effect{EffectSendEnd, EffectStopClock, EffectStopMedia, EffectCloseSocket, EffectArchive}

	case MicFailed:
		if s.Connection.IsTerminal() {
			return s, nil
		}
		s.MicBlocked = true
		if e.Err != nil {
			s.Error = fmt.Sprintf("Microphone unavailable: %v", e.Err)
		} else {
			s.Error = "Microphone unavailable"
		}
		return s, nil

	default:
		return s, nil
	}
}
