package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ConnectionState represents where a live interview session is in its lifecycle
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateReady      ConnectionState = "ready"
	StateActive     ConnectionState = "active"
	StateEnded      ConnectionState = "ended"
	StateError      ConnectionState = "error"
)

// ErrInvalidTransition is returned when a state change is not allowed
var ErrInvalidTransition = errors.New("invalid state transition")

var allowedTransitions = map[ConnectionState][]ConnectionState{
	StateConnecting: {StateReady, StateError},
	StateReady:      {StateActive, StateError},
	StateActive:     {StateEnded, StateError},
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Ended and error are terminal.
func (s ConnectionState) CanTransitionTo(next ConnectionState) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s ConnectionState) IsTerminal() bool {
	return s == StateEnded || s == StateError
}

// Transition validates and returns the next state
func (s ConnectionState) Transition(next ConnectionState) (ConnectionState, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// SessionID is the backend-assigned identifier of an interview attempt.
// The backend encodes it as a number; the client treats it as opaque text.
type SessionID string

// UnmarshalJSON accepts both JSON numbers and strings
func (id *SessionID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SessionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("session id must be a string or number: %w", err)
	}
	*id = SessionID(n.String())
	return nil
}

// Int returns the numeric form used by the backend, if any
func (id SessionID) Int() (int, bool) {
	n, err := strconv.Atoi(string(id))
	return n, err == nil
}

func (id SessionID) String() string { return string(id) }

// ArchivedTurn is a transcript line as persisted by the backend
type ArchivedTurn struct {
	Role      Role    `json:"role" bson:"role"`
	Content   string  `json:"content" bson:"content"`
	Timestamp float64 `json:"timestamp" bson:"timestamp"`
}

// Session represents one interview attempt as described by the backend
type Session struct {
	ID              SessionID      `json:"id"`
	SessionType     string         `json:"session_type"`
	TopicID         *int           `json:"topic_id"`
	TopicName       string         `json:"topic_name,omitempty"`
	Difficulty      string         `json:"difficulty"`
	JobTitle        string         `json:"job_title"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	EndedAt         *time.Time     `json:"ended_at"`
	DurationSeconds int            `json:"duration_seconds"`
	OverallScore    *float64       `json:"overall_score"`
	Transcript      []ArchivedTurn `json:"transcript"`
}

// DisplayTitle returns the label shown in the session header
func (s *Session) DisplayTitle() string {
	if s == nil {
		return "Interview"
	}
	if s.TopicName != "" {
		return s.TopicName
	}
	if s.JobTitle != "" {
		return s.JobTitle
	}
	return "Interview"
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.DurationSeconds < 0 {
		return errors.New("duration_seconds cannot be negative")
	}
	return nil
}
