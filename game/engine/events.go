package engine

import "time"

// EventType names an outbound event on the wire
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventActionResolved EventType = "action_resolved"
	EventTurnChanged    EventType = "turn_changed"
	EventSessionEnded   EventType = "session_ended"
)

// Event is one completed unit of work observers should see
type Event interface {
	EventType() EventType
}

// SessionStarted is emitted once when a session enters Active
type SessionStarted struct {
	Players            []PublicPlayer `json:"players"`
	CurrentPlayerIndex int            `json:"current_player_index"`
	TurnNumber         int            `json:"turn_number"`
	TurnDeadline       time.Time      `json:"turn_deadline,omitempty"`
}

// ActionResolved is emitted after every accepted action, forced or not
type ActionResolved struct {
	PlayerID string   `json:"player_id"`
	Action   Action   `json:"action"`
	Forced   bool     `json:"forced,omitempty"`
	Result   *Result  `json:"result"`
	State    Snapshot `json:"public_state"`
}

// TurnChanged is emitted whenever the turn pointer moves
type TurnChanged struct {
	CurrentPlayerIndex int       `json:"current_player_index"`
	CurrentPlayerID    string    `json:"current_player_id"`
	TurnNumber         int       `json:"turn_number"`
	Skipped            []string  `json:"skipped,omitempty"`
	TurnDeadline       time.Time `json:"turn_deadline,omitempty"`
}

// EndReason says why a session terminated
type EndReason string

const (
	EndLastStanding  EndReason = "last_standing"
	EndNoAlivePlayer EndReason = "no_alive_player"
	EndAborted       EndReason = "aborted"
)

// SessionEnded is emitted once when the session terminates
type SessionEnded struct {
	Rankings   []PublicPlayer `json:"rankings"`
	Winner     *PublicPlayer  `json:"winner,omitempty"`
	TotalTurns int            `json:"total_turns"`
	Duration   time.Duration  `json:"game_duration"`
	Reason     EndReason      `json:"reason"`
}

func (*SessionStarted) EventType() EventType { return EventSessionStarted }
func (*ActionResolved) EventType() EventType { return EventActionResolved }
func (*TurnChanged) EventType() EventType    { return EventTurnChanged }
func (*SessionEnded) EventType() EventType   { return EventSessionEnded }
