package room

import (
	"time"

	"github.com/wricardo/skillwar/game/engine"
)

// Room event types, in addition to the engine's
const (
	EventRoomUpdated        engine.EventType = "room_updated"
	EventPlayerDisconnected engine.EventType = "player_disconnected"
	EventHandUpdated        engine.EventType = "hand_updated"
	EventRoomClosed         engine.EventType = "room_closed"
)

// RoomUpdated carries the full room view after a lobby change
type RoomUpdated struct {
	Room RoomView `json:"room"`
}

// PlayerDisconnected is published when a member leaves a running game
type PlayerDisconnected struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// HandUpdated is sent privately to the owner of the hand
type HandUpdated struct {
	PlayerID string        `json:"player_id"`
	Hand     []engine.Card `json:"hand"`
}

// RoomClosed is published when a room is removed while members remain
type RoomClosed struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

func (*RoomUpdated) EventType() engine.EventType        { return EventRoomUpdated }
func (*PlayerDisconnected) EventType() engine.EventType { return EventPlayerDisconnected }
func (*HandUpdated) EventType() engine.EventType        { return EventHandUpdated }
func (*RoomClosed) EventType() engine.EventType         { return EventRoomClosed }

// Publisher delivers room output. Implementations must not block and must
// not call back into the registry synchronously.
type Publisher interface {
	PublishRoom(roomID string, event engine.Event)
	PublishPlayer(roomID, playerID string, event engine.Event)
	PublishLobby(rooms []Summary)
}

// NopPublisher drops everything
type NopPublisher struct{}

func (NopPublisher) PublishRoom(string, engine.Event)           {}
func (NopPublisher) PublishPlayer(string, string, engine.Event) {}
func (NopPublisher) PublishLobby([]Summary)                     {}

// Readiness decides who must be ready before the host can start
type Readiness string

const (
	// ReadyAll requires every member, host included
	ReadyAll Readiness = "all"
	// ReadyNonHost requires every member except the host
	ReadyNonHost Readiness = "non-host"
)

// Valid reports whether r is a known policy
func (r Readiness) Valid() bool {
	return r == ReadyAll || r == ReadyNonHost
}

// MemberView is the public view of a lobby member
type MemberView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index int    `json:"index"`
	Ready bool   `json:"is_ready"`
	Host  bool   `json:"is_host"`
}

// GameView is the public state of the running game
type GameView struct {
	Players            []engine.PublicPlayer `json:"players"`
	CurrentPlayerIndex int                   `json:"current_player_index"`
	TurnNumber         int                   `json:"turn_number"`
	TurnDeadline       time.Time             `json:"turn_deadline,omitempty"`
}

// RoomView is the public state of a room
type RoomView struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	HostID     string               `json:"host_id"`
	MaxPlayers int                  `json:"max_players"`
	Members    []MemberView         `json:"players"`
	IsStarted  bool                 `json:"is_started"`
	Game       *GameView            `json:"game,omitempty"`
	LastResult *engine.SessionEnded `json:"last_result,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Summary is a room as listed to players looking for a game
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	IsStarted  bool   `json:"is_started"`
}

// Stats are server-wide counters
type Stats struct {
	Rooms       int `json:"rooms"`
	Players     int `json:"players"`
	ActiveGames int `json:"active_games"`
}

// Joined is returned to a player entering a room. Token is only ever sent
// to that player and must accompany every call made as them.
type Joined struct {
	PlayerID string   `json:"player_id"`
	Token    string   `json:"token"`
	Room     RoomView `json:"room"`
}

// ActionOutcome is the result of an accepted action and the room after it
type ActionOutcome struct {
	Result *engine.Result `json:"result"`
	Room   RoomView       `json:"room"`
}
