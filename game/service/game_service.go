package service

import (
	"context"
	"time"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
)

// GameService defines all game-related operations
type GameService interface {
	// Lobby
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*room.Joined, error)
	JoinRoom(ctx context.Context, roomID, playerName string) (*room.Joined, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	ToggleReady(ctx context.Context, roomID, playerID string) (*room.RoomView, error)
	StartGame(ctx context.Context, roomID, playerID string) (*room.RoomView, error)
	Disconnect(ctx context.Context, playerID string) error
	Authorize(ctx context.Context, roomID, playerID, token string) error

	// Game Operations
	SubmitAction(ctx context.Context, roomID, playerID string, action engine.Action) (*room.ActionOutcome, error)

	// State
	GetRoom(ctx context.Context, roomID string) (*room.RoomView, error)
	GetHand(ctx context.Context, roomID, playerID string) ([]engine.Card, error)
	ListRooms(ctx context.Context) ([]room.Summary, error)
	Stats(ctx context.Context) (*ServerStats, error)

	// Catalog
	ListCards(ctx context.Context) ([]engine.CardTemplate, error)
}

// RoomManager is the room directory behind the service
type RoomManager interface {
	CreateRoom(ctx context.Context, roomName, playerName string, maxPlayers int) (*room.Joined, error)
	JoinRoom(ctx context.Context, roomID, playerName string) (*room.Joined, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	Disconnect(ctx context.Context, playerID string) error
	Authorize(roomID, playerID, token string) error
	ToggleReady(ctx context.Context, roomID, playerID string) (room.RoomView, error)
	StartGame(ctx context.Context, roomID, playerID string) (room.RoomView, error)
	SubmitAction(ctx context.Context, roomID, playerID string, action engine.Action) (*room.ActionOutcome, error)
	Room(ctx context.Context, roomID string) (room.RoomView, error)
	Hand(ctx context.Context, roomID, playerID string) ([]engine.Card, error)
	ListRooms() []room.Summary
	AllRooms() []room.Summary
	Stats() room.Stats
}

// CardCatalog lists the cards in play
type CardCatalog interface {
	All() []engine.CardTemplate
}

// CreateRoomRequest describes a new room
type CreateRoomRequest struct {
	RoomName   string `json:"room_name"`
	PlayerName string `json:"player_name"`
	MaxPlayers int    `json:"max_players,omitempty"`
}

// ServerStats are server-wide counters plus uptime and the live rooms
type ServerStats struct {
	room.Stats
	AvailableRooms int            `json:"available_rooms"`
	StartedAt      time.Time      `json:"started_at"`
	Uptime         string         `json:"uptime"`
	RoomList       []room.Summary `json:"room_list"`
}
