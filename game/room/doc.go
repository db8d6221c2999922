// Package room hosts Skill War rooms: the lobby around a game and the
// single goroutine that serializes everything happening inside it.
//
// Core Types:
//
// Registry is the process-wide directory of rooms. It assigns room and
// player identifiers, routes requests to the right room and removes idle
// rooms. It never holds its lock while waiting on a room.
//
// Room owns one lobby and, while a game is running, one engine.Session and
// one scheduler.TurnTimer. Every mutation is a command executed on the
// room's own goroutine, so player actions, timer expiries and departures
// are processed one at a time, in arrival order. Rooms never block on each
// other.
//
// Lifecycle:
//
//	Lobby --start--> InGame --session ended--> Lobby
//	  \________________ last member leaves ________________> closed
//
// Events:
//
// Engine events are forwarded to a Publisher in the order the engine emits
// them, with turn deadlines filled in. Each member's private hand is sent
// only to that member. Changes to the set of joinable rooms are announced
// with PublishLobby.
package room
