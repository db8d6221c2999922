// Package websocket provides WebSocket transport for the Skill War server.
//
// The websocket package implements:
//   - Room streams for members of a room
//   - A lobby stream carrying the room list
//   - Private delivery of hands and drawn cards
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine. All subscription state lives in the hub's run loop; rooms
// publish into it through the room.Publisher methods, which never block.
//
// Message Protocol:
//
// Outgoing messages are {event, room_id, data}, one JSON object per frame.
// Incoming messages are {type, ...}:
//   - player_action: {type, action: {type, card_instance_id, target_index}}
//   - toggle_ready, start_game, leave_room
//   - get_rooms, get_hand
//
// Connection Lifecycle:
//
//  1. Client connects with ?room={id}&player={pid}&token={token}, with only
//     ?room={id} to watch, or with nothing for the lobby
//  2. The token returned at join is checked before the upgrade; player ids
//     are public and prove nothing on their own
//  3. welcome and the current room (and hand) are sent
//  4. Client sends commands, receives room and private events
//  5. When a player's last connection closes they leave the room
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	registry := room.NewRegistry(ctx, room.Options{Publisher: hub})
//	hub.SetService(service.NewGameService(registry, cards, logger))
//	http.HandleFunc("/ws", hub.ServeWS)
package websocket
