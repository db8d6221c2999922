// Package api provides HTTP REST API handlers for the Skill War server.
//
// The api package implements:
//   - Lobby endpoints: list, create, inspect and join rooms
//   - Member endpoints: ready, start, leave
//   - Action submission and private hand access
//   - Catalog, stats and health endpoints
//   - WebSocket upgrade handling when a hub is attached
//
// Endpoints:
//
// Lobby:
//   - GET /api/rooms - List rooms
//   - POST /api/rooms - Create a room, the caller becomes host
//   - GET /api/rooms/{id} - Get the public room state
//   - POST /api/rooms/{id}/join - Join a room
//
// Members (body carries player_id):
//   - POST /api/rooms/{id}/ready - Toggle readiness
//   - POST /api/rooms/{id}/start - Start the game (host only)
//   - POST /api/rooms/{id}/leave - Leave the room
//   - POST /api/rooms/{id}/actions - Draw or play a card
//   - GET /api/rooms/{id}/players/{pid}/hand - Private hand
//
// Misc:
//   - GET /api/cards - The card catalog
//   - GET /stats, GET /health
//   - GET /ws?room={id}&player={pid} - WebSocket stream
//
// Actions are sent as POST with JSON body:
//
//	{
//	  "player_id": "4f0c...",
//	  "type": "draw|play",
//	  "card_instance_id": "a91e...",  // play only
//	  "target_index": 1               // play only
//	}
//
// Usage:
//
//	server := api.NewServer(gameService, hub, logger)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Rejections are returned as JSON with a status derived from their kind:
// 400 for validation, 404/403/409 for resources, 409 for state and 500 for
// internal errors.
//
//	{
//	  "error": "it is not your turn",
//	  "reason": "not_your_turn"
//	}
package api
