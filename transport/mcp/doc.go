// Package mcp provides a Model Context Protocol server for Skill War.
//
// The server is a thin client of the REST API: every tool call becomes one
// or two HTTP requests against a running server, so AI agents see exactly
// the rules human players see.
//
// MCP Tools:
//   - list_rooms, create_room, join_room, leave_room
//   - toggle_ready, start_game
//   - room_state, my_hand
//   - draw_card, play_card
//   - list_cards, game_instructions
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp handled with GetMCPServer().HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
