// Package service provides the business logic layer for the Skill War server.
//
// The service package implements:
//   - Room lifecycle: create, join, leave, ready, start
//   - Action submission for running games
//   - Read access to rooms, private hands and the card catalog
//   - Tracing and logging around every operation
//
// Core Interfaces:
//
// GameService is the main service interface used by every transport.
// RoomManager is the room directory it delegates to; *room.Registry
// implements it. CardCatalog exposes the card list.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the rooms, which own all game state. It validates request shapes, opens a
// span per operation and logs accepted state changes. Rejections from the
// game are returned unchanged so transports can map them by kind.
//
// Usage:
//
//	registry := room.NewRegistry(ctx, room.Options{Catalog: cards})
//	gameService := service.NewGameService(registry, cards, logger)
//
//	joined, err := gameService.CreateRoom(ctx, service.CreateRoomRequest{
//		RoomName:   "arena",
//		PlayerName: "alice",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Later, on alice's turn
//	outcome, err := gameService.SubmitAction(ctx, joined.Room.ID, joined.PlayerID,
//		engine.Action{Kind: engine.ActionDraw})
package service
