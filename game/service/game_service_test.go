package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/skillwar/game/catalog"
	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
	"github.com/wricardo/skillwar/game/service"
)

// MockRoomManager implements service.RoomManager for testing
type MockRoomManager struct {
	submitted []engine.Action
	err       error
	authErr   error
}

func (m *MockRoomManager) CreateRoom(ctx context.Context, roomName, playerName string, maxPlayers int) (*room.Joined, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &room.Joined{PlayerID: "p1", Room: room.RoomView{ID: "ABCDEF", Name: roomName, MaxPlayers: maxPlayers}}, nil
}

func (m *MockRoomManager) JoinRoom(ctx context.Context, roomID, playerName string) (*room.Joined, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &room.Joined{PlayerID: "p2", Room: room.RoomView{ID: roomID}}, nil
}

func (m *MockRoomManager) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	return m.err
}

func (m *MockRoomManager) Disconnect(ctx context.Context, playerID string) error {
	return m.err
}

func (m *MockRoomManager) Authorize(roomID, playerID, token string) error {
	return m.authErr
}

func (m *MockRoomManager) ToggleReady(ctx context.Context, roomID, playerID string) (room.RoomView, error) {
	return room.RoomView{ID: roomID}, m.err
}

func (m *MockRoomManager) StartGame(ctx context.Context, roomID, playerID string) (room.RoomView, error) {
	return room.RoomView{ID: roomID, IsStarted: m.err == nil}, m.err
}

func (m *MockRoomManager) SubmitAction(ctx context.Context, roomID, playerID string, action engine.Action) (*room.ActionOutcome, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = append(m.submitted, action)
	return &room.ActionOutcome{Result: &engine.Result{Message: "ok"}, Room: room.RoomView{ID: roomID}}, nil
}

func (m *MockRoomManager) Room(ctx context.Context, roomID string) (room.RoomView, error) {
	return room.RoomView{ID: roomID}, m.err
}

func (m *MockRoomManager) Hand(ctx context.Context, roomID, playerID string) ([]engine.Card, error) {
	return nil, m.err
}

func (m *MockRoomManager) ListRooms() []room.Summary {
	return []room.Summary{{ID: "ABCDEF", Players: 1, MaxPlayers: 4}}
}

func (m *MockRoomManager) AllRooms() []room.Summary {
	return []room.Summary{
		{ID: "ABCDEF", Players: 1, MaxPlayers: 4},
		{ID: "FULL01", Players: 2, MaxPlayers: 2},
		{ID: "GAME01", Players: 3, MaxPlayers: 4, IsStarted: true},
	}
}

func (m *MockRoomManager) Stats() room.Stats {
	return room.Stats{Rooms: 1, Players: 1}
}

func TestSubmitActionValidatesShape(t *testing.T) {
	mock := &MockRoomManager{}
	svc := service.NewGameService(mock, catalog.MustDefault(), zaptest.NewLogger(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		action engine.Action
		reason engine.Reason
	}{
		{"missing type", engine.Action{}, engine.ReasonInvalidAction},
		{"unknown type", engine.Action{Kind: "attack"}, engine.ReasonInvalidAction},
		{"play without card", engine.Action{Kind: engine.ActionPlay, TargetIndex: engine.Target(1)}, engine.ReasonInvalidCard},
		{"play without target", engine.Action{Kind: engine.ActionPlay, CardInstanceID: "c-1"}, engine.ReasonInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitAction(ctx, "ABCDEF", "p1", tt.action)
			var rej *engine.Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("Expected rejection, got %v", err)
			}
			if rej.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, rej.Reason)
			}
		})
	}

	if len(mock.submitted) != 0 {
		t.Errorf("Expected malformed actions to be dropped, %d reached the rooms", len(mock.submitted))
	}

	if _, err := svc.SubmitAction(ctx, "ABCDEF", "p1", engine.Action{Kind: engine.ActionDraw}); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if len(mock.submitted) != 1 {
		t.Errorf("Expected 1 submitted action, got %d", len(mock.submitted))
	}
}

func TestPlayRequiresTargetIndex(t *testing.T) {
	mock := &MockRoomManager{}
	svc := service.NewGameService(mock, catalog.MustDefault(), nil)
	ctx := context.Background()

	var action engine.Action
	if err := json.Unmarshal([]byte(`{"type":"play","card_instance_id":"c"}`), &action); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	_, err := svc.SubmitAction(ctx, "ABCDEF", "p1", action)
	var rej *engine.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("Expected rejection, got %v", err)
	}
	if rej.Reason != engine.ReasonInvalidTarget || rej.Field != "target_index" {
		t.Errorf("Expected invalid target_index, got %s %q", rej.Reason, rej.Field)
	}
	if len(mock.submitted) != 0 {
		t.Fatalf("Expected the action to be dropped")
	}

	// seat 0 is a real target
	if err := json.Unmarshal([]byte(`{"type":"play","card_instance_id":"c","target_index":0}`), &action); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, err := svc.SubmitAction(ctx, "ABCDEF", "p1", action); err != nil {
		t.Fatalf("SubmitAction failed: %v", err)
	}
	if len(mock.submitted) != 1 || mock.submitted[0].TargetIndex == nil || *mock.submitted[0].TargetIndex != 0 {
		t.Errorf("Expected target 0 to reach the rooms, got %+v", mock.submitted)
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	svc := service.NewGameService(&MockRoomManager{}, catalog.MustDefault(), nil)
	if err := svc.Authorize(ctx, "ABCDEF", "p1", "secret"); err != nil {
		t.Errorf("Expected token to be accepted, got %v", err)
	}
	if err := svc.Authorize(ctx, "ABCDEF", "p1", ""); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("Expected missing token to be unauthorized, got %v", err)
	}

	svc = service.NewGameService(&MockRoomManager{authErr: engine.ErrUnauthorized}, catalog.MustDefault(), nil)
	if err := svc.Authorize(ctx, "ABCDEF", "p1", "forged"); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("Expected forged token to be unauthorized, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc := service.NewGameService(&MockRoomManager{}, catalog.MustDefault(), nil)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Rooms != 1 || stats.Players != 1 {
		t.Errorf("Unexpected counters %+v", stats.Stats)
	}
	if stats.AvailableRooms != 1 {
		t.Errorf("Expected 1 available room, got %d", stats.AvailableRooms)
	}
	if len(stats.RoomList) != 3 {
		t.Errorf("Expected every room listed, got %d", len(stats.RoomList))
	}
	if stats.Uptime == "" || stats.StartedAt.IsZero() {
		t.Errorf("Expected uptime, got %+v", stats)
	}
}

func TestErrorsPassThrough(t *testing.T) {
	mock := &MockRoomManager{err: engine.ErrRoomNotFound}
	svc := service.NewGameService(mock, catalog.MustDefault(), nil)
	ctx := context.Background()

	if _, err := svc.JoinRoom(ctx, "NOPE", "bob"); !errors.Is(err, engine.ErrRoomNotFound) {
		t.Errorf("JoinRoom: expected room not found, got %v", err)
	}
	if _, err := svc.GetRoom(ctx, "NOPE"); !errors.Is(err, engine.ErrRoomNotFound) {
		t.Errorf("GetRoom: expected room not found, got %v", err)
	}
	if err := svc.LeaveRoom(ctx, "NOPE", "p1"); !errors.Is(err, engine.ErrRoomNotFound) {
		t.Errorf("LeaveRoom: expected room not found, got %v", err)
	}
}

func TestSpansAreRecorded(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc := service.NewGameService(&MockRoomManager{err: engine.ErrNotYourTurn}, catalog.MustDefault(), nil)
	_, _ = svc.SubmitAction(context.Background(), "ABCDEF", "p1", engine.Action{Kind: engine.ActionDraw})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "service.SubmitAction" {
		t.Errorf("Unexpected span name %q", spans[0].Name())
	}
	found := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "rejection.reason" && attr.Value.AsString() == string(engine.ReasonNotYourTurn) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected rejection.reason attribute on span")
	}
}

func TestGameFlowAgainstRegistry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cards := catalog.MustDefault()
	registry := room.NewRegistry(ctx, room.Options{Catalog: cards, Logger: zaptest.NewLogger(t)})
	defer registry.Close(context.Background())
	svc := service.NewGameService(registry, cards, zaptest.NewLogger(t))

	host, err := svc.CreateRoom(ctx, service.CreateRoomRequest{RoomName: "arena", PlayerName: "alice"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	guest, err := svc.JoinRoom(ctx, host.Room.ID, "bob")
	if err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}

	rooms, _ := svc.ListRooms(ctx)
	if len(rooms) != 1 || rooms[0].Players != 2 {
		t.Fatalf("Expected one listed room with 2 players, got %+v", rooms)
	}

	for _, id := range []string{host.PlayerID, guest.PlayerID} {
		if _, err := svc.ToggleReady(ctx, host.Room.ID, id); err != nil {
			t.Fatalf("ToggleReady failed: %v", err)
		}
	}
	view, err := svc.StartGame(ctx, host.Room.ID, host.PlayerID)
	if err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if !view.IsStarted || view.Game == nil {
		t.Fatalf("Expected a running game, got %+v", view)
	}

	current := view.Game.Players[view.Game.CurrentPlayerIndex].ID
	hand, err := svc.GetHand(ctx, host.Room.ID, current)
	if err != nil {
		t.Fatalf("GetHand failed: %v", err)
	}
	if len(hand) != engine.InitialHandSize {
		t.Fatalf("Expected %d cards, got %d", engine.InitialHandSize, len(hand))
	}

	target := 1 - view.Game.CurrentPlayerIndex
	outcome, err := svc.SubmitAction(ctx, host.Room.ID, current, engine.Action{
		Kind:           engine.ActionPlay,
		CardInstanceID: hand[0].InstanceID,
		TargetIndex:    engine.Target(target),
	})
	if err != nil {
		t.Fatalf("SubmitAction failed: %v", err)
	}
	if outcome.Result.UsedCard == nil || outcome.Result.UsedCard.InstanceID != hand[0].InstanceID {
		t.Errorf("Expected the played card in the result")
	}
	if outcome.Room.Game != nil && outcome.Room.Game.CurrentPlayerIndex == view.Game.CurrentPlayerIndex {
		t.Errorf("Expected the turn to move on")
	}

	stats, _ := svc.Stats(ctx)
	if stats.Players != 2 {
		t.Errorf("Expected 2 players, got %d", stats.Players)
	}

	cardsList, _ := svc.ListCards(ctx)
	if len(cardsList) != cards.Len() {
		t.Errorf("Expected %d cards, got %d", cards.Len(), len(cardsList))
	}
}
