package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
)

const tracerName = "github.com/wricardo/skillwar/game/service"

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	rooms     RoomManager
	cards     CardCatalog
	log       *zap.Logger
	tracer    trace.Tracer
	startedAt time.Time
}

// NewGameService creates a new game service instance
func NewGameService(rooms RoomManager, cards CardCatalog, logger *zap.Logger) GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gameServiceImpl{
		rooms:     rooms,
		cards:     cards,
		log:       logger.Named("service"),
		tracer:    otel.Tracer(tracerName),
		startedAt: time.Now(),
	}
}

// CreateRoom opens a room with the caller as host
func (s *gameServiceImpl) CreateRoom(ctx context.Context, req CreateRoomRequest) (*room.Joined, error) {
	ctx, span := s.start(ctx, "CreateRoom", attribute.String("room.name", req.RoomName))
	defer span.End()

	joined, err := s.rooms.CreateRoom(ctx, req.RoomName, req.PlayerName, req.MaxPlayers)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("room.id", joined.Room.ID), attribute.String("player.id", joined.PlayerID))
	return joined, nil
}

// JoinRoom adds a player to a room in its lobby
func (s *gameServiceImpl) JoinRoom(ctx context.Context, roomID, playerName string) (*room.Joined, error) {
	ctx, span := s.start(ctx, "JoinRoom", attribute.String("room.id", roomID))
	defer span.End()

	joined, err := s.rooms.JoinRoom(ctx, roomID, playerName)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("player.id", joined.PlayerID))
	return joined, nil
}

// LeaveRoom removes a player from a room
func (s *gameServiceImpl) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	ctx, span := s.start(ctx, "LeaveRoom", attribute.String("room.id", roomID), attribute.String("player.id", playerID))
	defer span.End()

	if err := s.rooms.LeaveRoom(ctx, roomID, playerID); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// Disconnect removes a player from whatever room they were in
func (s *gameServiceImpl) Disconnect(ctx context.Context, playerID string) error {
	ctx, span := s.start(ctx, "Disconnect", attribute.String("player.id", playerID))
	defer span.End()

	if err := s.rooms.Disconnect(ctx, playerID); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// Authorize checks the secret a caller presents to act as playerID
func (s *gameServiceImpl) Authorize(ctx context.Context, roomID, playerID, token string) error {
	_, span := s.start(ctx, "Authorize", attribute.String("room.id", roomID), attribute.String("player.id", playerID))
	defer span.End()

	if token == "" {
		return s.fail(span, engine.ErrUnauthorized.WithField("token", "token is required"))
	}
	if err := s.rooms.Authorize(roomID, playerID, token); err != nil {
		return s.fail(span, err)
	}
	return nil
}

// ToggleReady flips a player's ready flag
func (s *gameServiceImpl) ToggleReady(ctx context.Context, roomID, playerID string) (*room.RoomView, error) {
	ctx, span := s.start(ctx, "ToggleReady", attribute.String("room.id", roomID), attribute.String("player.id", playerID))
	defer span.End()

	view, err := s.rooms.ToggleReady(ctx, roomID, playerID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return &view, nil
}

// StartGame starts the game on behalf of the host
func (s *gameServiceImpl) StartGame(ctx context.Context, roomID, playerID string) (*room.RoomView, error) {
	ctx, span := s.start(ctx, "StartGame", attribute.String("room.id", roomID), attribute.String("player.id", playerID))
	defer span.End()

	view, err := s.rooms.StartGame(ctx, roomID, playerID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return &view, nil
}

// SubmitAction resolves an action for the player whose turn it is
func (s *gameServiceImpl) SubmitAction(ctx context.Context, roomID, playerID string, action engine.Action) (*room.ActionOutcome, error) {
	ctx, span := s.start(ctx, "SubmitAction",
		attribute.String("room.id", roomID),
		attribute.String("player.id", playerID),
		attribute.String("action.type", string(action.Kind)))
	defer span.End()

	switch action.Kind {
	case engine.ActionDraw, engine.ActionPlay:
	case "":
		return nil, s.fail(span, engine.ErrInvalidAction.WithField("type", "action type is required"))
	default:
		return nil, s.fail(span, engine.ErrInvalidAction.WithField("type", "action type must be draw or play"))
	}
	if action.Kind == engine.ActionPlay {
		if action.CardInstanceID == "" {
			return nil, s.fail(span, engine.ErrInvalidCard.WithField("card_instance_id", "card_instance_id is required to play a card"))
		}
		if action.TargetIndex == nil {
			return nil, s.fail(span, engine.ErrInvalidTarget.WithField("target_index", "target_index is required to play a card"))
		}
	}

	out, err := s.rooms.SubmitAction(ctx, roomID, playerID, action)
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int("result.damage", out.Result.DamageDealt))
	if out.Result.Reaction != nil {
		span.SetAttributes(attribute.String("result.reaction", string(out.Result.Reaction.Kind)))
	}
	return out, nil
}

// GetRoom returns the public state of a room
func (s *gameServiceImpl) GetRoom(ctx context.Context, roomID string) (*room.RoomView, error) {
	ctx, span := s.start(ctx, "GetRoom", attribute.String("room.id", roomID))
	defer span.End()

	view, err := s.rooms.Room(ctx, roomID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return &view, nil
}

// GetHand returns a player's own hand
func (s *gameServiceImpl) GetHand(ctx context.Context, roomID, playerID string) ([]engine.Card, error) {
	ctx, span := s.start(ctx, "GetHand", attribute.String("room.id", roomID), attribute.String("player.id", playerID))
	defer span.End()

	hand, err := s.rooms.Hand(ctx, roomID, playerID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return hand, nil
}

// ListRooms returns rooms that can still be joined
func (s *gameServiceImpl) ListRooms(ctx context.Context) ([]room.Summary, error) {
	_, span := s.start(ctx, "ListRooms")
	defer span.End()

	rooms := s.rooms.ListRooms()
	span.SetAttributes(attribute.Int("rooms.count", len(rooms)))
	return rooms, nil
}

// Stats returns server counters
func (s *gameServiceImpl) Stats(ctx context.Context) (*ServerStats, error) {
	_, span := s.start(ctx, "Stats")
	defer span.End()

	rooms := s.rooms.AllRooms()
	available := 0
	for _, r := range rooms {
		if !r.IsStarted && r.Players < r.MaxPlayers {
			available++
		}
	}
	return &ServerStats{
		Stats:          s.rooms.Stats(),
		AvailableRooms: available,
		StartedAt:      s.startedAt,
		Uptime:         time.Since(s.startedAt).Round(time.Second).String(),
		RoomList:       rooms,
	}, nil
}

// ListCards returns the card catalog
func (s *gameServiceImpl) ListCards(ctx context.Context) ([]engine.CardTemplate, error) {
	_, span := s.start(ctx, "ListCards")
	defer span.End()

	return s.cards.All(), nil
}

func (s *gameServiceImpl) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "service."+op, trace.WithAttributes(attrs...))
}

// fail records err on the span. Rejections are expected outcomes and are
// only logged at debug level.
func (s *gameServiceImpl) fail(span trace.Span, err error) error {
	var rej *engine.Rejection
	if errors.As(err, &rej) {
		span.SetAttributes(attribute.String("rejection.reason", string(rej.Reason)))
		if rej.Kind() != engine.KindInternal {
			s.log.Debug("request rejected", zap.String("reason", string(rej.Reason)), zap.String("field", rej.Field))
			return err
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.Error("request failed", zap.Error(err))
	return err
}
