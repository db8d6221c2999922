package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
)

// Player seats one bot in a room and plays a single game through the REST API
type Player struct {
	client   *Client
	brain    Brain
	log      *zap.Logger
	roomID   string
	playerID string
	token    string

	// PollInterval is how often the room is fetched
	PollInterval time.Duration
	// StartWith is how many members a hosting bot waits for before starting
	StartWith int
}

// NewPlayer wraps a seat the caller already holds
func NewPlayer(client *Client, brain Brain, roomID, playerID, token string, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		client:       client,
		brain:        brain,
		log:          logger.With(zap.String("room_id", roomID), zap.String("player_id", playerID)),
		roomID:       roomID,
		playerID:     playerID,
		token:        token,
		PollInterval: 250 * time.Millisecond,
		StartWith:    engine.MinPlayers,
	}
}

func (p *Player) RoomID() string   { return p.roomID }
func (p *Player) PlayerID() string { return p.playerID }

// Leave gives up the seat
func (p *Player) Leave(ctx context.Context) error {
	return p.client.Leave(ctx, p.roomID, p.playerID, p.token)
}

// Run readies up, starts the game when hosting, and plays until the game
// ends. It returns the final rankings.
func (p *Player) Run(ctx context.Context) (*engine.SessionEnded, error) {
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	started := false
	for {
		view, err := p.client.Room(ctx, p.roomID)
		if err != nil {
			return nil, err
		}

		switch {
		case view.IsStarted:
			started = true
			if err := p.takeTurn(ctx, view); err != nil {
				return nil, err
			}
		case started:
			if view.LastResult == nil {
				return nil, errors.New("game ended without a result")
			}
			return view.LastResult, nil
		default:
			if err := p.prepare(ctx, view); err != nil {
				return nil, err
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Player) me(view *room.RoomView) (room.MemberView, bool) {
	for _, m := range view.Members {
		if m.ID == p.playerID {
			return m, true
		}
	}
	return room.MemberView{}, false
}

func (p *Player) myTurn(view *room.RoomView) bool {
	g := view.Game
	if g == nil || g.CurrentPlayerIndex < 0 || g.CurrentPlayerIndex >= len(g.Players) {
		return false
	}
	current := g.Players[g.CurrentPlayerIndex]
	return current.ID == p.playerID && current.Alive
}

// prepare readies the bot in the lobby and starts the game once enough members are ready
func (p *Player) prepare(ctx context.Context, view *room.RoomView) error {
	me, ok := p.me(view)
	if !ok {
		return engine.ErrUnknownPlayer
	}

	if !me.Ready {
		var err error
		if view, err = p.client.ToggleReady(ctx, p.roomID, p.playerID, p.token); err != nil {
			return err
		}
		p.log.Debug("ready")
	}

	if view.HostID != p.playerID || len(view.Members) < p.StartWith {
		return nil
	}
	for _, m := range view.Members {
		if !m.Ready && !m.Host {
			return nil
		}
	}

	if _, err := p.client.StartGame(ctx, p.roomID, p.playerID, p.token); err != nil {
		if errors.Is(err, engine.ErrNotAllReady) || errors.Is(err, engine.ErrTooFewPlayers) || errors.Is(err, engine.ErrGameInProgress) {
			p.log.Debug("not startable yet", zap.Error(err))
			return nil
		}
		return err
	}
	p.log.Info("game started", zap.Int("players", len(view.Members)))
	return nil
}

func (p *Player) takeTurn(ctx context.Context, view *room.RoomView) error {
	if !p.myTurn(view) {
		return nil
	}

	hand, err := p.client.Hand(ctx, p.roomID, p.playerID, p.token)
	if err != nil {
		return err
	}

	turn := Turn{Players: view.Game.Players, Hand: hand}
	for _, pl := range view.Game.Players {
		if pl.ID == p.playerID {
			turn.Me = pl
		}
	}

	action := p.brain.Decide(turn)
	out, err := p.client.Act(ctx, p.roomID, p.playerID, p.token, action)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotYourTurn) || errors.Is(err, engine.ErrRoomNotActive):
			// The turn timed out or the game ended between poll and action
			return nil
		case engine.KindOf(err) == engine.KindValidation:
			p.log.Warn("play rejected, drawing instead", zap.Error(err))
			if _, err := p.client.Act(ctx, p.roomID, p.playerID, p.token, draw()); err != nil && engine.KindOf(err) == engine.KindInternal {
				return err
			}
			return nil
		default:
			return err
		}
	}

	p.log.Debug("acted",
		zap.String("type", string(action.Kind)),
		zap.String("message", out.Result.Message),
		zap.Int("damage", out.Result.DamageDealt))
	return nil
}
