package room

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	mrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/scheduler"
)

const (
	DefaultTurnTimeout    = 30 * time.Second
	DefaultMaxRoomPlayers = 8
	DefaultQueueSize      = 64

	roomIDLength   = 6
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxNameLength  = 32
)

// Options configures a Registry. Zero values get defaults.
type Options struct {
	TurnTimeout    time.Duration
	Readiness      Readiness
	MaxRoomPlayers int
	QueueSize      int

	Catalog   engine.Catalog
	Reactions engine.ReactionTable
	Clock     scheduler.Clock
	Publisher Publisher
	Logger    *zap.Logger

	// NewRand creates the random source of one game
	NewRand func() engine.Rand
	// NewID creates player and card instance ids
	NewID func() string
	// NewToken creates the secret a member presents to act
	NewToken func() string
	// NewRoomID creates room ids
	NewRoomID func() string
}

func (o *Options) setDefaults() {
	if o.TurnTimeout <= 0 {
		o.TurnTimeout = DefaultTurnTimeout
	}
	if !o.Readiness.Valid() {
		o.Readiness = ReadyAll
	}
	if o.MaxRoomPlayers < engine.MinPlayers {
		o.MaxRoomPlayers = DefaultMaxRoomPlayers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Clock == nil {
		o.Clock = scheduler.RealClock{}
	}
	if o.Publisher == nil {
		o.Publisher = NopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.NewRand == nil {
		o.NewRand = func() engine.Rand {
			return mrand.New(mrand.NewSource(time.Now().UnixNano()))
		}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.NewToken == nil {
		o.NewToken = uuid.NewString
	}
	if o.NewRoomID == nil {
		o.NewRoomID = generateRoomID
	}
}

// Registry is the directory of live rooms
type Registry struct {
	opts Options
	log  *zap.Logger
	ctx  context.Context

	mu      sync.RWMutex
	rooms   map[string]*Room
	players map[string]seatRef
	closed  bool
}

// NewRegistry creates an empty registry. Rooms stop when ctx is cancelled.
func NewRegistry(ctx context.Context, opts Options) *Registry {
	opts.setDefaults()
	return &Registry{
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		rooms:   make(map[string]*Room),
		players: make(map[string]seatRef),
	}
}

// seatRef locates a player and holds their token
type seatRef struct {
	roomID string
	token  string
}

// Options returns the effective options
func (g *Registry) Options() Options {
	return g.opts
}

// CreateRoom opens a new room with the caller as host. maxPlayers of zero
// means the configured maximum.
func (g *Registry) CreateRoom(ctx context.Context, roomName, playerName string, maxPlayers int) (*Joined, error) {
	playerName, err := cleanName("player_name", playerName)
	if err != nil {
		return nil, err
	}
	if maxPlayers == 0 {
		maxPlayers = g.opts.MaxRoomPlayers
	}
	if maxPlayers < engine.MinPlayers || maxPlayers > g.opts.MaxRoomPlayers {
		return nil, engine.ErrInvalidRequest.WithField("max_players",
			fmt.Sprintf("max players must be between %d and %d", engine.MinPlayers, g.opts.MaxRoomPlayers))
	}
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		roomName = playerName + "'s room"
	}
	roomName = truncate(roomName, maxNameLength)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, engine.ErrRoomNotFound
	}
	id := g.opts.NewRoomID()
	for attempts := 0; g.rooms[id] != nil; attempts++ {
		if attempts > 16 {
			g.mu.Unlock()
			return nil, fmt.Errorf("failed to allocate room id: %w", engine.ErrInternal)
		}
		id = g.opts.NewRoomID()
	}
	r := newRoom(g, id, roomName, maxPlayers)
	g.rooms[id] = r
	g.mu.Unlock()

	go r.run(g.ctx)

	playerID, token := g.opts.NewID(), g.opts.NewToken()
	var joined *Joined
	err = r.exec(ctx, func() error {
		var err error
		joined, err = r.join(playerID, token, playerName)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.log.Info("room created",
		zap.String("room", id),
		zap.String("name", roomName),
		zap.String("host", playerID))
	return joined, nil
}

// JoinRoom adds a new player to a room in the lobby
func (g *Registry) JoinRoom(ctx context.Context, roomID, playerName string) (*Joined, error) {
	playerName, err := cleanName("player_name", playerName)
	if err != nil {
		return nil, err
	}
	r, err := g.lookup(roomID)
	if err != nil {
		return nil, err
	}
	playerID, token := g.opts.NewID(), g.opts.NewToken()
	var joined *Joined
	err = r.exec(ctx, func() error {
		var err error
		joined, err = r.join(playerID, token, playerName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// LeaveRoom removes a player. Leaving a running game counts as elimination.
func (g *Registry) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	r, err := g.lookup(roomID)
	if err != nil {
		return err
	}
	return r.exec(ctx, func() error { return r.leave(playerID) })
}

// Disconnect removes a player from whatever room they are in
func (g *Registry) Disconnect(ctx context.Context, playerID string) error {
	roomID, ok := g.RoomOf(playerID)
	if !ok {
		return nil
	}
	err := g.LeaveRoom(ctx, roomID, playerID)
	if engine.KindOf(err) == engine.KindResource {
		return nil
	}
	return err
}

// ToggleReady flips a member's ready flag
func (g *Registry) ToggleReady(ctx context.Context, roomID, playerID string) (RoomView, error) {
	r, err := g.lookup(roomID)
	if err != nil {
		return RoomView{}, err
	}
	var view RoomView
	err = r.exec(ctx, func() error {
		if err := r.toggleReady(playerID); err != nil {
			return err
		}
		view = r.view()
		return nil
	})
	return view, err
}

// StartGame starts a game on behalf of the host
func (g *Registry) StartGame(ctx context.Context, roomID, playerID string) (RoomView, error) {
	r, err := g.lookup(roomID)
	if err != nil {
		return RoomView{}, err
	}
	var view RoomView
	err = r.exec(ctx, func() error {
		if err := r.start(playerID); err != nil {
			return err
		}
		view = r.view()
		return nil
	})
	return view, err
}

// SubmitAction resolves a player action inside the room's game
func (g *Registry) SubmitAction(ctx context.Context, roomID, playerID string, action engine.Action) (*ActionOutcome, error) {
	r, err := g.lookup(roomID)
	if err != nil {
		return nil, err
	}
	var out *ActionOutcome
	err = r.exec(ctx, func() error {
		result, err := r.submit(playerID, action)
		if err != nil {
			return err
		}
		out = &ActionOutcome{Result: result, Room: r.view()}
		return nil
	})
	return out, err
}

// Room returns the current view of a room
func (g *Registry) Room(ctx context.Context, roomID string) (RoomView, error) {
	r, err := g.lookup(roomID)
	if err != nil {
		return RoomView{}, err
	}
	var view RoomView
	err = r.exec(ctx, func() error {
		view = r.view()
		return nil
	})
	return view, err
}

// Hand returns a player's private hand
func (g *Registry) Hand(ctx context.Context, roomID, playerID string) ([]engine.Card, error) {
	r, err := g.lookup(roomID)
	if err != nil {
		return nil, err
	}
	var hand []engine.Card
	err = r.exec(ctx, func() error {
		var err error
		hand, err = r.hand(playerID)
		return err
	})
	return hand, err
}

// ListRooms returns every room that can still be joined, oldest first
func (g *Registry) ListRooms() []Summary {
	all := g.AllRooms()
	out := make([]Summary, 0, len(all))
	for _, s := range all {
		if s.IsStarted || s.Players == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// AllRooms returns every live room, running games included, oldest first
func (g *Registry) AllRooms() []Summary {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].createdAt.Equal(rooms[j].createdAt) {
			return rooms[i].id < rooms[j].id
		}
		return rooms[i].createdAt.Before(rooms[j].createdAt)
	})

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out
}

// Stats returns server-wide counters
func (g *Registry) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{Rooms: len(g.rooms), Players: len(g.players)}
	for _, r := range g.rooms {
		if r.Summary().IsStarted {
			stats.ActiveGames++
		}
	}
	return stats
}

// RoomOf returns the room a player is in
func (g *Registry) RoomOf(playerID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seat, ok := g.players[playerID]
	return seat.roomID, ok
}

// Authorize checks that token was issued to playerID when they joined roomID.
// Player ids are public; the token is what proves the caller holds the seat.
func (g *Registry) Authorize(roomID, playerID, token string) error {
	r, err := g.lookup(roomID)
	if err != nil {
		return err
	}
	g.mu.RLock()
	seat, ok := g.players[playerID]
	g.mu.RUnlock()
	if !ok || seat.roomID != r.id {
		return engine.ErrUnknownPlayer
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(seat.token), []byte(token)) != 1 {
		return engine.ErrUnauthorized
	}
	return nil
}

// CleanupIdleRooms closes lobby rooms with no activity for maxAge and
// returns how many were closed. Rooms with a running game are kept.
func (g *Registry) CleanupIdleRooms(ctx context.Context, maxAge time.Duration) int {
	cutoff := g.opts.Clock.Now().Add(-maxAge)

	g.mu.RLock()
	var idle []*Room
	for _, r := range g.rooms {
		if !r.Summary().IsStarted && r.LastActivity().Before(cutoff) {
			idle = append(idle, r)
		}
	}
	g.mu.RUnlock()

	removed := 0
	for _, r := range idle {
		err := r.exec(ctx, func() error {
			if r.session != nil || !r.LastActivity().Before(cutoff) {
				return nil
			}
			r.close("idle")
			removed++
			return nil
		})
		if err != nil && engine.KindOf(err) != engine.KindResource {
			g.log.Warn("failed to clean up room", zap.String("room", r.id), zap.Error(err))
		}
	}
	if removed > 0 {
		g.log.Info("cleaned up idle rooms", zap.Int("removed", removed))
	}
	return removed
}

// Close shuts every room down and refuses new ones
func (g *Registry) Close(ctx context.Context) {
	g.mu.Lock()
	g.closed = true
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()

	for _, r := range rooms {
		_ = r.exec(ctx, func() error {
			r.close("shutdown")
			return nil
		})
	}
}

func (g *Registry) lookup(roomID string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[strings.ToUpper(strings.TrimSpace(roomID))]
	if !ok {
		return nil, engine.ErrRoomNotFound
	}
	return r, nil
}

func (g *Registry) trackPlayer(playerID, roomID, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players[playerID] = seatRef{roomID: roomID, token: token}
}

func (g *Registry) forgetPlayer(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.players, playerID)
}

func (g *Registry) remove(r *Room) {
	g.mu.Lock()
	if g.rooms[r.id] == r {
		delete(g.rooms, r.id)
	}
	for pid, seat := range g.players {
		if seat.roomID == r.id {
			delete(g.players, pid)
		}
	}
	g.mu.Unlock()
}

func (g *Registry) publishLobby() {
	g.opts.Publisher.PublishLobby(g.ListRooms())
}

func cleanName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", engine.ErrInvalidRequest.WithField(field, "name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", engine.ErrInvalidRequest.WithField(field,
			fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	return name, nil
}

// truncate cuts s to at most n characters, never inside a multi-byte one
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// generateRoomID returns 6 random upper-case alphanumerics
func generateRoomID() string {
	buf := make([]byte, roomIDLength)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
	}
	return string(buf)
}
