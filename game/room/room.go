package room

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/scheduler"
)

type member struct {
	id    string
	name  string
	ready bool
}

type command struct {
	fn     func() error
	result chan error
}

// Room is one lobby and its optional running game. All fields below the
// channels are owned by the run goroutine.
type Room struct {
	id         string
	name       string
	maxPlayers int
	createdAt  time.Time

	reg       *Registry
	publisher Publisher
	log       *zap.Logger

	cmds     chan command
	done     chan struct{}
	summary  atomic.Pointer[Summary]
	activity atomic.Int64

	members    []*member
	hostID     string
	session    *engine.Session
	timer      *scheduler.TurnTimer
	lastResult *engine.SessionEnded
	closed     bool
}

func newRoom(reg *Registry, id, name string, maxPlayers int) *Room {
	now := reg.opts.Clock.Now()
	r := &Room{
		id:         id,
		name:       name,
		maxPlayers: maxPlayers,
		createdAt:  now,
		reg:        reg,
		publisher:  reg.opts.Publisher,
		log:        reg.log.With(zap.String("room", id)),
		cmds:       make(chan command, reg.opts.QueueSize),
		done:       make(chan struct{}),
	}
	r.activity.Store(now.UnixNano())
	r.summary.Store(&Summary{ID: id, Name: name, MaxPlayers: maxPlayers})
	return r
}

// ID returns the room identifier
func (r *Room) ID() string {
	return r.id
}

// Summary returns the latest lobby listing of the room. Safe from any goroutine.
func (r *Room) Summary() Summary {
	return *r.summary.Load()
}

// LastActivity returns when the room last processed a command
func (r *Room) LastActivity() time.Time {
	return time.Unix(0, r.activity.Load())
}

func (r *Room) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.close("shutdown")
			return
		case cmd := <-r.cmds:
			before := r.Summary()
			err := r.safely(cmd.fn)
			r.activity.Store(r.reg.opts.Clock.Now().UnixNano())
			if !r.closed && r.snapshotSummary() != before {
				r.reg.publishLobby()
			}
			if cmd.result != nil {
				cmd.result <- err
			}
			if r.closed {
				r.drain()
				return
			}
		}
	}
}

// safely runs fn, turning a panic into an aborted game
func (r *Room) safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("room command panicked",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			r.fault()
			err = fmt.Errorf("room %s: %v: %w", r.id, p, engine.ErrInternal)
		}
	}()
	return fn()
}

// drain fails every queued command once the room has closed
func (r *Room) drain() {
	for {
		select {
		case cmd := <-r.cmds:
			if cmd.result != nil {
				cmd.result <- engine.ErrRoomNotFound
			}
		default:
			return
		}
	}
}

// exec runs fn on the room goroutine and waits for its result
func (r *Room) exec(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, result: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return engine.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.result:
		return err
	case <-r.done:
		select {
		case err := <-cmd.result:
			return err
		default:
			return engine.ErrRoomNotFound
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting
func (r *Room) post(fn func() error) {
	select {
	case r.cmds <- command{fn: fn}:
	case <-r.done:
	}
}

func (r *Room) snapshotSummary() Summary {
	s := Summary{
		ID:         r.id,
		Name:       r.name,
		Players:    len(r.members),
		MaxPlayers: r.maxPlayers,
		IsStarted:  r.session != nil,
	}
	r.summary.Store(&s)
	return s
}

// lobby

func (r *Room) join(playerID, token, name string) (*Joined, error) {
	if r.session != nil {
		return nil, engine.ErrGameInProgress
	}
	if len(r.members) >= r.maxPlayers {
		return nil, engine.ErrRoomFull
	}
	r.members = append(r.members, &member{id: playerID, name: name})
	if r.hostID == "" {
		r.hostID = playerID
	}
	r.reg.trackPlayer(playerID, r.id, token)

	view := r.view()
	r.publisher.PublishRoom(r.id, &RoomUpdated{Room: view})
	r.log.Info("player joined", zap.String("player", playerID), zap.String("name", name))
	return &Joined{PlayerID: playerID, Token: token, Room: view}, nil
}

func (r *Room) leave(playerID string) error {
	idx := r.memberIndex(playerID)
	if idx < 0 {
		return engine.ErrUnknownPlayer
	}
	m := r.members[idx]
	r.members = append(r.members[:idx:idx], r.members[idx+1:]...)
	r.reg.forgetPlayer(playerID)
	r.log.Info("player left", zap.String("player", playerID))

	if len(r.members) == 0 {
		r.close("empty")
		return nil
	}
	if r.hostID == playerID {
		r.hostID = r.members[0].id
	}

	if r.session != nil {
		r.publisher.PublishRoom(r.id, &PlayerDisconnected{PlayerID: m.id, PlayerName: m.name})
		r.dispatch(r.session.RemovePlayer(playerID))
	}
	if !r.closed {
		r.publisher.PublishRoom(r.id, &RoomUpdated{Room: r.view()})
	}
	return nil
}

func (r *Room) toggleReady(playerID string) error {
	idx := r.memberIndex(playerID)
	if idx < 0 {
		return engine.ErrUnknownPlayer
	}
	if r.session != nil {
		return engine.ErrGameInProgress
	}
	m := r.members[idx]
	m.ready = !m.ready
	r.publisher.PublishRoom(r.id, &RoomUpdated{Room: r.view()})
	return nil
}

func (r *Room) start(playerID string) error {
	if r.session != nil {
		return engine.ErrGameInProgress
	}
	if r.memberIndex(playerID) < 0 {
		return engine.ErrUnknownPlayer
	}
	if playerID != r.hostID {
		return engine.ErrNotHost
	}
	if len(r.members) < engine.MinPlayers {
		return engine.ErrTooFewPlayers
	}
	for _, m := range r.members {
		if m.ready {
			continue
		}
		if r.reg.opts.Readiness == ReadyNonHost && m.id == r.hostID {
			continue
		}
		return engine.ErrNotAllReady
	}

	seats := make([]engine.Seat, len(r.members))
	for i, m := range r.members {
		seats[i] = engine.Seat{ID: m.id, Name: m.name}
	}
	opts := r.reg.opts
	session, events, err := engine.NewSession(seats, engine.Options{
		Catalog:   opts.Catalog,
		Reactions: opts.Reactions,
		Rand:      opts.NewRand(),
		NewID:     opts.NewID,
		Now:       opts.Clock.Now,
	})
	if err != nil {
		return err
	}

	r.session = session
	r.lastResult = nil
	r.timer = scheduler.New(opts.Clock, opts.TurnTimeout, func(key scheduler.Key) {
		r.post(func() error {
			r.expire(key)
			return nil
		})
	})
	r.log.Info("game started", zap.Int("players", len(seats)))

	r.dispatch(events)
	for _, m := range r.members {
		r.publishHand(m.id)
	}
	return nil
}

// game

func (r *Room) submit(playerID string, action engine.Action) (*engine.Result, error) {
	if r.session == nil {
		return nil, engine.ErrRoomNotActive
	}
	result, events, err := r.session.Submit(playerID, action)
	if err != nil {
		return nil, err
	}
	r.log.Debug("action resolved",
		zap.String("player", playerID),
		zap.String("type", string(action.Kind)),
		zap.Int("damage", result.DamageDealt))

	r.dispatch(events)
	r.publishHand(playerID)
	if result.TargetIndex != nil && *result.TargetIndex < len(result.After.Players) {
		if target := result.After.Players[*result.TargetIndex].ID; target != playerID {
			r.publishHand(target)
		}
	}
	return result, nil
}

// expire handles a turn deadline handed over by the timer. Keys that no
// longer match the current turn are ignored.
func (r *Room) expire(key scheduler.Key) {
	if r.session == nil || r.timer == nil || !r.timer.IsCurrent(key) {
		return
	}
	if key.Turn != r.session.TurnNumber() || key.Index != r.session.CurrentIndex() {
		return
	}
	current := r.session.CurrentPlayer()
	r.log.Info("turn timed out",
		zap.String("player", current.ID),
		zap.Int("turn", key.Turn))

	r.dispatch(r.session.ForceTimeout())
	r.publishHand(current.ID)
}

// dispatch publishes engine events in order, arming the turn timer for every
// new turn and folding the room back to the lobby when the game ends.
func (r *Room) dispatch(events []engine.Event) {
	var ended *engine.SessionEnded
	for _, ev := range events {
		switch e := ev.(type) {
		case *engine.SessionStarted:
			_, e.TurnDeadline = r.timer.Arm(e.TurnNumber, e.CurrentPlayerIndex)
		case *engine.TurnChanged:
			_, e.TurnDeadline = r.timer.Arm(e.TurnNumber, e.CurrentPlayerIndex)
		case *engine.SessionEnded:
			r.timer.Close()
			ended = e
		}
		r.publisher.PublishRoom(r.id, ev)
	}
	if ended != nil {
		r.finish(ended)
	}
}

func (r *Room) finish(ended *engine.SessionEnded) {
	fields := []zap.Field{
		zap.Int("turns", ended.TotalTurns),
		zap.Duration("duration", ended.Duration),
		zap.String("reason", string(ended.Reason)),
	}
	if ended.Winner != nil {
		fields = append(fields, zap.String("winner", ended.Winner.ID))
	}
	r.log.Info("game ended", fields...)

	r.session = nil
	r.timer = nil
	r.lastResult = ended
	for _, m := range r.members {
		m.ready = false
	}
	r.publisher.PublishRoom(r.id, &RoomUpdated{Room: r.view()})
}

// fault aborts a running game after an unexpected failure
func (r *Room) fault() {
	if r.session == nil {
		return
	}
	events := r.session.Abort()
	if len(events) == 0 {
		r.session = nil
		if r.timer != nil {
			r.timer.Close()
			r.timer = nil
		}
		return
	}
	r.dispatch(events)
}

// close removes the room from the registry and stops the loop after the
// current command
func (r *Room) close(reason string) {
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Close()
		r.timer = nil
	}
	r.session = nil
	if len(r.members) > 0 {
		r.publisher.PublishRoom(r.id, &RoomClosed{RoomID: r.id, Reason: reason})
	}
	r.members = nil
	r.reg.remove(r)
	r.snapshotSummary()
	r.reg.publishLobby()
	r.log.Info("room closed", zap.String("reason", reason))
}

func (r *Room) hand(playerID string) ([]engine.Card, error) {
	if r.memberIndex(playerID) < 0 {
		return nil, engine.ErrUnknownPlayer
	}
	if r.session == nil {
		return []engine.Card{}, nil
	}
	hand, ok := r.session.Hand(playerID)
	if !ok {
		return nil, engine.ErrUnknownPlayer
	}
	return hand, nil
}

func (r *Room) publishHand(playerID string) {
	if r.session == nil {
		return
	}
	hand, ok := r.session.Hand(playerID)
	if !ok {
		return
	}
	r.publisher.PublishPlayer(r.id, playerID, &HandUpdated{PlayerID: playerID, Hand: hand})
}

func (r *Room) memberIndex(playerID string) int {
	for i, m := range r.members {
		if m.id == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) view() RoomView {
	v := RoomView{
		ID:         r.id,
		Name:       r.name,
		HostID:     r.hostID,
		MaxPlayers: r.maxPlayers,
		Members:    make([]MemberView, len(r.members)),
		IsStarted:  r.session != nil,
		LastResult: r.lastResult,
		CreatedAt:  r.createdAt,
	}
	for i, m := range r.members {
		v.Members[i] = MemberView{
			ID:    m.id,
			Name:  m.name,
			Index: i,
			Ready: m.ready,
			Host:  m.id == r.hostID,
		}
	}
	if r.session != nil {
		snap := r.session.Snapshot()
		v.Game = &GameView{
			Players:            snap.Players,
			CurrentPlayerIndex: snap.CurrentPlayerIndex,
			TurnNumber:         snap.TurnNumber,
		}
		if r.timer != nil {
			v.Game.TurnDeadline, _ = r.timer.Deadline()
		}
	}
	return v
}
