package engine

import (
	"errors"
	"math/rand"
	"sort"
	"time"
)

// Options configures a new session
type Options struct {
	Catalog   Catalog
	Reactions ReactionTable
	Rand      Rand
	NewID     func() string
	Now       func() time.Time
}

// Session is the turn state machine for one in-progress game.
// It is not safe for concurrent use; the owning room serializes access.
type Session struct {
	players      []*Player
	current      int
	turn         int
	active       bool
	resolver     *Resolver
	status       *StatusEngine
	now          func() time.Time
	startedAt    time.Time
	eliminations int
	ended        *SessionEnded
}

// NewSession deals every seat a fresh hand, shuffles the turn order once and
// returns the session together with its SessionStarted event.
func NewSession(seats []Seat, opts Options) (*Session, []Event, error) {
	if len(seats) < MinPlayers {
		return nil, nil, ErrTooFewPlayers
	}
	if opts.Catalog == nil || opts.Catalog.Len() == 0 {
		return nil, nil, errors.New("engine: card catalog is empty")
	}
	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat.ID == "" || seen[seat.ID] {
			return nil, nil, ErrInvalidRequest.WithField("players", "player ids must be unique and non-empty")
		}
		seen[seat.ID] = true
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	status := NewStatusEngine(opts.Reactions, opts.Rand)
	s := &Session{
		status:   status,
		resolver: NewResolver(opts.Catalog, status, opts.Rand, opts.NewID),
		now:      opts.Now,
	}

	players := make([]*Player, len(seats))
	for i, seat := range seats {
		p := &Player{
			ID:    seat.ID,
			Name:  seat.Name,
			HP:    StartingHP,
			MaxHP: StartingHP,
			Alive: true,
		}
		for j := 0; j < InitialHandSize; j++ {
			s.resolver.Draw(p)
		}
		players[i] = p
	}
	opts.Rand.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})
	for i, p := range players {
		p.Index = i
	}

	s.players = players
	s.current = 0
	s.turn = 1
	s.active = true
	s.startedAt = s.now()

	return s, []Event{&SessionStarted{
		Players:            s.publicPlayers(),
		CurrentPlayerIndex: s.current,
		TurnNumber:         s.turn,
	}}, nil
}

// Active reports whether the session still accepts actions
func (s *Session) Active() bool {
	return s.active
}

// TurnNumber returns the turn counter, starting at 1
func (s *Session) TurnNumber() int {
	return s.turn
}

// CurrentIndex returns the seat whose turn it is
func (s *Session) CurrentIndex() int {
	return s.current
}

// CurrentPlayer returns the public view of the player whose turn it is
func (s *Session) CurrentPlayer() PublicPlayer {
	return s.players[s.current].Public()
}

// Players returns the public view of every seat in turn order
func (s *Session) Players() []PublicPlayer {
	return s.publicPlayers()
}

// Snapshot returns the public state of the session
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Players:            s.publicPlayers(),
		CurrentPlayerIndex: s.current,
		TurnNumber:         s.turn,
	}
}

// Hand returns a copy of a player's hand
func (s *Session) Hand(playerID string) ([]Card, bool) {
	p := s.find(playerID)
	if p == nil {
		return nil, false
	}
	hand := make([]Card, len(p.Hand))
	copy(hand, p.Hand)
	return hand, true
}

// AliveCount returns the number of players still in the game
func (s *Session) AliveCount() int {
	n := 0
	for _, p := range s.players {
		if p.Alive {
			n++
		}
	}
	return n
}

// Ended returns the final result once the session has terminated
func (s *Session) Ended() *SessionEnded {
	return s.ended
}

// Submit resolves an action for playerID. On success it returns the result
// and the events to broadcast: the ActionResolved event followed by either a
// TurnChanged or a SessionEnded event.
func (s *Session) Submit(playerID string, a Action) (*Result, []Event, error) {
	return s.submit(playerID, a, false)
}

func (s *Session) submit(playerID string, a Action, forced bool) (*Result, []Event, error) {
	result, err := s.resolver.Resolve(s, playerID, a)
	if err != nil {
		return nil, nil, err
	}
	actor := s.players[s.current]

	events := []Event{&ActionResolved{
		PlayerID: playerID,
		Action:   a,
		Forced:   forced,
		Result:   result,
		State:    result.After,
	}}
	events = append(events, s.endTurn(actor)...)
	return result, events, nil
}

// ForceTimeout is called when the current turn's deadline expires. A living
// player draws a card on their behalf; otherwise the turn simply advances.
func (s *Session) ForceTimeout() []Event {
	if !s.active {
		return nil
	}
	p := s.players[s.current]
	if !p.Alive {
		return s.advance()
	}
	_, events, err := s.submit(p.ID, Action{Kind: ActionDraw}, true)
	if err != nil {
		return s.Abort()
	}
	return events
}

// RemovePlayer marks a departing player dead. If it was their turn the turn
// advances immediately.
func (s *Session) RemovePlayer(playerID string) []Event {
	if !s.active {
		return nil
	}
	p := s.find(playerID)
	if p == nil || !p.Alive {
		return nil
	}
	wasCurrent := s.players[s.current] == p
	s.eliminate(p)

	if ended := s.checkWinner(); ended != nil {
		return []Event{ended}
	}
	if wasCurrent {
		return s.advance()
	}
	return nil
}

// Abort force-ends the session after an internal fault
func (s *Session) Abort() []Event {
	if !s.active {
		return nil
	}
	return []Event{s.end(EndAborted)}
}

// endTurn runs housekeeping after the acting player's action
func (s *Session) endTurn(actor *Player) []Event {
	actor.Stunned = false
	if ended := s.checkWinner(); ended != nil {
		return []Event{ended}
	}
	return s.advance()
}

// advance moves the turn pointer to the next living player. Stunned players
// lose their turn and their stun. Wrapping to seat 0 completes a turn cycle.
func (s *Session) advance() []Event {
	var skipped []string
	n := len(s.players)
	idx := s.current

	for step := 0; step < 2*n; step++ {
		idx = (idx + 1) % n
		if idx == 0 {
			s.turn++
			s.status.Decay(s.players)
		}
		p := s.players[idx]
		if !p.Alive {
			continue
		}
		if p.Stunned {
			p.Stunned = false
			skipped = append(skipped, p.ID)
			continue
		}
		s.current = idx
		return []Event{&TurnChanged{
			CurrentPlayerIndex: idx,
			CurrentPlayerID:    p.ID,
			TurnNumber:         s.turn,
			Skipped:            skipped,
		}}
	}

	return []Event{s.end(EndNoAlivePlayer)}
}

func (s *Session) checkWinner() *SessionEnded {
	if s.AliveCount() >= MinPlayers {
		return nil
	}
	return s.end(EndLastStanding)
}

func (s *Session) end(reason EndReason) *SessionEnded {
	s.active = false
	rankings := s.rankings()
	ended := &SessionEnded{
		Rankings:   rankings,
		TotalTurns: s.turn,
		Duration:   s.now().Sub(s.startedAt),
		Reason:     reason,
	}
	if len(rankings) > 0 {
		winner := rankings[0]
		ended.Winner = &winner
	}
	s.ended = ended
	return ended
}

// rankings orders living players first, then by remaining HP, then by how
// late a player was eliminated, then by seat.
func (s *Session) rankings() []PublicPlayer {
	ranked := make([]*Player, len(s.players))
	copy(ranked, s.players)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Alive != b.Alive {
			return a.Alive
		}
		if a.HP != b.HP {
			return a.HP > b.HP
		}
		if a.eliminatedSeq != b.eliminatedSeq {
			return a.eliminatedSeq > b.eliminatedSeq
		}
		return a.Index < b.Index
	})

	out := make([]PublicPlayer, len(ranked))
	for i, p := range ranked {
		out[i] = p.Public()
	}
	return out
}

func (s *Session) eliminate(p *Player) {
	p.Alive = false
	p.HP = 0
	p.Stunned = false
	p.Marks = nil
	s.eliminations++
	p.eliminatedSeq = s.eliminations
}

func (s *Session) find(playerID string) *Player {
	for _, p := range s.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (s *Session) publicPlayers() []PublicPlayer {
	out := make([]PublicPlayer, len(s.players))
	for i, p := range s.players {
		out[i] = p.Public()
	}
	return out
}
