package engine

// Element is the elemental affinity of a card and of a status mark
type Element string

const (
	Fire    Element = "fire"
	Water   Element = "water"
	Wind    Element = "wind"
	Earth   Element = "earth"
	Thunder Element = "thunder"
	Ice     Element = "ice"

	// Game constants
	StartingHP      = 10
	MaxHPCap        = 15
	InitialHandSize = 5
	MaxStatusMarks  = 2
	MarkDuration    = 2
	MinPlayers      = 2
)

// Elements lists every element in catalog order
var Elements = []Element{Fire, Water, Wind, Earth, Thunder, Ice}

// Valid reports whether e is one of the six known elements
func (e Element) Valid() bool {
	for _, known := range Elements {
		if e == known {
			return true
		}
	}
	return false
}

// CardTemplate is an immutable catalog entry
type CardTemplate struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Element     Element `json:"element"`
	Damage      int     `json:"damage"`
	Description string  `json:"description"`
}

// Card is one instance of a template held in a player's hand
type Card struct {
	InstanceID string `json:"instance_id"`
	CardTemplate
}

// StatusMark is an active elemental status on a player
type StatusMark struct {
	Element           Element `json:"element"`
	RemainingDuration int     `json:"remaining_duration"`
}

// Seat identifies a player entering a session
type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Player is the per-game state of one seat
type Player struct {
	ID      string
	Name    string
	Index   int
	HP      int
	MaxHP   int
	Hand    []Card
	Marks   []StatusMark
	Alive   bool
	Stunned bool

	// ChargeBonus is extra damage banked for the player's next card.
	ChargeBonus int

	// eliminatedSeq orders eliminations; zero while alive.
	eliminatedSeq int
}

func (p *Player) cardIndex(instanceID string) int {
	for i, c := range p.Hand {
		if c.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// removeCardAt removes exactly one card and returns it
func (p *Player) removeCardAt(i int) Card {
	card := p.Hand[i]
	p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
	return card
}

func (p *Player) takeDamage(n int) int {
	if n <= 0 {
		return 0
	}
	if n > p.HP {
		n = p.HP
	}
	p.HP -= n
	return n
}

// Public returns the view of the player every observer may see
func (p *Player) Public() PublicPlayer {
	marks := make([]StatusMark, len(p.Marks))
	copy(marks, p.Marks)
	return PublicPlayer{
		ID:       p.ID,
		Name:     p.Name,
		Index:    p.Index,
		HP:       p.HP,
		MaxHP:    p.MaxHP,
		HandSize: len(p.Hand),
		Marks:    marks,
		Alive:    p.Alive,
		Stunned:  p.Stunned,
	}
}

// PublicPlayer is a player's state without the contents of their hand
type PublicPlayer struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Index    int          `json:"index"`
	HP       int          `json:"hp"`
	MaxHP    int          `json:"max_hp"`
	HandSize int          `json:"hand_size"`
	Marks    []StatusMark `json:"status_marks"`
	Alive    bool         `json:"is_alive"`
	Stunned  bool         `json:"stunned"`
}

// Snapshot is the public state of a session at one instant
type Snapshot struct {
	Players            []PublicPlayer `json:"players"`
	CurrentPlayerIndex int            `json:"current_player_index"`
	TurnNumber         int            `json:"turn_number"`
}

// ActionKind selects what a player does on their turn
type ActionKind string

const (
	ActionDraw ActionKind = "draw"
	ActionPlay ActionKind = "play"
)

// Action is one player input. TargetIndex is required to play a card and
// is a pointer so that a missing index is not mistaken for seat 0.
type Action struct {
	Kind           ActionKind `json:"type"`
	CardInstanceID string     `json:"card_instance_id,omitempty"`
	TargetIndex    *int       `json:"target_index,omitempty"`
}

// Target returns a target index for an Action
func Target(index int) *int {
	return &index
}

// Result describes the outcome of a resolved action
type Result struct {
	Message     string    `json:"message"`
	EffectLog   []string  `json:"effect_log"`
	DamageDealt int       `json:"damage_dealt"`
	UsedCard    *Card     `json:"used_card,omitempty"`
	TargetIndex *int      `json:"target_index,omitempty"`
	Reaction    *Reaction `json:"reaction,omitempty"`
	Eliminated  []string  `json:"eliminated,omitempty"`
	Before      Snapshot  `json:"before"`
	After       Snapshot  `json:"after"`

	// DrawnCards is private to the acting player.
	DrawnCards []Card `json:"-"`
}

// Catalog is the read-only card source consumed by the engine
type Catalog interface {
	Len() int
	At(i int) CardTemplate
}

// Rand is the random source used for draws, shuffles and discards.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}
