package engine

// ReactionKind selects the effect a reaction has on the affected player
type ReactionKind string

const (
	Steam        ReactionKind = "steam"
	Shock        ReactionKind = "shock"
	Burn         ReactionKind = "burn"
	Overreaction ReactionKind = "overreaction"
	Melt         ReactionKind = "melt"
	Dissolve     ReactionKind = "dissolve"
	Erosion      ReactionKind = "erosion"
)

// Reaction is fired when two distinct marks coexist on one player
type Reaction struct {
	Name string       `json:"name"`
	Kind ReactionKind `json:"effect"`
}

type elementPair struct {
	a, b Element
}

func pairOf(x, y Element) elementPair {
	if x > y {
		x, y = y, x
	}
	return elementPair{x, y}
}

// ReactionTable maps an unordered pair of distinct elements to a reaction
type ReactionTable map[elementPair]Reaction

// NewReactionTable returns an empty table
func NewReactionTable() ReactionTable {
	return ReactionTable{}
}

// Add registers a reaction for the unordered pair (x, y). Same-element pairs are ignored.
func (t ReactionTable) Add(x, y Element, r Reaction) ReactionTable {
	if x == y {
		return t
	}
	t[pairOf(x, y)] = r
	return t
}

// Lookup finds the reaction for two elements in either order
func (t ReactionTable) Lookup(x, y Element) (Reaction, bool) {
	if x == y {
		return Reaction{}, false
	}
	r, ok := t[pairOf(x, y)]
	return r, ok
}

// DefaultReactions returns the standard reaction table
func DefaultReactions() ReactionTable {
	return NewReactionTable().
		Add(Fire, Water, Reaction{Name: "Vaporize", Kind: Steam}).
		Add(Thunder, Water, Reaction{Name: "Electrocute", Kind: Shock}).
		Add(Fire, Wind, Reaction{Name: "Combustion", Kind: Burn}).
		Add(Thunder, Fire, Reaction{Name: "Overreaction", Kind: Overreaction}).
		Add(Ice, Fire, Reaction{Name: "Melt", Kind: Melt}).
		Add(Water, Earth, Reaction{Name: "Dissolve", Kind: Dissolve}).
		Add(Earth, Wind, Reaction{Name: "Weathering", Kind: Erosion})
}
