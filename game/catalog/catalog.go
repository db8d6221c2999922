package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/wricardo/skillwar/game/engine"
)

//go:embed cards.json
var defaultCards []byte

var (
	ErrEmptyCatalog   = errors.New("catalog is empty")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Catalog is an immutable ordered set of card templates
type Catalog struct {
	cards []engine.CardTemplate
	byID  map[int]int
}

// New validates cards and builds a catalog from them
func New(cards []engine.CardTemplate) (*Catalog, error) {
	if err := Validate(cards); err != nil {
		return nil, err
	}
	c := &Catalog{
		cards: make([]engine.CardTemplate, len(cards)),
		byID:  make(map[int]int, len(cards)),
	}
	copy(c.cards, cards)
	for i, card := range c.cards {
		c.byID[card.ID] = i
	}
	return c, nil
}

// Parse decodes and validates a JSON catalog
func Parse(data []byte) (*Catalog, error) {
	var cards []engine.CardTemplate
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(cards)
}

// Default returns the embedded catalog
func Default() (*Catalog, error) {
	return Parse(defaultCards)
}

// MustDefault returns the embedded catalog and panics if it is invalid
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns the embedded catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks every card and returns all problems found
func Validate(cards []engine.CardTemplate) error {
	if len(cards) == 0 {
		return ErrEmptyCatalog
	}

	var errs []error
	seen := make(map[int]bool, len(cards))
	for i, card := range cards {
		if card.ID <= 0 {
			errs = append(errs, fmt.Errorf("card %d: id must be positive, got %d", i, card.ID))
		} else if seen[card.ID] {
			errs = append(errs, fmt.Errorf("card %d: duplicate id %d", i, card.ID))
		}
		seen[card.ID] = true

		if card.Name == "" {
			errs = append(errs, fmt.Errorf("card %d (id %d): name is empty", i, card.ID))
		}
		if !card.Element.Valid() {
			errs = append(errs, fmt.Errorf("card %d (id %d): unknown element %q", i, card.ID, card.Element))
		}
		if card.Damage < 0 {
			errs = append(errs, fmt.Errorf("card %d (id %d): damage must not be negative", i, card.ID))
		}
		if want, ok := engine.SpecialCardElements[card.ID]; ok && card.Element.Valid() && card.Element != want {
			errs = append(errs, fmt.Errorf("card %d (id %d): id %d carries a special effect and must be a %s card, got %s",
				i, card.ID, card.ID, want, card.Element))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

// Len returns the number of templates
func (c *Catalog) Len() int {
	return len(c.cards)
}

// At returns the template at position i
func (c *Catalog) At(i int) engine.CardTemplate {
	return c.cards[i]
}

// Lookup finds a template by id
func (c *Catalog) Lookup(id int) (engine.CardTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return engine.CardTemplate{}, false
	}
	return c.cards[i], true
}

// All returns a copy of every template in catalog order
func (c *Catalog) All() []engine.CardTemplate {
	out := make([]engine.CardTemplate, len(c.cards))
	copy(out, c.cards)
	return out
}

// ElementStats summarizes the cards of one element
type ElementStats struct {
	Element     engine.Element `json:"element"`
	Count       int            `json:"count"`
	MinDamage   int            `json:"min_damage"`
	MaxDamage   int            `json:"max_damage"`
	TotalDamage int            `json:"total_damage"`
	Support     int            `json:"support"`
}

// AverageDamage is the mean damage of the element's cards
func (s ElementStats) AverageDamage() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalDamage) / float64(s.Count)
}

// Analysis is a summary of a whole catalog
type Analysis struct {
	Total     int                   `json:"total"`
	Elements  []ElementStats        `json:"elements"`
	Damage    map[int]int           `json:"damage_histogram"`
	Strongest []engine.CardTemplate `json:"strongest"`
}

// Analyze reports per-element counts and damage spread. Support counts
// zero-damage cards.
func (c *Catalog) Analyze() Analysis {
	a := Analysis{Total: len(c.cards), Damage: map[int]int{}}

	stats := make(map[engine.Element]*ElementStats, len(engine.Elements))
	for _, e := range engine.Elements {
		stats[e] = &ElementStats{Element: e, MinDamage: -1}
	}

	maxDamage := 0
	for _, card := range c.cards {
		s := stats[card.Element]
		s.Count++
		s.TotalDamage += card.Damage
		if s.MinDamage < 0 || card.Damage < s.MinDamage {
			s.MinDamage = card.Damage
		}
		if card.Damage > s.MaxDamage {
			s.MaxDamage = card.Damage
		}
		if card.Damage == 0 {
			s.Support++
		}
		a.Damage[card.Damage]++
		if card.Damage > maxDamage {
			maxDamage = card.Damage
		}
	}

	for _, e := range engine.Elements {
		s := stats[e]
		if s.MinDamage < 0 {
			s.MinDamage = 0
		}
		a.Elements = append(a.Elements, *s)
	}

	for _, card := range c.cards {
		if card.Damage == maxDamage {
			a.Strongest = append(a.Strongest, card)
		}
	}
	sort.Slice(a.Strongest, func(i, j int) bool { return a.Strongest[i].ID < a.Strongest[j].ID })
	return a
}
