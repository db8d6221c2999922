package engine

import "fmt"

// StatusEngine tracks elemental marks, detects reactions and decays marks
type StatusEngine struct {
	reactions ReactionTable
	rng       Rand
}

// NewStatusEngine creates a status engine over the given reaction table
func NewStatusEngine(reactions ReactionTable, rng Rand) *StatusEngine {
	if reactions == nil {
		reactions = DefaultReactions()
	}
	return &StatusEngine{reactions: reactions, rng: rng}
}

// ApplyElement marks p with element. An existing mark of the same element is
// replaced, and the oldest mark is evicted beyond MaxStatusMarks. When the two
// remaining marks react, all marks are cleared and the reaction is returned.
func (s *StatusEngine) ApplyElement(p *Player, element Element) (Reaction, bool) {
	marks := p.Marks[:0:0]
	for _, m := range p.Marks {
		if m.Element != element {
			marks = append(marks, m)
		}
	}
	marks = append(marks, StatusMark{Element: element, RemainingDuration: MarkDuration})
	if len(marks) > MaxStatusMarks {
		marks = marks[len(marks)-MaxStatusMarks:]
	}
	p.Marks = marks

	if len(p.Marks) != 2 {
		return Reaction{}, false
	}
	reaction, ok := s.reactions.Lookup(p.Marks[0].Element, p.Marks[1].Element)
	if !ok {
		return Reaction{}, false
	}
	p.Marks = nil
	return reaction, true
}

// ApplyReaction applies the effect of r to p and returns the log lines
func (s *StatusEngine) ApplyReaction(p *Player, r Reaction) []string {
	lines := []string{fmt.Sprintf("%s reaction on %s!", r.Name, p.Name)}

	switch r.Kind {
	case Steam, Burn:
		if n := p.takeDamage(1); n > 0 {
			lines = append(lines, fmt.Sprintf("%s takes %d reaction damage", p.Name, n))
		}
		for _, c := range s.discardRandom(p, 1) {
			lines = append(lines, fmt.Sprintf("%s lost %s from their hand", p.Name, c.Name))
		}
	case Shock, Melt, Dissolve:
		if n := p.takeDamage(1); n > 0 {
			lines = append(lines, fmt.Sprintf("%s takes %d reaction damage", p.Name, n))
		}
		p.Stunned = true
		lines = append(lines, fmt.Sprintf("%s is stunned and will skip their next turn", p.Name))
	case Overreaction:
		if n := p.takeDamage(2); n > 0 {
			lines = append(lines, fmt.Sprintf("%s takes %d reaction damage", p.Name, n))
		}
	case Erosion:
		lost := s.discardRandom(p, 3)
		lines = append(lines, fmt.Sprintf("%s lost %d cards from their hand", p.Name, len(lost)))
	}

	return lines
}

// Decay reduces every mark's duration by one and drops expired marks.
// It runs once per completed turn cycle.
func (s *StatusEngine) Decay(players []*Player) {
	for _, p := range players {
		kept := p.Marks[:0]
		for _, m := range p.Marks {
			m.RemainingDuration--
			if m.RemainingDuration > 0 {
				kept = append(kept, m)
			}
		}
		p.Marks = kept
	}
}

// discardRandom removes up to n uniformly random cards from p's hand
func (s *StatusEngine) discardRandom(p *Player, n int) []Card {
	var lost []Card
	for i := 0; i < n && len(p.Hand) > 0; i++ {
		lost = append(lost, p.removeCardAt(s.rng.Intn(len(p.Hand))))
	}
	return lost
}
