package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlayer(handSize int) *Player {
	p := &Player{ID: "p", Name: "P", HP: StartingHP, MaxHP: StartingHP, Alive: true}
	for i := 0; i < handSize; i++ {
		give(p, 1)
	}
	return p
}

func elementsOf(p *Player) []Element {
	var out []Element
	for _, m := range p.Marks {
		out = append(out, m.Element)
	}
	return out
}

func TestReactionTableLookup(t *testing.T) {
	table := DefaultReactions()

	t.Run("symmetric", func(t *testing.T) {
		for _, pair := range [][2]Element{{Fire, Water}, {Thunder, Water}, {Fire, Wind}, {Thunder, Fire}, {Ice, Fire}, {Water, Earth}, {Earth, Wind}} {
			ab, ok1 := table.Lookup(pair[0], pair[1])
			ba, ok2 := table.Lookup(pair[1], pair[0])
			assert.True(t, ok1, "%v", pair)
			assert.True(t, ok2, "%v", pair)
			assert.Equal(t, ab, ba)
		}
	})

	t.Run("same element never reacts", func(t *testing.T) {
		for _, e := range Elements {
			_, ok := table.Lookup(e, e)
			assert.False(t, ok, "%s", e)
		}
	})

	t.Run("unknown pair", func(t *testing.T) {
		_, ok := table.Lookup(Ice, Earth)
		assert.False(t, ok)
	})

	t.Run("steam", func(t *testing.T) {
		r, ok := table.Lookup(Water, Fire)
		require.True(t, ok)
		assert.Equal(t, Steam, r.Kind)
	})
}

func TestApplyElement(t *testing.T) {
	s := NewStatusEngine(DefaultReactions(), &scriptedRand{})

	t.Run("first mark has full duration", func(t *testing.T) {
		p := newPlayer(0)
		_, reacted := s.ApplyElement(p, Fire)
		assert.False(t, reacted)
		assert.Equal(t, []StatusMark{{Element: Fire, RemainingDuration: MarkDuration}}, p.Marks)
	})

	t.Run("same element refreshes instead of stacking", func(t *testing.T) {
		p := newPlayer(0)
		p.Marks = []StatusMark{{Element: Fire, RemainingDuration: 1}}
		_, reacted := s.ApplyElement(p, Fire)
		assert.False(t, reacted)
		assert.Equal(t, []StatusMark{{Element: Fire, RemainingDuration: MarkDuration}}, p.Marks)
	})

	t.Run("oldest mark is evicted", func(t *testing.T) {
		p := newPlayer(0)
		s.ApplyElement(p, Fire)
		s.ApplyElement(p, Earth)
		require.Equal(t, []Element{Fire, Earth}, elementsOf(p))

		_, reacted := s.ApplyElement(p, Ice)
		assert.False(t, reacted)
		assert.Equal(t, []Element{Earth, Ice}, elementsOf(p))
	})

	t.Run("refreshed mark moves to the back", func(t *testing.T) {
		p := newPlayer(0)
		s.ApplyElement(p, Ice)
		s.ApplyElement(p, Earth)
		s.ApplyElement(p, Ice)
		assert.Equal(t, []Element{Earth, Ice}, elementsOf(p))
	})

	t.Run("reacting pair clears all marks", func(t *testing.T) {
		p := newPlayer(0)
		s.ApplyElement(p, Water)
		r, reacted := s.ApplyElement(p, Fire)
		require.True(t, reacted)
		assert.Equal(t, Steam, r.Kind)
		assert.Empty(t, p.Marks)
	})

	t.Run("eviction can expose a reacting pair", func(t *testing.T) {
		p := newPlayer(0)
		s.ApplyElement(p, Ice)
		s.ApplyElement(p, Earth)
		r, reacted := s.ApplyElement(p, Wind)
		require.True(t, reacted)
		assert.Equal(t, Erosion, r.Kind)
		assert.Empty(t, p.Marks)
	})

	t.Run("never more than two marks", func(t *testing.T) {
		p := newPlayer(0)
		for _, e := range []Element{Ice, Earth, Ice, Thunder, Earth, Ice} {
			s.ApplyElement(p, e)
			assert.LessOrEqual(t, len(p.Marks), MaxStatusMarks)
			seen := map[Element]bool{}
			for _, m := range p.Marks {
				assert.False(t, seen[m.Element], "duplicate %s", m.Element)
				seen[m.Element] = true
			}
		}
	})
}

func TestApplyReaction(t *testing.T) {
	tests := []struct {
		name        string
		kind        ReactionKind
		handSize    int
		wantHP      int
		wantHand    int
		wantStunned bool
	}{
		{"steam", Steam, 5, 9, 4, false},
		{"burn", Burn, 5, 9, 4, false},
		{"steam with empty hand", Steam, 0, 9, 0, false},
		{"shock", Shock, 5, 9, 5, true},
		{"melt", Melt, 5, 9, 5, true},
		{"dissolve", Dissolve, 5, 9, 5, true},
		{"overreaction", Overreaction, 5, 8, 5, false},
		{"erosion", Erosion, 5, 10, 2, false},
		{"erosion with small hand", Erosion, 2, 10, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStatusEngine(DefaultReactions(), &scriptedRand{})
			p := newPlayer(tt.handSize)

			lines := s.ApplyReaction(p, Reaction{Name: string(tt.kind), Kind: tt.kind})

			assert.NotEmpty(t, lines)
			assert.Equal(t, tt.wantHP, p.HP)
			assert.Len(t, p.Hand, tt.wantHand)
			assert.Equal(t, tt.wantStunned, p.Stunned)
		})
	}

	t.Run("damage floors at zero", func(t *testing.T) {
		s := NewStatusEngine(DefaultReactions(), &scriptedRand{})
		p := newPlayer(0)
		p.HP = 1
		s.ApplyReaction(p, Reaction{Kind: Overreaction})
		assert.Equal(t, 0, p.HP)
	})

	t.Run("discard picks the sampled card", func(t *testing.T) {
		s := NewStatusEngine(DefaultReactions(), &scriptedRand{ints: []int{2}})
		p := newPlayer(0)
		give(p, 1)
		give(p, 17)
		target := give(p, 85)
		s.ApplyReaction(p, Reaction{Kind: Burn})
		assert.Equal(t, -1, p.cardIndex(target))
		assert.Len(t, p.Hand, 2)
	})
}

func TestDecay(t *testing.T) {
	s := NewStatusEngine(DefaultReactions(), &scriptedRand{})
	a := newPlayer(0)
	b := newPlayer(0)
	a.Marks = []StatusMark{{Element: Fire, RemainingDuration: 2}, {Element: Earth, RemainingDuration: 1}}
	b.Marks = []StatusMark{{Element: Ice, RemainingDuration: 1}}

	s.Decay([]*Player{a, b})
	assert.Equal(t, []StatusMark{{Element: Fire, RemainingDuration: 1}}, a.Marks)
	assert.Empty(t, b.Marks)

	s.Decay([]*Player{a, b})
	assert.Empty(t, a.Marks)
}
