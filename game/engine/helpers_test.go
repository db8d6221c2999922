package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// testCatalog is a small fixed catalog
type testCatalog []CardTemplate

func (c testCatalog) Len() int              { return len(c) }
func (c testCatalog) At(i int) CardTemplate { return c[i] }

func (c testCatalog) byID(id int) CardTemplate {
	for _, t := range c {
		if t.ID == id {
			return t
		}
	}
	panic(fmt.Sprintf("no template %d", id))
}

var cards = testCatalog{
	{ID: 1, Name: "Fireball", Element: Fire, Damage: 2},
	{ID: 2, Name: "Inferno", Element: Fire, Damage: 3},
	{ID: 17, Name: "Stream", Element: Water, Damage: 2},
	{ID: HealingWaterID, Name: "Healing Water", Element: Water, Damage: 0},
	{ID: GaleID, Name: "Gale", Element: Wind, Damage: 1},
	{ID: EarthWallID, Name: "Earth Wall", Element: Earth, Damage: 0},
	{ID: 51, Name: "Rock Throw", Element: Earth, Damage: 2},
	{ID: ChargeID, Name: "Charge", Element: Thunder, Damage: 0},
	{ID: 85, Name: "Ice Arrow", Element: Ice, Damage: 2},
}

// scriptedRand returns queued values for Intn (modulo n, 0 once exhausted)
// and never reorders on Shuffle.
type scriptedRand struct {
	ints []int
}

func (r *scriptedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRand) Shuffle(n int, swap func(i, j int)) {}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("card-%d", n)
	}
}

// newTestSession starts a session for n players named P1..Pn in seat order.
// Every initial card is catalog entry 0.
func newTestSession(t *testing.T, n int) (*Session, *scriptedRand) {
	t.Helper()
	seats := make([]Seat, n)
	for i := range seats {
		seats[i] = Seat{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("P%d", i+1)}
	}
	rng := &scriptedRand{}
	sess, events, err := NewSession(seats, Options{
		Catalog: cards,
		Rand:    rng,
		NewID:   sequentialIDs(),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return sess, rng
}

// give puts a specific card into p's hand and returns its instance id
func give(p *Player, templateID int) string {
	id := fmt.Sprintf("given-%d-%d", templateID, len(p.Hand))
	p.Hand = append(p.Hand, Card{InstanceID: id, CardTemplate: cards.byID(templateID)})
	return id
}

func play(cardID string, target int) Action {
	return Action{Kind: ActionPlay, CardInstanceID: cardID, TargetIndex: &target}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.EventType()
	}
	return out
}

func handIDs(s *Session) map[string]string {
	owners := map[string]string{}
	for _, p := range s.players {
		for _, c := range p.Hand {
			owners[c.InstanceID] = p.ID
		}
	}
	return owners
}
