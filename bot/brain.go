package bot

import (
	"fmt"
	"math/rand"

	"github.com/wricardo/skillwar/game/engine"
)

// Turn is everything a brain sees when it is asked to act
type Turn struct {
	Me      engine.PublicPlayer
	Players []engine.PublicPlayer
	Hand    []engine.Card
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	Decide(turn Turn) engine.Action
}

// Level selects a strategy
type Level string

const (
	LevelRandom Level = "random"
	LevelGreedy Level = "greedy"
)

// NewBrain creates a new brain for the given level
func NewBrain(level Level, rng *rand.Rand) (Brain, error) {
	switch level {
	case LevelRandom:
		return &RandomBrain{rng: rng}, nil
	case LevelGreedy, "":
		return &GreedyBrain{reactions: engine.DefaultReactions()}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %q", level)
	}
}

func draw() engine.Action {
	return engine.Action{Kind: engine.ActionDraw}
}

func play(card engine.Card, target int) engine.Action {
	return engine.Action{Kind: engine.ActionPlay, CardInstanceID: card.InstanceID, TargetIndex: &target}
}

func opponents(turn Turn) []engine.PublicPlayer {
	var out []engine.PublicPlayer
	for _, p := range turn.Players {
		if p.Alive && p.ID != turn.Me.ID {
			out = append(out, p)
		}
	}
	return out
}

// RandomBrain plays a random card at a random opponent
type RandomBrain struct {
	rng *rand.Rand
}

func (b *RandomBrain) Decide(turn Turn) engine.Action {
	foes := opponents(turn)
	if len(turn.Hand) == 0 || len(foes) == 0 {
		return draw()
	}
	card := turn.Hand[b.rng.Intn(len(turn.Hand))]
	return play(card, foes[b.rng.Intn(len(foes))].Index)
}

// GreedyBrain scores every card and target pair and plays the best one.
// It draws when nothing scores above zero.
type GreedyBrain struct {
	reactions engine.ReactionTable
}

const (
	killBonus     = 5
	reactionBonus = 2
)

func (b *GreedyBrain) Decide(turn Turn) engine.Action {
	best, bestScore := draw(), 0.0
	for _, card := range turn.Hand {
		for _, target := range turn.Players {
			if !target.Alive {
				continue
			}
			if score := b.score(turn.Me, card, target); score > bestScore {
				best, bestScore = play(card, target.Index), score
			}
		}
	}
	return best
}

func (b *GreedyBrain) score(me engine.PublicPlayer, card engine.Card, target engine.PublicPlayer) float64 {
	self := target.ID == me.ID

	switch card.ID {
	case engine.HealingWaterID:
		if self && me.MaxHP-me.HP >= 2 {
			return 2
		}
		return 0
	case engine.EarthWallID:
		if self && me.MaxHP < engine.MaxHPCap {
			return 1.5
		}
		return 0
	case engine.ChargeID:
		if self {
			return 1
		}
		return 0
	}

	if self || card.Damage == 0 {
		return 0
	}

	score := float64(card.Damage)
	for _, mark := range target.Marks {
		if _, ok := b.reactions.Lookup(mark.Element, card.Element); ok {
			score += reactionBonus
			break
		}
	}
	if card.Damage >= target.HP {
		score += killBonus
	}
	// Prefer finishing weakened opponents
	score += float64(target.MaxHP-target.HP) / 10
	return score
}
