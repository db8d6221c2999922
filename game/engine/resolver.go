package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Resolver validates and applies a single action against a session
type Resolver struct {
	catalog Catalog
	status  *StatusEngine
	rng     Rand
	newID   func() string
}

// NewResolver creates a resolver. newID defaults to random UUIDs.
func NewResolver(catalog Catalog, status *StatusEngine, rng Rand, newID func() string) *Resolver {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Resolver{
		catalog: catalog,
		status:  status,
		rng:     rng,
		newID:   newID,
	}
}

// Draw instantiates one uniformly random catalog card into p's hand
func (r *Resolver) Draw(p *Player) Card {
	card := Card{
		InstanceID:   r.newID(),
		CardTemplate: r.catalog.At(r.rng.Intn(r.catalog.Len())),
	}
	p.Hand = append(p.Hand, card)
	return card
}

// Resolve checks preconditions in order and applies the action. A rejected
// action leaves the session untouched.
func (r *Resolver) Resolve(s *Session, playerID string, a Action) (*Result, error) {
	if !s.Active() {
		return nil, ErrRoomNotActive
	}
	actor := s.players[s.current]
	if actor.ID != playerID {
		return nil, ErrNotYourTurn
	}
	if !actor.Alive {
		return nil, ErrPlayerDead
	}

	switch a.Kind {
	case ActionDraw:
		return r.resolveDraw(s, actor), nil
	case ActionPlay:
		return r.resolvePlay(s, actor, a)
	default:
		return nil, ErrInvalidAction.WithField("type", fmt.Sprintf("unknown action %q", a.Kind))
	}
}

func (r *Resolver) resolveDraw(s *Session, actor *Player) *Result {
	before := s.Snapshot()
	card := r.Draw(actor)
	msg := fmt.Sprintf("%s drew a card", actor.Name)
	return &Result{
		Message:    msg,
		EffectLog:  []string{msg},
		Before:     before,
		After:      s.Snapshot(),
		DrawnCards: []Card{card},
	}
}

func (r *Resolver) resolvePlay(s *Session, actor *Player, a Action) (*Result, error) {
	idx := actor.cardIndex(a.CardInstanceID)
	if idx < 0 {
		return nil, ErrInvalidCard.WithField("card_instance_id", "card is not in your hand")
	}
	if a.TargetIndex == nil {
		return nil, ErrInvalidTarget.WithField("target_index", "target_index is required to play a card")
	}
	targetIndex := *a.TargetIndex
	if targetIndex < 0 || targetIndex >= len(s.players) {
		return nil, ErrInvalidTarget.WithField("target_index", fmt.Sprintf("target index %d out of range", targetIndex))
	}
	target := s.players[targetIndex]
	if !target.Alive {
		return nil, ErrInvalidTarget.WithField("target_index", fmt.Sprintf("%s has been eliminated", target.Name))
	}

	before := s.Snapshot()
	card := actor.removeCardAt(idx)
	result := &Result{
		Message:     fmt.Sprintf("%s used %s on %s!", actor.Name, card.Name, target.Name),
		UsedCard:    &card,
		TargetIndex: &targetIndex,
		Before:      before,
	}

	// damage
	damage := card.Damage
	if actor.ChargeBonus > 0 {
		if damage > 0 {
			damage += actor.ChargeBonus
		}
		actor.ChargeBonus = 0
	}
	if damage > 0 {
		result.DamageDealt = target.takeDamage(damage)
		result.EffectLog = append(result.EffectLog,
			fmt.Sprintf("%s used %s on %s for %d damage", actor.Name, card.Name, target.Name, result.DamageDealt))
	} else {
		result.EffectLog = append(result.EffectLog, result.Message)
	}

	// card specific effects
	if effect, ok := specialEffects[card.ID]; ok {
		handBefore := len(actor.Hand)
		ctx := &playContext{caster: actor, target: target, draw: r.Draw}
		result.EffectLog = append(result.EffectLog, effect(ctx)...)
		if len(actor.Hand) > handBefore {
			result.DrawnCards = append(result.DrawnCards, actor.Hand[handBefore:]...)
		}
	}

	// element
	if card.Element != "" {
		if reaction, ok := r.status.ApplyElement(target, card.Element); ok {
			result.Reaction = &reaction
			result.EffectLog = append(result.EffectLog, r.status.ApplyReaction(target, reaction)...)
		} else {
			result.EffectLog = append(result.EffectLog, fmt.Sprintf("%s is marked with %s", target.Name, card.Element))
		}
	}

	if target.HP == 0 && target.Alive {
		s.eliminate(target)
		result.Eliminated = append(result.Eliminated, target.ID)
		result.EffectLog = append(result.EffectLog, fmt.Sprintf("%s was eliminated!", target.Name))
	}

	result.After = s.Snapshot()
	return result, nil
}
