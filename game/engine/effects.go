package engine

import "fmt"

// Template IDs of cards with a special effect beyond damage and element
const (
	HealingWaterID = 20
	GaleID         = 37
	EarthWallID    = 54
	ChargeID       = 72
)

// SpecialCardElements is the element each special id must carry. A catalog
// that reuses one of these ids for another card would hand that card the
// special effect, so catalog validation refuses it.
var SpecialCardElements = map[int]Element{
	HealingWaterID: Water,
	GaleID:         Wind,
	EarthWallID:    Earth,
	ChargeID:       Thunder,
}

const (
	healAmount   = 2
	wallHPBoost  = 3
	chargeAmount = 2
)

// playContext is what a special effect may touch
type playContext struct {
	caster *Player
	target *Player
	draw   func(p *Player) Card
}

type specialEffect func(ctx *playContext) []string

// specialEffects are keyed by card identity, never by element.
// Cards whose description promises something not listed here have no extra effect.
var specialEffects = map[int]specialEffect{
	HealingWaterID: healTarget,
	GaleID:         bonusDraw,
	EarthWallID:    growMaxHP,
	ChargeID:       bankCharge,
}

func healTarget(ctx *playContext) []string {
	t := ctx.target
	old := t.HP
	t.HP = min(t.MaxHP, t.HP+healAmount)
	if healed := t.HP - old; healed > 0 {
		return []string{fmt.Sprintf("%s recovered %d HP", t.Name, healed)}
	}
	return nil
}

func bonusDraw(ctx *playContext) []string {
	ctx.draw(ctx.caster)
	return []string{fmt.Sprintf("%s drew an extra card", ctx.caster.Name)}
}

func growMaxHP(ctx *playContext) []string {
	t := ctx.target
	t.MaxHP = min(MaxHPCap, t.MaxHP+wallHPBoost)
	t.HP = min(t.MaxHP, t.HP+wallHPBoost)
	return []string{fmt.Sprintf("%s's max HP rose to %d", t.Name, t.MaxHP)}
}

func bankCharge(ctx *playContext) []string {
	ctx.caster.ChargeBonus = chargeAmount
	return []string{fmt.Sprintf("%s's next attack is charged (+%d)", ctx.caster.Name, chargeAmount)}
}
