package rules

import (
	"fmt"

	"github.com/cbodonnell/ninetyfive/pkg/game/constants"
	"github.com/cbodonnell/ninetyfive/pkg/game/types"
)

type EffectType string

const (
	EffectAdd      EffectType = "ADD"
	EffectSubtract EffectType = "SUBTRACT"
	EffectSet      EffectType = "SET"
	EffectReverse  EffectType = "REVERSE"
)

// Effect is what playing a card does to the running total or the turn order.
type Effect struct {
	Type   EffectType `json:"type"`
	Amount int        `json:"amount,omitempty"`
}

func (e Effect) String() string {
	if e.Type == EffectReverse {
		return string(e.Type)
	}
	return fmt.Sprintf("%s(%d)", e.Type, e.Amount)
}

// ResolveEffect maps a played card to its effect.
func ResolveEffect(c types.Card) (Effect, error) {
	switch c.Rank {
	case types.RankAce:
		return Effect{Type: EffectAdd, Amount: 1}, nil
	case types.RankJack:
		return Effect{Type: EffectReverse}, nil
	case types.RankQueen:
		return Effect{Type: EffectSubtract, Amount: constants.QueenSubtractValue}, nil
	case types.RankKing:
		return Effect{Type: EffectSet, Amount: constants.KingSetValue}, nil
	}
	n, ok := c.Rank.Numeric()
	if !ok {
		return Effect{}, fmt.Errorf("unknown rank %q", c.Rank)
	}
	return Effect{Type: EffectAdd, Amount: n}, nil
}

// BaseValue is the value of the face-up opening card, which has no effect.
func BaseValue(c types.Card) (int, error) {
	switch c.Rank {
	case types.RankAce:
		return 1, nil
	case types.RankJack, types.RankQueen, types.RankKing:
		return constants.FaceCardBaseValue, nil
	}
	n, ok := c.Rank.Numeric()
	if !ok {
		return 0, fmt.Errorf("unknown rank %q", c.Rank)
	}
	return n, nil
}

// ApplyEffect returns the new total. Reverse effects leave the total alone
// and are applied to the turn queue by the caller.
func ApplyEffect(total int, e Effect) int {
	switch e.Type {
	case EffectAdd:
		return total + e.Amount
	case EffectSubtract:
		return total - e.Amount
	case EffectSet:
		return e.Amount
	default:
		return total
	}
}
