package rules

import (
	"github.com/okeynet/okeyd/internal/tile"
)

// Weights score a single tile's contribution to a hand. The bot engine
// supplies difficulty-specific values; SuggestDiscard uses the defaults.
type Weights struct {
	Okey        float64 // okey tile in hand
	FalseJoker  float64 // false joker in hand
	MeldMember  float64 // tile participates in a complete meld
	Adjacent    float64 // per adjacent partner (run neighbor or pair copy)
	Isolated    float64 // tile with no partners at all
	SeenPenalty float64 // per missing copy the bot has seen (memory-driven)
}

// DefaultWeights is the baseline profile shared by auto-play and the Easy
// bot.
func DefaultWeights() Weights {
	return Weights{
		Okey:       100,
		FalseJoker: 60,
		MeldMember: 30,
		Adjacent:   8,
		Isolated:   -10,
	}
}

// TileUtility scores hand[idx] under w. Higher means more worth keeping.
func TileUtility(hand []tile.Tile, idx int, w Weights) float64 {
	t := hand[idx]
	if t.IsOkey {
		return w.Okey
	}
	if t.IsFalseJoker {
		return w.FalseJoker
	}

	score := 0.0
	if inCompleteMeld(hand, idx) {
		score += w.MeldMember
	}
	adj := adjacentPartners(hand, idx)
	if adj == 0 {
		score += w.Isolated
	} else {
		score += float64(adj) * w.Adjacent
	}
	return score
}

// SuggestDiscard returns the tile of a 15-tile hand with the lowest
// utility under the default weights. The okey is never suggested. Ties
// break toward the lower tile id for determinism.
func SuggestDiscard(hand []tile.Tile) (tile.Tile, bool) {
	return SuggestDiscardWeighted(hand, DefaultWeights(), nil)
}

// SuggestDiscardWeighted is SuggestDiscard with caller-provided weights
// and an optional per-tile adjustment (the bot's memory penalty).
func SuggestDiscardWeighted(hand []tile.Tile, w Weights, adjust func(tile.Tile) float64) (tile.Tile, bool) {
	if len(hand) == 0 {
		return tile.Tile{}, false
	}

	bestIdx := -1
	bestScore := 0.0
	for i, t := range hand {
		if t.IsOkey {
			continue
		}
		score := TileUtility(hand, i, w)
		if adjust != nil {
			score += adjust(t)
		}
		if bestIdx == -1 || score < bestScore ||
			(score == bestScore && t.ID < hand[bestIdx].ID) {
			bestIdx = i
			bestScore = score
		}
	}
	if bestIdx == -1 {
		return tile.Tile{}, false
	}
	return hand[bestIdx], true
}

// inCompleteMeld reports whether hand[idx] belongs to at least one valid
// three-tile meld drawn from the hand.
func inCompleteMeld(hand []tile.Tile, idx int) bool {
	t := hand[idx]
	n := len(hand)
	for i := 0; i < n; i++ {
		if i == idx {
			continue
		}
		for j := i + 1; j < n; j++ {
			if j == idx {
				continue
			}
			if ValidateMeld([]tile.Tile{t, hand[i], hand[j]}) != MeldInvalid {
				return true
			}
		}
	}
	return false
}

// adjacentPartners counts tiles that pair or chain with hand[idx]: same
// face copies, same-color values within two steps, and same-value tiles of
// other colors.
func adjacentPartners(hand []tile.Tile, idx int) int {
	t := hand[idx]
	count := 0
	for i, o := range hand {
		if i == idx || o.IsWildcard() {
			continue
		}
		switch {
		case o.SameFace(t):
			count++
		case o.Color == t.Color && abs(o.Value-t.Value) <= 2 && o.Value != t.Value:
			count++
		case o.Value == t.Value && o.Color != t.Color:
			count++
		}
	}
	return count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
