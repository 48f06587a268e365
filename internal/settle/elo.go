package settle

import (
	"math"

	"github.com/okeynet/okeyd/internal/rules"
)

// EloFloor is the lowest rating any user can hold.
const EloFloor = 100

// Rating is a player's standing going into the ELO update.
type Rating struct {
	Elo         int
	GamesPlayed int
}

// kFactor scales rating volatility by experience.
func kFactor(gamesPlayed int) float64 {
	switch {
	case gamesPlayed < 30:
		return 40
	case gamesPlayed < 100:
		return 20
	default:
		return 10
	}
}

// eloMultiplier weights the update by how the game ended.
func eloMultiplier(winType rules.WinType) float64 {
	switch winType {
	case rules.WinPairs:
		return 1.5
	case rules.WinOkeyDiscard:
		return 2.0
	case rules.WinDeckEmpty:
		return 0.5
	default:
		return 1.0
	}
}

// expectedScore is the standard Elo expectation of a against b.
func expectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// pairChange converts a raw pairwise delta into an applied one: decided
// games move at least one point, and no single pair moves more than 50.
func pairChange(raw float64, decided bool) int {
	change := int(math.Round(raw))
	if decided && change == 0 {
		if raw >= 0 {
			change = 1
		} else {
			change = -1
		}
	}
	if change > 50 {
		change = 50
	}
	if change < -50 {
		change = -50
	}
	return change
}

// EloChanges computes each player's rating delta for a decided game: the
// winner gains against every loser, each loser only against the winner.
func EloChanges(ratings []Rating, winnerIdx int, winType rules.WinType) []int {
	mult := eloMultiplier(winType)
	changes := make([]int, len(ratings))
	winner := ratings[winnerIdx]

	for i, r := range ratings {
		if i == winnerIdx {
			continue
		}
		exp := expectedScore(winner.Elo, r.Elo)
		changes[winnerIdx] += pairChange(kFactor(winner.GamesPlayed)*(1-exp)*mult, true)
		changes[i] = pairChange(kFactor(r.GamesPlayed)*(0-(1-exp))*mult, true)
	}
	return changes
}

// EloDrawChanges handles a deck-empty draw: every pair scores 0.5, pulling
// ratings toward each other at half weight.
func EloDrawChanges(ratings []Rating) []int {
	mult := eloMultiplier(rules.WinDeckEmpty)
	changes := make([]int, len(ratings))
	for i := range ratings {
		for j := i + 1; j < len(ratings); j++ {
			expI := expectedScore(ratings[i].Elo, ratings[j].Elo)
			changes[i] += pairChange(kFactor(ratings[i].GamesPlayed)*(0.5-expI)*mult, false)
			changes[j] += pairChange(kFactor(ratings[j].GamesPlayed)*(0.5-(1-expI))*mult, false)
		}
	}
	return changes
}

// ApplyFloor clamps a post-change rating at the floor.
func ApplyFloor(elo int) int {
	if elo < EloFloor {
		return EloFloor
	}
	return elo
}
