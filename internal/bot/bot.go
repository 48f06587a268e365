// Package bot implements the heuristic Okey AI used both for seated bot
// players and for auto-play when a human's turn times out.
package bot

import (
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/okeynet/okeyd/internal/rules"
)

// Difficulty selects a weight profile and decision thresholds.
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
	Expert
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "Easy"
	case Normal:
		return "Normal"
	case Hard:
		return "Hard"
	case Expert:
		return "Expert"
	default:
		return "Unknown"
	}
}

// ParseDifficulty maps a client string to a difficulty, defaulting to
// Normal for anything unrecognised.
func ParseDifficulty(s string) Difficulty {
	switch s {
	case "Easy", "easy":
		return Easy
	case "Hard", "hard":
		return Hard
	case "Expert", "expert":
		return Expert
	default:
		return Normal
	}
}

// weights is the per-difficulty tile scoring profile. Harder bots value
// meld structure more and punish tiles whose completions are already
// dead harder.
func (d Difficulty) weights() rules.Weights {
	switch d {
	case Easy:
		return rules.Weights{Okey: 100, FalseJoker: 60, MeldMember: 25, Adjacent: 6, Isolated: -8, SeenPenalty: 0}
	case Hard:
		return rules.Weights{Okey: 120, FalseJoker: 70, MeldMember: 40, Adjacent: 10, Isolated: -14, SeenPenalty: 8}
	case Expert:
		return rules.Weights{Okey: 130, FalseJoker: 75, MeldMember: 45, Adjacent: 12, Isolated: -16, SeenPenalty: 12}
	default:
		return rules.Weights{Okey: 110, FalseJoker: 65, MeldMember: 32, Adjacent: 8, Isolated: -11, SeenPenalty: 4}
	}
}

// discardDrawMargin is the utility the discard-pile tile must add over the
// hand's current worst tile before the bot prefers it to a blind deck
// draw. Easy is unused: Easy only takes the discard when it completes a
// meld outright.
func (d Difficulty) discardDrawMargin() float64 {
	switch d {
	case Hard:
		return 12
	case Expert:
		return 8
	default:
		return 18
	}
}

// Think-time bounds. Every bot decision is delayed to read as human;
// Easy answers fastest.
const thinkMin = 1500 * time.Millisecond

func (d Difficulty) thinkSpread() time.Duration {
	switch d {
	case Easy:
		return 1 * time.Second
	case Normal:
		return 2 * time.Second
	case Hard:
		return 3 * time.Second
	default:
		return 4 * time.Second
	}
}

var botNames = []string{
	"Ayşe", "Mehmet", "Fatma", "Mustafa", "Emine", "Ahmet",
	"Hatice", "Hüseyin", "Zeynep", "Ali", "Elif", "Hasan",
}

// Identity is a synthesized bot player.
type Identity struct {
	ID          string
	DisplayName string
}

// NewIdentity creates a bot identity with a display name drawn from rng.
// seq keeps ids unique within a room.
func NewIdentity(rng *rand.Rand, seq int) Identity {
	name := botNames[rng.IntN(len(botNames))]
	return Identity{
		ID:          fmt.Sprintf("bot-%d-%06x", seq, rng.Uint64()&0xffffff),
		DisplayName: name + " (Bot)",
	}
}
