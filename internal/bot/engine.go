package bot

import (
	rand "math/rand/v2"
	"time"

	"github.com/okeynet/okeyd/internal/rules"
	"github.com/okeynet/okeyd/internal/tile"
)

// DrawSource is where the bot takes its turn tile from.
type DrawSource int

const (
	DrawDeck DrawSource = iota
	DrawDiscard
)

// Decision is the bot's discard-phase move.
type Decision struct {
	DeclareWin bool
	Discard    tile.Tile
}

// Engine makes draw and discard decisions for a single seat. It is not
// safe for concurrent use; the room loop drives it from one goroutine.
type Engine struct {
	difficulty Difficulty
	memory     *Memory
	rng        *rand.Rand
	weights    rules.Weights
}

// NewEngine creates an engine for one seat. rng supplies think-time
// jitter only; game randomness never flows through the bot.
func NewEngine(difficulty Difficulty, rng *rand.Rand) *Engine {
	return &Engine{
		difficulty: difficulty,
		memory:     NewMemory(),
		rng:        rng,
		weights:    difficulty.weights(),
	}
}

func (e *Engine) Difficulty() Difficulty { return e.difficulty }

// Memory exposes the engine's observation state so the room loop can feed
// it deals, indicators, discards and opponent pickups.
func (e *Engine) Memory() *Memory { return e.memory }

// DecideDrawSource chooses between the face-down deck and the visible top
// of the discard pile. A nil topDiscard forces a deck draw.
func (e *Engine) DecideDrawSource(hand []tile.Tile, topDiscard *tile.Tile) DrawSource {
	if topDiscard == nil {
		return DrawDeck
	}
	t := *topDiscard

	// Taking the okey or a joker off the pile is always right.
	if t.IsWildcard() {
		return DrawDiscard
	}

	if completesMeld(hand, t) {
		return DrawDiscard
	}
	if e.difficulty == Easy {
		return DrawDeck
	}

	// Compare the candidate's utility against the hand's weakest tile:
	// drawing it only helps if it displaces something worse by a margin.
	with := append(append([]tile.Tile(nil), hand...), t)
	gain := rules.TileUtility(with, len(with)-1, e.weights)
	worst, ok := rules.SuggestDiscardWeighted(hand, e.weights, e.adjust)
	if !ok {
		return DrawDeck
	}
	worstIdx := indexOf(hand, worst.ID)
	loss := rules.TileUtility(hand, worstIdx, e.weights)
	if gain-loss >= e.difficulty.discardDrawMargin() {
		return DrawDiscard
	}
	return DrawDeck
}

// DecideDiscard picks the move for a 15-tile hand: declare a win when one
// exists, otherwise discard the lowest-utility tile. The okey is never
// discarded except as a winning okey discard.
func (e *Engine) DecideDiscard(hand []tile.Tile) Decision {
	if r := rules.CheckWin(hand); r.Winning {
		return Decision{DeclareWin: true, Discard: r.Discard}
	}
	t, ok := rules.SuggestDiscardWeighted(hand, e.weights, e.adjust)
	if !ok {
		// All-wildcard hand; unreachable in a real deal but keep the
		// engine total.
		t = hand[0]
	}
	return Decision{Discard: t}
}

// ThinkTime returns how long the room should wait before applying the
// bot's move.
func (e *Engine) ThinkTime() time.Duration {
	spread := e.difficulty.thinkSpread()
	return thinkMin + time.Duration(e.rng.Int64N(int64(spread)))
}

// adjust is the memory-driven term added to a tile's keep-utility: tiles
// whose completing faces are mostly gone are worth less, and tiles an
// opponent appears to collect are held back slightly.
func (e *Engine) adjust(t tile.Tile) float64 {
	if e.weights.SeenPenalty == 0 || t.IsWildcard() {
		return 0
	}
	dead := 0.0
	for _, k := range neighborFaces(t) {
		dead += 1 - e.memory.AvailabilityProbability(tile.Tile{Color: k.color, Value: k.value})
	}
	score := -e.weights.SeenPenalty * dead
	if e.memory.OpponentWants(t) > 0 {
		score += e.weights.SeenPenalty
	}
	return score
}

// completesMeld reports whether adding t to hand creates a valid
// three-tile meld that includes t.
func completesMeld(hand []tile.Tile, t tile.Tile) bool {
	n := len(hand)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rules.ValidateMeld([]tile.Tile{t, hand[i], hand[j]}) != rules.MeldInvalid {
				return true
			}
		}
	}
	return false
}

func indexOf(hand []tile.Tile, id int) int {
	for i, t := range hand {
		if t.ID == id {
			return i
		}
	}
	return 0
}
