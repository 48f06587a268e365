package rules

import (
	"github.com/okeynet/okeyd/internal/tile"
)

// WinType classifies how a game was won.
type WinType int

const (
	WinNone WinType = iota
	WinNormal
	WinPairs
	WinOkeyDiscard
	WinDeckEmpty
)

func (w WinType) String() string {
	switch w {
	case WinNormal:
		return "Normal"
	case WinPairs:
		return "Pairs"
	case WinOkeyDiscard:
		return "OkeyDiscard"
	case WinDeckEmpty:
		return "DeckEmpty"
	default:
		return "None"
	}
}

// Reason codes for non-winning results.
const (
	ReasonWrongHandSize = "wrong_hand_size"
	ReasonNoPartition   = "no_meld_partition"
)

// WinResult reports whether a 15-tile hand wins and with which discard.
type WinResult struct {
	Winning bool
	Type    WinType
	Discard tile.Tile
	Score   int
	Reason  string
}

// WinScore scores a declared win: 2 for a normal meld win, 3 for seven
// pairs, 4 when the winning discard is the okey itself. The per-okey bonus
// from losers' hands is applied by settlement, not here.
func WinScore(t WinType) int {
	switch t {
	case WinNormal:
		return 2
	case WinPairs:
		return 3
	case WinOkeyDiscard:
		return 4
	default:
		return 0
	}
}

// CheckWin decides whether any single discard leaves a winning 14-tile
// hand. When several discards win, it prefers the highest scoring win type
// and then the lowest discard value.
func CheckWin(hand []tile.Tile) WinResult {
	if len(hand) != DealerHandSize {
		return WinResult{Reason: ReasonWrongHandSize}
	}

	best := WinResult{Reason: ReasonNoPartition}
	for i := range hand {
		r := checkWithDiscardIndex(hand, i)
		if !r.Winning {
			continue
		}
		if !best.Winning || r.Score > best.Score ||
			(r.Score == best.Score && discardValue(r.Discard) < discardValue(best.Discard)) {
			best = r
		}
	}
	return best
}

// CheckWinWithDiscard validates a specific declared discard: removing it
// must leave a complete melding or seven pairs.
func CheckWinWithDiscard(hand []tile.Tile, discardID int) WinResult {
	if len(hand) != DealerHandSize {
		return WinResult{Reason: ReasonWrongHandSize}
	}
	for i, t := range hand {
		if t.ID == discardID {
			return checkWithDiscardIndex(hand, i)
		}
	}
	return WinResult{Reason: "discard_not_in_hand"}
}

func checkWithDiscardIndex(hand []tile.Tile, discardIdx int) WinResult {
	rest := make([]tile.Tile, 0, HandSize)
	for i, t := range hand {
		if i != discardIdx {
			rest = append(rest, t)
		}
	}
	discard := hand[discardIdx]

	winType := WinNone
	if CanPartition(rest) {
		winType = WinNormal
	}
	if IsSevenPairs(rest) && WinScore(WinPairs) > WinScore(winType) {
		winType = WinPairs
	}
	if winType != WinNone && discard.IsOkey {
		winType = WinOkeyDiscard
	}
	if winType == WinNone {
		return WinResult{Reason: ReasonNoPartition}
	}
	return WinResult{
		Winning: true,
		Type:    winType,
		Discard: discard,
		Score:   WinScore(winType),
	}
}

func discardValue(t tile.Tile) int {
	if t.IsFalseJoker {
		return 0
	}
	return t.Value
}

// CanPartition reports whether the tiles split exactly into valid melds.
// Only meld sizes 3..5 are tried: any longer run decomposes into legal
// sub-runs, so the restriction loses no partitions.
func CanPartition(tiles []tile.Tile) bool {
	n := len(tiles)
	if n == 0 {
		return true
	}
	if n < minMeldSize || n > 16 {
		return false
	}

	// Collect all 3..5 tile subsets that form valid melds, then solve
	// exact cover over the bitmask space.
	var melds []uint16
	var gather func(start, depth, size int, mask uint16, buf []tile.Tile)
	gather = func(start, depth, size int, mask uint16, buf []tile.Tile) {
		if depth == size {
			if ValidateMeld(buf) != MeldInvalid {
				melds = append(melds, mask)
			}
			return
		}
		for i := start; i < n; i++ {
			gather(i+1, depth+1, size, mask|1<<uint(i), append(buf, tiles[i]))
		}
	}
	for size := minMeldSize; size <= 5 && size <= n; size++ {
		gather(0, 0, size, 0, make([]tile.Tile, 0, size))
	}

	full := uint16(1<<uint(n)) - 1
	reachable := make([]bool, 1<<uint(n))
	reachable[0] = true
	for mask := uint16(0); mask < full; mask++ {
		if !reachable[mask] {
			continue
		}
		// Always cover the lowest uncovered tile to avoid revisiting
		// permutations of the same partition.
		var lowest uint16
		for b := uint(0); b < uint(n); b++ {
			if mask&(1<<b) == 0 {
				lowest = 1 << b
				break
			}
		}
		for _, m := range melds {
			if m&lowest != 0 && m&mask == 0 {
				reachable[mask|m] = true
			}
		}
	}
	return reachable[full]
}

// IsSevenPairs reports whether the 14 tiles form seven disjoint pairs.
// A pair is two tiles of the same face; wildcards pair with anything,
// including each other.
func IsSevenPairs(tiles []tile.Tile) bool {
	if len(tiles) != HandSize {
		return false
	}
	faces := make(map[[2]int]int)
	wildcards := 0
	for _, t := range tiles {
		if t.IsWildcard() {
			wildcards++
			continue
		}
		faces[[2]int{int(t.Color), t.Value}]++
	}
	singles := 0
	for _, n := range faces {
		singles += n % 2
	}
	// Total is even, so wildcards-singles parity always works out; the
	// only way to fail is more unpaired faces than wildcards.
	return singles <= wildcards
}
