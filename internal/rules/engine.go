// Package rules implements the Okey rule engine: shuffling, dealing,
// indicator selection, meld validation, win detection and scoring. All
// functions are pure; invalid inputs produce typed results, never panics.
package rules

import (
	"github.com/okeynet/okeyd/internal/tile"
)

// Source is the randomness a shuffle or indicator pick consumes. Both
// *rand.Rand (math/rand/v2) and the fairness deterministic RNG satisfy it.
type Source interface {
	IntN(n int) int
}

// Seats at an Okey table, in deal order. South deals first.
const (
	SeatSouth = iota
	SeatEast
	SeatNorth
	SeatWest
	SeatCount
)

// DealerHandSize and HandSize are the initial hand sizes: the dealer plays
// first and starts with the extra tile.
const (
	DealerHandSize = 15
	HandSize       = 14
)

// NextSeat advances counter-clockwise: South, West, North, East, South.
func NextSeat(pos int) int {
	return (pos + 3) % SeatCount
}

// Shuffle returns a Fisher–Yates permutation of tiles drawn from src.
// The input is not modified.
func Shuffle(tiles []tile.Tile, src Source) []tile.Tile {
	out := append([]tile.Tile(nil), tiles...)
	for i := len(out) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ChooseIndicator picks the indicator uniformly from the non-false-joker
// tiles, marks both copies of the okey identity in the remainder, and
// returns the indicator together with the remaining 105 playable tiles in
// their original order.
func ChooseIndicator(tiles []tile.Tile, src Source) (tile.Tile, []tile.Tile) {
	normals := 0
	for _, t := range tiles {
		if !t.IsFalseJoker {
			normals++
		}
	}
	if normals == 0 {
		return tile.Tile{}, append([]tile.Tile(nil), tiles...)
	}

	pick := src.IntN(normals)
	indicatorIdx := -1
	for i, t := range tiles {
		if t.IsFalseJoker {
			continue
		}
		if pick == 0 {
			indicatorIdx = i
			break
		}
		pick--
	}

	indicator := tiles[indicatorIdx]
	okeyValue := tile.OkeyValue(indicator.Value)

	rest := make([]tile.Tile, 0, len(tiles)-1)
	for i, t := range tiles {
		if i == indicatorIdx {
			continue
		}
		if !t.IsFalseJoker && t.Color == indicator.Color && t.Value == okeyValue {
			t.IsOkey = true
		}
		rest = append(rest, t)
	}
	return indicator, rest
}

// Deal splits the playable tiles (post-indicator, 105 for a full set) into
// four hands of 15, 14, 14, 14 in seat order and returns the remaining
// face-down deck. The first seat is the dealer. Returns nil hands when
// there are not enough tiles.
func Deal(tiles []tile.Tile) ([SeatCount][]tile.Tile, []tile.Tile) {
	var hands [SeatCount][]tile.Tile
	need := DealerHandSize + (SeatCount-1)*HandSize
	if len(tiles) < need {
		return hands, nil
	}

	offset := 0
	for seat := 0; seat < SeatCount; seat++ {
		size := HandSize
		if seat == 0 {
			size = DealerHandSize
		}
		hands[seat] = append([]tile.Tile(nil), tiles[offset:offset+size]...)
		offset += size
	}
	deck := append([]tile.Tile(nil), tiles[offset:]...)
	return hands, deck
}
