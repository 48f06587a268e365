// Package tile defines the Okey tile model: the 106-tile set, colors,
// ordering helpers and the canonical serialization used by the
// provably-fair commitment.
package tile

import (
	"encoding/json"
	"sort"
)

// Color identifies one of the four tile colors.
type Color int

const (
	Yellow Color = iota
	Blue
	Black
	Red
)

var colorNames = [...]string{"Yellow", "Blue", "Black", "Red"}

func (c Color) String() string {
	if c < Yellow || c > Red {
		return "Unknown"
	}
	return colorNames[c]
}

// Colors returns all four colors in canonical order.
func Colors() []Color {
	return []Color{Yellow, Blue, Black, Red}
}

const (
	// MinValue and MaxValue bound the numeric face values.
	MinValue = 1
	MaxValue = 13

	// SetSize is the number of tiles in a full set: two copies of each
	// (color, value) pair plus two false jokers.
	SetSize = 106
)

// Tile is a value type; identity is the ID, which is unique within a game.
type Tile struct {
	ID           int
	Color        Color
	Value        int
	IsFalseJoker bool

	// IsOkey is derived after the indicator is chosen; both physical
	// copies of the okey identity carry it.
	IsOkey bool
}

// IsWildcard reports whether the tile fills any meld slot.
func (t Tile) IsWildcard() bool {
	return t.IsOkey || t.IsFalseJoker
}

// SameFace reports whether two tiles show the same color and value.
// False jokers never share a face with a normal tile.
func (t Tile) SameFace(o Tile) bool {
	if t.IsFalseJoker || o.IsFalseJoker {
		return t.IsFalseJoker && o.IsFalseJoker
	}
	return t.Color == o.Color && t.Value == o.Value
}

// OkeyValue returns the face value the indicator designates as okey:
// indicator value plus one, wrapping 13 to 1.
func OkeyValue(indicatorValue int) int {
	return indicatorValue%MaxValue + 1
}

// FullSet builds the 106-tile set with stable, deterministic ids.
// Ids 0..103 cover two copies of each (color, value) pair; 104 and 105
// are the false jokers.
func FullSet() []Tile {
	tiles := make([]Tile, 0, SetSize)
	id := 0
	for _, c := range Colors() {
		for v := MinValue; v <= MaxValue; v++ {
			for copies := 0; copies < 2; copies++ {
				tiles = append(tiles, Tile{ID: id, Color: c, Value: v})
				id++
			}
		}
	}
	tiles = append(tiles,
		Tile{ID: id, IsFalseJoker: true},
		Tile{ID: id + 1, IsFalseJoker: true},
	)
	return tiles
}

// SortByColor orders tiles by color then value, false jokers last.
// The ordering is total, so sorting is idempotent.
func SortByColor(tiles []Tile) {
	sort.SliceStable(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.IsFalseJoker != b.IsFalseJoker {
			return !a.IsFalseJoker
		}
		if a.Color != b.Color {
			return a.Color < b.Color
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.ID < b.ID
	})
}

// SortByValue orders tiles by value then color, false jokers last.
func SortByValue(tiles []Tile) {
	sort.SliceStable(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.IsFalseJoker != b.IsFalseJoker {
			return !a.IsFalseJoker
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		if a.Color != b.Color {
			return a.Color < b.Color
		}
		return a.ID < b.ID
	})
}

// wireTile matches the committed serialization field-for-field. The mixed
// casing is part of the wire contract and must not change.
type wireTile struct {
	ID           int    `json:"id"`
	Color        string `json:"Color"`
	Value        int    `json:"Value"`
	IsFalseJoker bool   `json:"IsFalseJoker"`
}

// Serialize renders the tile order as the canonical compact JSON array
// covered by the commitment hash.
func Serialize(tiles []Tile) string {
	wire := make([]wireTile, len(tiles))
	for i, t := range tiles {
		wire[i] = wireTile{
			ID:           t.ID,
			Color:        t.Color.String(),
			Value:        t.Value,
			IsFalseJoker: t.IsFalseJoker,
		}
	}
	// Marshal of a slice of flat structs cannot fail.
	b, _ := json.Marshal(wire)
	return string(b)
}

// CountByID verifies a tile multiset against the full set. It returns true
// when the ids are exactly 0..105 with no duplicates.
func CountByID(tiles []Tile) bool {
	if len(tiles) != SetSize {
		return false
	}
	var seen [SetSize]bool
	for _, t := range tiles {
		if t.ID < 0 || t.ID >= SetSize || seen[t.ID] {
			return false
		}
		seen[t.ID] = true
	}
	return true
}
