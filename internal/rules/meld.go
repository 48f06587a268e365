package rules

import (
	"sort"

	"github.com/okeynet/okeyd/internal/tile"
)

// MeldKind classifies a candidate meld.
type MeldKind int

const (
	MeldInvalid MeldKind = iota
	MeldRun
	MeldGroup
)

func (k MeldKind) String() string {
	switch k {
	case MeldRun:
		return "Run"
	case MeldGroup:
		return "Group"
	default:
		return "Invalid"
	}
}

const (
	minMeldSize  = 3
	maxGroupSize = 4
	maxRunSize   = tile.MaxValue
)

// ValidateMeld classifies tiles as a run, a group, or invalid. The check
// depends only on the multiset, not the order. Wildcards (okey tiles and
// false jokers) fill exactly one slot each; an all-wildcard meld of three
// or more is a valid run.
func ValidateMeld(tiles []tile.Tile) MeldKind {
	if len(tiles) < minMeldSize {
		return MeldInvalid
	}
	if isRun(tiles) {
		return MeldRun
	}
	if isGroup(tiles) {
		return MeldGroup
	}
	return MeldInvalid
}

func splitWildcards(tiles []tile.Tile) (normals []tile.Tile, wildcards int) {
	for _, t := range tiles {
		if t.IsWildcard() {
			wildcards++
		} else {
			normals = append(normals, t)
		}
	}
	return normals, wildcards
}

func isRun(tiles []tile.Tile) bool {
	length := len(tiles)
	if length > maxRunSize {
		return false
	}
	normals, _ := splitWildcards(tiles)
	if len(normals) == 0 {
		return true
	}

	color := normals[0].Color
	values := make([]int, 0, len(normals))
	seen := make(map[int]bool, len(normals))
	for _, t := range normals {
		if t.Color != color {
			return false
		}
		if seen[t.Value] {
			return false
		}
		seen[t.Value] = true
		values = append(values, t.Value)
	}
	sort.Ints(values)

	// Straight window: the distinct values must fit a window of exactly
	// the meld length somewhere in [1,13]; wildcards fill the gaps and
	// pad the ends.
	span := values[len(values)-1] - values[0] + 1
	if span <= length {
		return true
	}

	// Wrap-around 12-13-1, permitted only for exactly three tiles.
	if length == minMeldSize {
		wrapOK := true
		for _, v := range values {
			if v != 12 && v != 13 && v != 1 {
				wrapOK = false
				break
			}
		}
		if wrapOK {
			return true
		}
	}
	return false
}

func isGroup(tiles []tile.Tile) bool {
	length := len(tiles)
	if length < minMeldSize || length > maxGroupSize {
		return false
	}
	normals, _ := splitWildcards(tiles)
	if len(normals) == 0 {
		return true
	}

	value := normals[0].Value
	var colors [4]bool
	for _, t := range normals {
		if t.Value != value {
			return false
		}
		if colors[t.Color] {
			return false
		}
		colors[t.Color] = true
	}
	return true
}
