package bot

import "github.com/okeynet/okeyd/internal/tile"

// copiesPerFace is how many of each (color, value) face exist in the set.
const copiesPerFace = 2

// Memory tracks which tile faces the bot has observed: its own hand, the
// indicator, and every tile discarded face-up. Counts are capped at the
// number of copies in the set, so duplicate observations are harmless.
type Memory struct {
	seen map[faceKey]int
	// wants counts tiles adjacent to faces an opponent picked up from the
	// discard pile, keyed by seat position.
	wants map[int]map[faceKey]int
}

type faceKey struct {
	color tile.Color
	value int
}

func key(t tile.Tile) faceKey {
	return faceKey{color: t.Color, value: t.Value}
}

func NewMemory() *Memory {
	return &Memory{
		seen:  make(map[faceKey]int),
		wants: make(map[int]map[faceKey]int),
	}
}

// Observe records one sighting of t. Jokers and the okey are not tracked;
// their count is fixed and they never gate a meld.
func (m *Memory) Observe(t tile.Tile) {
	if t.IsWildcard() {
		return
	}
	k := key(t)
	if m.seen[k] < copiesPerFace {
		m.seen[k]++
	}
}

// ObserveAll records every tile in ts.
func (m *Memory) ObserveAll(ts []tile.Tile) {
	for _, t := range ts {
		m.Observe(t)
	}
}

// Forget removes one sighting, used when a face-up discard is drawn back
// into a hidden hand by an opponent.
func (m *Memory) Forget(t tile.Tile) {
	if t.IsWildcard() {
		return
	}
	k := key(t)
	if m.seen[k] > 0 {
		m.seen[k]--
	}
}

// SeenCount returns how many copies of t's face have been observed.
func (m *Memory) SeenCount(t tile.Tile) int {
	return m.seen[key(t)]
}

// AvailabilityProbability estimates the chance an unseen copy of t's face
// is still obtainable. Wildcards are always 1.
func (m *Memory) AvailabilityProbability(t tile.Tile) float64 {
	if t.IsWildcard() {
		return 1
	}
	return float64(copiesPerFace-m.seen[key(t)]) / copiesPerFace
}

// RecordDiscardPickup notes that the player at seat drew t from the
// discard pile, marking faces adjacent to t as wanted by that player.
func (m *Memory) RecordDiscardPickup(seat int, t tile.Tile) {
	m.Forget(t)
	if t.IsWildcard() {
		return
	}
	w := m.wants[seat]
	if w == nil {
		w = make(map[faceKey]int)
		m.wants[seat] = w
	}
	for _, k := range neighborFaces(t) {
		w[k]++
	}
}

// OpponentWants reports how strongly any opponent appears to want t's
// face, as the max count of adjacent pickups across seats.
func (m *Memory) OpponentWants(t tile.Tile) int {
	if t.IsWildcard() {
		return 0
	}
	k := key(t)
	max := 0
	for _, w := range m.wants {
		if w[k] > max {
			max = w[k]
		}
	}
	return max
}

// neighborFaces lists the faces that could extend a meld containing t:
// same-color values within one step and same-value faces of the other
// colors.
func neighborFaces(t tile.Tile) []faceKey {
	faces := make([]faceKey, 0, 5)
	for _, dv := range []int{-1, 1} {
		v := t.Value + dv
		if v >= 1 && v <= 13 {
			faces = append(faces, faceKey{color: t.Color, value: v})
		}
	}
	for c := tile.Yellow; c <= tile.Red; c++ {
		if c != t.Color {
			faces = append(faces, faceKey{color: c, value: t.Value})
		}
	}
	return faces
}
