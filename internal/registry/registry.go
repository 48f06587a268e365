// Package registry maps players to their room and live connection. Rooms
// write through their single-writer loops; reconnect lookups from the
// transport layer read concurrently, so entries are immutable snapshots
// held in a sync.Map.
package registry

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// ReconnectWindow is how long a disconnected player keeps their seat.
const ReconnectWindow = 30 * time.Second

// Entry is one player's binding. Entries are immutable; mutations replace
// the stored pointer.
type Entry struct {
	PlayerID       string
	RoomID         string
	ConnID         string
	Connected      bool
	ConnectedAt    time.Time
	DisconnectedAt time.Time
}

// WithinReconnectWindow reports whether a disconnected player may still
// reclaim their seat at the given instant.
func (e *Entry) WithinReconnectWindow(now time.Time) bool {
	if e.Connected {
		return true
	}
	return now.Sub(e.DisconnectedAt) <= ReconnectWindow
}

// Registry is safe for concurrent use.
type Registry struct {
	clock   quartz.Clock
	entries sync.Map // playerID -> *Entry
}

func New(clock quartz.Clock) *Registry {
	return &Registry{clock: clock}
}

// Bind records that the player is in roomID on connID, replacing any
// previous binding.
func (r *Registry) Bind(playerID, roomID, connID string) {
	r.entries.Store(playerID, &Entry{
		PlayerID:    playerID,
		RoomID:      roomID,
		ConnID:      connID,
		Connected:   true,
		ConnectedAt: r.clock.Now().UTC(),
	})
}

// Lookup returns the player's binding, if any.
func (r *Registry) Lookup(playerID string) (*Entry, bool) {
	v, ok := r.entries.Load(playerID)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// LookupConn finds the player bound to a connection id. Linear scan; the
// transport calls this only on disconnect.
func (r *Registry) LookupConn(connID string) (*Entry, bool) {
	var found *Entry
	r.entries.Range(func(_, v any) bool {
		e := v.(*Entry)
		if e.ConnID == connID {
			found = e
			return false
		}
		return true
	})
	return found, found != nil
}

// MarkDisconnected stamps the player as gone but keeps the room binding
// so a reconnect inside the window can restore it.
func (r *Registry) MarkDisconnected(playerID string) (*Entry, bool) {
	v, ok := r.entries.Load(playerID)
	if !ok {
		return nil, false
	}
	prev := v.(*Entry)
	next := *prev
	next.Connected = false
	next.ConnID = ""
	next.DisconnectedAt = r.clock.Now().UTC()
	r.entries.Store(playerID, &next)
	return &next, true
}

// Reconnect re-attaches a player to a new connection. It fails when the
// player has no binding or the reconnect window has lapsed; expired
// bindings are removed.
func (r *Registry) Reconnect(playerID, connID string) (*Entry, bool) {
	v, ok := r.entries.Load(playerID)
	if !ok {
		return nil, false
	}
	prev := v.(*Entry)
	now := r.clock.Now().UTC()
	if !prev.Connected && !prev.WithinReconnectWindow(now) {
		r.entries.Delete(playerID)
		return nil, false
	}
	next := *prev
	next.Connected = true
	next.ConnID = connID
	next.ConnectedAt = now
	next.DisconnectedAt = time.Time{}
	r.entries.Store(playerID, &next)
	return &next, true
}

// Remove drops the player's binding entirely (leave room, game over).
func (r *Registry) Remove(playerID string) {
	r.entries.Delete(playerID)
}

// RoomPlayers lists player ids currently bound to roomID.
func (r *Registry) RoomPlayers(roomID string) []string {
	var ids []string
	r.entries.Range(func(_, v any) bool {
		e := v.(*Entry)
		if e.RoomID == roomID {
			ids = append(ids, e.PlayerID)
		}
		return true
	})
	return ids
}
