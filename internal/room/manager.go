package room

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/okeynet/okeyd/internal/gameid"
)

// Manager owns every live room. Rooms are reaped from the index when
// their loop exits: either the last player left or the manager closed.
type Manager struct {
	deps   Deps
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewManager(deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "room_manager").Logger(),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]*Room),
	}
}

// CreateRoom spins up a new room loop and returns the room. The caller
// joins through the returned room's command API like everyone else.
func (m *Manager) CreateRoom(name string, stake int64) *Room {
	id := gameid.New()
	r := New(id, name, stake, m.deps)

	m.mu.Lock()
	m.rooms[id] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r.Run(m.ctx)
		m.mu.Lock()
		delete(m.rooms, id)
		m.mu.Unlock()
		m.logger.Debug().Str("room_id", id).Msg("Room reaped")
	}()

	m.logger.Info().
		Str("room_id", id).
		Str("name", name).
		Int64("stake", stake).
		Msg("Room created")
	return r
}

func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms snapshots the live rooms, for listings.
func (m *Manager) Rooms() []*Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Close stops every room loop and waits for them to drain. In-progress
// games are cancelled with stakes refunded.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
