// Package timer implements the per-room turn countdown. The timer is the
// only source of autonomous room transitions: ticks and timeouts surface
// as typed events the room loop consumes alongside player commands.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

const (
	// DefaultDuration is the standard turn length.
	DefaultDuration = 15 * time.Second

	// CriticalThreshold is when every remaining second is announced.
	CriticalThreshold = 10 * time.Second

	// MinDuration and MaxDuration bound configurable turn lengths.
	MinDuration = 5 * time.Second
	MaxDuration = 60 * time.Second

	// ReconnectExtension is added to a running turn when its player
	// reconnects.
	ReconnectExtension = 5 * time.Second
)

// EventKind discriminates timer events.
type EventKind int

const (
	EventTick EventKind = iota
	EventTimeout
)

// Event is delivered into the room loop.
type Event struct {
	Kind       EventKind
	PlayerID   string
	TurnNumber int
	Remaining  int // whole seconds
	Critical   bool
}

// TurnTimer runs at most one countdown at a time. Start replaces any
// active countdown; Stop is idempotent.
type TurnTimer struct {
	clock  quartz.Clock
	logger zerolog.Logger
	events chan Event

	mu       sync.Mutex
	cancel   context.CancelFunc
	deadline time.Time
	gen      int // invalidates events from superseded countdowns
}

// New creates a timer. Events are buffered so a briefly busy room loop
// never blocks the countdown goroutine.
func New(clock quartz.Clock, logger zerolog.Logger) *TurnTimer {
	return &TurnTimer{
		clock:  clock,
		logger: logger.With().Str("component", "turn_timer").Logger(),
		events: make(chan Event, 16),
	}
}

// Events is the channel the room loop selects on.
func (t *TurnTimer) Events() <-chan Event {
	return t.events
}

// Start begins a countdown for the given player's turn. Durations are
// clamped to [MinDuration, MaxDuration].
func (t *TurnTimer) Start(playerID string, turnNumber int, duration time.Duration) {
	if duration < MinDuration {
		duration = MinDuration
	}
	if duration > MaxDuration {
		duration = MaxDuration
	}

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.deadline = t.clock.Now().Add(duration)
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.logger.Debug().
		Str("player_id", playerID).
		Int("turn", turnNumber).
		Dur("duration", duration).
		Msg("Turn timer started")

	go t.run(ctx, gen, playerID, turnNumber)
}

// Stop cancels the active countdown, if any.
func (t *TurnTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Extend atomically pushes the deadline back, typically on reconnect.
func (t *TurnTimer) Extend(additional time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return
	}
	t.deadline = t.deadline.Add(additional)
}

func (t *TurnTimer) remaining(gen int) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return 0, false
	}
	return t.deadline.Sub(t.clock.Now()), true
}

func (t *TurnTimer) run(ctx context.Context, gen int, playerID string, turnNumber int) {
	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		left, ok := t.remaining(gen)
		if !ok {
			return
		}

		if left <= 0 {
			t.emit(ctx, Event{
				Kind:       EventTimeout,
				PlayerID:   playerID,
				TurnNumber: turnNumber,
			})
			t.Stop()
			return
		}

		secs := int((left + time.Second - 1) / time.Second)
		critical := left <= CriticalThreshold
		if critical || secs%5 == 0 {
			t.emit(ctx, Event{
				Kind:       EventTick,
				PlayerID:   playerID,
				TurnNumber: turnNumber,
				Remaining:  secs,
				Critical:   critical,
			})
		}
	}
}

func (t *TurnTimer) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}
