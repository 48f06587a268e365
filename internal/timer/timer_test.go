package timer

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for timer event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected timer event: %+v", ev)
	default:
	}
}

func startTimer(t *testing.T, d time.Duration) (*quartz.Mock, *TurnTimer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mock := quartz.NewMock(t)
	tt := New(mock, zerolog.Nop())

	trap := mock.Trap().NewTicker()
	defer trap.Close()

	tt.Start("p1", 1, d)
	trap.MustWait(ctx).MustRelease(ctx)
	return mock, tt
}

func advance(t *testing.T, mock *quartz.Mock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < int(d/time.Second); i++ {
		mock.Advance(time.Second).MustWait(ctx)
	}
	// Let the countdown goroutine publish.
	time.Sleep(5 * time.Millisecond)
}

func TestTickScheduleAndTimeout(t *testing.T) {
	mock, tt := startTimer(t, 15*time.Second)

	// 14s remaining: above critical, not a multiple of five - silent.
	advance(t, mock, time.Second)
	assertNoEvent(t, tt.Events())

	// 10s remaining (after 5s): both a multiple of five and critical.
	advance(t, mock, 4*time.Second)
	ev := waitEvent(t, tt.Events())
	assert.Equal(t, EventTick, ev.Kind)
	assert.Equal(t, 10, ev.Remaining)
	assert.True(t, ev.Critical)

	// Every second below the threshold ticks.
	for want := 9; want >= 1; want-- {
		advance(t, mock, time.Second)
		ev = waitEvent(t, tt.Events())
		require.Equal(t, EventTick, ev.Kind)
		assert.Equal(t, want, ev.Remaining)
		assert.True(t, ev.Critical)
	}

	advance(t, mock, time.Second)
	ev = waitEvent(t, tt.Events())
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, "p1", ev.PlayerID)
	assert.Equal(t, 1, ev.TurnNumber)
}

func TestExtendPushesDeadline(t *testing.T) {
	mock, tt := startTimer(t, 15*time.Second)

	advance(t, mock, 5*time.Second)
	waitEvent(t, tt.Events()) // 10s tick

	tt.Extend(ReconnectExtension)

	// 5 more seconds in: would have been the critical run-down, but the
	// extension puts us at 10s remaining again.
	advance(t, mock, 5*time.Second)
	var last Event
	for {
		select {
		case last = <-tt.Events():
			continue
		default:
		}
		break
	}
	assert.Equal(t, EventTick, last.Kind)
	assert.Equal(t, 10, last.Remaining)
}

func TestStopIsIdempotent(t *testing.T) {
	mock, tt := startTimer(t, 15*time.Second)
	tt.Stop()
	tt.Stop()
	advance(t, mock, 20*time.Second)
	assertNoEvent(t, tt.Events())
}

func TestDurationClamped(t *testing.T) {
	mock, tt := startTimer(t, time.Second) // below MinDuration

	advance(t, mock, 4*time.Second)
	// Clamped to 5s: at 1s remaining we tick, not time out.
	ev := waitEvent(t, tt.Events())
	assert.Equal(t, EventTick, ev.Kind)

	advance(t, mock, time.Second)
	for {
		ev = waitEvent(t, tt.Events())
		if ev.Kind == EventTimeout {
			break
		}
	}
}

func TestRestartSupersedesPreviousCountdown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mock, tt := startTimer(t, 15*time.Second)

	trap := mock.Trap().NewTicker()
	defer trap.Close()
	tt.Start("p2", 2, 15*time.Second)
	trap.MustWait(ctx).MustRelease(ctx)
	// Let the superseded countdown goroutine observe its cancellation.
	time.Sleep(10 * time.Millisecond)

	advance(t, mock, 5*time.Second)
	ev := waitEvent(t, tt.Events())
	assert.Equal(t, "p2", ev.PlayerID, "events must come from the new countdown")
}
