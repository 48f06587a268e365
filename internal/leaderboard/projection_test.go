package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okeynet/okeyd/internal/store"
)

func openUsers(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func addUser(t *testing.T, st *store.Store, id string, elo, played, won int) *store.User {
	t.Helper()
	u := &store.User{
		ID:          id,
		Username:    id,
		DisplayName: "Player " + id,
		EloScore:    elo,
		HighestElo:  elo,
		GamesPlayed: played,
		GamesWon:    won,
		IsActive:    true,
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.Users().Add(context.Background(), u))
	return u
}

func newProjection(t *testing.T) (*Projection, *store.Store) {
	t.Helper()
	st := openUsers(t)
	return NewProjection(NewMemoryStore(), st.Users(), zerolog.Nop()), st
}

func TestSetAndTopN(t *testing.T) {
	p, st := newProjection(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, addUser(t, st, "alice", 1400, 10, 6)))
	require.NoError(t, p.Set(ctx, addUser(t, st, "bob", 1200, 4, 1)))
	require.NoError(t, p.Set(ctx, addUser(t, st, "carol", 1600, 20, 15)))

	top, err := p.TopN(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "carol", top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 1600, top[0].Elo)
	assert.Equal(t, "Player carol", top[0].DisplayName)
	assert.Equal(t, 20, top[0].GamesPlayed)
	assert.InDelta(t, 0.75, top[0].WinRate, 1e-9)
	assert.Equal(t, "alice", top[1].UserID)
	assert.Equal(t, 2, top[1].Rank)
}

func TestRankAndNeighbors(t *testing.T) {
	p, st := newProjection(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, p.Set(ctx, addUser(t, st, id, 1500-i*100, 1, 0)))
	}

	rank, err := p.Rank(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, rank)

	_, err = p.Rank(ctx, "nobody")
	assert.ErrorIs(t, err, ErrMemberMissing)

	rows, err := p.WithNeighbors(ctx, "c", 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "b", rows[0].UserID)
	assert.Equal(t, "c", rows[1].UserID)
	assert.Equal(t, "d", rows[2].UserID)

	// Radius beyond the edges is clipped.
	rows, err = p.WithNeighbors(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Rank)
}

func TestUpdateOverwritesScore(t *testing.T) {
	p, st := newProjection(t)
	ctx := context.Background()
	u := addUser(t, st, "alice", 1200, 1, 0)

	require.NoError(t, p.Set(ctx, u))
	u.EloScore = 1300
	u.GamesPlayed = 2
	u.GamesWon = 1
	require.NoError(t, p.Set(ctx, u))

	n, err := p.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	top, err := p.TopN(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1300, top[0].Elo)
	assert.InDelta(t, 0.5, top[0].WinRate, 1e-9)
}

func TestRemove(t *testing.T) {
	p, st := newProjection(t)
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, addUser(t, st, "alice", 1200, 1, 0)))

	require.NoError(t, p.Remove(ctx, "alice"))
	_, err := p.Rank(ctx, "alice")
	assert.ErrorIs(t, err, ErrMemberMissing)
}

func TestSyncFromStore(t *testing.T) {
	p, st := newProjection(t)
	ctx := context.Background()
	addUser(t, st, "alice", 1400, 10, 5)
	addUser(t, st, "bob", 1100, 3, 0)
	inactive := addUser(t, st, "ghost", 2000, 1, 1)
	inactive.IsActive = false
	require.NoError(t, st.Users().Update(ctx, inactive))

	require.NoError(t, p.SyncFromStore(ctx))

	top, err := p.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].UserID)
}

// failingStore errors on everything, forcing the fallback path.
type failingStore struct{}

var errDown = errors.New("connection refused")

func (failingStore) SortedSetAdd(context.Context, string, string, float64) error { return errDown }
func (failingStore) SortedSetRemove(context.Context, string, string) error       { return errDown }
func (failingStore) SortedSetRangeByRankDesc(context.Context, string, int64, int64) ([]Member, error) {
	return nil, errDown
}
func (failingStore) SortedSetRankDesc(context.Context, string, string) (int64, error) {
	return 0, errDown
}
func (failingStore) SortedSetLength(context.Context, string) (int64, error) { return 0, errDown }
func (failingStore) HashSet(context.Context, string, map[string]string) error {
	return errDown
}
func (failingStore) HashGetAll(context.Context, string) (map[string]string, error) {
	return nil, errDown
}
func (failingStore) Delete(context.Context, string) error { return errDown }

func TestFallbackToPersistentStore(t *testing.T) {
	st := openUsers(t)
	ctx := context.Background()
	addUser(t, st, "alice", 1400, 10, 5)
	addUser(t, st, "bob", 1100, 3, 0)

	p := NewProjection(failingStore{}, st.Users(), zerolog.Nop())

	top, err := p.TopN(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)

	rank, err := p.Rank(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, rank)

	_, err = p.Rank(ctx, "nobody")
	assert.ErrorIs(t, err, ErrMemberMissing)
}

func TestReconcilerResyncs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st := openUsers(t)
	addUser(t, st, "alice", 1400, 10, 5)
	p := NewProjection(NewMemoryStore(), st.Users(), zerolog.Nop())

	mock := quartz.NewMock(t)
	rec := NewReconciler(p, mock, time.Minute, zerolog.Nop())

	trap := mock.Trap().NewTicker()
	defer trap.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- rec.Run(runCtx) }()
	trap.MustWait(ctx).MustRelease(ctx)

	mock.Advance(time.Minute).MustWait(ctx)
	require.Eventually(t, func() bool {
		n, err := p.Length(ctx)
		return err == nil && n == 1
	}, 5*time.Second, 10*time.Millisecond)

	stop()
	assert.ErrorIs(t, <-done, context.Canceled)
}
