package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/okeynet/okeyd/internal/store"
)

// Entry is one leaderboard row as served to clients.
type Entry struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	Elo         int     `json:"elo"`
	GamesPlayed int     `json:"gamesPlayed"`
	WinRate     float64 `json:"winRate"`
}

// Fallback is the direct persistent-store path used when the projection
// store is unreachable. *store.UserRepo satisfies it.
type Fallback interface {
	TopByElo(ctx context.Context, n int) ([]*store.User, error)
	EloRank(ctx context.Context, id string) (int, error)
	CountActive(ctx context.Context) (int, error)
}

// Projection serves rank queries and absorbs post-settlement updates.
type Projection struct {
	store    Store
	fallback Fallback
	logger   zerolog.Logger
}

func NewProjection(st Store, fallback Fallback, logger zerolog.Logger) *Projection {
	return &Projection{
		store:    st,
		fallback: fallback,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
	}
}

// Set writes one user's score and profile.
func (p *Projection) Set(ctx context.Context, u *store.User) error {
	if err := p.store.SortedSetAdd(ctx, ScoreKey, u.ID, float64(u.EloScore)); err != nil {
		return fmt.Errorf("set score: %w", err)
	}
	fields := map[string]string{
		"username":    u.Username,
		"displayName": u.DisplayName,
		"gamesPlayed": strconv.Itoa(u.GamesPlayed),
		"winRate":     strconv.FormatFloat(u.WinRate(), 'f', 4, 64),
	}
	if err := p.store.HashSet(ctx, profileKey(u.ID), fields); err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}

// SetBatch writes several users, stopping at the first error.
func (p *Projection) SetBatch(ctx context.Context, users []*store.User) error {
	for _, u := range users {
		if err := p.Set(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops a user from the ranking and deletes their profile.
func (p *Projection) Remove(ctx context.Context, userID string) error {
	if err := p.store.SortedSetRemove(ctx, ScoreKey, userID); err != nil {
		return err
	}
	return p.store.Delete(ctx, profileKey(userID))
}

// TopN returns the n best-ranked users. If the projection store fails the
// query is served from the persistent store instead.
func (p *Projection) TopN(ctx context.Context, n int) ([]Entry, error) {
	entries, err := p.RangeByRank(ctx, 0, int64(n-1))
	if err != nil {
		p.logger.Warn().Err(err).Msg("Projection unavailable, serving top-N from store")
		return p.topNFromStore(ctx, n)
	}
	return entries, nil
}

// Rank returns the user's 1-based rank, falling back to the persistent
// store when the projection errors. Unranked users get ErrMemberMissing.
func (p *Projection) Rank(ctx context.Context, userID string) (int, error) {
	rank, err := p.store.SortedSetRankDesc(ctx, ScoreKey, userID)
	if err == nil {
		return int(rank) + 1, nil
	}
	if errors.Is(err, ErrMemberMissing) {
		return 0, ErrMemberMissing
	}
	p.logger.Warn().Err(err).Msg("Projection unavailable, serving rank from store")
	r, err := p.fallback.EloRank(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrMemberMissing
	}
	return r, err
}

// WithNeighbors returns the user's row with up to radius rows either side.
func (p *Projection) WithNeighbors(ctx context.Context, userID string, radius int) ([]Entry, error) {
	rank, err := p.store.SortedSetRankDesc(ctx, ScoreKey, userID)
	if err != nil {
		return nil, err
	}
	start := rank - int64(radius)
	if start < 0 {
		start = 0
	}
	return p.RangeByRank(ctx, start, rank+int64(radius))
}

// RangeByRank returns entries for the inclusive zero-based rank window.
func (p *Projection) RangeByRank(ctx context.Context, start, stop int64) ([]Entry, error) {
	members, err := p.store.SortedSetRangeByRankDesc(ctx, ScoreKey, start, stop)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(members))
	for i, m := range members {
		e := Entry{
			Rank:   int(start) + i + 1,
			UserID: m.ID,
			Elo:    int(m.Score),
		}
		profile, err := p.store.HashGetAll(ctx, profileKey(m.ID))
		if err != nil {
			return nil, err
		}
		e.Username = profile["username"]
		e.DisplayName = profile["displayName"]
		e.GamesPlayed, _ = strconv.Atoi(profile["gamesPlayed"])
		e.WinRate, _ = strconv.ParseFloat(profile["winRate"], 64)
		entries = append(entries, e)
	}
	return entries, nil
}

// Length is how many users are ranked.
func (p *Projection) Length(ctx context.Context) (int64, error) {
	return p.store.SortedSetLength(ctx, ScoreKey)
}

// SyncFromStore rebuilds the whole projection from the persistent store.
func (p *Projection) SyncFromStore(ctx context.Context) error {
	n, err := p.fallback.CountActive(ctx)
	if err != nil {
		return err
	}
	users, err := p.fallback.TopByElo(ctx, n)
	if err != nil {
		return err
	}
	if err := p.SetBatch(ctx, users); err != nil {
		return err
	}
	p.logger.Debug().Int("users", len(users)).Msg("Leaderboard synced from store")
	return nil
}

// UpdateAsync applies a post-settlement update off the room loop. A
// failure is logged and left for the reconciler; the game result is
// already durable.
func (p *Projection) UpdateAsync(users []*store.User) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.SetBatch(ctx, users); err != nil {
			p.logger.Error().Err(err).Msg("Leaderboard update failed, awaiting reconcile")
		}
	}()
}

func (p *Projection) topNFromStore(ctx context.Context, n int) ([]Entry, error) {
	users, err := p.fallback.TopByElo(ctx, n)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(users))
	for i, u := range users {
		entries[i] = Entry{
			Rank:        i + 1,
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Elo:         u.EloScore,
			GamesPlayed: u.GamesPlayed,
			WinRate:     u.WinRate(),
		}
	}
	return entries, nil
}

// Reconciler periodically re-syncs the projection from the persistent
// store, healing missed async updates.
type Reconciler struct {
	projection *Projection
	clock      quartz.Clock
	interval   time.Duration
	logger     zerolog.Logger
}

func NewReconciler(projection *Projection, clock quartz.Clock, interval time.Duration, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		projection: projection,
		clock:      clock,
		interval:   interval,
		logger:     logger.With().Str("component", "leaderboard_reconciler").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := r.projection.SyncFromStore(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Reconcile failed")
		}
	}
}
