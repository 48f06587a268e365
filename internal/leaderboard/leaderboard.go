// Package leaderboard maintains a derived ranking of users by ELO: a
// sorted set for ordering plus a per-user profile hash, served from Redis
// in production and from memory in tests. The persistent store stays the
// source of truth; the projection is rebuilt from it whenever they drift.
package leaderboard

import (
	"context"
	"errors"
)

const (
	// ScoreKey is the sorted set holding userID -> ELO.
	ScoreKey = "leaderboard:elo"

	profilePrefix = "leaderboard:user:"
)

// ErrMemberMissing is returned for rank lookups of users not in the set.
var ErrMemberMissing = errors.New("leaderboard: member missing")

// Member is one sorted-set element.
type Member struct {
	ID    string
	Score float64
}

// Store is the minimal sorted-set + hash surface the projection needs.
// Implementations must provide per-key atomicity for single operations.
type Store interface {
	SortedSetAdd(ctx context.Context, key, member string, score float64) error
	SortedSetRemove(ctx context.Context, key, member string) error
	// SortedSetRangeByRankDesc returns members ordered by descending
	// score; start and stop are inclusive zero-based ranks.
	SortedSetRangeByRankDesc(ctx context.Context, key string, start, stop int64) ([]Member, error)
	// SortedSetRankDesc is the zero-based descending rank, or
	// ErrMemberMissing.
	SortedSetRankDesc(ctx context.Context, key, member string) (int64, error)
	SortedSetLength(ctx context.Context, key string) (int64, error)
	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	Delete(ctx context.Context, key string) error
}

func profileKey(userID string) string {
	return profilePrefix + userID
}
