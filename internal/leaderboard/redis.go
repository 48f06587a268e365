package leaderboard

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the projection with a Redis sorted set and hashes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SortedSetAdd(ctx context.Context, key, member string, score float64) error {
	return s.client.ZAdd(ctx, key, redis.Z{Member: member, Score: score}).Err()
}

func (s *RedisStore) SortedSetRemove(ctx context.Context, key, member string) error {
	return s.client.ZRem(ctx, key, member).Err()
}

func (s *RedisStore) SortedSetRangeByRankDesc(ctx context.Context, key string, start, stop int64) ([]Member, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		members = append(members, Member{ID: id, Score: z.Score})
	}
	return members, nil
}

func (s *RedisStore) SortedSetRankDesc(ctx context.Context, key, member string) (int64, error) {
	rank, err := s.client.ZRevRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMemberMissing
	}
	return rank, err
}

func (s *RedisStore) SortedSetLength(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *RedisStore) HashSet(ctx context.Context, key string, fields map[string]string) error {
	return s.client.HSet(ctx, key, fields).Err()
}

func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
