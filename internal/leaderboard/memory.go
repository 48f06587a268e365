package leaderboard

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node deploys
// without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	sets   map[string]map[string]float64
	hashes map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:   make(map[string]map[string]float64),
		hashes: make(map[string]map[string]string),
	}
}

// sortedDesc snapshots a set ordered by descending score, ties by member
// id ascending to keep ranks stable.
func (s *MemoryStore) sortedDesc(key string) []Member {
	set := s.sets[key]
	members := make([]Member, 0, len(set))
	for id, score := range set {
		members = append(members, Member{ID: id, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].ID < members[j].ID
	})
	return members
}

func (s *MemoryStore) SortedSetAdd(_ context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[key]
	if set == nil {
		set = make(map[string]float64)
		s.sets[key] = set
	}
	set[member] = score
	return nil
}

func (s *MemoryStore) SortedSetRemove(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[key], member)
	return nil
}

func (s *MemoryStore) SortedSetRangeByRankDesc(_ context.Context, key string, start, stop int64) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.sortedDesc(key)
	n := int64(len(members))
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (s *MemoryStore) SortedSetRankDesc(_ context.Context, key, member string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, m := range s.sortedDesc(key) {
		if m.ID == member {
			return int64(i), nil
		}
	}
	return 0, ErrMemberMissing
}

func (s *MemoryStore) SortedSetLength(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

func (s *MemoryStore) HashSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hashes[key]
	if h == nil {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *MemoryStore) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	delete(s.hashes, key)
	return nil
}
