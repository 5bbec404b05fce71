package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/fightcard/ringside/internal/domain/model"
)

// BoutStore keeps per-bout state: the bout record itself, canonical round
// scores, judge locks and the finalized result. Round scores overwrite on
// recompute; the previous value is preserved by the caller in the audit
// log, not here.
type BoutStore struct {
	mu      sync.RWMutex
	bouts   map[string]model.Bout
	scores  map[string]map[int]model.RoundScore
	locks   map[string]map[int]map[string]model.JudgeLock
	results map[string]model.FightResult
}

// NewBoutStore constructs an empty bout store.
func NewBoutStore() *BoutStore {
	return &BoutStore{
		bouts:   make(map[string]model.Bout),
		scores:  make(map[string]map[int]model.RoundScore),
		locks:   make(map[string]map[int]map[string]model.JudgeLock),
		results: make(map[string]model.FightResult),
	}
}

// CreateBout stores a new bout. Returns ErrBoutExists on id collision.
func (s *BoutStore) CreateBout(ctx context.Context, b model.Bout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bouts[b.BoutID]; ok {
		return ErrBoutExists
	}
	s.bouts[b.BoutID] = b
	return nil
}

// GetBout returns a bout by id.
func (s *BoutStore) GetBout(ctx context.Context, boutID string) (model.Bout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bouts[boutID]
	if !ok {
		return model.Bout{}, ErrBoutNotFound
	}
	return b, nil
}

// UpdateBout applies fn to the stored bout under the store lock. The bout
// is mutated only through defined lifecycle transitions, all of which go
// through here.
func (s *BoutStore) UpdateBout(ctx context.Context, boutID string, fn func(*model.Bout)) (model.Bout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bouts[boutID]
	if !ok {
		return model.Bout{}, ErrBoutNotFound
	}
	fn(&b)
	s.bouts[boutID] = b
	return b, nil
}

// BoutCount returns the number of tracked bouts.
func (s *BoutStore) BoutCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bouts)
}

// PutRoundScore stores the canonical score for a round, overwriting any
// previous computation. Returns the prior score and whether one existed.
func (s *BoutStore) PutRoundScore(ctx context.Context, score model.RoundScore) (model.RoundScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds, ok := s.scores[score.BoutID]
	if !ok {
		rounds = make(map[int]model.RoundScore)
		s.scores[score.BoutID] = rounds
	}
	prev, had := rounds[score.Round]
	rounds[score.Round] = score
	return prev, had
}

// GetRoundScore returns the canonical score for one round.
func (s *BoutStore) GetRoundScore(ctx context.Context, boutID string, round int) (model.RoundScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[boutID][round]
	if !ok {
		return model.RoundScore{}, ErrScoreNotFound
	}
	return score, nil
}

// RoundScores returns all computed scores for a bout keyed by round.
func (s *BoutStore) RoundScores(ctx context.Context, boutID string) map[int]model.RoundScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]model.RoundScore, len(s.scores[boutID]))
	for round, score := range s.scores[boutID] {
		out[round] = score
	}
	return out
}

// PutJudgeLock stores a judge's lock for a round. A lock is immutable once
// written: a second write for the same (judge, round) fails with
// ErrLockExists.
func (s *BoutStore) PutJudgeLock(ctx context.Context, lock model.JudgeLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds, ok := s.locks[lock.BoutID]
	if !ok {
		rounds = make(map[int]map[string]model.JudgeLock)
		s.locks[lock.BoutID] = rounds
	}
	judges, ok := rounds[lock.Round]
	if !ok {
		judges = make(map[string]model.JudgeLock)
		rounds[lock.Round] = judges
	}
	if _, locked := judges[lock.JudgeID]; locked {
		return ErrLockExists
	}
	judges[lock.JudgeID] = lock
	return nil
}

// RemoveJudgeLock deletes a judge's lock so the judge can re-score. Only
// the supervisor-approved unlock path calls this.
func (s *BoutStore) RemoveJudgeLock(ctx context.Context, boutID string, round int, judgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	judges, ok := s.locks[boutID][round]
	if !ok {
		return ErrLockNotFound
	}
	if _, locked := judges[judgeID]; !locked {
		return ErrLockNotFound
	}
	delete(judges, judgeID)
	return nil
}

// JudgeLocks returns the locks for one round, ordered by judge id so
// repeated polls see a stable listing.
func (s *BoutStore) JudgeLocks(ctx context.Context, boutID string, round int) []model.JudgeLock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLocks(s.locks[boutID][round])
}

// AllJudgeLocks returns every lock for a bout keyed by round, each round
// ordered by judge id.
func (s *BoutStore) AllJudgeLocks(ctx context.Context, boutID string) map[int][]model.JudgeLock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]model.JudgeLock, len(s.locks[boutID]))
	for round, judges := range s.locks[boutID] {
		out[round] = sortedLocks(judges)
	}
	return out
}

func sortedLocks(judges map[string]model.JudgeLock) []model.JudgeLock {
	out := make([]model.JudgeLock, 0, len(judges))
	for _, lock := range judges {
		out = append(out, lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JudgeID < out[j].JudgeID })
	return out
}

// PutResult stores the finalized fight result if absent and returns the
// stored value. Finalize is idempotent: a second call gets the first
// result back unchanged.
func (s *BoutStore) PutResult(ctx context.Context, r model.FightResult) model.FightResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.results[r.BoutID]; ok {
		return existing
	}
	s.results[r.BoutID] = r
	return r
}

// GetResult returns the finalized result if present.
func (s *BoutStore) GetResult(ctx context.Context, boutID string) (model.FightResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[boutID]
	return r, ok
}
