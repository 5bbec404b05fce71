package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/internal/domain/model"
	"github.com/fightcard/ringside/pkg/logger"
	"github.com/fightcard/ringside/pkg/metrics"
)

// boutState is the per-bout unit of synchronization. Operations on
// different bouts never contend; scoring, judge locks and advance votes
// for one bout serialize on this mutex.
type boutState struct {
	mu          sync.Mutex
	roundStates map[int]model.RoundState
	barriers    map[int]*barrier
}

func newBoutState() *boutState {
	return &boutState{
		roundStates: make(map[int]model.RoundState),
		barriers:    make(map[int]*barrier),
	}
}

// roundState returns the recorded state, defaulting to OPEN.
func (st *boutState) roundState(round int) model.RoundState {
	if rs, ok := st.roundStates[round]; ok {
		return rs
	}
	return model.RoundOpen
}

// AdvanceResult is handed to every waiter released from the barrier.
type AdvanceResult struct {
	Round      int              `json:"round"`
	NextRound  int              `json:"next_round"`
	Score      model.RoundScore `json:"score"`
	Overridden bool             `json:"overridden"`
}

// barrier is the per-round rendezvous for device advance votes. All
// waiters receive the same result atomically via the closed channel.
type barrier struct {
	votes  map[string]struct{}
	done   chan struct{}
	result AdvanceResult
	closed bool
}

func newBarrier() *barrier {
	return &barrier{
		votes: make(map[string]struct{}),
		done:  make(chan struct{}),
	}
}

// ComputeRound runs the scoring engine over the round's merged events.
// Serialized per bout: a concurrent second call resolves to the cached
// canonical score instead of recomputing. force=true recomputes and
// preserves the previous value in the audit log.
func (s *Service) ComputeRound(ctx context.Context, boutID string, round int, force bool) (model.RoundScore, bool, error) {
	bout, err := s.bouts.GetBout(ctx, boutID)
	if err != nil {
		return model.RoundScore{}, false, err
	}
	if round < 1 || round > bout.TotalRounds {
		return model.RoundScore{}, false, fmt.Errorf("%w: round %d of %d", ErrRoundOutOfRange, round, bout.TotalRounds)
	}

	st := s.state(boutID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return s.computeLocked(ctx, st, bout, round, force, "")
}

// computeLocked does the actual computation. Caller holds st.mu.
func (s *Service) computeLocked(ctx context.Context, st *boutState, bout model.Bout, round int, force bool, actor string) (model.RoundScore, bool, error) {
	if !force {
		if cached, err := s.bouts.GetRoundScore(ctx, bout.BoutID, round); err == nil {
			return cached, true, nil
		}
	}

	prevState := st.roundState(round)
	st.roundStates[round] = model.RoundComputing

	start := time.Now()
	merged := s.events.Merged(ctx, bout.BoutID, round)
	score, err := s.engine.ComputeRoundScore(merged, s.roundDurationSeconds)
	if err != nil {
		st.roundStates[round] = prevState
		return model.RoundScore{}, false, err
	}
	metrics.RecordComputeDuration(float64(time.Since(start).Milliseconds()))

	score.BoutID = bout.BoutID
	score.Round = round
	score.ComputedAt = s.now()

	prev, had := s.bouts.PutRoundScore(ctx, score)
	if prevState == model.RoundOpen || prevState == model.RoundComputing {
		st.roundStates[round] = model.RoundScored
	} else {
		st.roundStates[round] = prevState
	}

	action := audit.ActionRoundComputed
	data := map[string]string{
		"bout_id":     bout.BoutID,
		"round":       strconv.Itoa(round),
		"card":        score.Card,
		"winner":      string(score.Winner),
		"event_count": strconv.Itoa(score.EventCount),
		"policy":      score.PolicyVersion,
	}
	if had {
		// The overwritten value survives here, per the recompute contract.
		action = audit.ActionRoundRecomputed
		data["previous_card"] = prev.Card
		data["previous_winner"] = string(prev.Winner)
	}
	s.auditLog.Append(ctx, action, audit.ResourceRound, roundResourceID(bout.BoutID, round), actor, "", data)

	metrics.RecordRoundComputed()
	s.publish(ctx, bout.BoutID, "round_computed", score)
	s.publish(ctx, bout.BoutID, "score_update", s.roundsViewLocked(ctx, bout))
	return score, false, nil
}

// LockJudgeScore writes one judge's immutable score for a round and
// reports whether every registered judge has now locked it.
func (s *Service) LockJudgeScore(ctx context.Context, lock model.JudgeLock) (bool, error) {
	bout, err := s.bouts.GetBout(ctx, lock.BoutID)
	if err != nil {
		return false, err
	}
	if lock.Round < 1 || lock.Round > bout.TotalRounds {
		return false, fmt.Errorf("%w: round %d of %d", ErrRoundOutOfRange, lock.Round, bout.TotalRounds)
	}
	if !judgeRegistered(bout, lock.JudgeID) {
		return false, ErrJudgeNotRegistered
	}

	st := s.state(lock.BoutID)
	st.mu.Lock()
	defer st.mu.Unlock()

	lock.LockedAt = s.now()
	if err := s.bouts.PutJudgeLock(ctx, lock); err != nil {
		return false, err
	}

	metrics.RecordJudgeLock()
	s.auditLog.Append(ctx, audit.ActionJudgeLocked, audit.ResourceJudge, roundResourceID(lock.BoutID, lock.Round), lock.JudgeID, lock.JudgeName, map[string]string{
		"bout_id": lock.BoutID,
		"round":   strconv.Itoa(lock.Round),
		"card":    lock.Card,
		"scores":  fmt.Sprintf("%d-%d", lock.FighterAScore, lock.FighterBScore),
	})

	locks := s.bouts.JudgeLocks(ctx, lock.BoutID, lock.Round)
	allLocked := len(bout.Judges) > 0 && len(locks) == len(bout.Judges)
	if allLocked {
		st.roundStates[lock.Round] = model.RoundLockedFull
		s.publish(ctx, lock.BoutID, "all_judges_locked", map[string]any{
			"bout_id": lock.BoutID,
			"round":   lock.Round,
			"locks":   locks,
		})
	} else if st.roundState(lock.Round) != model.RoundAdvanced {
		st.roundStates[lock.Round] = model.RoundLockedPartial
	}
	s.publish(ctx, lock.BoutID, "judge_locked", lock)
	return allLocked, nil
}

// UnlockJudgeScore removes a judge's lock so the judge can re-score. The
// caller must already have passed supervisor authorization; the unlock is
// itself audited.
func (s *Service) UnlockJudgeScore(ctx context.Context, boutID string, round int, judgeID, supervisorID string) error {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return err
	}

	st := s.state(boutID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.bouts.RemoveJudgeLock(ctx, boutID, round, judgeID); err != nil {
		return err
	}

	metrics.RecordJudgeUnlock()
	s.auditLog.Append(ctx, audit.ActionJudgeUnlocked, audit.ResourceJudge, roundResourceID(boutID, round), supervisorID, "", map[string]string{
		"bout_id": boutID,
		"round":   strconv.Itoa(round),
		"judge":   judgeID,
	})

	// Full lock can no longer hold.
	if st.roundState(round) == model.RoundLockedFull {
		if len(s.bouts.JudgeLocks(ctx, boutID, round)) > 0 {
			st.roundStates[round] = model.RoundLockedPartial
		} else if _, err := s.bouts.GetRoundScore(ctx, boutID, round); err == nil {
			st.roundStates[round] = model.RoundScored
		} else {
			st.roundStates[round] = model.RoundOpen
		}
	}
	s.publish(ctx, boutID, "judge_unlocked", map[string]any{
		"bout_id": boutID,
		"round":   round,
		"judge":   judgeID,
	})
	return nil
}

// JudgeScores returns every lock for a bout keyed by round.
func (s *Service) JudgeScores(ctx context.Context, boutID string) (map[int][]model.JudgeLock, error) {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return nil, err
	}
	return s.bouts.AllJudgeLocks(ctx, boutID), nil
}

// RequestNextRound is the device-side round-advance barrier. The caller
// blocks until every currently-active device for the bout has requested
// advance for the same round, then every waiter receives the identical
// result. A device that stops heartbeating blocks the barrier until a
// supervisor force-advances; the per-call timeout surfaces that condition
// as ErrStaleDevice instead of hanging the client forever.
func (s *Service) RequestNextRound(ctx context.Context, boutID, deviceID string) (AdvanceResult, error) {
	bout, err := s.bouts.GetBout(ctx, boutID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if bout.Status == model.BoutCompleted {
		return AdvanceResult{}, ErrBoutCompleted
	}
	if _, ok := s.registry.get(boutID, deviceID); !ok {
		return AdvanceResult{}, ErrDeviceNotRegistered
	}

	round := bout.CurrentRound
	st := s.state(boutID)

	st.mu.Lock()
	bar, ok := st.barriers[round]
	if !ok {
		bar = newBarrier()
		st.barriers[round] = bar
	}
	if bar.closed {
		result := bar.result
		st.mu.Unlock()
		return result, nil
	}

	bar.votes[deviceID] = struct{}{}
	s.registry.setReady(boutID, deviceID, true)
	s.registry.heartbeat(boutID, deviceID)

	if s.barrierSatisfiedLocked(boutID, bar) {
		result, err := s.advanceLocked(ctx, st, bout, round, bar, false, deviceID, nil)
		st.mu.Unlock()
		return result, err
	}
	st.mu.Unlock()

	metrics.IncBarrierWaiters()
	defer metrics.DecBarrierWaiters()

	timer := time.NewTimer(s.barrierTimeout)
	defer timer.Stop()

	select {
	case <-bar.done:
		return bar.result, nil
	case <-ctx.Done():
		return AdvanceResult{}, fmt.Errorf("next round wait: %w", ctx.Err())
	case <-timer.C:
		outstanding := s.outstandingDevices(boutID, bar)
		return AdvanceResult{}, fmt.Errorf("%w: waiting on [%s]", ErrStaleDevice, strings.Join(outstanding, ", "))
	}
}

// ForceAdvance is the supervisor override for a barrier blocked by a
// non-responsive device. The override and the devices it skipped are
// recorded in the audit log.
func (s *Service) ForceAdvance(ctx context.Context, boutID, supervisorID string) (AdvanceResult, error) {
	bout, err := s.bouts.GetBout(ctx, boutID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if bout.Status == model.BoutCompleted {
		return AdvanceResult{}, ErrBoutCompleted
	}

	round := bout.CurrentRound
	st := s.state(boutID)
	st.mu.Lock()
	defer st.mu.Unlock()

	bar, ok := st.barriers[round]
	if !ok {
		bar = newBarrier()
		st.barriers[round] = bar
	}
	if bar.closed {
		return bar.result, nil
	}

	skipped := s.outstandingDevices(boutID, bar)
	metrics.RecordBarrierOverride()
	return s.advanceLocked(ctx, st, bout, round, bar, true, supervisorID, skipped)
}

// barrierSatisfiedLocked reports whether the votes cover every
// currently-active device. Stale devices are excluded from consensus;
// a bout with no active devices never self-advances.
func (s *Service) barrierSatisfiedLocked(boutID string, bar *barrier) bool {
	active := s.registry.activeDevices(boutID)
	if len(active) == 0 {
		return false
	}
	for _, id := range active {
		if _, voted := bar.votes[id]; !voted {
			return false
		}
	}
	return true
}

// outstandingDevices names registered devices that have not voted.
func (s *Service) outstandingDevices(boutID string, bar *barrier) []string {
	out := make([]string, 0, 4)
	for _, sess := range s.registry.boutSessions(boutID) {
		if _, voted := bar.votes[sess.DeviceID]; !voted {
			out = append(out, sess.DeviceID)
		}
	}
	return out
}

// advanceLocked computes the round (if needed), advances the bout and
// releases every waiter with the same result. Caller holds st.mu.
func (s *Service) advanceLocked(ctx context.Context, st *boutState, bout model.Bout, round int, bar *barrier, overridden bool, actor string, skipped []string) (AdvanceResult, error) {
	score, _, err := s.computeLocked(ctx, st, bout, round, false, actor)
	if err != nil {
		// No partial advance: the barrier stays open and the caller sees
		// why the round cannot close.
		return AdvanceResult{}, err
	}

	nextRound := round
	if round < bout.TotalRounds {
		nextRound = round + 1
	}
	updated, err := s.bouts.UpdateBout(ctx, bout.BoutID, func(b *model.Bout) {
		b.CurrentRound = nextRound
	})
	if err != nil {
		return AdvanceResult{}, err
	}

	st.roundStates[round] = model.RoundAdvanced
	s.registry.clearReady(bout.BoutID)

	bar.result = AdvanceResult{
		Round:      round,
		NextRound:  updated.CurrentRound,
		Score:      score,
		Overridden: overridden,
	}
	bar.closed = true
	close(bar.done)

	data := map[string]string{
		"bout_id":    bout.BoutID,
		"round":      strconv.Itoa(round),
		"next_round": strconv.Itoa(updated.CurrentRound),
		"card":       score.Card,
	}
	s.auditLog.Append(ctx, audit.ActionRoundAdvanced, audit.ResourceRound, roundResourceID(bout.BoutID, round), actor, "", data)
	if overridden {
		s.auditLog.Append(ctx, audit.ActionBarrierOverride, audit.ResourceRound, roundResourceID(bout.BoutID, round), actor, "", map[string]string{
			"bout_id":         bout.BoutID,
			"round":           strconv.Itoa(round),
			"skipped_devices": strings.Join(skipped, ","),
		})
		s.publish(ctx, bout.BoutID, "barrier_overridden", bar.result)
	}
	s.publish(ctx, bout.BoutID, "round_advanced", bar.result)

	s.logger.Info(ctx, "round advanced",
		logger.String("boutID", bout.BoutID),
		logger.Int("round", round),
		logger.Bool("overridden", overridden),
	)
	return bar.result, nil
}

// FinalizeFight sums the locked/computed rounds into fighter totals and
// completes the bout. Idempotent: a second call returns the stored result
// without re-summing.
func (s *Service) FinalizeFight(ctx context.Context, boutID string) (model.FightResult, error) {
	bout, err := s.bouts.GetBout(ctx, boutID)
	if err != nil {
		return model.FightResult{}, err
	}

	st := s.state(boutID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := s.bouts.GetResult(ctx, boutID); ok {
		return existing, nil
	}

	scores := s.bouts.RoundScores(ctx, boutID)
	missing := make([]string, 0)
	for round := 1; round <= bout.TotalRounds; round++ {
		if _, ok := scores[round]; !ok {
			missing = append(missing, strconv.Itoa(round))
		}
	}
	if len(missing) > 0 {
		return model.FightResult{}, fmt.Errorf("%w: rounds [%s]", ErrIncompleteRounds, strings.Join(missing, ", "))
	}

	var totalA, totalB int
	for round := 1; round <= bout.TotalRounds; round++ {
		totalA += scores[round].FighterAPoints
		totalB += scores[round].FighterBPoints
	}

	result := model.FightResult{
		BoutID:    boutID,
		FinalRed:  totalA,
		FinalBlue: totalB,
		DecidedAt: s.now(),
	}
	switch {
	case totalA > totalB:
		result.Winner, result.WinnerName = model.WinnerA, bout.Fighter1
	case totalB > totalA:
		result.Winner, result.WinnerName = model.WinnerB, bout.Fighter2
	default:
		result.Winner, result.WinnerName = model.WinnerDraw, ""
	}
	result = s.bouts.PutResult(ctx, result)

	if _, err := s.bouts.UpdateBout(ctx, boutID, func(b *model.Bout) {
		b.Status = model.BoutCompleted
	}); err != nil {
		return model.FightResult{}, err
	}

	metrics.RecordFightFinalized()
	s.auditLog.Append(ctx, audit.ActionFightFinalized, audit.ResourceBout, boutID, "", "", map[string]string{
		"final_red":  strconv.Itoa(result.FinalRed),
		"final_blue": strconv.Itoa(result.FinalBlue),
		"winner":     string(result.Winner),
	})
	s.publish(ctx, boutID, "fight_finalized", result)
	return result, nil
}

// sortedRounds returns the computed scores ordered by round number.
func sortedRounds(scores map[int]model.RoundScore) []model.RoundScore {
	rounds := make([]int, 0, len(scores))
	for round := range scores {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)
	out := make([]model.RoundScore, 0, len(rounds))
	for _, round := range rounds {
		out = append(out, scores[round])
	}
	return out
}

func judgeRegistered(bout model.Bout, judgeID string) bool {
	for _, j := range bout.Judges {
		if j.JudgeID == judgeID {
			return true
		}
	}
	return false
}

func roundResourceID(boutID string, round int) string {
	return boutID + "/round/" + strconv.Itoa(round)
}
