// Package scoring computes 10-point-must round scores from merged event sets.
package scoring

import (
	"math"
	"strconv"

	"github.com/fightcard/ringside/internal/domain/model"
)

// Engine is a pure round scorer. It never mutates its inputs and holds no
// mutable state, so concurrent calls are safe and recomputation with the
// same event set yields identical output. ComputedAt is stamped by the
// caller after the fact, keeping the computation itself deterministic.
type Engine struct {
	policy Policy
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPolicy replaces the whole judging policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p.Version != "" && len(p.Deltas) > 0 {
			e.policy = p
		}
	}
}

// WithDeltaOverrides replaces individual delta table rows on top of the
// current policy.
func WithDeltaOverrides(rows map[DeltaKey]Delta) Option {
	return func(e *Engine) {
		for k, v := range rows {
			e.policy.Deltas[k] = v
		}
	}
}

// WithCardThresholds overrides the |delta| -> card boundaries.
func WithCardThresholds(drawMargin, tenEight, tenSeven float64) Option {
	return func(e *Engine) {
		if drawMargin >= 0 && tenEight > drawMargin && tenSeven > tenEight {
			e.policy.DrawMargin = drawMargin
			e.policy.TenEightThreshold = tenEight
			e.policy.TenSevenThreshold = tenSeven
		}
	}
}

// NewEngine creates a scoring engine with the default policy.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns a copy of the active judging policy.
func (e *Engine) Policy() Policy { return e.policy }

// tally accumulates one side's scoring state during a pass over the events.
type tally struct {
	categories    map[model.Category]float64
	categoryCount map[model.Category]int
	controlPoints float64
	strikeCount   int
	finishThreats int
}

func newTally() *tally {
	return &tally{
		categories:    make(map[model.Category]float64),
		categoryCount: make(map[model.Category]int),
	}
}

// ComputeRoundScore converts a merged, ordered event set into a round score
// card. The caller passes the merged view for one (bout, round); tombstones
// and tombstoned events are filtered here as well so a raw log slice is
// also acceptable.
func (e *Engine) ComputeRoundScore(events []model.Event, roundDurationSeconds int) (model.RoundScore, error) {
	scored := filterTombstoned(events)
	if len(scored) == 0 {
		return model.RoundScore{}, ErrInsufficientData
	}

	p := &e.policy
	sides := map[model.Side]*tally{
		model.SideA: newTally(),
		model.SideB: newTally(),
	}

	for i := range scored {
		ev := &scored[i]
		t := sides[ev.Side]
		if t == nil {
			continue
		}

		switch ev.Type {
		case model.EventGroundControl, model.EventClinchControl:
			rate := p.GroundControlPerSecond
			if ev.Type == model.EventClinchControl {
				rate = p.ClinchControlPerSecond
			}
			secs := float64(ev.ControlSeconds())
			if roundDurationSeconds > 0 && secs > float64(roundDurationSeconds) {
				secs = float64(roundDurationSeconds)
			}
			points := secs * rate
			if remaining := p.ControlCapPerRound - t.controlPoints; points > remaining {
				points = math.Max(0, remaining)
			}
			t.controlPoints += points
			t.categories[model.CategoryGrapplingControl] += points
			t.categoryCount[model.CategoryGrapplingControl]++

		default:
			d, ok := p.delta(ev.Type, ev.Tier)
			if !ok {
				continue
			}
			t.categories[d.Category] += d.Points
			t.categoryCount[d.Category]++
		}

		if ev.Type.IsStrike() {
			t.strikeCount++
		}
		if ev.Tier == model.TierNearFinish &&
			(ev.Type == model.EventKnockdown || ev.Type == model.EventSubmissionAttempt) {
			t.finishThreats++
		}
	}

	// Aggression accrues from strike volume, capped.
	for _, t := range sides {
		agg := math.Min(float64(t.strikeCount)*p.AggressionPerStrike, p.AggressionCap)
		if agg > 0 {
			t.categories[model.CategoryAggression] += agg
			t.categoryCount[model.CategoryAggression] += t.strikeCount
		}
	}

	a, b := sides[model.SideA], sides[model.SideB]
	var totalA, totalB float64
	breakdown := make([]model.CategoryScore, 0, 5)
	for _, cat := range model.Categories() {
		cs := model.CategoryScore{
			Category: cat,
			SideA:    a.categories[cat],
			SideB:    b.categories[cat],
			EventsA:  a.categoryCount[cat],
			EventsB:  b.categoryCount[cat],
		}
		totalA += cs.SideA
		totalB += cs.SideB
		breakdown = append(breakdown, cs)
	}

	delta := totalA - totalB
	magnitude := math.Abs(delta)

	winner, loserPoints := e.cardFromDelta(delta)

	// A drawn raw delta can still be claimed through a finish threat when
	// exactly one side holds one.
	if winner == model.WinnerDraw {
		switch {
		case a.finishThreats > 0 && b.finishThreats == 0:
			winner, loserPoints = model.WinnerA, 9
		case b.finishThreats > 0 && a.finishThreats == 0:
			winner, loserPoints = model.WinnerB, 9
		}
	}

	if winner != model.WinnerDraw {
		loserPoints = e.applyDominanceGates(winner, loserPoints, magnitude, a, b, breakdown)
	}

	score := model.RoundScore{
		Winner:         winner,
		DeltaMagnitude: magnitude,
		Breakdown:      breakdown,
		EventCount:     len(scored),
		PolicyVersion:  p.Version,
		Confidence:     e.confidence(magnitude, len(scored)),
	}
	switch winner {
	case model.WinnerA:
		score.FighterAPoints, score.FighterBPoints = 10, loserPoints
	case model.WinnerB:
		score.FighterAPoints, score.FighterBPoints = loserPoints, 10
	default:
		score.FighterAPoints, score.FighterBPoints = 10, 10
	}
	score.Card = cardString(score.FighterAPoints, score.FighterBPoints, winner)
	return score, nil
}

// cardFromDelta maps the signed net delta to a provisional winner and loser
// points via the fixed thresholds.
func (e *Engine) cardFromDelta(delta float64) (model.Winner, int) {
	p := &e.policy
	magnitude := math.Abs(delta)
	if magnitude <= p.DrawMargin {
		return model.WinnerDraw, 10
	}
	winner := model.WinnerA
	if delta < 0 {
		winner = model.WinnerB
	}
	switch {
	case magnitude >= p.TenSevenThreshold:
		return winner, 7
	case magnitude >= p.TenEightThreshold:
		return winner, 8
	default:
		return winner, 9
	}
}

// applyDominanceGates can only lower the loser's points (raise severity).
func (e *Engine) applyDominanceGates(winner model.Winner, loserPoints int, magnitude float64, a, b *tally, breakdown []model.CategoryScore) int {
	p := &e.policy

	win, lose := a, b
	if winner == model.WinnerB {
		win, lose = b, a
	}

	// Finish-threat gate: one near-finish event forces at least 10-8, two
	// or more force 10-7.
	switch {
	case win.finishThreats >= 2:
		loserPoints = minInt(loserPoints, 7)
	case win.finishThreats == 1:
		loserPoints = minInt(loserPoints, 8)
	}

	// One-sided control dominance.
	if win.controlPoints >= p.ControlDominanceFloor &&
		win.controlPoints >= p.ControlDominanceRatio*math.Max(lose.controlPoints, 1) {
		loserPoints = minInt(loserPoints, 8)
	}

	// Multi-category dominance.
	lead := 0
	for _, cs := range breakdown {
		winVal, loseVal := cs.SideA, cs.SideB
		if winner == model.WinnerB {
			winVal, loseVal = cs.SideB, cs.SideA
		}
		if winVal > loseVal {
			lead++
		}
	}
	if lead >= p.CategoryDominanceMin && magnitude >= p.CategoryDominanceGate {
		loserPoints = minInt(loserPoints, 8)
	}

	return loserPoints
}

// confidence bands the score by distance from the nearest card boundary and
// by sample size.
func (e *Engine) confidence(magnitude float64, eventCount int) model.ConfidenceBand {
	p := &e.policy
	margin := math.MaxFloat64
	for _, boundary := range []float64{p.DrawMargin, p.TenEightThreshold, p.TenSevenThreshold} {
		if d := math.Abs(magnitude - boundary); d < margin {
			margin = d
		}
	}
	switch {
	case eventCount < p.MinSampleSize || margin <= p.LowConfidenceMargin:
		return model.ConfidenceLow
	case margin > p.HighConfidenceMargin:
		return model.ConfidenceHigh
	default:
		return model.ConfidenceMedium
	}
}

// filterTombstoned drops tombstone events and the events they target.
func filterTombstoned(events []model.Event) []model.Event {
	dead := make(map[string]struct{})
	for i := range events {
		if events[i].IsTombstone() {
			dead[events[i].TombstonedEventID()] = struct{}{}
		}
	}
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if events[i].IsTombstone() {
			continue
		}
		if _, gone := dead[events[i].EventID]; gone {
			continue
		}
		out = append(out, events[i])
	}
	return out
}

// cardString renders the card winner-first, e.g. "10-9".
func cardString(a, b int, winner model.Winner) string {
	if winner == model.WinnerB {
		return strconv.Itoa(b) + "-" + strconv.Itoa(a)
	}
	return strconv.Itoa(a) + "-" + strconv.Itoa(b)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
