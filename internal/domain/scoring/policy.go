// Package scoring computes 10-point-must round scores from merged event sets.
package scoring

import (
	"github.com/fightcard/ringside/internal/domain/model"
)

// DefaultPolicyVersion identifies the delta table shipped with this build.
// Historical rounds record the version they were computed with so they stay
// reproducible if weights change.
const DefaultPolicyVersion = "2025.1"

// Default judging policy constants. All of them are data, not code: the
// Policy carrying them is configurable and versioned.
const (
	defaultDrawMargin        = 3.0
	defaultTenEightThreshold = 140.0
	defaultTenSevenThreshold = 200.0

	defaultGroundControlPerSecond = 2.0
	defaultClinchControlPerSecond = 1.0
	defaultControlCapPerRound     = 120.0

	defaultAggressionPerStrike = 2.0
	defaultAggressionCap       = 40.0

	defaultHighConfidenceMargin = 20.0
	defaultLowConfidenceMargin  = 8.0
	defaultMinSampleSize        = 5

	defaultControlDominanceRatio = 4.0
	defaultControlDominanceFloor = 100.0
	defaultCategoryDominanceMin  = 4
	defaultCategoryDominanceGate = 100.0
)

// DeltaKey addresses one row of the delta table.
type DeltaKey struct {
	Type model.EventType
	Tier model.Tier
}

// Delta is the point value and category contribution of one event shape.
type Delta struct {
	Points   float64
	Category model.Category
}

// Policy bundles the full judging policy: delta table, card thresholds,
// control conversion rates, dominance gates and confidence margins.
type Policy struct {
	Version string

	// Deltas maps (event type, tier) to a point delta. Lookups fall back to
	// the (type, regular) row when the exact tier has no entry.
	Deltas map[DeltaKey]Delta

	// Card thresholds over |net delta|.
	DrawMargin        float64 // |d| <= DrawMargin        -> 10-10
	TenEightThreshold float64 // |d| >= TenEightThreshold -> 10-8
	TenSevenThreshold float64 // |d| >= TenSevenThreshold -> 10-7

	// Control time conversion.
	GroundControlPerSecond float64
	ClinchControlPerSecond float64
	ControlCapPerRound     float64 // cap per side per round

	// Aggression accrual from strike attempts.
	AggressionPerStrike float64
	AggressionCap       float64

	// Confidence banding.
	HighConfidenceMargin float64
	LowConfidenceMargin  float64
	MinSampleSize        int

	// Dominance gates (raise-only).
	ControlDominanceRatio float64 // winner control >= ratio * loser control
	ControlDominanceFloor float64 // and winner control >= floor
	CategoryDominanceMin  int     // winner leads in at least this many categories
	CategoryDominanceGate float64 // and |net delta| >= this
}

// DefaultPolicy returns the published judging policy.
func DefaultPolicy() Policy {
	return Policy{
		Version: DefaultPolicyVersion,
		Deltas: map[DeltaKey]Delta{
			{model.EventJab, model.TierRegular}:      {Points: 10, Category: model.CategorySignificantStrikes},
			{model.EventCross, model.TierRegular}:    {Points: 14, Category: model.CategorySignificantStrikes},
			{model.EventHook, model.TierRegular}:     {Points: 16, Category: model.CategorySignificantStrikes},
			{model.EventUppercut, model.TierRegular}: {Points: 16, Category: model.CategorySignificantStrikes},

			{model.EventHeadStrike, model.TierRegular}:     {Points: 8, Category: model.CategorySignificantStrikes},
			{model.EventHeadStrike, model.TierSignificant}: {Points: 15, Category: model.CategorySignificantStrikes},
			{model.EventBodyStrike, model.TierRegular}:     {Points: 6, Category: model.CategorySignificantStrikes},
			{model.EventBodyStrike, model.TierSignificant}: {Points: 12, Category: model.CategorySignificantStrikes},
			{model.EventLegKick, model.TierRegular}:        {Points: 6, Category: model.CategorySignificantStrikes},
			{model.EventLegKick, model.TierSignificant}:    {Points: 12, Category: model.CategorySignificantStrikes},

			{model.EventKnockdown, model.TierRegular}:    {Points: 60, Category: model.CategoryDamage},
			{model.EventKnockdown, model.TierFlash}:      {Points: 40, Category: model.CategoryDamage},
			{model.EventKnockdown, model.TierNearFinish}: {Points: 100, Category: model.CategoryDamage},

			{model.EventTakedown, model.TierRegular}:        {Points: 25, Category: model.CategoryTakedowns},
			{model.EventTakedownDefense, model.TierRegular}: {Points: 10, Category: model.CategoryTakedowns},

			{model.EventSubmissionAttempt, model.TierRegular}:     {Points: 20, Category: model.CategoryGrapplingControl},
			{model.EventSubmissionAttempt, model.TierSignificant}: {Points: 35, Category: model.CategoryGrapplingControl},
			{model.EventSubmissionAttempt, model.TierNearFinish}:  {Points: 80, Category: model.CategoryGrapplingControl},
			{model.EventReversal, model.TierRegular}:              {Points: 15, Category: model.CategoryGrapplingControl},

			{model.EventIllegalBlow, model.TierRegular}: {Points: -20, Category: model.CategoryDamage},
		},
		DrawMargin:        defaultDrawMargin,
		TenEightThreshold: defaultTenEightThreshold,
		TenSevenThreshold: defaultTenSevenThreshold,

		GroundControlPerSecond: defaultGroundControlPerSecond,
		ClinchControlPerSecond: defaultClinchControlPerSecond,
		ControlCapPerRound:     defaultControlCapPerRound,

		AggressionPerStrike: defaultAggressionPerStrike,
		AggressionCap:       defaultAggressionCap,

		HighConfidenceMargin: defaultHighConfidenceMargin,
		LowConfidenceMargin:  defaultLowConfidenceMargin,
		MinSampleSize:        defaultMinSampleSize,

		ControlDominanceRatio: defaultControlDominanceRatio,
		ControlDominanceFloor: defaultControlDominanceFloor,
		CategoryDominanceMin:  defaultCategoryDominanceMin,
		CategoryDominanceGate: defaultCategoryDominanceGate,
	}
}

// delta resolves the point value for an event, falling back to the regular
// tier row when the exact (type, tier) pair has no entry. Unknown shapes
// score zero.
func (p *Policy) delta(t model.EventType, tier model.Tier) (Delta, bool) {
	if tier == "" {
		tier = model.TierRegular
	}
	if d, ok := p.Deltas[DeltaKey{Type: t, Tier: tier}]; ok {
		return d, true
	}
	if d, ok := p.Deltas[DeltaKey{Type: t, Tier: model.TierRegular}]; ok {
		return d, true
	}
	return Delta{}, false
}
