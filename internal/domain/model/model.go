// Package model contains domain models passed between layers.
package model

import "time"

// Side identifies which fighter an event is attributed to.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether s is a known fighter side.
func (s Side) Valid() bool { return s == SideA || s == SideB }

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// DeviceRole partitions event-logging responsibility between operator
// devices. Roles are metadata for UI and audit, not an authorization
// boundary: any device may submit events for either fighter side.
type DeviceRole string

const (
	RoleUnassigned    DeviceRole = "UNASSIGNED"
	RoleRedStriking   DeviceRole = "RED_STRIKING"
	RoleRedGrappling  DeviceRole = "RED_GRAPPLING"
	RoleBlueStriking  DeviceRole = "BLUE_STRIKING"
	RoleBlueGrappling DeviceRole = "BLUE_GRAPPLING"
)

// Valid reports whether r is a known device role.
func (r DeviceRole) Valid() bool {
	switch r {
	case RoleUnassigned, RoleRedStriking, RoleRedGrappling, RoleBlueStriking, RoleBlueGrappling:
		return true
	}
	return false
}

// EventType enumerates the discrete fight actions operators log.
type EventType string

const (
	EventJab               EventType = "jab"
	EventCross             EventType = "cross"
	EventHook              EventType = "hook"
	EventUppercut          EventType = "uppercut"
	EventHeadStrike        EventType = "head_strike"
	EventBodyStrike        EventType = "body_strike"
	EventLegKick           EventType = "leg_kick"
	EventKnockdown         EventType = "knockdown"
	EventTakedown          EventType = "takedown"
	EventTakedownDefense   EventType = "takedown_defense"
	EventSubmissionAttempt EventType = "submission_attempt"
	EventGroundControl     EventType = "ground_control"
	EventClinchControl     EventType = "clinch_control"
	EventReversal          EventType = "reversal"
	EventIllegalBlow       EventType = "illegal_blow"

	// EventTombstone logically deletes a previously accepted event. The id
	// of the target event travels in Metadata[MetaTombstonedEventID].
	EventTombstone EventType = "tombstone"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventJab, EventCross, EventHook, EventUppercut,
		EventHeadStrike, EventBodyStrike, EventLegKick,
		EventKnockdown, EventTakedown, EventTakedownDefense,
		EventSubmissionAttempt, EventGroundControl, EventClinchControl,
		EventReversal, EventIllegalBlow, EventTombstone:
		return true
	}
	return false
}

// IsStrike reports whether t counts as a strike attempt for aggression
// purposes.
func (t EventType) IsStrike() bool {
	switch t {
	case EventJab, EventCross, EventHook, EventUppercut,
		EventHeadStrike, EventBodyStrike, EventLegKick:
		return true
	}
	return false
}

// Tier qualifies the severity of an event.
type Tier string

const (
	TierRegular     Tier = "regular"
	TierSignificant Tier = "significant"
	TierFlash       Tier = "flash"
	TierNearFinish  Tier = "near_finish"
)

// Valid reports whether t is a known tier. Empty is allowed and treated as
// regular by the scoring policy.
func (t Tier) Valid() bool {
	switch t {
	case "", TierRegular, TierSignificant, TierFlash, TierNearFinish:
		return true
	}
	return false
}

// Category names the five scoring categories of the judging policy.
type Category string

const (
	CategorySignificantStrikes Category = "significant_strikes"
	CategoryGrapplingControl   Category = "grappling_control"
	CategoryAggression         Category = "aggression"
	CategoryDamage             Category = "damage"
	CategoryTakedowns          Category = "takedowns"
)

// Categories lists all scoring categories in stable order.
func Categories() []Category {
	return []Category{
		CategorySignificantStrikes,
		CategoryGrapplingControl,
		CategoryAggression,
		CategoryDamage,
		CategoryTakedowns,
	}
}

// Metadata keys with defined semantics per event type.
const (
	// MetaControlSeconds carries the control duration for ground_control and
	// clinch_control events, as a base-10 integer string.
	MetaControlSeconds = "control_seconds"
	// MetaTarget optionally names the strike target ("head", "body", "leg").
	MetaTarget = "target"
	// MetaTombstonedEventID names the event a tombstone deletes.
	MetaTombstonedEventID = "tombstoned_event_id"
)

// Event is a single scoring-relevant fight action. Immutable once accepted;
// logical deletion is a tombstone event, never a physical delete.
type Event struct {
	EventID        string            `json:"event_id"` // client-generated idempotency key
	BoutID         string            `json:"bout_id"`
	Round          int               `json:"round_number"` // 1-based
	Side           Side              `json:"side"`         // fighter the event is attributed to
	Role           DeviceRole        `json:"role"`         // role of the submitting device
	Type           EventType         `json:"event_type"`
	Tier           Tier              `json:"tier,omitempty"` // optional severity qualifier
	OffsetSeconds  float64           `json:"offset_seconds"` // time within the round
	Metadata       map[string]string `json:"metadata,omitempty"`
	SourceDeviceID string            `json:"device_id"`
	ReceivedAt     time.Time         `json:"received_at"`
	Seq            uint64            `json:"seq"` // server-assigned arrival order, breaks offset ties
}

// IsTombstone reports whether e logically deletes another event.
func (e *Event) IsTombstone() bool { return e.Type == EventTombstone }

// TombstonedEventID returns the id targeted by a tombstone, or "".
func (e *Event) TombstonedEventID() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetaTombstonedEventID]
}

// BoutStatus tracks a bout through its lifecycle.
type BoutStatus string

const (
	BoutPending   BoutStatus = "pending"
	BoutActive    BoutStatus = "active"
	BoutCompleted BoutStatus = "completed"
)

// Judge identifies a scoring judge registered to a bout.
type Judge struct {
	JudgeID   string `json:"judge_id"`
	JudgeName string `json:"judge_name"`
}

// Bout is a single fight between two competitors, divided into rounds.
// Judges are registered at creation; a round reaches full lock only when
// every registered judge has locked it.
type Bout struct {
	BoutID       string     `json:"bout_id"`
	Fighter1     string     `json:"fighter1"` // side A
	Fighter2     string     `json:"fighter2"` // side B
	TotalRounds  int        `json:"total_rounds"`
	CurrentRound int        `json:"current_round"`
	Status       BoutStatus `json:"status"`
	Judges       []Judge    `json:"judges"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DeviceSession tracks an operator device attached to a bout.
type DeviceSession struct {
	DeviceID          string     `json:"device_id"`
	BoutID            string     `json:"bout_id"`
	AccountID         string     `json:"account_id"`
	DeviceName        string     `json:"device_name"`
	Role              DeviceRole `json:"role"`
	LastSeenAt        time.Time  `json:"last_seen_at"`
	ReadyForNextRound bool       `json:"ready_for_next_round"`
}

// Active reports whether the session's last heartbeat is within the
// staleness window as of now.
func (d *DeviceSession) Active(now time.Time, staleAfter time.Duration) bool {
	return now.Sub(d.LastSeenAt) <= staleAfter
}

// ConfidenceBand qualifies how far a round score sits from a card boundary.
type ConfidenceBand string

const (
	ConfidenceHigh   ConfidenceBand = "high"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceLow    ConfidenceBand = "low"
)

// CategoryScore is the per-category breakdown of a round score.
type CategoryScore struct {
	Category   Category `json:"category"`
	SideA      float64  `json:"side_a"`
	SideB      float64  `json:"side_b"`
	EventsA    int      `json:"events_a"`
	EventsB    int      `json:"events_b"`
}

// Winner designates the round or fight winner.
type Winner string

const (
	WinnerA    Winner = "A"
	WinnerB    Winner = "B"
	WinnerDraw Winner = "DRAW"
)

// RoundScore is the deterministic output of the scoring engine for one
// round. Recomputation overwrites it, but the previous value survives in
// the audit log.
type RoundScore struct {
	BoutID         string          `json:"bout_id"`
	Round          int             `json:"round"`
	FighterAPoints int             `json:"fighter_a_points"`
	FighterBPoints int             `json:"fighter_b_points"`
	Card           string          `json:"card"`
	Winner         Winner          `json:"winner"`
	DeltaMagnitude float64         `json:"delta_magnitude"`
	Confidence     ConfidenceBand  `json:"confidence"`
	Breakdown      []CategoryScore `json:"breakdown"`
	EventCount     int             `json:"computed_from_event_count"`
	PolicyVersion  string          `json:"policy_version"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// JudgeLock is a judge's committed score for a round. Immutable once
// written; changing it requires an audited unlock first.
type JudgeLock struct {
	BoutID        string    `json:"bout_id"`
	Round         int       `json:"round"`
	JudgeID       string    `json:"judge_id"`
	JudgeName     string    `json:"judge_name"`
	FighterAScore int       `json:"fighter1_score"`
	FighterBScore int       `json:"fighter2_score"`
	Card          string    `json:"card"`
	LockedAt      time.Time `json:"locked_at"`
}

// RoundState is the per-round lifecycle state.
type RoundState string

const (
	RoundOpen          RoundState = "OPEN"
	RoundComputing     RoundState = "COMPUTING"
	RoundScored        RoundState = "SCORED"
	RoundLockedPartial RoundState = "LOCKED_PARTIAL"
	RoundLockedFull    RoundState = "LOCKED_FULL"
	RoundAdvanced      RoundState = "ADVANCED"
)

// FightResult is the idempotent outcome of finalizing a bout.
type FightResult struct {
	BoutID     string    `json:"bout_id"`
	FinalRed   int       `json:"final_red"`
	FinalBlue  int       `json:"final_blue"`
	Winner     Winner    `json:"winner"`
	WinnerName string    `json:"winner_name"`
	DecidedAt  time.Time `json:"decided_at"`
}
