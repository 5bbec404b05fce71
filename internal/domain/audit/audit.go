// Package audit implements the tamper-evident WORM log for scoring actions.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fightcard/ringside/pkg/metrics"
)

// ActionType identifies the kind of auditable action.
type ActionType string

const (
	ActionEventAccepted    ActionType = "event_accepted"
	ActionEventDuplicate   ActionType = "event_duplicate"
	ActionEventTombstoned  ActionType = "event_tombstoned"
	ActionRoundComputed    ActionType = "round_computed"
	ActionRoundRecomputed  ActionType = "round_recomputed"
	ActionJudgeLocked      ActionType = "judge_locked"
	ActionJudgeUnlocked    ActionType = "judge_unlocked"
	ActionRoundAdvanced    ActionType = "round_advanced"
	ActionBarrierOverride  ActionType = "barrier_override"
	ActionFightFinalized   ActionType = "fight_finalized"
	ActionDeviceRegistered ActionType = "device_registered"
	ActionDeviceDropped    ActionType = "device_dropped"
)

// ResourceType identifies what an audit entry is about.
type ResourceType string

const (
	ResourceEvent  ResourceType = "event"
	ResourceRound  ResourceType = "round"
	ResourceBout   ResourceType = "bout"
	ResourceJudge  ResourceType = "judge_lock"
	ResourceDevice ResourceType = "device"
)

// Entry is one immutable line of the audit log.
type Entry struct {
	ID           string            `json:"id"`
	ActionType   ActionType        `json:"action_type"`
	ResourceType ResourceType      `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	UserID       string            `json:"user_id"`
	UserName     string            `json:"user_name"`
	ActionData   map[string]string `json:"action_data,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Signature    string            `json:"signature"`
	Immutable    bool              `json:"immutable"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	UserID       string
	ActionType   ActionType
	ResourceType ResourceType
	ResourceID   string
}

func (f Filter) matches(e *Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ActionType != "" && e.ActionType != f.ActionType {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	return true
}

// Export is the complete log for external compliance review.
type Export struct {
	Records     []Entry `json:"records"`
	RecordCount int     `json:"record_count"`
}

// Log is an append-only, HMAC-signed record of scoring-relevant actions.
// It exposes only create and read operations; updates and deletes fail
// with ErrImmutableResource.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
	key     []byte
	now     func() time.Time
}

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithSigningKey sets the HMAC key used to sign entries.
func WithSigningKey(key []byte) Option {
	return func(l *Log) {
		if len(key) > 0 {
			l.key = key
		}
	}
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLog creates an empty audit log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		byID: make(map[string]int),
		key:  []byte("ringside-dev-signing-key"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append signs and stores a new entry, returning it with id and signature
// populated.
func (l *Log) Append(ctx context.Context, action ActionType, resource ResourceType, resourceID, userID, userName string, data map[string]string) Entry {
	e := Entry{
		ID:           uuid.NewString(),
		ActionType:   action,
		ResourceType: resource,
		ResourceID:   resourceID,
		UserID:       userID,
		UserName:     userName,
		ActionData:   data,
		Timestamp:    l.now().UTC(),
		Immutable:    true,
	}
	e.Signature = l.sign(&e)

	l.mu.Lock()
	l.byID[e.ID] = len(l.entries)
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	metrics.RecordAuditEntry()
	return e
}

// Get returns the entry with the given id.
func (l *Log) Get(ctx context.Context, id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return l.entries[idx], nil
}

// List returns entries matching the filter, oldest first.
func (l *Log) List(ctx context.Context, f Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for i := range l.entries {
		if f.matches(&l.entries[i]) {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// VerifySignature recomputes the digest of a stored entry and compares it
// with the recorded signature.
func (l *Log) VerifySignature(ctx context.Context, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return false, ErrEntryNotFound
	}
	e := l.entries[idx]
	valid := hmac.Equal([]byte(l.sign(&e)), []byte(e.Signature))
	if !valid {
		metrics.RecordAuditVerifyFailure()
	}
	return valid, nil
}

// ExportAll returns the complete log.
func (l *Log) ExportAll(ctx context.Context) Export {
	l.mu.RLock()
	defer l.mu.RUnlock()
	records := make([]Entry, len(l.entries))
	copy(records, l.entries)
	metrics.UpdateAuditExportEntries(len(records))
	return Export{Records: records, RecordCount: len(records)}
}

// Update always fails: the log is write-once-read-many.
func (l *Log) Update(ctx context.Context, id string, _ Entry) error {
	return ErrImmutableResource
}

// Delete always fails: the log is write-once-read-many.
func (l *Log) Delete(ctx context.Context, id string) error {
	return ErrImmutableResource
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// sign computes the keyed digest over the canonical serialization of the
// entry's fields. ActionData keys are serialized sorted so the digest is
// stable regardless of map iteration order.
func (l *Log) sign(e *Entry) string {
	var b strings.Builder
	b.WriteString(e.ID)
	b.WriteByte('|')
	b.WriteString(string(e.ActionType))
	b.WriteByte('|')
	b.WriteString(string(e.ResourceType))
	b.WriteByte('|')
	b.WriteString(e.ResourceID)
	b.WriteByte('|')
	b.WriteString(e.UserID)
	b.WriteByte('|')
	b.WriteString(e.UserName)
	b.WriteByte('|')
	b.WriteString(e.Timestamp.Format(time.RFC3339Nano))
	b.WriteByte('|')

	keys := make([]string, 0, len(e.ActionData))
	for k := range e.ActionData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.ActionData[k])
		b.WriteByte(';')
	}

	mac := hmac.New(sha256.New, l.key)
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
