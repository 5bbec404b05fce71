package repository

import (
	"context"
	"sync"

	"github.com/fightcard/ringside/internal/domain/model"
)

// Treap-based, in-memory EventLog implementation.
//
// Ordering: timestamp offset ASC, then arrival sequence ASC. In-order
// traversal therefore produces the round timeline; a late event replayed
// from an offline queue lands at its recorded round position, not at "now",
// so finished scoring stays retroactively recomputable.

// treap node, size-augmented for cheap counts.
type node struct {
	offset float64
	seq    uint64
	id     string
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aOff, aSeq) sits earlier in the round timeline than
// (bOff, bSeq). Ties on offset break by receive order, keeping the log
// deterministic under concurrent submission.
func less(aOff float64, aSeq uint64, bOff float64, bSeq uint64) bool {
	if aOff != bOff {
		return aOff < bOff
	}
	return aSeq < bSeq
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// splitmix64 turns the arrival sequence into a well-distributed heap
// priority, keeping the treap balanced in expectation without a shared RNG.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func insert(n *node, offset float64, seq uint64, id string) *node {
	if n == nil {
		return &node{offset: offset, seq: seq, id: id, prio: splitmix64(seq), size: 1}
	}
	if less(offset, seq, n.offset, n.seq) {
		n.left = insert(n.left, offset, seq, id)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, offset, seq, id)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collect appends event ids in timeline order.
func collect(n *node, out *[]string) {
	if n == nil {
		return
	}
	collect(n.left, out)
	*out = append(*out, n.id)
	collect(n.right, out)
}

// roundLog holds one (bout, round) timeline.
type roundLog struct {
	root *node
	byID map[string]model.Event
}

// TreapLog implements EventLog. Rounds are independent treaps under one
// RWMutex; the log is append-mostly and reads rebuild the ordered view by
// in-order traversal.
type TreapLog struct {
	mu     sync.RWMutex
	rounds map[roundKey]*roundLog
	seq    uint64
}

type roundKey struct {
	boutID string
	round  int
}

// Option applies a configuration option to the TreapLog.
type Option func(*TreapLog)

// NewTreapLog constructs an empty event log.
func NewTreapLog(ctx context.Context, opts ...Option) *TreapLog {
	l := &TreapLog{
		rounds: make(map[roundKey]*roundLog),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append implements EventLog.Append.
func (l *TreapLog) Append(ctx context.Context, e model.Event) (model.Event, error) {
	key := roundKey{boutID: e.BoutID, round: e.Round}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.rounds[key]
	if !ok {
		r = &roundLog{byID: make(map[string]model.Event)}
		l.rounds[key] = r
	}
	if _, dup := r.byID[e.EventID]; dup {
		return model.Event{}, ErrEventExists
	}

	l.seq++
	e.Seq = l.seq
	r.byID[e.EventID] = e
	r.root = insert(r.root, e.OffsetSeconds, e.Seq, e.EventID)
	return e, nil
}

// Get implements EventLog.Get.
func (l *TreapLog) Get(ctx context.Context, boutID string, round int, eventID string) (model.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rounds[roundKey{boutID: boutID, round: round}]
	if !ok {
		return model.Event{}, false
	}
	e, ok := r.byID[eventID]
	return e, ok
}

// Events implements EventLog.Events.
func (l *TreapLog) Events(ctx context.Context, boutID string, round int) []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ordered(boutID, round)
}

// Merged implements EventLog.Merged.
func (l *TreapLog) Merged(ctx context.Context, boutID string, round int) []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.ordered(boutID, round)
	dead := make(map[string]struct{})
	for i := range all {
		if all[i].IsTombstone() {
			dead[all[i].TombstonedEventID()] = struct{}{}
		}
	}
	out := make([]model.Event, 0, len(all))
	for i := range all {
		if all[i].IsTombstone() {
			continue
		}
		if _, gone := dead[all[i].EventID]; gone {
			continue
		}
		out = append(out, all[i])
	}
	return out
}

// Count implements EventLog.Count.
func (l *TreapLog) Count(ctx context.Context, boutID string, round int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rounds[roundKey{boutID: boutID, round: round}]
	if !ok {
		return 0
	}
	return nsize(r.root)
}

// ordered rebuilds the timeline for one round. Caller holds at least a
// read lock.
func (l *TreapLog) ordered(boutID string, round int) []model.Event {
	r, ok := l.rounds[roundKey{boutID: boutID, round: round}]
	if !ok {
		return nil
	}
	ids := make([]string, 0, nsize(r.root))
	collect(r.root, &ids)
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}
