package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	broadcast "github.com/fightcard/ringside/internal/adapters/mq/queue"
	dispatch "github.com/fightcard/ringside/internal/adapters/mq/worker"
	repository "github.com/fightcard/ringside/internal/adapters/repository"
	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/internal/domain/dedupe"
	"github.com/fightcard/ringside/internal/domain/model"
	"github.com/fightcard/ringside/internal/domain/scoring"
	"github.com/fightcard/ringside/pkg/logger"
	"github.com/fightcard/ringside/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultStalenessWindow = 2 * time.Minute
	defaultBarrierTimeout  = 30 * time.Second
	defaultRoundDuration   = 300 // seconds
	defaultQueueCapacity   = 10000
	defaultDispatchers     = 4
)

// Sink receives fan-out messages drained from the broadcast queue. The
// websocket hub implements it; tests plug in their own.
type Sink = dispatch.Sink

// Service implements the API dependencies for the scoring engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	bouts     *repository.BoutStore
	events    repository.EventLog
	deduper   dedupe.Deduper
	engine    *scoring.Engine
	auditLog  *audit.Log
	broadcast broadcast.Queue
	pool      *dispatch.Pool
	sink      Sink
	registry  *deviceRegistry

	// Per-bout lifecycle state
	states map[string]*boutState

	// Configuration
	stalenessWindow      time.Duration
	barrierTimeout       time.Duration
	roundDurationSeconds int
	queueCapacity        int
	dispatcherCount      int
	scoringOpts          []scoring.Option
	auditOpts            []audit.Option

	// State
	started bool
	now     func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStalenessWindow sets the heartbeat window after which a device is
// excluded from round-advance consensus.
func WithStalenessWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stalenessWindow = d
		}
	}
}

// WithBarrierTimeout bounds how long a next-round call blocks before
// surfacing the stale-device condition.
func WithBarrierTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.barrierTimeout = d
		}
	}
}

// WithRoundDuration sets the round length fed to the scoring engine.
func WithRoundDuration(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.roundDurationSeconds = seconds
		}
	}
}

// WithQueueCapacity bounds the broadcast queue.
func WithQueueCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueCapacity = n
		}
	}
}

// WithDispatcherCount sets the number of fan-out dispatchers.
func WithDispatcherCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dispatcherCount = n
		}
	}
}

// WithScoringOptions forwards options to the scoring engine.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithAuditOptions forwards options to the audit log.
func WithAuditOptions(opts ...audit.Option) Option {
	return func(s *Service) {
		s.auditOpts = append(s.auditOpts, opts...)
	}
}

// WithSink sets the fan-out sink the dispatch pool delivers to.
func WithSink(sink Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		states:               make(map[string]*boutState),
		stalenessWindow:      defaultStalenessWindow,
		barrierTimeout:       defaultBarrierTimeout,
		roundDurationSeconds: defaultRoundDuration,
		queueCapacity:        defaultQueueCapacity,
		dispatcherCount:      defaultDispatchers,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting scoring service...")

	s.bouts = repository.NewBoutStore()
	s.events = repository.NewTreapLog(ctx)
	s.deduper = dedupe.NewInMemoryDeduper()
	s.engine = scoring.NewEngine(s.scoringOpts...)
	s.auditLog = audit.NewLog(s.auditOpts...)
	s.registry = newDeviceRegistry(s.stalenessWindow, s.now)
	s.broadcast = broadcast.NewInMemoryQueue(broadcast.WithCapacity(s.queueCapacity))

	if s.sink != nil {
		s.pool = dispatch.NewPool(s.dispatcherCount, s.broadcast, s.sink)
		s.pool.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.String("policy", s.engine.Policy().Version),
		logger.Int("dispatchers", s.dispatcherCount),
		logger.Int("queueCapacity", s.queueCapacity),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	if q, ok := s.broadcast.(*broadcast.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.pool != nil {
		s.pool.Stop(ctx)
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

// Audit exposes the audit log for read endpoints.
func (s *Service) Audit() *audit.Log { return s.auditLog }

// Policy exposes the active judging policy.
func (s *Service) Policy() scoring.Policy { return s.engine.Policy() }

// state returns (creating if needed) the lifecycle state for a bout.
func (s *Service) state(boutID string) *boutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[boutID]
	if !ok {
		st = newBoutState()
		s.states[boutID] = st
	}
	return st
}

// publish enqueues a fan-out message. Best-effort: a full queue drops the
// message and never fails the write that produced it.
func (s *Service) publish(ctx context.Context, boutID, kind string, payload any) {
	if s.broadcast == nil {
		return
	}
	if ok := s.broadcast.Enqueue(ctx, broadcast.Message{BoutID: boutID, Kind: kind, Payload: payload}); !ok {
		s.logger.Debug(ctx, "broadcast dropped", logger.String("kind", kind), logger.String("boutID", boutID))
	}
}

// CreateBout registers a new bout with its judges.
func (s *Service) CreateBout(ctx context.Context, boutID, fighter1, fighter2 string, totalRounds int, judges []model.Judge) (model.Bout, error) {
	if boutID == "" {
		boutID = uuid.NewString()
	}
	if totalRounds < 1 {
		return model.Bout{}, fmt.Errorf("%w: total_rounds must be >= 1", model.ErrValidation)
	}
	b := model.Bout{
		BoutID:       boutID,
		Fighter1:     fighter1,
		Fighter2:     fighter2,
		TotalRounds:  totalRounds,
		CurrentRound: 1,
		Status:       model.BoutActive,
		Judges:       judges,
		CreatedAt:    s.now(),
	}
	if err := s.bouts.CreateBout(ctx, b); err != nil {
		return model.Bout{}, err
	}
	metrics.UpdateActiveBouts(s.bouts.BoutCount(ctx))
	s.logger.Info(ctx, "bout created",
		logger.String("boutID", b.BoutID),
		logger.String("fighter1", fighter1),
		logger.String("fighter2", fighter2),
		logger.Int("rounds", totalRounds),
	)
	return b, nil
}

// GetBout returns a bout by id.
func (s *Service) GetBout(ctx context.Context, boutID string) (model.Bout, error) {
	return s.bouts.GetBout(ctx, boutID)
}

// SubmitEvent merges one operator event into the log. Duplicate
// submissions (same bout, round and client id) are absorbed silently:
// the second caller gets duplicate=true and no error.
func (s *Service) SubmitEvent(ctx context.Context, e model.Event) (duplicate bool, err error) {
	if err := e.Validate(); err != nil {
		metrics.RecordEventRejected()
		return false, err
	}
	bout, err := s.bouts.GetBout(ctx, e.BoutID)
	if err != nil {
		metrics.RecordEventRejected()
		return false, err
	}
	if e.Round > bout.TotalRounds {
		metrics.RecordEventRejected()
		return false, fmt.Errorf("%w: round %d of %d", ErrRoundOutOfRange, e.Round, bout.TotalRounds)
	}

	// Attribute the device role when the submitting device is registered
	// and the event did not carry one.
	if e.Role == model.RoleUnassigned && e.SourceDeviceID != "" {
		if sess, ok := s.registry.get(e.BoutID, e.SourceDeviceID); ok {
			e.Role = sess.Role
		}
	}

	key := dedupe.KeyFor(&e)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordEventDuplicate()
		s.auditLog.Append(ctx, audit.ActionEventDuplicate, audit.ResourceEvent, e.EventID, e.SourceDeviceID, "", map[string]string{
			"bout_id": e.BoutID,
			"round":   strconv.Itoa(e.Round),
		})
		return true, nil
	}

	e.ReceivedAt = s.now()
	stored, err := s.events.Append(ctx, e)
	if err != nil {
		if errors.Is(err, repository.ErrEventExists) {
			metrics.RecordEventDuplicate()
			return true, nil
		}
		// The id was marked seen but nothing committed; let the client retry.
		s.deduper.Unrecord(ctx, key)
		return false, err
	}

	metrics.RecordEventAccepted()
	s.auditLog.Append(ctx, audit.ActionEventAccepted, audit.ResourceEvent, stored.EventID, stored.SourceDeviceID, "", map[string]string{
		"bout_id": stored.BoutID,
		"round":   strconv.Itoa(stored.Round),
		"side":    string(stored.Side),
		"type":    string(stored.Type),
		"tier":    string(stored.Tier),
	})
	s.publish(ctx, stored.BoutID, "event_accepted", stored)
	return false, nil
}

// DeleteEvent appends a tombstone referencing the target event. The
// original record is never physically removed.
func (s *Service) DeleteEvent(ctx context.Context, boutID string, round int, eventID, actorID, actorName string) (model.Event, error) {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return model.Event{}, err
	}
	target, ok := s.events.Get(ctx, boutID, round, eventID)
	if !ok {
		return model.Event{}, ErrEventNotFound
	}

	tomb := model.Event{
		EventID:        uuid.NewString(),
		BoutID:         boutID,
		Round:          round,
		Side:           target.Side,
		Role:           model.RoleUnassigned,
		Type:           model.EventTombstone,
		OffsetSeconds:  target.OffsetSeconds,
		Metadata:       map[string]string{model.MetaTombstonedEventID: eventID},
		SourceDeviceID: actorID,
		ReceivedAt:     s.now(),
	}
	stored, err := s.events.Append(ctx, tomb)
	if err != nil {
		return model.Event{}, err
	}

	metrics.RecordEventTombstoned()
	s.auditLog.Append(ctx, audit.ActionEventTombstoned, audit.ResourceEvent, eventID, actorID, actorName, map[string]string{
		"bout_id":      boutID,
		"round":        strconv.Itoa(round),
		"tombstone_id": stored.EventID,
	})
	s.publish(ctx, boutID, "event_tombstoned", stored)
	return stored, nil
}

// GetEvents returns the merged, tombstone-filtered, deterministic view of
// one round.
func (s *Service) GetEvents(ctx context.Context, boutID string, round int) ([]model.Event, error) {
	if _, err := s.bouts.GetBout(ctx, boutID); err != nil {
		return nil, err
	}
	return s.events.Merged(ctx, boutID, round), nil
}
