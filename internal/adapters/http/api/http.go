// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fightcard/ringside/internal/adapters/mq/queue"
	repository "github.com/fightcard/ringside/internal/adapters/repository"
	"github.com/fightcard/ringside/internal/adapters/ws"
	"github.com/fightcard/ringside/internal/app"
	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/internal/domain/model"
	"github.com/fightcard/ringside/internal/domain/scoring"
)

// Read shapes returned by scoreboard and sync queries.
type (
	RoundsView      = app.RoundsView
	SyncStatus      = app.SyncStatus
	RoundStatusView = app.RoundStatusView
	AdvanceResult   = app.AdvanceResult
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateBout(ctx context.Context, boutID, fighter1, fighter2 string, totalRounds int, judges []model.Judge) (model.Bout, error)
	GetBout(ctx context.Context, boutID string) (model.Bout, error)

	SubmitEvent(ctx context.Context, e model.Event) (duplicate bool, err error)
	DeleteEvent(ctx context.Context, boutID string, round int, eventID, actorID, actorName string) (model.Event, error)
	GetEvents(ctx context.Context, boutID string, round int) ([]model.Event, error)

	ComputeRound(ctx context.Context, boutID string, round int, force bool) (model.RoundScore, bool, error)
	Rounds(ctx context.Context, boutID string) (RoundsView, error)
	FinalizeFight(ctx context.Context, boutID string) (model.FightResult, error)

	LockJudgeScore(ctx context.Context, lock model.JudgeLock) (allLocked bool, err error)
	UnlockJudgeScore(ctx context.Context, boutID string, round int, judgeID, supervisorID string) error
	JudgeScores(ctx context.Context, boutID string) (map[int][]model.JudgeLock, error)

	RegisterDevice(ctx context.Context, boutID, deviceID, accountID, deviceName string, role model.DeviceRole) (model.DeviceSession, error)
	Heartbeat(ctx context.Context, boutID, deviceID string) error
	DisconnectDevice(ctx context.Context, boutID, deviceID string) error
	Status(ctx context.Context, boutID string) (SyncStatus, error)
	RoundStatus(ctx context.Context, boutID string, round int) (RoundStatusView, error)
	RequestNextRound(ctx context.Context, boutID, deviceID string) (AdvanceResult, error)
	ForceAdvance(ctx context.Context, boutID, supervisorID string) (AdvanceResult, error)

	Audit() *audit.Log
	SnapshotMessages(ctx context.Context, boutID string) []queue.Message
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	boutsHandler  *BoutsHandler
	eventsHandler *EventsHandler
	roundsHandler *RoundsHandler
	fightsHandler *FightsHandler
	judgesHandler *JudgesHandler
	syncHandler   *SyncHandler
	auditHandler  *AuditHandler
	wsHandler     *WSHandler
}

// NewServer creates a new API server with all handlers. supervisorToken
// authorizes override and audit-export routes; empty disables them.
func NewServer(deps Dependencies, hub *ws.Hub, supervisorToken string) *Server {
	auth := &supervisorAuth{token: supervisorToken}
	return &Server{
		healthHandler: NewHealthHandler(),
		boutsHandler:  NewBoutsHandler(deps),
		eventsHandler: NewEventsHandler(deps),
		roundsHandler: NewRoundsHandler(deps),
		fightsHandler: NewFightsHandler(deps),
		judgesHandler: NewJudgesHandler(deps, auth),
		syncHandler:   NewSyncHandler(deps, auth),
		auditHandler:  NewAuditHandler(deps, auth),
		wsHandler:     NewWSHandler(deps, hub),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/bouts", MetricsMiddleware(s.boutsHandler.HandlePostBout, "bouts"))
	mux.HandleFunc("/bouts/", MetricsMiddleware(s.boutsHandler.HandleGetBout, "bouts"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleEvents, "events"))
	mux.HandleFunc("/events/", MetricsMiddleware(s.eventsHandler.HandleDeleteEvent, "events"))
	mux.HandleFunc("/rounds", MetricsMiddleware(s.roundsHandler.HandleGetRounds, "rounds"))
	mux.HandleFunc("/rounds/compute", MetricsMiddleware(s.roundsHandler.HandleComputeRound, "rounds_compute"))
	mux.HandleFunc("/fights/finalize", MetricsMiddleware(s.fightsHandler.HandleFinalize, "fights_finalize"))
	mux.HandleFunc("/judge-scores/lock", MetricsMiddleware(s.judgesHandler.HandleLock, "judge_lock"))
	mux.HandleFunc("/judge-scores/unlock", MetricsMiddleware(s.judgesHandler.HandleUnlock, "judge_unlock"))
	mux.HandleFunc("/judge-scores/", MetricsMiddleware(s.judgesHandler.HandleGetScores, "judge_scores"))
	mux.HandleFunc("/sync/register-device", MetricsMiddleware(s.syncHandler.HandleRegisterDevice, "sync_register"))
	mux.HandleFunc("/sync/heartbeat", MetricsMiddleware(s.syncHandler.HandleHeartbeat, "sync_heartbeat"))
	mux.HandleFunc("/sync/disconnect", MetricsMiddleware(s.syncHandler.HandleDisconnect, "sync_disconnect"))
	mux.HandleFunc("/sync/status/", MetricsMiddleware(s.syncHandler.HandleStatus, "sync_status"))
	mux.HandleFunc("/sync/round-status/", MetricsMiddleware(s.syncHandler.HandleRoundStatus, "sync_round_status"))
	mux.HandleFunc("/sync/next-round", MetricsMiddleware(s.syncHandler.HandleNextRound, "sync_next_round"))
	mux.HandleFunc("/sync/compute-round", MetricsMiddleware(s.syncHandler.HandleComputeRound, "sync_compute_round"))
	mux.HandleFunc("/sync/force-advance", MetricsMiddleware(s.syncHandler.HandleForceAdvance, "sync_force_advance"))
	mux.HandleFunc("/audit/logs", MetricsMiddleware(s.auditHandler.HandleLogs, "audit_logs"))
	mux.HandleFunc("/audit/verify/", MetricsMiddleware(s.auditHandler.HandleVerify, "audit_verify"))
	mux.HandleFunc("/audit/export", MetricsMiddleware(s.auditHandler.HandleExport, "audit_export"))
	mux.HandleFunc("/ws", s.wsHandler.HandleSubscribe)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates known sentinel errors to their HTTP shape.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, app.ErrRoundOutOfRange):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, repository.ErrBoutNotFound),
		errors.Is(err, app.ErrEventNotFound),
		errors.Is(err, repository.ErrScoreNotFound),
		errors.Is(err, repository.ErrLockNotFound),
		errors.Is(err, audit.ErrEntryNotFound),
		errors.Is(err, app.ErrDeviceNotRegistered),
		errors.Is(err, app.ErrJudgeNotRegistered):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrLockExists), errors.Is(err, audit.ErrImmutableResource):
		return http.StatusConflict, "immutable_resource"
	case errors.Is(err, repository.ErrBoutExists), errors.Is(err, app.ErrBoutCompleted):
		return http.StatusConflict, "conflict"
	case errors.Is(err, app.ErrIncompleteRounds):
		return http.StatusConflict, "incomplete_rounds"
	case errors.Is(err, app.ErrStaleDevice):
		return http.StatusConflict, "stale_device"
	case errors.Is(err, scoring.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// supervisorAuth validates the override token carried on privileged routes.
type supervisorAuth struct {
	token string
}

func (a *supervisorAuth) authorize(r *http.Request) error {
	if a.token == "" {
		return NewKind("api.supervisor_auth", ErrForbidden)
	}
	if r.Header.Get("X-Supervisor-Token") != a.token {
		return NewKind("api.supervisor_auth", ErrForbidden)
	}
	return nil
}
