package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/fightcard/ringside/internal/domain/model"
)

// SyncHandler handles device presence and the round-advance barrier.
type SyncHandler struct {
	deps Dependencies
	auth *supervisorAuth
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps Dependencies, auth *supervisorAuth) *SyncHandler {
	return &SyncHandler{deps: deps, auth: auth}
}

type deviceRequest struct {
	BoutID     string `json:"bout_id"`
	DeviceID   string `json:"device_id"`
	AccountID  string `json:"account_id"`
	DeviceName string `json:"device_name"`
	Role       string `json:"role"`
}

// HandleRegisterDevice handles POST /sync/register-device. Re-registering
// refreshes the session and keeps the role unless a new one is given.
func (h *SyncHandler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_device"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" || strings.TrimSpace(req.DeviceID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	sess, err := h.deps.RegisterDevice(r.Context(), req.BoutID, req.DeviceID, req.AccountID, req.DeviceName, model.DeviceRole(req.Role))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleHeartbeat handles POST /sync/heartbeat requests.
func (h *SyncHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	const op = "api.heartbeat"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.Heartbeat(r.Context(), req.BoutID, req.DeviceID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// HandleDisconnect handles POST /sync/disconnect requests.
func (h *SyncHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.disconnect_device"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.DisconnectDevice(r.Context(), req.BoutID, req.DeviceID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "disconnected"})
}

// HandleStatus handles GET /sync/status/{bout_id} requests.
func (h *SyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_status"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	boutID := strings.TrimPrefix(r.URL.Path, "/sync/status/")
	if boutID == "" || strings.Contains(boutID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	status, err := h.deps.Status(r.Context(), boutID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleRoundStatus handles GET /sync/round-status/{bout_id}/{round}.
func (h *SyncHandler) HandleRoundStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.round_status"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/sync/round-status/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	round, err := strconv.Atoi(parts[1])
	if parts[0] == "" || err != nil || round < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	view, err := h.deps.RoundStatus(r.Context(), parts[0], round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleNextRound handles POST /sync/next-round. Blocks until every active
// device for the bout has requested the advance, then all callers receive
// the identical result.
func (h *SyncHandler) HandleNextRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.next_round"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.RequestNextRound(r.Context(), req.BoutID, req.DeviceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleComputeRound handles POST /sync/compute-round, the device-facing
// alias of /rounds/compute.
func (h *SyncHandler) HandleComputeRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_compute_round"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" || req.RoundNumber < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	score, cached, err := h.deps.ComputeRound(r.Context(), req.BoutID, req.RoundNumber, req.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"score":  score,
		"cached": cached,
	})
}

type forceAdvanceRequest struct {
	BoutID       string `json:"bout_id"`
	SupervisorID string `json:"supervisor_id"`
}

// HandleForceAdvance handles POST /sync/force-advance: the supervisor
// override for a barrier blocked by a non-responsive device.
func (h *SyncHandler) HandleForceAdvance(w http.ResponseWriter, r *http.Request) {
	const op = "api.force_advance"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.auth.authorize(r); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err)
		return
	}
	var req forceAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.ForceAdvance(r.Context(), req.BoutID, req.SupervisorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
