package api

import (
	"encoding/json"
	"net/http"
)

// RoundsHandler handles round scoring requests.
type RoundsHandler struct {
	deps Dependencies
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps Dependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps}
}

type computeRequest struct {
	BoutID      string `json:"bout_id"`
	RoundNumber int    `json:"round_number"`
	Force       bool   `json:"force"`
}

// HandleComputeRound handles POST /rounds/compute. Deterministic: the
// second call for an already-scored round returns the cached score.
func (h *RoundsHandler) HandleComputeRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.compute_round"
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

// HandleGetRounds handles GET /rounds?bout_id requests.
func (h *RoundsHandler) HandleGetRounds(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rounds"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	boutID := r.URL.Query().Get("bout_id")
	if boutID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	view, err := h.deps.Rounds(r.Context(), boutID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
