package api

import (
	"encoding/json"
	"net/http"
)

// FightsHandler handles fight finalization.
type FightsHandler struct {
	deps Dependencies
}

// NewFightsHandler creates a new fights handler.
func NewFightsHandler(deps Dependencies) *FightsHandler {
	return &FightsHandler{deps: deps}
}

type finalizeRequest struct {
	BoutID string `json:"bout_id"`
}

// HandleFinalize handles POST /fights/finalize. Idempotent: repeat calls
// return the recorded result.
func (h *FightsHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.finalize_fight"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.FinalizeFight(r.Context(), req.BoutID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
