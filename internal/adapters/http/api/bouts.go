package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fightcard/ringside/internal/domain/model"
)

// BoutsHandler handles bout creation and reads.
type BoutsHandler struct {
	deps Dependencies
}

// NewBoutsHandler creates a new bouts handler.
func NewBoutsHandler(deps Dependencies) *BoutsHandler {
	return &BoutsHandler{deps: deps}
}

type boutRequest struct {
	BoutID      string        `json:"bout_id"`
	Fighter1    string        `json:"fighter1"`
	Fighter2    string        `json:"fighter2"`
	TotalRounds int           `json:"total_rounds"`
	Judges      []model.Judge `json:"judges"`
}

// HandlePostBout handles POST /bouts requests.
func (h *BoutsHandler) HandlePostBout(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_bout"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req boutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Fighter1) == "" || strings.TrimSpace(req.Fighter2) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	bout, err := h.deps.CreateBout(r.Context(), req.BoutID, req.Fighter1, req.Fighter2, req.TotalRounds, req.Judges)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bout)
}

// HandleGetBout handles GET /bouts/{bout_id} requests.
func (h *BoutsHandler) HandleGetBout(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_bout"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	boutID := strings.TrimPrefix(r.URL.Path, "/bouts/")
	if boutID == "" || strings.Contains(boutID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	bout, err := h.deps.GetBout(r.Context(), boutID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bout)
}
