package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fightcard/ringside/internal/domain/model"
)

// JudgesHandler handles judge score locking.
type JudgesHandler struct {
	deps Dependencies
	auth *supervisorAuth
}

// NewJudgesHandler creates a new judges handler.
func NewJudgesHandler(deps Dependencies, auth *supervisorAuth) *JudgesHandler {
	return &JudgesHandler{deps: deps, auth: auth}
}

type lockRequest struct {
	BoutID        string `json:"bout_id"`
	RoundNumber   int    `json:"round_number"`
	JudgeID       string `json:"judge_id"`
	JudgeName     string `json:"judge_name"`
	Fighter1Score int    `json:"fighter1_score"`
	Fighter2Score int    `json:"fighter2_score"`
	Card          string `json:"card"`
}

// HandleLock handles POST /judge-scores/lock. A second lock for the same
// judge and round is rejected; changing a score requires an audited unlock.
func (h *JudgesHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	const op = "api.lock_judge_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" || req.RoundNumber < 1 || strings.TrimSpace(req.JudgeID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	allLocked, err := h.deps.LockJudgeScore(r.Context(), model.JudgeLock{
		BoutID:        req.BoutID,
		Round:         req.RoundNumber,
		JudgeID:       req.JudgeID,
		JudgeName:     req.JudgeName,
		FighterAScore: req.Fighter1Score,
		FighterBScore: req.Fighter2Score,
		Card:          req.Card,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "locked",
		"all_judges_locked": allLocked,
	})
}

type unlockRequest struct {
	BoutID       string `json:"bout_id"`
	RoundNumber  int    `json:"round_number"`
	JudgeID      string `json:"judge_id"`
	SupervisorID string `json:"supervisor_id"`
}

// HandleUnlock handles POST /judge-scores/unlock. Supervisor only; the
// unlock itself lands in the audit log.
func (h *JudgesHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	const op = "api.unlock_judge_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.auth.authorize(r); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err)
		return
	}
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.BoutID == "" || req.RoundNumber < 1 || req.JudgeID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if err := h.deps.UnlockJudgeScore(r.Context(), req.BoutID, req.RoundNumber, req.JudgeID, req.SupervisorID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "unlocked"})
}

// HandleGetScores handles GET /judge-scores/{bout_id} requests.
func (h *JudgesHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_judge_scores"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	boutID := strings.TrimPrefix(r.URL.Path, "/judge-scores/")
	if boutID == "" || strings.Contains(boutID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	scores, err := h.deps.JudgeScores(r.Context(), boutID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bout_id": boutID,
		"rounds":  scores,
	})
}
