package api

import (
	"net/http"
	"strings"

	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/pkg/metrics"
)

// AuditHandler exposes the append-only audit log for review.
type AuditHandler struct {
	deps Dependencies
	auth *supervisorAuth
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(deps Dependencies, auth *supervisorAuth) *AuditHandler {
	return &AuditHandler{deps: deps, auth: auth}
}

// HandleLogs handles GET /audit/logs?judge_id&action_type&resource_type.
// Supervisor only: the trail carries device and judge identities.
func (h *AuditHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if err := h.auth.authorize(r); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err)
		return
	}
	q := r.URL.Query()
	entries := h.deps.Audit().List(r.Context(), audit.Filter{
		UserID:       q.Get("judge_id"),
		ActionType:   audit.ActionType(q.Get("action_type")),
		ResourceType: audit.ResourceType(q.Get("resource_type")),
		ResourceID:   q.Get("resource_id"),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

// HandleVerify handles GET /audit/verify/{logId}: recomputes the record's
// HMAC signature and reports whether it still matches. Supervisor only.
func (h *AuditHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	const op = "api.audit_verify"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if err := h.auth.authorize(r); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err)
		return
	}
	logID := strings.TrimPrefix(r.URL.Path, "/audit/verify/")
	if logID == "" || strings.Contains(logID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	valid, err := h.deps.Audit().VerifySignature(r.Context(), logID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !valid {
		metrics.RecordAuditVerifyFailure()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"log_id": logID,
		"valid":  valid,
	})
}

// HandleExport handles GET /audit/export. Supervisor only: the export is
// the complete log for external compliance review.
func (h *AuditHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if err := h.auth.authorize(r); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", err)
		return
	}

	export := h.deps.Audit().ExportAll(r.Context())
	metrics.UpdateAuditExportEntries(export.RecordCount)
	writeJSON(w, http.StatusOK, export)
}
