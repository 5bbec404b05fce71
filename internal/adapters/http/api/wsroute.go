package api

import (
	"net/http"

	"github.com/fightcard/ringside/internal/adapters/ws"
)

// WSHandler upgrades scoreboard clients onto the bout's broadcast topic.
type WSHandler struct {
	deps Dependencies
	hub  *ws.Hub
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(deps Dependencies, hub *ws.Hub) *WSHandler {
	return &WSHandler{deps: deps, hub: hub}
}

// HandleSubscribe handles GET /ws?bout_id=. On connect the client receives
// a snapshot matching the polling endpoints, then live pushes.
func (h *WSHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	const op = "api.ws_subscribe"
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, "ws_disabled", NewKind(op, ErrBadRequest))
		return
	}
	boutID := r.URL.Query().Get("bout_id")
	if boutID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if _, err := h.deps.GetBout(r.Context(), boutID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.hub.ServeWS(w, r, boutID, h.deps.SnapshotMessages)
}
