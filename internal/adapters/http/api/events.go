// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/fightcard/ringside/internal/domain/model"
)

// EventsHandler handles scoring-event submission and reads.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// eventRequest mirrors the wire schema for POST /events.
type eventRequest struct {
	EventID       string            `json:"event_id"`
	BoutID        string            `json:"bout_id"`
	RoundNumber   int               `json:"round_number"`
	Side          string            `json:"side"`
	Role          string            `json:"role"`
	EventType     string            `json:"event_type"`
	Tier          string            `json:"tier"`
	OffsetSeconds float64           `json:"offset_seconds"`
	Metadata      map[string]string `json:"metadata"`
	DeviceID      string            `json:"device_id"`
}

func (e eventRequest) toModel() model.Event {
	return model.Event{
		EventID:        strings.TrimSpace(e.EventID),
		BoutID:         strings.TrimSpace(e.BoutID),
		Round:          e.RoundNumber,
		Side:           model.Side(e.Side),
		Role:           model.DeviceRole(e.Role),
		Type:           model.EventType(e.EventType),
		Tier:           model.Tier(e.Tier),
		OffsetSeconds:  e.OffsetSeconds,
		Metadata:       e.Metadata,
		SourceDeviceID: strings.TrimSpace(e.DeviceID),
	}
}

// HandleEvents routes POST /events and GET /events.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *EventsHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.SubmitEvent(r.Context(), req.toModel())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if duplicate {
		// Duplicate delivery is a success from the client's point of view.
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, EventID: req.EventID})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false, EventID: req.EventID})
}

func (h *EventsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_events"
	boutID := r.URL.Query().Get("bout_id")
	round, err := strconv.Atoi(r.URL.Query().Get("round_number"))
	if boutID == "" || err != nil || round < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	events, err := h.deps.GetEvents(r.Context(), boutID, round)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bout_id":      boutID,
		"round_number": round,
		"events":       events,
		"total_events": len(events),
	})
}

// HandleDeleteEvent handles DELETE /events/{event_id} by recording a
// tombstone; the original event is never physically removed.
func (h *EventsHandler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_event"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	eventID := strings.TrimPrefix(r.URL.Path, "/events/")
	if eventID == "" || strings.Contains(eventID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	boutID := r.URL.Query().Get("bout_id")
	round, err := strconv.Atoi(r.URL.Query().Get("round_number"))
	if boutID == "" || err != nil || round < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	tomb, err := h.deps.DeleteEvent(r.Context(), boutID, round, eventID,
		r.URL.Query().Get("actor"), r.URL.Query().Get("actor_name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "tombstoned",
		"event_id":     eventID,
		"tombstone_id": tomb.EventID,
	})
}
