// Package ingest is the HTTP boundary between publishers and the pipeline.
// It stays thin: decode, delegate, translate errors; no merge or routing
// logic lives here.
package ingest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chronicle/internal/pipeline"
	"chronicle/internal/platform/middleware"
	"chronicle/pkg/audit"
	"chronicle/pkg/audit/transform"
)

// Handler wires change submission endpoints to the pipeline.
type Handler struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

func New(p *pipeline.Pipeline, logger *slog.Logger) *Handler {
	return &Handler{pipeline: p, logger: logger}
}

// Register mounts ingest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/changes", h.HandleSubmit)
}

// SubmitRequest is the publisher-facing batch shape. A single bare change is
// also accepted.
type SubmitRequest struct {
	Changes []transform.Change `json:"changes"`
}

// RoutedEventResponse reports where one event went.
type RoutedEventResponse struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType audit.EventType `json:"eventType"`
	Branches  []string        `json:"branches"`
}

// SubmitResponse is the success payload.
type SubmitResponse struct {
	Events    []RoutedEventResponse `json:"events"`
	Unchanged []string              `json:"unchanged,omitempty"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description,omitempty"`
}

// HandleSubmit handles POST /v1/changes requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	changes, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.Submit(ctx, changes...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := SubmitResponse{Unchanged: result.Unchanged}
	for _, routed := range result.Routed {
		resp.Events = append(resp.Events, RoutedEventResponse{
			EventID:   routed.Event.ID,
			EventType: routed.Event.Type,
			Branches:  routed.Branches,
		})
	}

	h.logger.InfoContext(ctx, "changes accepted",
		"publisher", middleware.GetPublisherID(ctx),
		"events", len(resp.Events),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusAccepted, resp)
}

// decode accepts either {"changes":[...]} or a single bare change object.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) ([]transform.Change, bool) {
	var req SubmitRequest
	body := json.NewDecoder(r.Body)
	if err := body.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:       "bad_request",
			Description: "malformed JSON body",
		})
		return nil, false
	}
	if len(req.Changes) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:       "bad_request",
			Description: "no changes supplied",
		})
		return nil, false
	}
	return req.Changes, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var validationErr *audit.ValidationError
	var reservedErr *audit.ReservedNameError
	var routingErr *audit.RoutingError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &reservedErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:       "invalid_change",
			Description: err.Error(),
		})
	case errors.As(err, &routingErr):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:       "unroutable_event",
			Description: err.Error(),
		})
	default:
		h.logger.ErrorContext(ctx, "change submission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "internal_error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
