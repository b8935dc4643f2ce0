// Package handlers contains the HTTP handler implementations for the
// FieldScout advisor API.
//
// Handlers depend on locally defined service interfaces following the
// injection pattern used across the package: concrete stores and providers
// are wired at the application entry point, tests substitute stubs.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fieldscout/internal/core"
	"fieldscout/internal/engine"
	"fieldscout/internal/recommendation"
	"fieldscout/internal/types"
)

// --- Service Interfaces ---

// RecStore is the recommendation persistence contract used by this handler.
// Mirrors the concrete recommendation.Store methods it consumes.
type RecStore interface {
	Put(ctx context.Context, record *recommendation.Record) error
	Get(ctx context.Context, recommendationID string) (*recommendation.Record, error)
	Transition(ctx context.Context, recommendationID string, to types.RecommendationStatus) (*types.Recommendation, error)
}

// RecPlaybookSource resolves the active playbook a recommendation is
// generated against.
type RecPlaybookSource interface {
	GetActive(ctx context.Context, playbookID string) (*types.Playbook, error)
}

// RecWeatherSource fetches the weather snapshot for a location and time.
// Failure degrades gracefully: generation proceeds without weather and the
// risk scorer flags the gap.
type RecWeatherSource interface {
	GetFeatures(ctx context.Context, location types.GeoPoint, atTime time.Time) (*types.WeatherFeatures, error)
}

// --- Request/Response Models ---

// GenerateRecommendationRequest is the request body for
// POST /v1/recommendations. The observation arrives inline from the capture
// pipeline; it must already be confirmed.
type GenerateRecommendationRequest struct {
	PlaybookID    string            `json:"playbookId" validate:"required"`
	Observation   types.Observation `json:"observation" validate:"required"`
	ReferenceTime *time.Time        `json:"referenceTime,omitempty"`
}

// UpdateRecommendationStatusRequest is the request body for
// POST /v1/recommendations/{id}/status.
type UpdateRecommendationStatusRequest struct {
	Status types.RecommendationStatus `json:"status" validate:"required,oneof=confirmed rejected"`
}

// --- Handler ---

// RecommendationHandler generates recommendations from confirmed observations
// and manages their confirmation lifecycle.
type RecommendationHandler struct {
	recStore  RecStore
	playbooks RecPlaybookSource
	weather   RecWeatherSource
	builder   *engine.Builder
	validator *core.Validator
	logger    *slog.Logger
	clock     types.Clock
}

// NewRecommendationHandler creates a RecommendationHandler with the provided
// dependencies.
func NewRecommendationHandler(
	recStore RecStore,
	playbooks RecPlaybookSource,
	weather RecWeatherSource,
	builder *engine.Builder,
	v *core.Validator,
	l *slog.Logger,
	clock types.Clock,
) *RecommendationHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RecommendationHandler{
		recStore:  recStore,
		playbooks: playbooks,
		weather:   weather,
		builder:   builder,
		validator: v,
		logger:    l,
		clock:     clock,
	}
}

// RegisterRoutes mounts recommendation routes on the provided chi.Router.
func (h *RecommendationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/recommendations", func(r chi.Router) {
		r.Post("/", h.Generate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/status", h.UpdateStatus)
		})
	})
}

// --- Handler Methods ---

// Generate handles POST /v1/recommendations.
//
//  1. Decode and validate the request; the observation must be confirmed.
//  2. Resolve the active playbook version.
//  3. Fetch the weather snapshot (soft dependency, degraded generation on
//     failure).
//  4. Generate the recommendation; a missing rule yields the monitor
//     fallback, never an error.
//  5. Persist the record with its generation context for later recompute.
//  6. Return 201 Created.
func (h *RecommendationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRecommendationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Observation.Status != types.ObservationConfirmed {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidStatus,
			"only confirmed observations generate recommendations",
			nil,
		))
		return
	}

	pb, err := h.playbooks.GetActive(r.Context(), req.PlaybookID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	referenceTime := h.clock.Now()
	if req.ReferenceTime != nil {
		referenceTime = *req.ReferenceTime
	}

	// Weather is a soft dependency: without a snapshot the engine still
	// produces a recommendation and flags weather_data_missing.
	var wx *types.WeatherFeatures
	if h.weather != nil {
		snapshot, err := h.weather.GetFeatures(r.Context(), req.Observation.Location, referenceTime)
		if err != nil {
			h.logger.WarnContext(r.Context(), "weather fetch failed, generating without snapshot",
				"playbook_id", req.PlaybookID,
				"observation_id", req.Observation.ObservationID,
				"error", err,
			)
		} else {
			wx = snapshot
		}
	}

	recID := "rec_" + uuid.NewString()
	rec, err := h.builder.GenerateRecommendation(&req.Observation, pb, wx, recID, referenceTime)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"recommendation generation failed",
			err,
		))
		return
	}

	record := &recommendation.Record{
		Recommendation: rec,
		Observation:    &req.Observation,
		Weather:        wx,
		ReferenceTime:  referenceTime,
	}
	if err := h.recStore.Put(r.Context(), record); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: rec})
}

// Get handles GET /v1/recommendations/{id}.
func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"recommendation id is required",
			nil,
		))
		return
	}

	record, err := h.recStore.Get(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: record.Recommendation})
}

// UpdateStatus handles POST /v1/recommendations/{id}/status.
//
// Confirmation is a status transition only; the computed content is
// immutable. Only pending_confirmation recommendations can move, and a
// repeated transition is a conflict, not an idempotent success.
func (h *RecommendationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"recommendation id is required",
			nil,
		))
		return
	}

	var req UpdateRecommendationStatusRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rec, err := h.recStore.Transition(r.Context(), id, req.Status)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "recommendation status updated",
		"recommendation_id", id,
		"status", string(req.Status),
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}
