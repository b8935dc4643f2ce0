package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fieldscout/internal/core"
	"fieldscout/internal/export"
	"fieldscout/internal/patch"
	"fieldscout/internal/recommendation"
	"fieldscout/internal/types"
)

// --- Service Interfaces ---

// PBStore is the playbook persistence contract used by this handler. Mirrors
// the concrete playbook.Store methods it consumes. Mutate must provide
// single-writer semantics per playbook id: the whole validate-apply-recompute
// sequence for a patch runs inside one Mutate call.
type PBStore interface {
	GetActive(ctx context.Context, playbookID string) (*types.Playbook, error)
	GetVersion(ctx context.Context, playbookID string, version int) (*types.Playbook, error)
	ListVersions(ctx context.Context, playbookID string) ([]int, error)
	Mutate(ctx context.Context, playbookID string, fn func(active *types.Playbook) (*types.Playbook, error)) error
}

// PBRecContext provides the generation context a patch recompute reuses, and
// persists the regenerated recommendation.
type PBRecContext interface {
	LatestForPlaybook(ctx context.Context, playbookID string) (*recommendation.Record, error)
	Put(ctx context.Context, record *recommendation.Record) error
}

// PBPatchLog records patch submissions for audit and export. Failures are
// logged, never propagated; the primary operation does not depend on it.
type PBPatchLog interface {
	Record(ctx context.Context, p *types.PlaybookPatch, result *types.PatchApplyResult) error
	ListByPlaybook(ctx context.Context, playbookID string) ([]patch.LogEntry, error)
}

// --- Request/Response Models ---

// SubmitPatchRequest is the request body for POST /v1/playbooks/{id}/patches.
// Operation structure is checked by the patch validator, not struct tags, so
// malformed operations come back as malformed_patch with every offending
// operation listed.
type SubmitPatchRequest struct {
	BaseVersion int                    `json:"baseVersion" validate:"required,gte=1"`
	RequestedBy string                 `json:"requestedByDeviceId"`
	Reason      string                 `json:"reason"`
	Operations  []types.PatchOperation `json:"operations" validate:"required,min=1"`
}

// PlaybookDetail aggregates the active playbook with its retained version
// history.
type PlaybookDetail struct {
	*types.Playbook
	Versions []int `json:"versions"`
}

// --- Handler ---

// PlaybookHandler serves playbook reads, patch submission, and the share
// bundle export.
type PlaybookHandler struct {
	store      PBStore
	recContext PBRecContext
	patchLog   PBPatchLog
	orch       *patch.Orchestrator
	validator  *core.Validator
	logger     *slog.Logger
	clock      types.Clock
}

// NewPlaybookHandler creates a PlaybookHandler with the provided dependencies.
func NewPlaybookHandler(
	store PBStore,
	recContext PBRecContext,
	patchLog PBPatchLog,
	orch *patch.Orchestrator,
	v *core.Validator,
	l *slog.Logger,
	clock types.Clock,
) *PlaybookHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &PlaybookHandler{
		store:      store,
		recContext: recContext,
		patchLog:   patchLog,
		orch:       orch,
		validator:  v,
		logger:     l,
		clock:      clock,
	}
}

// RegisterRoutes mounts playbook routes on the provided chi.Router.
func (h *PlaybookHandler) RegisterRoutes(r chi.Router) {
	r.Route("/playbooks/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/versions", h.ListVersions)
		r.Get("/versions/{version}", h.GetVersion)
		r.Get("/export", h.Export)
		r.Post("/patches", h.SubmitPatch)
	})
}

// --- Handler Methods ---

// Get handles GET /v1/playbooks/{id}: the active version plus the retained
// version numbers.
func (h *PlaybookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pb, err := h.store.GetActive(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	versions, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: PlaybookDetail{
		Playbook: pb,
		Versions: versions,
	}})
}

// ListVersions handles GET /v1/playbooks/{id}/versions.
func (h *PlaybookHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	versions, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: versions})
}

// GetVersion handles GET /v1/playbooks/{id}/versions/{version}. Old versions
// stay queryable for audit.
func (h *PlaybookHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"version must be a positive integer",
			nil,
		))
		return
	}

	pb, err := h.store.GetVersion(r.Context(), id, version)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: pb})
}

// SubmitPatch handles POST /v1/playbooks/{id}/patches.
//
// The whole pipeline runs inside Store.Mutate so validation and application
// are one atomic step against the active version:
//  1. Validate against the active version (version check first, then
//     allowlist and structure, exhaustively).
//  2. Apply, producing version N+1.
//  3. Recompute the dependent recommendation using the retained generation
//     context (same observation, weather, and reference time).
//
// A rejected patch leaves the playbook untouched and maps to the rejection's
// error code; the submission is still recorded in the patch log. A recompute
// failure after a successful apply keeps the new version and is reported in
// the result, not as an HTTP error.
func (h *PlaybookHandler) SubmitPatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SubmitPatchRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	p := &types.PlaybookPatch{
		PatchID:     "pch_" + uuid.NewString(),
		PlaybookID:  id,
		BaseVersion: req.BaseVersion,
		RequestedBy: req.RequestedBy,
		RequestedAt: h.clock.Now().UTC(),
		Reason:      req.Reason,
		Operations:  req.Operations,
	}

	var (
		result        *types.PatchApplyResult
		recomputed    *types.Recommendation
		recCtx        *recommendation.Record
		rejectionCode types.ErrorCode
	)

	err := h.store.Mutate(r.Context(), id, func(active *types.Playbook) (*types.Playbook, error) {
		validation := patch.Validate(p, active)
		if !validation.Valid {
			rejectionCode = validation.Code
			result = &types.PatchApplyResult{
				PatchID:          p.PatchID,
				PlaybookID:       id,
				OldVersion:       active.Version,
				NewVersion:       active.Version,
				Status:           types.PatchRejected,
				ValidationErrors: validation.Errors,
				AppliedAt:        h.clock.Now().UTC(),
			}
			return nil, nil
		}

		// Recompute context: the latest recommendation's frozen inputs. A
		// playbook with no recommendation yet applies without a recompute.
		var obs *types.Observation
		var wx *types.WeatherFeatures
		referenceTime := h.clock.Now()
		if record, err := h.recContext.LatestForPlaybook(r.Context(), id); err == nil {
			recCtx = record
			obs = record.Observation
			wx = record.Weather
			referenceTime = record.ReferenceTime
		}

		newRecID := "rec_" + uuid.NewString()
		res, updated, rec := h.orch.ApplyPatchAndRecompute(
			p, active, obs, wx, h.clock.Now(), newRecID, referenceTime)

		result = res
		recomputed = rec
		if res.Status == types.PatchRejected {
			// Application failure past validation means the patch is
			// structurally incompatible with the playbook's shape.
			rejectionCode = types.ErrCodeMalformedPatch
			return nil, nil
		}
		return updated, nil
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.recordSubmission(r.Context(), p, result)

	if recomputed != nil {
		record := &recommendation.Record{
			Recommendation: recomputed,
			Observation:    recCtx.Observation,
			Weather:        recCtx.Weather,
			ReferenceTime:  recCtx.ReferenceTime,
		}
		if err := h.recContext.Put(r.Context(), record); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to store recomputed recommendation",
				"patch_id", p.PatchID,
				"recommendation_id", recomputed.RecommendationID,
				"error", err,
			)
		}
	}

	if rejectionCode != "" {
		core.Error(w, r, types.NewAppErrorWithDetails(
			rejectionCode,
			"patch rejected",
			nil,
			map[string]any{"validationErrors": result.ValidationErrors},
		))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// Export handles GET /v1/playbooks/{id}/export: the gzip share bundle of the
// playbook, its version history, the latest recommendation, and the patch
// trail.
func (h *PlaybookHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pb, err := h.store.GetActive(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	versions, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var rec *types.Recommendation
	var wx *types.WeatherFeatures
	if record, err := h.recContext.LatestForPlaybook(r.Context(), id); err == nil {
		rec = record.Recommendation
		wx = record.Weather
	}

	var history []patch.LogEntry
	if h.patchLog != nil {
		history, err = h.patchLog.ListByPlaybook(r.Context(), id)
		if err != nil {
			core.Error(w, r, err)
			return
		}
	}

	bundle, err := export.NewBundle(pb, versions, rec, wx, history, h.clock.Now())
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "bundle assembly failed", err))
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="fieldscout_`+id+`.json.gz"`)
	if err := export.Write(w, bundle); err != nil {
		// Headers are already written; all we can do is log.
		h.logger.ErrorContext(r.Context(), "bundle write failed",
			"playbook_id", id,
			"error", err,
		)
	}
}

// recordSubmission appends the patch outcome to the audit log. Errors are
// logged but not propagated.
func (h *PlaybookHandler) recordSubmission(ctx context.Context, p *types.PlaybookPatch, result *types.PatchApplyResult) {
	if h.patchLog == nil || result == nil {
		return
	}
	if err := h.patchLog.Record(ctx, p, result); err != nil {
		h.logger.WarnContext(ctx, "failed to record patch submission",
			"patch_id", p.PatchID,
			"error", err,
		)
	}
}
