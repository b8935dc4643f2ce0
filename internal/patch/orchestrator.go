package patch

import (
	"log/slog"
	"time"

	"fieldscout/internal/engine"
	"fieldscout/internal/types"
)

// Orchestrator sequences patch validation, application, and the rebuild of
// the dependent recommendation under the new playbook version.
type Orchestrator struct {
	builder *engine.Builder
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator around a recommendation builder.
func NewOrchestrator(builder *engine.Builder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{builder: builder, logger: logger}
}

// ApplyPatchAndRecompute validates and applies a patch, then regenerates the
// recommendation for the given observation/weather context against the NEW
// playbook version.
//
// On validation failure it returns a rejected result with the playbook
// unchanged and no recomputed recommendation. On success, the result's
// RecomputedRecommendationID is the causal pointer to the regenerated
// recommendation; it is nil when no observation context was available.
//
// A recompute failure after a successful apply does NOT roll back the new
// version -- the rule change itself is valid. The failure is reported in
// RecomputeError so the caller can retry generation without re-patching.
//
// The caller is responsible for making validate-then-apply atomic per
// playbook id (see playbook.Store); this function is pure computation.
func (o *Orchestrator) ApplyPatchAndRecompute(
	p *types.PlaybookPatch,
	playbook *types.Playbook,
	observation *types.Observation,
	wx *types.WeatherFeatures,
	appliedAt time.Time,
	newRecommendationID string,
	referenceTime time.Time,
) (*types.PatchApplyResult, *types.Playbook, *types.Recommendation) {
	validation := Validate(p, playbook)
	if !validation.Valid {
		o.logger.Warn("patch rejected",
			"patch_id", p.PatchID,
			"playbook_id", playbook.PlaybookID,
			"code", string(validation.Code),
			"errors", len(validation.Errors),
		)
		return rejectedResult(p, playbook, validation.Errors, appliedAt), nil, nil
	}

	updated, err := Apply(p, playbook, appliedAt)
	if err != nil {
		o.logger.Warn("patch application failed",
			"patch_id", p.PatchID,
			"playbook_id", playbook.PlaybookID,
			"error", err,
		)
		return rejectedResult(p, playbook, []string{err.Error()}, appliedAt), nil, nil
	}

	result := &types.PatchApplyResult{
		PatchID:          p.PatchID,
		PlaybookID:       playbook.PlaybookID,
		OldVersion:       playbook.Version,
		NewVersion:       updated.Version,
		Status:           types.PatchApplied,
		ValidationErrors: []string{},
		AppliedAt:        appliedAt.UTC(),
	}

	if observation == nil {
		// Nothing to recompute for this playbook's scope.
		return result, updated, nil
	}

	rec, err := o.builder.GenerateRecommendation(observation, updated, wx, newRecommendationID, referenceTime)
	if err != nil {
		// Keep the new playbook version; surface the recompute failure
		// distinctly so the caller can retry generation alone.
		o.logger.Error("recompute failed after patch apply",
			"patch_id", p.PatchID,
			"playbook_id", playbook.PlaybookID,
			"new_version", updated.Version,
			"error", err,
		)
		result.RecomputeError = err.Error()
		return result, updated, nil
	}

	result.RecomputedRecommendationID = &rec.RecommendationID
	return result, updated, rec
}

// rejectedResult builds the result for a rejected patch: versions unchanged,
// no recomputed recommendation.
func rejectedResult(p *types.PlaybookPatch, playbook *types.Playbook, errs []string, appliedAt time.Time) *types.PatchApplyResult {
	return &types.PatchApplyResult{
		PatchID:          p.PatchID,
		PlaybookID:       playbook.PlaybookID,
		OldVersion:       playbook.Version,
		NewVersion:       playbook.Version,
		Status:           types.PatchRejected,
		ValidationErrors: errs,
		AppliedAt:        appliedAt.UTC(),
	}
}
