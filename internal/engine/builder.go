package engine

import (
	"fmt"
	"log/slog"

	"time"

	"fieldscout/internal/types"
)

// Monitor fallback window offsets, used when an issue has no configured rule.
const (
	fallbackStartOffsetHours = 8
	fallbackEndOffsetHours   = 12
	fallbackConfidence       = 0.6
)

const fallbackInstructions = "Monitor the affected block and recheck conditions within 24 hours."

// Builder composes rule selection, timing calculation, and risk scoring into
// Recommendation records. The clock abstraction keeps generation timestamps
// deterministic in tests.
type Builder struct {
	clock  types.Clock
	logger *slog.Logger
}

// NewBuilder creates a recommendation Builder.
func NewBuilder(clock types.Clock, logger *slog.Logger) *Builder {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{clock: clock, logger: logger}
}

// GenerateRecommendation produces a timed, explainable recommendation for a
// confirmed observation against the active playbook and a weather snapshot.
//
// When the observation's issue has no configured rule, the defined fallback
// is a "monitor" recommendation with a fixed 8-12 hour window; that path is
// never a hard failure. The returned record has status pending_confirmation
// and always requires confirmation; persistence is the caller's concern.
func (b *Builder) GenerateRecommendation(
	observation *types.Observation,
	playbook *types.Playbook,
	wx *types.WeatherFeatures,
	recommendationID string,
	referenceTime time.Time,
) (*types.Recommendation, error) {
	if observation == nil {
		return nil, fmt.Errorf("observation must not be nil")
	}
	if playbook == nil {
		return nil, fmt.Errorf("playbook must not be nil")
	}

	issue := observation.Extraction.Issue
	severity := observation.Extraction.Severity
	tz := playbook.Region.Timezone()

	rule, found := SelectRule(playbook, issue, severity)
	if !found {
		b.logger.Info("no matching playbook rule, emitting monitor fallback",
			"playbook_id", playbook.PlaybookID,
			"issue", issue,
		)
		return b.buildFallback(observation, playbook, wx, recommendationID, referenceTime, tz), nil
	}

	window, rationale := CalculateWindow(rule, referenceTime, wx)

	rec := &types.Recommendation{
		RecommendationID: recommendationID,
		ObservationID:    observation.ObservationID,
		PlaybookID:       playbook.PlaybookID,
		PlaybookVersion:  playbook.Version,
		WeatherFeatures:  weatherID(wx),
		GeneratedAt:      b.clock.Now().UTC(),
		Issue:            issue,
		Severity:         severity,
		Action:           rule.Action.Instructions,
		Rationale:        rationale,
		TimingWindow: types.TimingWindow{
			StartAt:       FormatLocal(window.Start, tz),
			EndAt:         FormatLocal(window.End, tz),
			LocalTimezone: tz,
			Confidence:    CalculateConfidence(wx),
			Drivers:       BuildDrivers(rule, wx),
		},
		RiskFlags:       EvaluateRiskFlags(wx),
		RequiresConfirm: true,
		Status:          types.RecommendationPending,
	}

	return rec, nil
}

// buildFallback emits the monitor recommendation defined for issues without a
// configured rule.
func (b *Builder) buildFallback(
	observation *types.Observation,
	playbook *types.Playbook,
	wx *types.WeatherFeatures,
	recommendationID string,
	referenceTime time.Time,
	tz string,
) *types.Recommendation {
	start := referenceTime.Add(fallbackStartOffsetHours * time.Hour)
	end := referenceTime.Add(fallbackEndOffsetHours * time.Hour)

	return &types.Recommendation{
		RecommendationID: recommendationID,
		ObservationID:    observation.ObservationID,
		PlaybookID:       playbook.PlaybookID,
		PlaybookVersion:  playbook.Version,
		WeatherFeatures:  weatherID(wx),
		GeneratedAt:      b.clock.Now().UTC(),
		Issue:            observation.Extraction.Issue,
		Severity:         observation.Extraction.Severity,
		Action:           fallbackInstructions,
		Rationale:        []string{types.RationaleNoMatchingRule},
		TimingWindow: types.TimingWindow{
			StartAt:       FormatLocal(start, tz),
			EndAt:         FormatLocal(end, tz),
			LocalTimezone: tz,
			Confidence:    fallbackConfidence,
			Drivers:       BuildDrivers(nil, wx),
		},
		RiskFlags:       []types.RiskFlag{types.RiskManualReviewRequired},
		RequiresConfirm: true,
		Status:          types.RecommendationPending,
	}
}

func weatherID(wx *types.WeatherFeatures) string {
	if wx == nil {
		return ""
	}
	return wx.WeatherFeaturesID
}
