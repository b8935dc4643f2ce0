package types

import (
	"time"
)

// GeoPoint is a geographic coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// ObservationExtraction is the structured reading of a free-text field note,
// produced by the external extraction pipeline.
type ObservationExtraction struct {
	Crop            Crop     `json:"crop"`
	Variety         string   `json:"variety,omitempty"`
	FieldBlock      string   `json:"fieldBlock"`
	Issue           Issue    `json:"issue" validate:"required,oneof=powdery_mildew heat_stress other"`
	Severity        Severity `json:"severity" validate:"required,oneof=low moderate high"`
	Symptoms        []string `json:"symptoms"`
	ObservationTime string   `json:"observationTime"`
}

// Observation is a confirmed field observation. It arrives as plain data from
// the capture/extraction pipeline; the engine never mutates it.
type Observation struct {
	ObservationID string                `json:"observationId" validate:"required"`
	DeviceID      string                `json:"deviceId"`
	CreatedAt     time.Time             `json:"createdAt"`
	RawNoteText   string                `json:"rawNoteText"`
	Extraction    ObservationExtraction `json:"extraction" validate:"required"`
	Location      GeoPoint              `json:"location"`
	Status        ObservationStatus     `json:"status"`
}

// BaseWindowHours defines a rule's base timing window as hour offsets from a
// reference time. Offsets may be negative.
type BaseWindowHours struct {
	StartOffsetHours float64 `json:"startOffsetHours"`
	EndOffsetHours   float64 `json:"endOffsetHours"`
}

// RuleWeatherAdjustment is a conditional shift applied to a base window when
// its predicate matches the weather snapshot. Condition is either an exact
// enum/boolean value ("true", "uniform_humid") or a numeric comparison
// ("< 0.4", "> 0.6") against a named score feature.
type RuleWeatherAdjustment struct {
	Feature           AdjustmentFeature `json:"feature"`
	Condition         string            `json:"condition"`
	ShiftStartMinutes int               `json:"shiftStartMinutes"`
	ShiftEndMinutes   int               `json:"shiftEndMinutes"`
	RationaleTag      string            `json:"rationaleTag"`
}

// RuleTiming is a rule's timing formula: the base window plus an ordered list
// of weather-conditioned adjustments. Adjustment order is load-bearing; it
// fixes both the arithmetic and the rationale ordering.
type RuleTiming struct {
	BaseWindowHours    BaseWindowHours         `json:"baseWindowHours"`
	WeatherAdjustments []RuleWeatherAdjustment `json:"weatherAdjustments"`
}

// RuleAction is the field action a rule prescribes.
type RuleAction struct {
	Type         ActionType `json:"type"`
	Instructions string     `json:"instructions"`
}

// RuleConstraints holds the numeric/boolean limits a rule operates under.
// Optional limits are pointers so patches can add and remove them.
type RuleConstraints struct {
	MaxWindKph            float64  `json:"maxWindKph"`
	AvoidInversion        *bool    `json:"avoidInversion,omitempty"`
	MaxRelativeHumidity   *float64 `json:"maxRelativeHumidityPct,omitempty"`
	MinHoursWithoutRain   *float64 `json:"minHoursWithoutRain,omitempty"`
	MaxTemperatureC       *float64 `json:"maxTemperatureC,omitempty"`
	IrrigationWindowLocal *string  `json:"irrigationWindowLocal,omitempty"`
}

// PlaybookRule is an issue-specific response template.
//
// EditablePaths is the exhaustive allowlist of sub-paths within this rule
// that a patch may target. Nothing outside it is ever mutated by a patch.
type PlaybookRule struct {
	RuleID        string          `json:"ruleId"`
	Issue         Issue           `json:"issue"`
	Severity      Severity        `json:"severity"`
	Constraints   RuleConstraints `json:"constraints"`
	Action        RuleAction      `json:"action"`
	Timing        RuleTiming      `json:"timing"`
	EditablePaths []string        `json:"editablePaths"`
}

// Playbook is a versioned, named set of response rules for a crop/region.
//
// A playbook is never mutated in place: every successful patch produces a new
// version, and exactly one version per playbook id is active at a time. Old
// versions remain queryable for audit.
type Playbook struct {
	PlaybookID string                   `json:"playbookId"`
	Crop       Crop                     `json:"crop"`
	Region     Region                   `json:"region"`
	Version    int                      `json:"version"`
	UpdatedAt  time.Time                `json:"updatedAt"`
	Rules      map[string]*PlaybookRule `json:"rules"`
}

// EditablePaths returns the union of every rule's editable paths.
func (p *Playbook) EditablePaths() []string {
	var paths []string
	for _, rule := range p.Rules {
		paths = append(paths, rule.EditablePaths...)
	}
	return paths
}

// TimingWindow is the rendered action window of a recommendation. StartAt and
// EndAt are ISO-8601 strings in the playbook region's civil timezone,
// including the correct daylight-saving offset for the date.
type TimingWindow struct {
	StartAt       string   `json:"startAt"`
	EndAt         string   `json:"endAt"`
	LocalTimezone string   `json:"localTimezone"`
	Confidence    float64  `json:"confidence"`
	Drivers       []string `json:"drivers"`
}

// Recommendation is a timed, explainable action recommendation. The computed
// content is immutable once generated; confirmation is a status transition
// only.
type Recommendation struct {
	RecommendationID string               `json:"recommendationId"`
	ObservationID    string               `json:"observationId"`
	PlaybookID       string               `json:"playbookId"`
	PlaybookVersion  int                  `json:"playbookVersion"`
	WeatherFeatures  string               `json:"weatherFeaturesId"`
	GeneratedAt      time.Time            `json:"generatedAt"`
	Issue            Issue                `json:"issue"`
	Severity         Severity             `json:"severity"`
	Action           string               `json:"action"`
	Rationale        []string             `json:"rationale"`
	TimingWindow     TimingWindow         `json:"timingWindow"`
	RiskFlags        []RiskFlag           `json:"riskFlags"`
	RequiresConfirm  bool                 `json:"requiredConfirmation"`
	Status           RecommendationStatus `json:"status"`
}

// PatchOperation is a single add/replace/remove against a playbook path.
type PatchOperation struct {
	Op            PatchOp `json:"op" validate:"required,oneof=add replace remove"`
	Path          string  `json:"path" validate:"required"`
	Value         any     `json:"value,omitempty"`
	Justification string  `json:"justification,omitempty"`
}

// PlaybookPatch is a proposed, versioned edit to a playbook. Immutable once
// submitted. BaseVersion is the version the requester believes is current;
// application is a compare-and-swap against it.
type PlaybookPatch struct {
	PatchID     string           `json:"patchId" validate:"required"`
	PlaybookID  string           `json:"playbookId" validate:"required"`
	BaseVersion int              `json:"baseVersion" validate:"gte=1"`
	RequestedBy string           `json:"requestedByDeviceId"`
	RequestedAt time.Time        `json:"requestedAt"`
	Reason      string           `json:"reason"`
	Operations  []PatchOperation `json:"operations" validate:"required,min=1,dive"`
}

// PatchApplyResult records the outcome of a patch submission and is the
// causal link between a playbook edit and its downstream recommendation:
// RecomputedRecommendationID is set exactly when a recompute happened.
type PatchApplyResult struct {
	PatchID                    string           `json:"patchId"`
	PlaybookID                 string           `json:"playbookId"`
	OldVersion                 int              `json:"oldVersion"`
	NewVersion                 int              `json:"newVersion"`
	Status                     PatchApplyStatus `json:"status"`
	ValidationErrors           []string         `json:"validationErrors"`
	RecomputedRecommendationID *string          `json:"recomputedRecommendationId"`
	// RecomputeError reports a recompute failure after a successful apply.
	// The new playbook version is kept; the caller can retry recommendation
	// generation without re-patching.
	RecomputeError string    `json:"recomputeError,omitempty"`
	AppliedAt      time.Time `json:"appliedAt"`
}
