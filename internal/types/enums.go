package types

// Issue is the crop problem category extracted from a field note.
type Issue string

const (
	IssuePowderyMildew Issue = "powdery_mildew"
	IssueHeatStress    Issue = "heat_stress"
	IssueOther         Issue = "other"
)

// Severity grades how advanced an issue is. It is accepted by the rule
// selector but does not currently partition rule choice; all severities of a
// known issue share the same response template.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// Crop identifies the crop a playbook applies to.
type Crop string

const CropGrape Crop = "grape"

// Region identifies the operating region of a playbook. The region fixes the
// civil timezone that timing windows are rendered in.
type Region string

const RegionYoloCountyCA Region = "yolo_county_ca"

// Timezone returns the IANA timezone for the region. Unknown regions fall
// back to UTC so window rendering never fails.
func (r Region) Timezone() string {
	switch r {
	case RegionYoloCountyCA:
		return "America/Los_Angeles"
	default:
		return "UTC"
	}
}

// ActionType categorizes the field action a rule prescribes.
type ActionType string

const (
	ActionSpray    ActionType = "spray"
	ActionIrrigate ActionType = "irrigate"
	ActionMonitor  ActionType = "monitor"
)

// WeatherSourceMode records where a weather snapshot came from.
type WeatherSourceMode string

const (
	WeatherSourceDemo WeatherSourceMode = "demo"
	WeatherSourceLive WeatherSourceMode = "live"
	WeatherSourceNone WeatherSourceMode = "none"
)

// HumidityLayering classifies the vertical humidity structure.
type HumidityLayering string

const (
	HumidityDryAloftHumidSurface HumidityLayering = "dry_aloft_humid_surface"
	HumidityUniformHumid         HumidityLayering = "uniform_humid"
	HumidityUniformDry           HumidityLayering = "uniform_dry"
	HumidityUnknown              HumidityLayering = "unknown"
)

// WindShearProxy classifies the surface-to-aloft wind speed differential.
type WindShearProxy string

const (
	WindShearLow      WindShearProxy = "low"
	WindShearModerate WindShearProxy = "moderate"
	WindShearHigh     WindShearProxy = "high"
	WindShearUnknown  WindShearProxy = "unknown"
)

// AdjustmentFeature names the weather feature a timing adjustment predicate
// evaluates against.
type AdjustmentFeature string

const (
	FeatureInversionPresent AdjustmentFeature = "inversionPresent"
	FeatureHumidityLayering AdjustmentFeature = "humidityLayering"
	FeatureWindShearProxy   AdjustmentFeature = "windShearProxy"
	FeatureSprayWindowScore AdjustmentFeature = "sprayWindowScore"
	FeatureDiseaseRiskScore AdjustmentFeature = "diseaseRiskScore"
	FeatureHeatStressScore  AdjustmentFeature = "heatStressScore"
)

// RiskFlag is an advisory flag attached to a recommendation. Flags are
// additive and de-duplicated; their order is not significant.
type RiskFlag string

const (
	RiskWeatherDataMissing   RiskFlag = "weather_data_missing"
	RiskHighDrift            RiskFlag = "high_drift_risk"
	RiskLowConfidence        RiskFlag = "low_confidence"
	RiskManualReviewRequired RiskFlag = "manual_review_required"
)

// Rationale tags explain which timing decision fired, in the order applied.
const (
	RationaleStandardTiming   = "standard_timing"
	RationaleNoMatchingRule   = "no_matching_playbook_rule"
	RationaleAvoidInversion   = "avoid_inversion"
	RationaleHumidPersistence = "high_humidity_persistence"
	RationaleSprayDriftRisk   = "spray_drift_risk"
	RationaleHighHeatStress   = "high_heat_stress"
)

// RecommendationStatus tracks the confirmation lifecycle of a recommendation.
// A recommendation's computed content is immutable; only the status moves.
type RecommendationStatus string

const (
	RecommendationPending   RecommendationStatus = "pending_confirmation"
	RecommendationConfirmed RecommendationStatus = "confirmed"
	RecommendationRejected  RecommendationStatus = "rejected"
)

// PatchOp is a playbook patch operation kind.
type PatchOp string

const (
	PatchOpAdd     PatchOp = "add"
	PatchOpReplace PatchOp = "replace"
	PatchOpRemove  PatchOp = "remove"
)

// PatchApplyStatus is the terminal status of a patch submission.
type PatchApplyStatus string

const (
	PatchApplied  PatchApplyStatus = "applied"
	PatchRejected PatchApplyStatus = "rejected"
)

// ObservationStatus tracks an observation through capture and confirmation.
type ObservationStatus string

const (
	ObservationDraft     ObservationStatus = "draft"
	ObservationConfirmed ObservationStatus = "confirmed"
	ObservationLogged    ObservationStatus = "logged"
)
