package engine

import (
	"strconv"
	"strings"
	"time"

	"fieldscout/internal/types"
)

// Window is a computed action window in absolute time, before rendering into
// the playbook region's civil timezone.
type Window struct {
	Start time.Time
	End   time.Time
}

// CalculateWindow computes a rule's timing window at referenceTime and applies
// the rule's weather adjustments in list order.
//
// Each adjustment whose predicate matches shifts the start and end
// independently (either shift may be negative) and appends its rationale tag.
// The returned rationale preserves application order; if no adjustment fired
// it contains the single standard-timing tag. Order matters for
// reproducibility and for downstream "why this window" display.
func CalculateWindow(rule *types.PlaybookRule, referenceTime time.Time, wx *types.WeatherFeatures) (Window, []string) {
	w := Window{
		Start: referenceTime.Add(hours(rule.Timing.BaseWindowHours.StartOffsetHours)),
		End:   referenceTime.Add(hours(rule.Timing.BaseWindowHours.EndOffsetHours)),
	}

	var rationale []string
	for _, adj := range rule.Timing.WeatherAdjustments {
		if !adjustmentApplies(adj, wx) {
			continue
		}
		w.Start = w.Start.Add(time.Duration(adj.ShiftStartMinutes) * time.Minute)
		w.End = w.End.Add(time.Duration(adj.ShiftEndMinutes) * time.Minute)
		rationale = append(rationale, adj.RationaleTag)
	}

	if len(rationale) == 0 {
		rationale = append(rationale, types.RationaleStandardTiming)
	}

	return w, rationale
}

// adjustmentApplies evaluates an adjustment predicate against the weather
// snapshot. Boolean and class features require an exact condition match;
// score features are compared against a numeric threshold condition such as
// "< 0.4" or "> 0.6". A condition that cannot be parsed never fires.
func adjustmentApplies(adj types.RuleWeatherAdjustment, wx *types.WeatherFeatures) bool {
	if wx == nil {
		return false
	}

	switch adj.Feature {
	case types.FeatureInversionPresent:
		return strconv.FormatBool(wx.InversionPresent) == strings.TrimSpace(adj.Condition)
	case types.FeatureHumidityLayering:
		return string(wx.HumidityLayering) == strings.TrimSpace(adj.Condition)
	case types.FeatureWindShearProxy:
		return string(wx.WindShearProxy) == strings.TrimSpace(adj.Condition)
	case types.FeatureSprayWindowScore:
		return compareScore(wx.SprayWindowScore, adj.Condition)
	case types.FeatureDiseaseRiskScore:
		return compareScore(wx.DiseaseRiskScore, adj.Condition)
	case types.FeatureHeatStressScore:
		return compareScore(wx.HeatStressScore, adj.Condition)
	default:
		return false
	}
}

// compareScore evaluates a threshold condition ("< 0.4", ">= 0.6") against a
// score value. Malformed conditions evaluate to false.
func compareScore(value float64, condition string) bool {
	op, threshold, ok := parseComparison(condition)
	if !ok {
		return false
	}
	switch op {
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	default:
		return false
	}
}

// parseComparison splits a condition like "< 0.4" into operator and threshold.
func parseComparison(condition string) (string, float64, bool) {
	s := strings.TrimSpace(condition)
	var op string
	switch {
	case strings.HasPrefix(s, "<="):
		op = "<="
	case strings.HasPrefix(s, ">="):
		op = ">="
	case strings.HasPrefix(s, "<"):
		op = "<"
	case strings.HasPrefix(s, ">"):
		op = ">"
	default:
		return "", 0, false
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(s, op)), 64)
	if err != nil {
		return "", 0, false
	}
	return op, threshold, true
}

// FormatLocal renders an instant as ISO-8601 in the given IANA timezone,
// carrying the correct UTC offset for that date (including DST transitions).
// An unknown timezone falls back to UTC rather than failing the window.
func FormatLocal(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02T15:04:05-07:00")
}

// hours converts a fractional hour offset to a duration.
func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
