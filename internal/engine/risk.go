package engine

import (
	"fmt"
	"math"

	"fieldscout/internal/types"
)

// Scoring constants. These are heuristic configuration, not tuned output.
const (
	baseConfidence  = 0.9
	demoPenalty     = 0.05
	shearPenalty    = 0.10
	humidityPenalty = 0.10
	floorConfidence = 0.5

	lowSprayWindowScore = 0.4
)

// EvaluateRiskFlags derives the advisory flags for a recommendation from the
// weather snapshot. Flags are additive, not mutually exclusive, and the
// result is de-duplicated.
func EvaluateRiskFlags(wx *types.WeatherFeatures) []types.RiskFlag {
	flags := []types.RiskFlag{}

	if wx == nil || wx.SourceMode == types.WeatherSourceNone {
		flags = appendFlag(flags, types.RiskWeatherDataMissing)
	}
	if wx == nil {
		return flags
	}
	if wx.WindShearProxy == types.WindShearHigh {
		flags = appendFlag(flags, types.RiskHighDrift)
	}
	if wx.SprayWindowScore < lowSprayWindowScore {
		flags = appendFlag(flags, types.RiskLowConfidence)
	}

	return flags
}

// CalculateConfidence scores how much to trust the timing window. It starts
// from a base and subtracts fixed penalties for degraded inputs, floored so a
// recommendation is never presented as worse than a coin flip with margin.
// The result is rounded to two decimals; a single rounding rule here keeps
// every surface that renders confidence in agreement.
func CalculateConfidence(wx *types.WeatherFeatures) float64 {
	confidence := baseConfidence

	if wx == nil {
		return floorConfidence
	}
	if wx.SourceMode == types.WeatherSourceDemo {
		confidence -= demoPenalty
	}
	if wx.WindShearProxy == types.WindShearHigh {
		confidence -= shearPenalty
	}
	if wx.HumidityLayering == types.HumidityUnknown {
		confidence -= humidityPenalty
	}

	return round2(math.Max(floorConfidence, confidence))
}

// BuildDrivers emits the string-encoded weather facts recorded for audit
// display. The order is fixed regardless of whether a given fact influenced
// the outcome. The rule may be nil (monitor fallback), in which case the
// constraint driver is omitted.
func BuildDrivers(rule *types.PlaybookRule, wx *types.WeatherFeatures) []string {
	if wx == nil {
		return []string{}
	}

	drivers := []string{
		fmt.Sprintf("inversionPresent=%t", wx.InversionPresent),
		fmt.Sprintf("humidityLayering=%s", wx.HumidityLayering),
		fmt.Sprintf("windShearProxy=%s", wx.WindShearProxy),
	}
	if rule != nil {
		drivers = append(drivers, fmt.Sprintf("maxWindKph=%d", int(math.Round(rule.Constraints.MaxWindKph))))
	}
	return drivers
}

// appendFlag adds a flag if not already present.
func appendFlag(flags []types.RiskFlag, f types.RiskFlag) []types.RiskFlag {
	for _, existing := range flags {
		if existing == f {
			return flags
		}
	}
	return append(flags, f)
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
