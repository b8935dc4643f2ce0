package playbook

import (
	"time"

	"fieldscout/internal/types"
)

// DemoPlaybookID is the id of the built-in Yolo County grape playbook.
const DemoPlaybookID = "pbk_yolo_grape"

func floatPtr(v float64) *float64 { return &v }

// Demo returns the built-in Yolo County grape playbook at version 3. Every
// call returns a fresh value; callers may mutate their copy freely.
//
// Version 3 matches the shipped demo dataset: the powdery mildew rule still
// carries the pre-patch 12 kph wind ceiling that the demo patch lowers to 10.
func Demo() *types.Playbook {
	return &types.Playbook{
		PlaybookID: DemoPlaybookID,
		Crop:       types.CropGrape,
		Region:     types.RegionYoloCountyCA,
		Version:    3,
		UpdatedAt:  time.Date(2026, 2, 11, 18, 0, 0, 0, time.UTC),
		Rules: map[string]*types.PlaybookRule{
			"rule_pm_moderate": {
				RuleID:   "rule_pm_moderate",
				Issue:    types.IssuePowderyMildew,
				Severity: types.SeverityModerate,
				Constraints: types.RuleConstraints{
					MaxWindKph:          12,
					MaxRelativeHumidity: floatPtr(85),
					MinHoursWithoutRain: floatPtr(6),
				},
				Action: types.RuleAction{
					Type:         types.ActionSpray,
					Instructions: "Apply sulfur-based fungicide to affected block and adjacent rows.",
				},
				Timing: types.RuleTiming{
					BaseWindowHours: types.BaseWindowHours{
						StartOffsetHours: 2,
						EndOffsetHours:   6,
					},
					WeatherAdjustments: []types.RuleWeatherAdjustment{
						{
							Feature:           types.FeatureInversionPresent,
							Condition:         "true",
							ShiftStartMinutes: 120,
							ShiftEndMinutes:   -60,
							RationaleTag:      types.RationaleAvoidInversion,
						},
						{
							Feature:           types.FeatureHumidityLayering,
							Condition:         "uniform_humid",
							ShiftStartMinutes: 0,
							ShiftEndMinutes:   -90,
							RationaleTag:      types.RationaleHumidPersistence,
						},
						{
							Feature:           types.FeatureWindShearProxy,
							Condition:         "high",
							ShiftStartMinutes: 0,
							ShiftEndMinutes:   -60,
							RationaleTag:      types.RationaleSprayDriftRisk,
						},
					},
				},
				EditablePaths: []string{
					"/rules/rule_pm_moderate/constraints/maxWindKph",
					"/rules/rule_pm_moderate/constraints/maxRelativeHumidityPct",
					"/rules/rule_pm_moderate/constraints/minHoursWithoutRain",
					"/rules/rule_pm_moderate/timing/baseWindowHours",
					"/rules/rule_pm_moderate/action/instructions",
				},
			},
			"rule_heat_moderate": {
				RuleID:   "rule_heat_moderate",
				Issue:    types.IssueHeatStress,
				Severity: types.SeverityModerate,
				Constraints: types.RuleConstraints{
					MaxWindKph:      15,
					MaxTemperatureC: floatPtr(35),
				},
				Action: types.RuleAction{
					Type:         types.ActionIrrigate,
					Instructions: "Run deficit irrigation cycle overnight; recheck canopy at dawn.",
				},
				Timing: types.RuleTiming{
					BaseWindowHours: types.BaseWindowHours{
						StartOffsetHours: 10,
						EndOffsetHours:   14,
					},
					WeatherAdjustments: []types.RuleWeatherAdjustment{
						{
							Feature:           types.FeatureHeatStressScore,
							Condition:         "> 0.7",
							ShiftStartMinutes: -60,
							ShiftEndMinutes:   0,
							RationaleTag:      types.RationaleHighHeatStress,
						},
					},
				},
				EditablePaths: []string{
					"/rules/rule_heat_moderate/constraints/maxWindKph",
					"/rules/rule_heat_moderate/constraints/maxTemperatureC",
					"/rules/rule_heat_moderate/timing/baseWindowHours",
					"/rules/rule_heat_moderate/action/instructions",
				},
			},
		},
	}
}

// DemoObservation returns the confirmed powdery mildew observation used by the
// demo scenario.
func DemoObservation() *types.Observation {
	return &types.Observation{
		ObservationID: "obs_20260211_0003",
		DeviceID:      "dev_demo_ipad_01",
		CreatedAt:     time.Date(2026, 2, 12, 2, 40, 0, 0, time.UTC),
		RawNoteText:   "Block 4 chardonnay, powdery mildew on leaves mid canopy, maybe 30 percent of vines, worse near the creek row.",
		Extraction: types.ObservationExtraction{
			Crop:       types.CropGrape,
			Variety:    "chardonnay",
			FieldBlock: "block_4",
			Issue:      types.IssuePowderyMildew,
			Severity:   types.SeverityModerate,
			Symptoms:   []string{"white powdery patches on leaves", "mid-canopy concentration"},
			ObservationTime: time.Date(2026, 2, 12, 2, 40, 0, 0, time.UTC).
				Format(time.RFC3339),
		},
		Location: types.GeoPoint{Lat: 38.585, Lon: -121.77},
		Status:   types.ObservationConfirmed,
	}
}

// DemoPatch returns the demo patch that lowers the mildew rule's wind ceiling
// from 12 to 10 kph against playbook version 3.
func DemoPatch() *types.PlaybookPatch {
	return &types.PlaybookPatch{
		PatchID:     "pch_20260211_0001",
		PlaybookID:  DemoPlaybookID,
		BaseVersion: 3,
		RequestedBy: "dev_demo_ipad_01",
		RequestedAt: time.Date(2026, 2, 12, 3, 5, 0, 0, time.UTC),
		Reason:      "Drift complaints from the neighboring parcel; tighten the wind ceiling.",
		Operations: []types.PatchOperation{
			{
				Op:            types.PatchOpReplace,
				Path:          "/rules/rule_pm_moderate/constraints/maxWindKph",
				Value:         10,
				Justification: "Reduce drift risk near property line.",
			},
		},
	}
}
