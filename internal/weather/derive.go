// Package weather supplies derived weather feature snapshots to the engine,
// from demo fixtures or a live station feed with cached failover.
package weather

import (
	"math"
	"sort"

	"fieldscout/internal/types"
)

const inversionLayerCeilingM = 150

// DeriveInversionPresent reports whether temperature increases with altitude
// anywhere in the lowest 150m of the profile. Fewer than two low layers means
// no inversion can be detected.
func DeriveInversionPresent(layers []types.VerticalLayer) bool {
	if len(layers) < 2 {
		return false
	}

	var low []types.VerticalLayer
	for _, l := range layers {
		if l.AltitudeM <= inversionLayerCeilingM {
			low = append(low, l)
		}
	}
	if len(low) < 2 {
		return false
	}
	sortByAltitude(low)

	for i := 1; i < len(low); i++ {
		if low[i].TemperatureC > low[i-1].TemperatureC {
			return true
		}
	}
	return false
}

// DeriveHumidityLayering classifies the vertical humidity structure from the
// surface and topmost layers.
func DeriveHumidityLayering(layers []types.VerticalLayer) types.HumidityLayering {
	if len(layers) < 2 {
		return types.HumidityUnknown
	}

	sorted := append([]types.VerticalLayer(nil), layers...)
	sortByAltitude(sorted)

	surfaceRH := sorted[0].RelativeHumidityPct
	aloftRH := sorted[len(sorted)-1].RelativeHumidityPct

	switch {
	case surfaceRH-aloftRH > 20:
		return types.HumidityDryAloftHumidSurface
	case surfaceRH > 70 && aloftRH > 70:
		return types.HumidityUniformHumid
	case surfaceRH < 50 && aloftRH < 50:
		return types.HumidityUniformDry
	default:
		return types.HumidityUnknown
	}
}

// DeriveWindShearProxy classifies the absolute wind speed differential between
// the surface and topmost layers.
func DeriveWindShearProxy(layers []types.VerticalLayer) types.WindShearProxy {
	if len(layers) < 2 {
		return types.WindShearUnknown
	}

	sorted := append([]types.VerticalLayer(nil), layers...)
	sortByAltitude(sorted)

	shear := math.Abs(sorted[len(sorted)-1].WindSpeedKph - sorted[0].WindSpeedKph)
	switch {
	case shear < 5:
		return types.WindShearLow
	case shear < 15:
		return types.WindShearModerate
	default:
		return types.WindShearHigh
	}
}

// SprayWindowScore scores spray suitability from 0 (unsuitable) to 1 (ideal),
// deducting for inversion, humidity structure, and shear.
func SprayWindowScore(inversionPresent bool, humidity types.HumidityLayering, shear types.WindShearProxy) float64 {
	score := 1.0

	if inversionPresent {
		score -= 0.3
	}

	switch humidity {
	case types.HumidityUniformHumid:
		score -= 0.1
	case types.HumidityDryAloftHumidSurface:
		score -= 0.2
	}

	switch shear {
	case types.WindShearHigh:
		score -= 0.3
	case types.WindShearModerate:
		score -= 0.1
	}

	return math.Max(0, score)
}

// DiseaseRiskScore scores fungal disease pressure from the humidity
// structure. Persistent surface humidity drives risk up.
func DiseaseRiskScore(humidity types.HumidityLayering) float64 {
	switch humidity {
	case types.HumidityUniformHumid:
		return 0.65
	case types.HumidityDryAloftHumidSurface:
		return 0.55
	case types.HumidityUniformDry:
		return 0.2
	default:
		return 0.4
	}
}

// HeatStressScore scores canopy heat stress from the surface temperature,
// ramping linearly from 0 at 20C to 1 at 40C.
func HeatStressScore(surfaceTempC float64) float64 {
	score := (surfaceTempC - 20) / 20
	return math.Min(1, math.Max(0, score))
}

func sortByAltitude(layers []types.VerticalLayer) {
	sort.Slice(layers, func(i, j int) bool {
		return layers[i].AltitudeM < layers[j].AltitudeM
	})
}
