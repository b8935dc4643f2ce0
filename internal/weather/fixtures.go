package weather

import (
	"time"

	"fieldscout/internal/types"
)

// DemoFeaturesID is the id of the built-in demo weather snapshot.
const DemoFeaturesID = "wxf_20260211_demo_01"

// DemoFeatures returns the built-in Yolo County evening weather snapshot.
// Every call returns a fresh value.
func DemoFeatures() *types.WeatherFeatures {
	return &types.WeatherFeatures{
		WeatherFeaturesID: DemoFeaturesID,
		SourceMode:        types.WeatherSourceDemo,
		ProfileTime:       time.Date(2026, 2, 11, 18, 0, 0, 0, time.UTC),
		Location:          types.GeoPoint{Lat: 38.5449, Lon: -121.7405},
		InversionPresent:  false,
		HumidityLayering:  types.HumidityUniformHumid,
		WindShearProxy:    types.WindShearModerate,
		SprayWindowScore:  0.75,
		DiseaseRiskScore:  0.65,
		HeatStressScore:   0.3,
		Notes: []string{
			"Demo profile for hackathon",
			"Yolo County typical evening conditions",
			"Surface wind 8 kph from NW",
			"RH gradient 68% surface to 52% at 500m",
			"No significant temperature inversion",
		},
	}
}

// DemoVerticalLayers returns the vertical profile the demo snapshot was
// derived from, for exercising the derivation functions end to end.
func DemoVerticalLayers() []types.VerticalLayer {
	return []types.VerticalLayer{
		{AltitudeM: 0, TemperatureC: 18.5, RelativeHumidityPct: 68, WindSpeedKph: 8, WindDirectionDeg: 315},
		{AltitudeM: 100, TemperatureC: 17.8, RelativeHumidityPct: 62, WindSpeedKph: 12, WindDirectionDeg: 320},
		{AltitudeM: 300, TemperatureC: 16.2, RelativeHumidityPct: 55, WindSpeedKph: 18, WindDirectionDeg: 325},
		{AltitudeM: 500, TemperatureC: 14.5, RelativeHumidityPct: 52, WindSpeedKph: 22, WindDirectionDeg: 330},
	}
}
