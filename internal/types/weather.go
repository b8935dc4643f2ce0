package types

import "time"

// WeatherFeatures is a derived snapshot of atmospheric conditions used to
// adjust timing windows and score risk. It is supplied by the weather adapter
// and treated as immutable input.
type WeatherFeatures struct {
	WeatherFeaturesID string            `json:"weatherFeaturesId"`
	SourceMode        WeatherSourceMode `json:"sourceMode"`
	ProfileTime       time.Time         `json:"profileTime"`
	Location          GeoPoint          `json:"location"`
	InversionPresent  bool              `json:"inversionPresent"`
	HumidityLayering  HumidityLayering  `json:"humidityLayering"`
	WindShearProxy    WindShearProxy    `json:"windShearProxy"`
	SprayWindowScore  float64           `json:"sprayWindowScore"`
	DiseaseRiskScore  float64           `json:"diseaseRiskScore"`
	HeatStressScore   float64           `json:"heatStressScore"`
	Notes             []string          `json:"notes"`
}

// VerticalLayer is one level of an atmospheric profile, used to derive
// WeatherFeatures from raw station or sounding data.
type VerticalLayer struct {
	AltitudeM          float64 `json:"altitudeM"`
	TemperatureC       float64 `json:"temperatureC"`
	RelativeHumidityPct float64 `json:"relativeHumidityPct"`
	WindSpeedKph       float64 `json:"windSpeedKph"`
	WindDirectionDeg   float64 `json:"windDirectionDeg"`
}
