package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fieldscout/internal/external"
	"fieldscout/internal/types"
)

const (
	synopticDefaultBaseURL = "https://api.synopticdata.com"
	stationRadiusKm        = 25
)

// SynopticClient fetches station observations from the Synoptic Data API and
// normalizes them into a vertical profile. All requests go through the
// resilient external.BaseClient.
type SynopticClient struct {
	base    *external.BaseClient
	baseURL string
	token   string
}

// NewSynopticClient creates a SynopticClient. An empty baseURL selects the
// production API host.
func NewSynopticClient(base *external.BaseClient, baseURL, token string) *SynopticClient {
	if baseURL == "" {
		baseURL = synopticDefaultBaseURL
	}
	return &SynopticClient{base: base, baseURL: baseURL, token: token}
}

// synopticResponse is the subset of the Synoptic station payload we consume.
type synopticResponse struct {
	Stations []synopticStation `json:"STATION"`
}

type synopticStation struct {
	StationID    string               `json:"STID"`
	ElevationM   float64              `json:"ELEVATION,string"`
	Observations synopticObservations `json:"OBSERVATIONS"`
}

type synopticObservations struct {
	AirTempC         synopticValue `json:"air_temp_value_1"`
	RelativeHumidity synopticValue `json:"relative_humidity_value_1"`
	WindSpeedMS      synopticValue `json:"wind_speed_value_1"`
	WindDirectionDeg synopticValue `json:"wind_direction_value_1"`
}

type synopticValue struct {
	Value float64 `json:"value"`
}

// FetchProfile queries the latest and nearest-time station endpoints
// concurrently and merges their stations into one altitude-sorted profile.
// Altitudes are rebased so the lowest station sits at 0m, matching how the
// derivation functions read the profile.
func (c *SynopticClient) FetchProfile(ctx context.Context, location types.GeoPoint, atTime time.Time) ([]types.VerticalLayer, error) {
	var latest, nearest synopticResponse
	radius := fmt.Sprintf("%.4f,%.4f,%d", location.Lat, location.Lon, stationRadiusKm)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		params := url.Values{}
		params.Set("radius", radius)
		return c.getJSON(gctx, "/v2/stations/latest", params, &latest)
	})
	g.Go(func() error {
		params := url.Values{}
		params.Set("radius", radius)
		params.Set("attime", atTime.UTC().Format("200601021504"))
		return c.getJSON(gctx, "/v2/stations/nearesttime", params, &nearest)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Nearest-time observations win for stations present in both sets.
	byStation := make(map[string]synopticStation)
	for _, s := range latest.Stations {
		byStation[s.StationID] = s
	}
	for _, s := range nearest.Stations {
		byStation[s.StationID] = s
	}

	layers := make([]types.VerticalLayer, 0, len(byStation))
	for _, s := range byStation {
		layers = append(layers, types.VerticalLayer{
			AltitudeM:           s.ElevationM,
			TemperatureC:        s.Observations.AirTempC.Value,
			RelativeHumidityPct: s.Observations.RelativeHumidity.Value,
			WindSpeedKph:        s.Observations.WindSpeedMS.Value * 3.6,
			WindDirectionDeg:    s.Observations.WindDirectionDeg.Value,
		})
	}
	if len(layers) < 2 {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("need at least 2 stations for a vertical profile, got %d", len(layers)), nil)
	}

	sort.Slice(layers, func(i, j int) bool { return layers[i].AltitudeM < layers[j].AltitudeM })
	base := layers[0].AltitudeM
	for i := range layers {
		layers[i].AltitudeM -= base
	}

	return layers, nil
}

func (c *SynopticClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather API returned %d for %s", resp.StatusCode, path), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode weather response", err)
	}
	return nil
}
