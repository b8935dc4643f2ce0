package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fieldscout/internal/types"
)

// maxCacheAge bounds how stale a cached live snapshot may be before the
// provider stops serving it as a failover.
const maxCacheAge = 12 * time.Hour

// cacheUsedNote is appended to a snapshot served from the failover cache.
const cacheUsedNote = "live_cache_used"

// ProfileFetcher fetches a vertical atmospheric profile for a location.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, location types.GeoPoint, atTime time.Time) ([]types.VerticalLayer, error)
}

// Provider hands weather feature snapshots to the engine. In demo mode it
// serves the built-in fixture; in live mode it fetches a station profile,
// derives features from it, and keeps the last good snapshot as a failover.
//
// Failover order on a live fetch error: cached snapshot no older than 12
// hours (annotated with live_cache_used), then the demo fixture. Recompute
// never fails for lack of weather; the risk scorer flags degraded inputs
// instead.
type Provider struct {
	mode    types.WeatherSourceMode
	fetcher ProfileFetcher
	clock   types.Clock
	logger  *slog.Logger

	mu        sync.Mutex
	cached    *types.WeatherFeatures
	fetchedAt time.Time
}

// NewProvider creates a weather Provider. A nil fetcher forces demo mode.
func NewProvider(mode types.WeatherSourceMode, fetcher ProfileFetcher, clock types.Clock, logger *slog.Logger) *Provider {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		mode = types.WeatherSourceDemo
	}
	return &Provider{mode: mode, fetcher: fetcher, clock: clock, logger: logger}
}

// GetFeatures returns the weather snapshot for a location at a time.
func (p *Provider) GetFeatures(ctx context.Context, location types.GeoPoint, atTime time.Time) (*types.WeatherFeatures, error) {
	if p.mode == types.WeatherSourceDemo {
		return DemoFeatures(), nil
	}

	layers, err := p.fetcher.FetchProfile(ctx, location, atTime)
	if err != nil {
		return p.failover(err)
	}

	features := p.deriveLive(layers, location, atTime)

	p.mu.Lock()
	p.cached = features
	p.fetchedAt = p.clock.Now()
	p.mu.Unlock()

	return features, nil
}

// deriveLive builds a live snapshot from a vertical profile.
func (p *Provider) deriveLive(layers []types.VerticalLayer, location types.GeoPoint, atTime time.Time) *types.WeatherFeatures {
	inversion := DeriveInversionPresent(layers)
	humidity := DeriveHumidityLayering(layers)
	shear := DeriveWindShearProxy(layers)

	surfaceTempC := 0.0
	if len(layers) > 0 {
		surfaceTempC = layers[0].TemperatureC
	}

	return &types.WeatherFeatures{
		WeatherFeaturesID: fmt.Sprintf("wxf_%s_live_0001", atTime.UTC().Format("20060102")),
		SourceMode:        types.WeatherSourceLive,
		ProfileTime:       atTime.UTC(),
		Location:          location,
		InversionPresent:  inversion,
		HumidityLayering:  humidity,
		WindShearProxy:    shear,
		SprayWindowScore:  SprayWindowScore(inversion, humidity, shear),
		DiseaseRiskScore:  DiseaseRiskScore(humidity),
		HeatStressScore:   HeatStressScore(surfaceTempC),
		Notes:             []string{"Live fetch - Synoptic API"},
	}
}

// failover serves the cached snapshot when fresh enough, else the demo
// fixture. The original fetch error is logged, not returned.
func (p *Provider) failover(fetchErr error) (*types.WeatherFeatures, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.clock.Now().Sub(p.fetchedAt) <= maxCacheAge {
		p.logger.Warn("live weather fetch failed, serving cached snapshot",
			"error", fetchErr,
			"cached_at", p.fetchedAt,
		)
		snapshot := *p.cached
		snapshot.Notes = append(append([]string(nil), p.cached.Notes...), cacheUsedNote)
		return &snapshot, nil
	}

	p.logger.Warn("live weather fetch failed with no usable cache, serving demo profile",
		"error", fetchErr,
	)
	return DemoFeatures(), nil
}
