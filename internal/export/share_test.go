package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldscout/internal/patch"
	"fieldscout/internal/playbook"
	"fieldscout/internal/types"
	"fieldscout/internal/weather"
)

func TestBundle_RoundTrip(t *testing.T) {
	pb := playbook.Demo()
	generatedAt := time.Date(2026, 2, 12, 3, 0, 0, 0, time.UTC)

	log := patch.NewMemoryLog()
	require.NoError(t, log.Record(context.Background(), playbook.DemoPatch(), &types.PatchApplyResult{
		PatchID:    "pch_20260211_0001",
		PlaybookID: playbook.DemoPlaybookID,
		OldVersion: 3,
		NewVersion: 4,
		Status:     types.PatchApplied,
	}))
	history, err := log.ListByPlaybook(context.Background(), playbook.DemoPlaybookID)
	require.NoError(t, err)

	rec := &types.Recommendation{
		RecommendationID: "rec_20260211_0001",
		PlaybookID:       playbook.DemoPlaybookID,
		PlaybookVersion:  3,
		Status:           types.RecommendationPending,
	}

	bundle, err := NewBundle(pb, []int{3}, rec, weather.DemoFeatures(), history, generatedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, bundle))

	// Gzip magic bytes.
	require.GreaterOrEqual(t, buf.Len(), 2)
	assert.Equal(t, byte(0x1f), buf.Bytes()[0])
	assert.Equal(t, byte(0x8b), buf.Bytes()[1])

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, bundleSchemaVersion, got.SchemaVersion)
	assert.Equal(t, generatedAt, got.GeneratedAt)
	assert.Equal(t, playbook.DemoPlaybookID, got.Playbook.PlaybookID)
	assert.Equal(t, []int{3}, got.Versions)
	assert.Equal(t, "rec_20260211_0001", got.Recommendation.RecommendationID)
	assert.Equal(t, weather.DemoFeaturesID, got.Weather.WeatherFeaturesID)
	require.Len(t, got.PatchHistory, 1)
	assert.Equal(t, "pch_20260211_0001", got.PatchHistory[0].Result.PatchID)
}

func TestNewBundle_RequiresPlaybook(t *testing.T) {
	_, err := NewBundle(nil, nil, nil, nil, nil, time.Now())
	assert.Error(t, err)
}

func TestNewBundle_NoRecommendationStillExports(t *testing.T) {
	bundle, err := NewBundle(playbook.Demo(), []int{3}, nil, nil, nil, time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, bundle))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Nil(t, got.Recommendation)
	assert.NotNil(t, got.PatchHistory)
	assert.Empty(t, got.PatchHistory)
}

func TestRead_RejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a gzip stream")))
	assert.Error(t, err)
}
