package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldscout/internal/playbook"
	"fieldscout/internal/types"
	"fieldscout/internal/weather"
)

func newRecord(recID, playbookID string) *Record {
	obs := playbook.DemoObservation()
	return &Record{
		Recommendation: &types.Recommendation{
			RecommendationID: recID,
			ObservationID:    obs.ObservationID,
			PlaybookID:       playbookID,
			PlaybookVersion:  3,
			Status:           types.RecommendationPending,
		},
		Observation:   obs,
		Weather:       weather.DemoFeatures(),
		ReferenceTime: time.Date(2026, 2, 11, 19, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))

	got, err := s.Get(ctx, "rec_1")
	require.NoError(t, err)
	assert.Equal(t, "rec_1", got.Recommendation.RecommendationID)
	assert.Equal(t, weather.DemoFeaturesID, got.Weather.WeatherFeaturesID)
	assert.False(t, got.ReferenceTime.IsZero())
}

func TestMemoryStore_PutDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))
	err := s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID))

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConflictConcurrent, appErr.Code)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "rec_missing")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundRecommendation, appErr.Code)
}

func TestMemoryStore_LatestForPlaybook(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))
	require.NoError(t, s.Put(ctx, newRecord("rec_2", playbook.DemoPlaybookID)))

	got, err := s.LatestForPlaybook(ctx, playbook.DemoPlaybookID)
	require.NoError(t, err)
	assert.Equal(t, "rec_2", got.Recommendation.RecommendationID)
}

func TestMemoryStore_LatestForPlaybookEmpty(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.LatestForPlaybook(context.Background(), "pbk_other")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundRecommendation, appErr.Code)
}

func TestMemoryStore_Transition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))

	rec, err := s.Transition(ctx, "rec_1", types.RecommendationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, types.RecommendationConfirmed, rec.Status)

	// The stored record moved too.
	got, err := s.Get(ctx, "rec_1")
	require.NoError(t, err)
	assert.Equal(t, types.RecommendationConfirmed, got.Recommendation.Status)
}

func TestMemoryStore_TransitionTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))

	_, err := s.Transition(ctx, "rec_1", types.RecommendationConfirmed)
	require.NoError(t, err)

	_, err = s.Transition(ctx, "rec_1", types.RecommendationRejected)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConflictStatus, appErr.Code)
	assert.Equal(t, 409, appErr.HTTPStatus())
}

func TestMemoryStore_TransitionRejectsInvalidTarget(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))

	_, err := s.Transition(ctx, "rec_1", types.RecommendationPending)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidStatus, appErr.Code)
}

func TestMemoryStore_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, newRecord("rec_1", playbook.DemoPlaybookID)))

	got, err := s.Get(ctx, "rec_1")
	require.NoError(t, err)
	got.Recommendation.Status = types.RecommendationRejected

	again, err := s.Get(ctx, "rec_1")
	require.NoError(t, err)
	assert.Equal(t, types.RecommendationPending, again.Recommendation.Status)
}
