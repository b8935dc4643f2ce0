package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fieldscout/internal/recommendation"
	"fieldscout/internal/types"
)

// RecommendationRepository provides data access for the recommendations table
// and implements recommendation.Store.
//
// Schema:
//
//	recommendations (
//	    id             text PRIMARY KEY,
//	    playbook_id    text NOT NULL,
//	    status         text NOT NULL,
//	    data           jsonb NOT NULL,
//	    observation    jsonb,
//	    weather        jsonb,
//	    reference_time timestamptz NOT NULL,
//	    created_at     timestamptz NOT NULL
//	)
//
// The observation and weather columns freeze the generation context so a
// patch recompute replays the exact situation under new rules.
type RecommendationRepository struct {
	db DBTX
}

// NewRecommendationRepository creates a RecommendationRepository backed by
// the given database connection.
func NewRecommendationRepository(db DBTX) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Put stores a recommendation record.
func (r *RecommendationRepository) Put(ctx context.Context, record *recommendation.Record) error {
	if record == nil || record.Recommendation == nil {
		return fmt.Errorf("record and recommendation must not be nil")
	}
	rec := record.Recommendation

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding recommendation: %w", err)
	}
	observation, err := marshalNullable(record.Observation)
	if err != nil {
		return fmt.Errorf("encoding observation: %w", err)
	}
	weather, err := marshalNullable(record.Weather)
	if err != nil {
		return fmt.Errorf("encoding weather: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO recommendations
			(id, playbook_id, status, data, observation, weather, reference_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RecommendationID, rec.PlaybookID, string(rec.Status),
		data, observation, weather, record.ReferenceTime, rec.GeneratedAt)
	if isUniqueViolation(err) {
		return types.NewAppError(types.ErrCodeConflictConcurrent,
			fmt.Sprintf("recommendation %s already stored", rec.RecommendationID), err)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "storing recommendation failed", err)
	}
	return nil
}

// Get returns a recommendation record by id.
func (r *RecommendationRepository) Get(ctx context.Context, recommendationID string) (*recommendation.Record, error) {
	return scanRecommendationRow(r.db.QueryRow(ctx, `
		SELECT data, observation, weather, reference_time FROM recommendations
		WHERE id = $1`, recommendationID), recommendationID)
}

// LatestForPlaybook returns the most recently stored record for a playbook.
func (r *RecommendationRepository) LatestForPlaybook(ctx context.Context, playbookID string) (*recommendation.Record, error) {
	record, err := scanRecommendationRow(r.db.QueryRow(ctx, `
		SELECT data, observation, weather, reference_time FROM recommendations
		WHERE playbook_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, playbookID), "")
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundRecommendation {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
				fmt.Sprintf("no recommendation stored for playbook %s", playbookID), nil)
		}
		return nil, err
	}
	return record, nil
}

// Transition moves a recommendation from pending_confirmation to confirmed or
// rejected. The conditional UPDATE makes the check-and-set atomic; a second
// transition finds no pending row and conflicts.
func (r *RecommendationRepository) Transition(ctx context.Context, recommendationID string, to types.RecommendationStatus) (*types.Recommendation, error) {
	if to != types.RecommendationConfirmed && to != types.RecommendationRejected {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("status must be confirmed or rejected, got %q", to), nil)
	}

	var data []byte
	err := r.db.QueryRow(ctx, `
		UPDATE recommendations
		SET status = $2, data = jsonb_set(data, '{status}', to_jsonb($2::text))
		WHERE id = $1 AND status = $3
		RETURNING data`,
		recommendationID, string(to), string(types.RecommendationPending)).Scan(&data)
	if err == nil {
		var rec types.Recommendation
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding recommendation failed", err)
		}
		return &rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "updating recommendation status failed", err)
	}

	// No pending row: either the recommendation is missing or it already
	// transitioned.
	var current string
	err = r.db.QueryRow(ctx, `
		SELECT status FROM recommendations WHERE id = $1`, recommendationID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
			fmt.Sprintf("recommendation %s not found", recommendationID), nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "checking recommendation status failed", err)
	}
	return nil, types.NewAppError(types.ErrCodeConflictStatus,
		fmt.Sprintf("recommendation %s is %s, only pending_confirmation can transition",
			recommendationID, current), nil)
}

// scanRecommendationRow decodes a recommendation row into a Record. id is
// used in the not-found message; empty defers to the caller.
func scanRecommendationRow(row pgx.Row, id string) (*recommendation.Record, error) {
	var (
		data          []byte
		observation   []byte
		weather       []byte
		referenceTime time.Time
	)
	if err := row.Scan(&data, &observation, &weather, &referenceTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
				fmt.Sprintf("recommendation %s not found", id), nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning recommendation failed", err)
	}

	record := &recommendation.Record{ReferenceTime: referenceTime}

	record.Recommendation = &types.Recommendation{}
	if err := json.Unmarshal(data, record.Recommendation); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding recommendation failed", err)
	}
	if observation != nil {
		record.Observation = &types.Observation{}
		if err := json.Unmarshal(observation, record.Observation); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding observation failed", err)
		}
	}
	if weather != nil {
		record.Weather = &types.WeatherFeatures{}
		if err := json.Unmarshal(weather, record.Weather); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding weather snapshot failed", err)
		}
	}
	return record, nil
}

// marshalNullable encodes v to JSON, mapping a nil pointer to SQL NULL.
func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *types.Observation:
		if t == nil {
			return nil, nil
		}
	case *types.WeatherFeatures:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
