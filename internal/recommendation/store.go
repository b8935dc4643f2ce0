// Package recommendation provides the recommendation persistence abstraction.
//
// A stored recommendation keeps its generation context (observation, weather
// snapshot, reference time) alongside the computed record. The patch pipeline
// reuses that context when it regenerates a recommendation under a new
// playbook version, so a recompute answers "what would this exact situation
// look like under the new rules" rather than re-sampling the world.
package recommendation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldscout/internal/types"
)

// Record is a recommendation plus the frozen inputs it was generated from.
type Record struct {
	Recommendation *types.Recommendation
	Observation    *types.Observation
	Weather        *types.WeatherFeatures
	ReferenceTime  time.Time
}

// Store is the recommendation persistence contract.
type Store interface {
	// Put stores a recommendation record. The recommendation id must be unique.
	Put(ctx context.Context, record *Record) error
	// Get returns a recommendation record by id.
	Get(ctx context.Context, recommendationID string) (*Record, error)
	// LatestForPlaybook returns the most recently stored record for a
	// playbook, or a not-found error when none exists.
	LatestForPlaybook(ctx context.Context, playbookID string) (*Record, error)
	// Transition moves a recommendation's status. Only pending_confirmation
	// recommendations can move, and only to confirmed or rejected; anything
	// else is a conflict. The computed content never changes.
	Transition(ctx context.Context, recommendationID string, to types.RecommendationStatus) (*types.Recommendation, error)
}

// MemoryStore is the in-memory Store implementation, safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	// latest tracks insertion order per playbook id.
	latest map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		latest:  make(map[string]string),
	}
}

// Put stores a recommendation record.
func (s *MemoryStore) Put(_ context.Context, record *Record) error {
	if record == nil || record.Recommendation == nil {
		return fmt.Errorf("record and recommendation must not be nil")
	}
	id := record.Recommendation.RecommendationID
	if id == "" {
		return fmt.Errorf("recommendation id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; exists {
		return types.NewAppError(types.ErrCodeConflictConcurrent,
			fmt.Sprintf("recommendation %s already stored", id), nil)
	}

	clone := *record
	rec := *record.Recommendation
	clone.Recommendation = &rec
	s.records[id] = &clone
	s.latest[record.Recommendation.PlaybookID] = id
	return nil
}

// Get returns a recommendation record by id.
func (s *MemoryStore) Get(_ context.Context, recommendationID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(recommendationID)
}

// LatestForPlaybook returns the most recently stored record for a playbook.
func (s *MemoryStore) LatestForPlaybook(_ context.Context, playbookID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.latest[playbookID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
			fmt.Sprintf("no recommendation stored for playbook %s", playbookID), nil)
	}
	return s.get(id)
}

// Transition moves a recommendation from pending_confirmation to confirmed or
// rejected. The check-and-set runs under the store lock so two concurrent
// confirmations cannot both succeed.
func (s *MemoryStore) Transition(_ context.Context, recommendationID string, to types.RecommendationStatus) (*types.Recommendation, error) {
	if to != types.RecommendationConfirmed && to != types.RecommendationRejected {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("status must be confirmed or rejected, got %q", to), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recommendationID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
			fmt.Sprintf("recommendation %s not found", recommendationID), nil)
	}

	current := record.Recommendation
	if current.Status != types.RecommendationPending {
		return nil, types.NewAppError(types.ErrCodeConflictStatus,
			fmt.Sprintf("recommendation %s is %s, only pending_confirmation can transition",
				recommendationID, current.Status), nil)
	}

	current.Status = to
	rec := *current
	return &rec, nil
}

// get returns a copy of the stored record; callers hold the lock.
func (s *MemoryStore) get(recommendationID string) (*Record, error) {
	record, ok := s.records[recommendationID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
			fmt.Sprintf("recommendation %s not found", recommendationID), nil)
	}
	clone := *record
	rec := *record.Recommendation
	clone.Recommendation = &rec
	return &clone, nil
}
