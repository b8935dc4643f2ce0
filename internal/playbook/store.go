// Package playbook provides the versioned playbook store abstraction.
//
// The store replaces ambient module-level playbook state with an explicit
// id -> version -> playbook mapping. Exactly one version per playbook id is
// active at a time; all versions are retained and queryable for audit.
package playbook

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"fieldscout/internal/types"
)

// Store is the playbook persistence contract consumed by the engine layer.
// Implementations must guarantee single-writer semantics per playbook id:
// Mutate runs its callback as one atomic validate-then-swap step so two
// concurrent patches cannot both pass a version check against the same stale
// version.
type Store interface {
	// GetActive returns the active version of a playbook.
	GetActive(ctx context.Context, playbookID string) (*types.Playbook, error)
	// GetVersion returns a specific retained version of a playbook.
	GetVersion(ctx context.Context, playbookID string, version int) (*types.Playbook, error)
	// ListVersions returns the retained version numbers in ascending order.
	ListVersions(ctx context.Context, playbookID string) ([]int, error)
	// Seed registers a playbook's initial version. It fails if the id exists.
	Seed(ctx context.Context, pb *types.Playbook) error
	// Mutate runs fn against the active version under the playbook's
	// single-writer lock. When fn returns a non-nil playbook, it is retained
	// and becomes the new active version.
	Mutate(ctx context.Context, playbookID string, fn func(active *types.Playbook) (*types.Playbook, error)) error
}

// MemoryStore is the in-memory Store implementation. It is safe for
// concurrent use and hands out deep copies so callers can never mutate a
// retained version in place.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*storeEntry
}

type storeEntry struct {
	mu       sync.Mutex // single writer per playbook id
	versions map[int]*types.Playbook
	active   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*storeEntry)}
}

// Seed registers a playbook's initial version.
func (s *MemoryStore) Seed(_ context.Context, pb *types.Playbook) error {
	if pb == nil {
		return fmt.Errorf("playbook must not be nil")
	}
	if pb.Version < 1 {
		return fmt.Errorf("playbook version must be >= 1, got %d", pb.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[pb.PlaybookID]; exists {
		return types.NewAppError(types.ErrCodeConflictConcurrent,
			fmt.Sprintf("playbook %s already seeded", pb.PlaybookID), nil)
	}

	clone, err := clonePlaybook(pb)
	if err != nil {
		return err
	}
	s.entries[pb.PlaybookID] = &storeEntry{
		versions: map[int]*types.Playbook{clone.Version: clone},
		active:   clone.Version,
	}
	return nil
}

// GetActive returns a copy of the active version.
func (s *MemoryStore) GetActive(_ context.Context, playbookID string) (*types.Playbook, error) {
	entry, err := s.entry(playbookID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return clonePlaybook(entry.versions[entry.active])
}

// GetVersion returns a copy of a retained version.
func (s *MemoryStore) GetVersion(_ context.Context, playbookID string, version int) (*types.Playbook, error) {
	entry, err := s.entry(playbookID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	pb, ok := entry.versions[version]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlaybookVersion,
			fmt.Sprintf("playbook %s has no version %d", playbookID, version), nil)
	}
	return clonePlaybook(pb)
}

// ListVersions returns the retained version numbers in ascending order.
func (s *MemoryStore) ListVersions(_ context.Context, playbookID string) ([]int, error) {
	entry, err := s.entry(playbookID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	versions := make([]int, 0, len(entry.versions))
	for v := range entry.versions {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// Mutate runs fn against a copy of the active version while holding the
// playbook's writer lock. A non-nil result is retained and becomes active.
func (s *MemoryStore) Mutate(_ context.Context, playbookID string, fn func(active *types.Playbook) (*types.Playbook, error)) error {
	entry, err := s.entry(playbookID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	active, err := clonePlaybook(entry.versions[entry.active])
	if err != nil {
		return err
	}

	updated, err := fn(active)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}

	retained, err := clonePlaybook(updated)
	if err != nil {
		return err
	}
	entry.versions[retained.Version] = retained
	entry.active = retained.Version
	return nil
}

// entry looks up the storeEntry for a playbook id.
func (s *MemoryStore) entry(playbookID string) (*storeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[playbookID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlaybook,
			fmt.Sprintf("playbook %s not found", playbookID), nil)
	}
	return entry, nil
}

// clonePlaybook deep-copies a playbook through its JSON form.
func clonePlaybook(pb *types.Playbook) (*types.Playbook, error) {
	raw, err := json.Marshal(pb)
	if err != nil {
		return nil, fmt.Errorf("cloning playbook: %w", err)
	}
	var clone types.Playbook
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, fmt.Errorf("cloning playbook: %w", err)
	}
	return &clone, nil
}
