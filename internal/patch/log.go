package patch

import (
	"context"
	"sync"

	"fieldscout/internal/types"
)

// LogEntry pairs a submitted patch with its apply result. Entries are
// append-only; a patch is immutable once submitted.
type LogEntry struct {
	Patch  *types.PlaybookPatch    `json:"patch"`
	Result *types.PatchApplyResult `json:"result"`
}

// MemoryLog is an in-memory append-only patch history, keyed by playbook id.
// It records every submission, applied or rejected, for audit and export.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]LogEntry
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]LogEntry)}
}

// Record appends a patch submission outcome to the playbook's history.
func (l *MemoryLog) Record(_ context.Context, p *types.PlaybookPatch, result *types.PatchApplyResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[p.PlaybookID] = append(l.entries[p.PlaybookID], LogEntry{Patch: p, Result: result})
	return nil
}

// ListByPlaybook returns the playbook's patch history in submission order.
func (l *MemoryLog) ListByPlaybook(_ context.Context, playbookID string) ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries[playbookID]...), nil
}
