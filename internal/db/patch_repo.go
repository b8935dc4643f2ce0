package db

import (
	"context"
	"encoding/json"
	"fmt"

	"fieldscout/internal/patch"
	"fieldscout/internal/types"
)

// PatchRepository provides data access for the playbook_patches audit table.
//
// Schema:
//
//	playbook_patches (
//	    id          text PRIMARY KEY,
//	    playbook_id text NOT NULL,
//	    patch       jsonb NOT NULL,
//	    result      jsonb NOT NULL,
//	    applied_at  timestamptz NOT NULL
//	)
//
// The table is append-only: every submission is recorded, applied or
// rejected.
type PatchRepository struct {
	db DBTX
}

// NewPatchRepository creates a PatchRepository backed by the given database
// connection.
func NewPatchRepository(db DBTX) *PatchRepository {
	return &PatchRepository{db: db}
}

// Record appends a patch submission outcome to the playbook's history.
func (r *PatchRepository) Record(ctx context.Context, p *types.PlaybookPatch, result *types.PatchApplyResult) error {
	patchData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}
	resultData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding patch result: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO playbook_patches (id, playbook_id, patch, result, applied_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.PatchID, p.PlaybookID, patchData, resultData, result.AppliedAt)
	if isUniqueViolation(err) {
		return types.NewAppError(types.ErrCodeConflictConcurrent,
			fmt.Sprintf("patch %s already recorded", p.PatchID), err)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "recording patch failed", err)
	}
	return nil
}

// ListByPlaybook returns the playbook's patch history in submission order.
func (r *PatchRepository) ListByPlaybook(ctx context.Context, playbookID string) ([]patch.LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT patch, result FROM playbook_patches
		WHERE playbook_id = $1
		ORDER BY applied_at, id`, playbookID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "listing patch history failed", err)
	}
	defer rows.Close()

	var entries []patch.LogEntry
	for rows.Next() {
		var patchData, resultData []byte
		if err := rows.Scan(&patchData, &resultData); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning patch history failed", err)
		}

		entry := patch.LogEntry{
			Patch:  &types.PlaybookPatch{},
			Result: &types.PatchApplyResult{},
		}
		if err := json.Unmarshal(patchData, entry.Patch); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding patch failed", err)
		}
		if err := json.Unmarshal(resultData, entry.Result); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding patch result failed", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "listing patch history failed", err)
	}
	return entries, nil
}
