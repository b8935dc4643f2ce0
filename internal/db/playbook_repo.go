package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fieldscout/internal/types"
)

// PlaybookRepository provides data access for the playbook_versions table and
// implements playbook.Store.
//
// Schema:
//
//	playbook_versions (
//	    playbook_id text NOT NULL,
//	    version     int  NOT NULL,
//	    active      bool NOT NULL,
//	    data        jsonb NOT NULL,
//	    updated_at  timestamptz NOT NULL,
//	    PRIMARY KEY (playbook_id, version)
//	)
//
// Exactly one row per playbook_id has active = true. Mutate swaps the active
// flag and inserts the new version in one transaction, with the active row
// locked FOR UPDATE so concurrent patches serialize per playbook.
type PlaybookRepository struct {
	db TxBeginner
}

// NewPlaybookRepository creates a PlaybookRepository backed by the given pool.
func NewPlaybookRepository(db TxBeginner) *PlaybookRepository {
	return &PlaybookRepository{db: db}
}

// Seed registers a playbook's initial version.
func (r *PlaybookRepository) Seed(ctx context.Context, pb *types.Playbook) error {
	if pb == nil {
		return fmt.Errorf("playbook must not be nil")
	}
	if pb.Version < 1 {
		return fmt.Errorf("playbook version must be >= 1, got %d", pb.Version)
	}

	data, err := json.Marshal(pb)
	if err != nil {
		return fmt.Errorf("encoding playbook: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO playbook_versions (playbook_id, version, active, data, updated_at)
		VALUES ($1, $2, true, $3, $4)`,
		pb.PlaybookID, pb.Version, data, pb.UpdatedAt)
	if isUniqueViolation(err) {
		return types.NewAppError(types.ErrCodeConflictConcurrent,
			fmt.Sprintf("playbook %s already seeded", pb.PlaybookID), err)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "seeding playbook failed", err)
	}
	return nil
}

// GetActive returns the active version of a playbook.
func (r *PlaybookRepository) GetActive(ctx context.Context, playbookID string) (*types.Playbook, error) {
	return scanPlaybookRow(r.db.QueryRow(ctx, `
		SELECT data FROM playbook_versions
		WHERE playbook_id = $1 AND active`, playbookID),
		types.NewAppError(types.ErrCodeNotFoundPlaybook,
			fmt.Sprintf("playbook %s not found", playbookID), nil))
}

// GetVersion returns a specific retained version of a playbook.
func (r *PlaybookRepository) GetVersion(ctx context.Context, playbookID string, version int) (*types.Playbook, error) {
	pb, err := scanPlaybookRow(r.db.QueryRow(ctx, `
		SELECT data FROM playbook_versions
		WHERE playbook_id = $1 AND version = $2`, playbookID, version),
		nil)
	if err == nil {
		return pb, nil
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundPlaybookVersion {
		return nil, err
	}

	// Distinguish a missing version from a missing playbook.
	exists, exErr := r.playbookExists(ctx, playbookID)
	if exErr != nil {
		return nil, exErr
	}
	if !exists {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlaybook,
			fmt.Sprintf("playbook %s not found", playbookID), nil)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundPlaybookVersion,
		fmt.Sprintf("playbook %s has no version %d", playbookID, version), nil)
}

// ListVersions returns the retained version numbers in ascending order.
func (r *PlaybookRepository) ListVersions(ctx context.Context, playbookID string) ([]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT version FROM playbook_versions
		WHERE playbook_id = $1
		ORDER BY version`, playbookID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "listing playbook versions failed", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning playbook version failed", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "listing playbook versions failed", err)
	}
	if len(versions) == 0 {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlaybook,
			fmt.Sprintf("playbook %s not found", playbookID), nil)
	}
	return versions, nil
}

// Mutate runs fn against the active version inside a transaction with the
// active row locked, making validate-then-swap one atomic step. A non-nil
// result is inserted as the new active version.
func (r *PlaybookRepository) Mutate(ctx context.Context, playbookID string, fn func(active *types.Playbook) (*types.Playbook, error)) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "beginning transaction failed", err)
	}
	defer tx.Rollback(ctx)

	active, err := scanPlaybookRow(tx.QueryRow(ctx, `
		SELECT data FROM playbook_versions
		WHERE playbook_id = $1 AND active
		FOR UPDATE`, playbookID),
		types.NewAppError(types.ErrCodeNotFoundPlaybook,
			fmt.Sprintf("playbook %s not found", playbookID), nil))
	if err != nil {
		return err
	}

	updated, err := fn(active)
	if err != nil {
		return err
	}
	if updated == nil {
		return tx.Commit(ctx)
	}

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encoding playbook: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE playbook_versions SET active = false
		WHERE playbook_id = $1 AND active`, playbookID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "retiring active version failed", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO playbook_versions (playbook_id, version, active, data, updated_at)
		VALUES ($1, $2, true, $3, $4)`,
		playbookID, updated.Version, data, updated.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictConcurrent,
				fmt.Sprintf("playbook %s version %d already exists", playbookID, updated.Version), err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "inserting new version failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "committing patch failed", err)
	}
	return nil
}

// playbookExists reports whether any version of the playbook is stored.
func (r *PlaybookRepository) playbookExists(ctx context.Context, playbookID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM playbook_versions WHERE playbook_id = $1)`,
		playbookID).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "checking playbook existence failed", err)
	}
	return exists, nil
}

// scanPlaybookRow decodes a single jsonb playbook column. notFound is the
// error returned on pgx.ErrNoRows; nil falls back to a version not-found.
func scanPlaybookRow(row pgx.Row, notFound error) (*types.Playbook, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if notFound != nil {
				return nil, notFound
			}
			return nil, types.NewAppError(types.ErrCodeNotFoundPlaybookVersion, "playbook version not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning playbook failed", err)
	}

	var pb types.Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "decoding playbook failed", err)
	}
	return &pb, nil
}
