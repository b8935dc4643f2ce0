// Package patch implements the playbook patch pipeline: allowlist
// validation, atomic application with a version bump, and the recompute
// orchestration that links a playbook edit to its downstream recommendation.
package patch

import (
	"fmt"
	"strings"

	"fieldscout/internal/types"
)

// ValidationResult is the outcome of validating a patch against a playbook.
// Errors is exhaustive: every offending operation is collected so a caller
// can fix all issues in one round trip.
type ValidationResult struct {
	Valid  bool
	Code   types.ErrorCode
	Errors []string
}

// Validate checks a patch against the playbook the patch claims as its base.
//
// Checks run in order:
//  1. baseVersion must equal the playbook's current version. On mismatch the
//     patch is rejected immediately with playbook_version_mismatch; no path
//     validation proceeds, since path results against a stale version would
//     be misleading.
//  2. Every operation must be structurally sound (known op, non-empty
//     rooted path, value present for add/replace) and its path must be one
//     of, or a descendant of, some rule's editablePaths. All offending
//     operations are collected, not just the first.
//
// Validate never mutates anything.
func Validate(patch *types.PlaybookPatch, playbook *types.Playbook) ValidationResult {
	if patch.BaseVersion != playbook.Version {
		return ValidationResult{
			Valid: false,
			Code:  types.ErrCodeVersionMismatch,
			Errors: []string{
				fmt.Sprintf("base version mismatch: expected %d, got %d", playbook.Version, patch.BaseVersion),
			},
		}
	}

	allowed := playbook.EditablePaths()

	var structural, disallowed []string
	for i, op := range patch.Operations {
		if msg := checkStructure(i, op); msg != "" {
			structural = append(structural, msg)
			continue
		}
		if !pathAllowed(op.Path, allowed) {
			disallowed = append(disallowed, fmt.Sprintf("path not allowed: %s", op.Path))
		}
	}

	if len(structural) > 0 {
		// Structural problems dominate: the patch must be fixed before path
		// rules are meaningful. Disallowed paths found alongside are still
		// reported.
		return ValidationResult{
			Valid:  false,
			Code:   types.ErrCodeMalformedPatch,
			Errors: append(structural, disallowed...),
		}
	}
	if len(disallowed) > 0 {
		return ValidationResult{
			Valid:  false,
			Code:   types.ErrCodePathNotAllowed,
			Errors: disallowed,
		}
	}

	return ValidationResult{Valid: true, Errors: []string{}}
}

// checkStructure validates a single operation's shape. Returns an error
// message, or "" when the operation is well-formed.
func checkStructure(index int, op types.PatchOperation) string {
	switch op.Op {
	case types.PatchOpAdd, types.PatchOpReplace, types.PatchOpRemove:
	default:
		return fmt.Sprintf("operation %d: unknown op %q", index, op.Op)
	}

	if op.Path == "" {
		return fmt.Sprintf("operation %d: path must not be empty", index)
	}
	if !strings.HasPrefix(op.Path, "/") {
		return fmt.Sprintf("operation %d: path must start with '/': %s", index, op.Path)
	}
	if (op.Op == types.PatchOpAdd || op.Op == types.PatchOpReplace) && op.Value == nil {
		return fmt.Sprintf("operation %d: %s requires a value", index, op.Op)
	}
	return ""
}

// pathAllowed reports whether path equals or descends from one of the
// allowlisted paths.
func pathAllowed(path string, allowed []string) bool {
	for _, a := range allowed {
		if path == a || strings.HasPrefix(path, a+"/") {
			return true
		}
	}
	return false
}
