package patch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fieldscout/internal/types"
)

// Apply applies a pre-validated patch to a playbook and returns the bumped
// new version. The input playbook is never mutated: operations run against a
// structural clone, so concurrent readers of the old version always see a
// consistent snapshot.
//
// Operations apply in submission order over the playbook's JSON document
// form, which is what patch paths address. Replace requires the leaf to
// exist; add creates or overwrites; remove deletes the leaf. Any navigation
// failure (missing or non-object intermediate segment) aborts the whole
// patch with malformed_patch -- partial application is forbidden.
func Apply(patch *types.PlaybookPatch, playbook *types.Playbook, appliedAt time.Time) (*types.Playbook, error) {
	doc, err := toDocument(playbook)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to clone playbook", err)
	}

	for i, op := range patch.Operations {
		if err := applyOperation(doc, op); err != nil {
			return nil, types.NewAppErrorWithDetails(
				types.ErrCodeMalformedPatch,
				fmt.Sprintf("operation %d failed: %v", i, err),
				err,
				map[string]any{"path": op.Path, "op": string(op.Op)},
			)
		}
	}

	updated, err := fromDocument(doc)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeMalformedPatch,
			"patched playbook no longer matches the playbook schema",
			err,
		)
	}

	updated.Version = playbook.Version + 1
	updated.UpdatedAt = appliedAt.UTC()
	return updated, nil
}

// applyOperation navigates the path segments to the parent container and
// performs the mutation on the leaf key.
func applyOperation(doc map[string]any, op types.PatchOperation) error {
	segments := splitPath(op.Path)
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}

	parent := doc
	for _, seg := range segments[:len(segments)-1] {
		child, ok := parent[seg]
		if !ok {
			return fmt.Errorf("invalid path segment %q in %s", seg, op.Path)
		}
		m, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("path segment %q in %s is not an object", seg, op.Path)
		}
		parent = m
	}

	leaf := segments[len(segments)-1]
	switch op.Op {
	case types.PatchOpReplace:
		if _, ok := parent[leaf]; !ok {
			return fmt.Errorf("cannot replace non-existent key %q", leaf)
		}
		parent[leaf] = op.Value
	case types.PatchOpAdd:
		parent[leaf] = op.Value
	case types.PatchOpRemove:
		delete(parent, leaf)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

// toDocument converts a playbook to its JSON document form, which doubles as
// a deep structural clone.
func toDocument(playbook *types.Playbook) (map[string]any, error) {
	raw, err := json.Marshal(playbook)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// fromDocument converts the patched document back into a typed playbook.
// A document that no longer unmarshals cleanly means an operation wrote a
// value of the wrong shape; the caller reports that as a malformed patch.
func fromDocument(doc map[string]any) (*types.Playbook, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var updated types.Playbook
	if err := json.Unmarshal(raw, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// splitPath splits "/rules/rule_pm_moderate/constraints/maxWindKph" into its
// non-empty segments.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
