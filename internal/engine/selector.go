// Package engine implements recommendation generation: rule selection, the
// weather-conditioned timing window calculation, risk and confidence scoring,
// and the composition of those pieces into an immutable Recommendation.
//
// All functions here are pure computation over already-fetched inputs.
// Weather retrieval and persistence belong to collaborators.
package engine

import (
	"sort"

	"fieldscout/internal/types"
)

// SelectRule resolves the playbook rule responding to an issue.
//
// Selection is by issue alone: all severities of a known issue currently map
// to the same rule. Severity is accepted so the signature is stable if
// severity-specific variants are added later. Rules are scanned in sorted
// rule-key order so selection is deterministic when a playbook ever carries
// two rules for one issue.
//
// The second return is false when the issue has no configured rule. That is
// not an error; the recommendation builder emits the monitor fallback.
func SelectRule(playbook *types.Playbook, issue types.Issue, _ types.Severity) (*types.PlaybookRule, bool) {
	if playbook == nil || len(playbook.Rules) == 0 {
		return nil, false
	}

	keys := make([]string, 0, len(playbook.Rules))
	for k := range playbook.Rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rule := playbook.Rules[k]
		if rule != nil && rule.Issue == issue {
			return rule, true
		}
	}
	return nil, false
}
