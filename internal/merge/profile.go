// internal/merge/profile.go
package merge

import (
	"fmt"

	"github.com/solatis/profilekeeper/internal/types"
)

/*
 * Profile-level merge.
 *
 * Collapses duplicate profiles into one surviving record. On top of the
 * structural attribute merge in merge.go:
 *
 *   - numeric stat counters sum across all inputs
 *   - segment sets union
 *   - consent map keys resolve last-writer-wins in input order
 *   - final identity is the survivor's id, or its own prior merge target
 *     when the survivor was already linked
 *   - every other input is marked inactive and linked one-way via
 *     MergedWith to the final identity
 *
 * The consumed Operation.Merge field list is cleared on the result so the
 * next cycle does not re-trigger the merge.
 */

// Profiles merges duplicates into the survivor. Input order is merge
// order: later profiles win consent conflicts. The survivor is the last
// writer and keeps its identity. Inputs are not mutated; the deactivated
// duplicates are returned as copies ready for persistence.
func Profiles(duplicates []*types.Profile, survivor *types.Profile) (*types.Profile, []*types.Profile, error) {
	finalID := survivor.ID
	if survivor.MergedWith != "" {
		finalID = survivor.MergedWith
	}

	ordered := make([]*types.Profile, 0, len(duplicates)+1)
	ordered = append(ordered, duplicates...)
	ordered = append(ordered, survivor)

	result := &types.Profile{
		ID:     finalID,
		Active: true,
	}

	private, public, other := make([]map[string]any, 0, len(ordered)), make([]map[string]any, 0, len(ordered)), make([]map[string]any, 0, len(ordered))
	for _, p := range ordered {
		private = append(private, p.Traits.Private)
		public = append(public, p.Traits.Public)
		other = append(other, p.PII.Other)

		result.Stats.Visits += p.Stats.Visits
		result.Stats.Views += p.Stats.Views
		for name, count := range p.Stats.Counters {
			if result.Stats.Counters == nil {
				result.Stats.Counters = make(map[string]int64)
			}
			result.Stats.Counters[name] += count
		}

		for _, seg := range p.Segments {
			result.AddSegment(seg)
		}

		for id, state := range p.Consents {
			if result.Consents == nil {
				result.Consents = make(map[string]types.ConsentState)
			}
			result.Consents[id] = state // last writer wins
		}
	}

	var err error
	if result.Traits.Private, err = Trees(private); err != nil {
		return nil, nil, fmt.Errorf("private traits: %w", err)
	}
	if result.Traits.Public, err = Trees(public); err != nil {
		return nil, nil, fmt.Errorf("public traits: %w", err)
	}
	if result.PII.Other, err = Trees(other); err != nil {
		return nil, nil, fmt.Errorf("pii: %w", err)
	}
	mergePII(result, ordered)

	// Merge keys are consumed here; the update flag survives so the merged
	// record gets persisted.
	result.Operation = survivor.Operation
	result.Operation.Merge = nil
	result.Operation.Update = true

	var retired []*types.Profile
	for _, p := range ordered {
		if p.ID == finalID {
			continue
		}
		dup := *p
		dup.Active = false
		dup.MergedWith = finalID
		dup.Operation = types.Operation{}
		retired = append(retired, &dup)
	}

	return result, retired, nil
}

// mergePII fills the named PII fields. Later non-empty values win,
// mirroring consent resolution: identity attributes converge on the most
// recent observation rather than accumulating lists.
func mergePII(result *types.Profile, ordered []*types.Profile) {
	for _, p := range ordered {
		if p.PII.Name != "" {
			result.PII.Name = p.PII.Name
		}
		if p.PII.Surname != "" {
			result.PII.Surname = p.PII.Surname
		}
		if p.PII.Email != "" {
			result.PII.Email = p.PII.Email
		}
		if p.PII.Telephone != "" {
			result.PII.Telephone = p.PII.Telephone
		}
		if p.PII.BirthDate != "" {
			result.PII.BirthDate = p.PII.BirthDate
		}
	}
}
