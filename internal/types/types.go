// Package types provides domain models shared across ProfileKeeper components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library. ID utilities in ids.go import uuid but are isolated so
// embedders can pick up the model without pulling in ID generation.
package types

import "time"

// EventID represents a UUIDv7 event identifier.
// String alias enables type safety while maintaining JSON string serialization.
// UUIDv7 time-ordering ensures sequential IDs cluster in B-tree indexes.
type EventID string

// ProfileID represents a UUIDv7 profile identifier.
// String alias enables type safety while maintaining JSON string serialization.
type ProfileID string

// SessionID represents a UUIDv7 session identifier.
type SessionID string

// RuleID represents a deterministic (UUIDv5 over normalized name) rule identifier.
type RuleID string

// SegmentID represents a deterministic (UUIDv5 over normalized name) segment identifier.
type SegmentID string

// FlowRef names a workflow in the external graph-execution runtime.
// Resolution and execution happen behind the pipeline's WorkflowRuntime boundary.
type FlowRef string

// Event is a single tracked occurrence tied to a source, session and profile.
// Immutable within the processing core: created by ingestion, read-only here.
type Event struct {
	ID         EventID        `json:"id" db:"event_id"`
	Type       string         `json:"type" db:"event_type"`
	Source     string         `json:"source" db:"source_id"`
	Session    SessionID      `json:"session" db:"session_id"`
	Profile    ProfileID      `json:"profile" db:"profile_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Timestamp  time.Time      `json:"timestamp" db:"occurred_at"`
}

// ProfileStats accumulates per-profile activity counters.
// Counters are summed across duplicates when profiles merge.
type ProfileStats struct {
	Visits   int64            `json:"visits"`
	Views    int64            `json:"views"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// ProfileTraits separates workflow-managed attributes by visibility.
// Private traits never leave the platform; public traits may be exposed
// to personalization consumers.
type ProfileTraits struct {
	Private map[string]any `json:"private,omitempty"`
	Public  map[string]any `json:"public,omitempty"`
}

// ProfilePII holds directly identifying attributes, kept separate from
// traits so retention and erasure policies can target them as a unit.
type ProfilePII struct {
	Name      string         `json:"name,omitempty"`
	Surname   string         `json:"surname,omitempty"`
	Email     string         `json:"email,omitempty"`
	Telephone string         `json:"telephone,omitempty"`
	BirthDate string         `json:"birthDate,omitempty"`
	Other     map[string]any `json:"other,omitempty"`
}

// Operation carries the pending-work flags workflows set on a profile.
// The orchestrator reads them to decide which pipeline stages run and
// which writes get scheduled.
type Operation struct {
	New     bool     `json:"new"`
	Update  bool     `json:"update"`
	Segment bool     `json:"segment"`
	Merge   []string `json:"merge,omitempty"` // field paths identifying duplicate candidates
}

// NeedsSegmentation reports whether the segmentation stage must run.
func (o Operation) NeedsSegmentation() bool {
	return o.Segment || o.Update
}

// NeedsMerge reports whether the merge stage must run.
// Merge requires both the field list and a pending update: merge keys set
// without an update mean the workflow backed out of the mutation.
func (o Operation) NeedsMerge() bool {
	return len(o.Merge) > 0 && o.Update
}

// ConsentState records a single consent grant or revocation.
type ConsentState struct {
	Granted  bool       `json:"granted"`
	Revoke   *time.Time `json:"revoke,omitempty"`
	Recorded time.Time  `json:"recorded"`
}

// Profile is the durable customer identity record accumulating traits,
// PII, stats, segments and consents.
//
// Lifecycle: created on the first event for a new identity, mutated by
// workflows and by the segmentation/merge stages. A profile that loses a
// merge is marked inactive and permanently linked via MergedWith to the
// surviving profile. MergedWith is a one-way pointer, never cyclic.
type Profile struct {
	ID         ProfileID               `json:"id" db:"profile_id"`
	MergedWith ProfileID               `json:"mergedWith,omitempty" db:"merged_with"` // empty unless deactivated by a merge
	Stats      ProfileStats            `json:"stats"`
	Traits     ProfileTraits           `json:"traits"`
	PII        ProfilePII              `json:"pii"`
	Segments   []SegmentID             `json:"segments,omitempty"`
	Consents   map[string]ConsentState `json:"consents,omitempty"`
	Active     bool                    `json:"active"`
	Operation  Operation               `json:"operation"`
}

// Clone returns a copy of the profile whose maps and slices do not alias
// the receiver. Readers holding a clone never observe writes applied to
// the original afterwards.
func (p *Profile) Clone() Profile {
	clone := *p
	clone.Stats.Counters = cloneCounters(p.Stats.Counters)
	clone.Traits.Private = cloneTree(p.Traits.Private)
	clone.Traits.Public = cloneTree(p.Traits.Public)
	clone.PII.Other = cloneTree(p.PII.Other)
	if p.Segments != nil {
		clone.Segments = append([]SegmentID(nil), p.Segments...)
	}
	if p.Consents != nil {
		clone.Consents = make(map[string]ConsentState, len(p.Consents))
		for id, state := range p.Consents {
			clone.Consents[id] = state
		}
	}
	if p.Operation.Merge != nil {
		clone.Operation.Merge = append([]string(nil), p.Operation.Merge...)
	}
	return clone
}

func cloneCounters(counters map[string]int64) map[string]int64 {
	if counters == nil {
		return nil
	}
	out := make(map[string]int64, len(counters))
	for name, value := range counters {
		out[name] = value
	}
	return out
}

func cloneTree(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for key, value := range tree {
		out[key] = cloneTreeValue(value)
	}
	return out
}

func cloneTreeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneTree(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneTreeValue(e)
		}
		return out
	default:
		return v
	}
}

// HasSegment reports whether the profile already belongs to the segment.
func (p *Profile) HasSegment(id SegmentID) bool {
	for _, s := range p.Segments {
		if s == id {
			return true
		}
	}
	return false
}

// AddSegment adds a segment with set semantics: adding twice is a no-op.
func (p *Profile) AddSegment(id SegmentID) {
	if !p.HasSegment(id) {
		p.Segments = append(p.Segments, id)
	}
}
