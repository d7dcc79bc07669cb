// internal/types/rules.go
package types

/*
 * Domain types for rule and segment matching.
 *
 * Provides Rule, Segment and the per-(event,rule) diagnostic record used
 * by internal/pipeline. Conditions are stored as text in the condition
 * DSL; parsing and evaluation live in internal/condition. These types are
 * wire-format agnostic - store row conversion happens in internal/store.
 *
 * Key types:
 *   - Rule: condition + flow binding triggered by a matching event type
 *   - Segment: condition-defined cohort re-evaluated against a profile
 *   - Diagnostic: per (event,rule) outcome, observability only
 *
 * Dependencies: None (standard library only)
 */

// Rule binds a condition to a workflow: events of the trigger type whose
// context satisfies Condition cause Flow to be invoked.
// Identity is derived deterministically from the normalized name (ids.go).
// Read-mostly; disabled rules are skipped by the orchestrator.
type Rule struct {
	ID          RuleID   `json:"id" db:"rule_id"`
	Scope       string   `json:"scope" db:"scope"`
	Name        string   `json:"name" db:"name"`
	Description string   `json:"description,omitempty" db:"description"`
	Condition   string   `json:"condition" db:"condition"` // condition DSL text
	EventType   string   `json:"eventType" db:"event_type"`
	Flow        FlowRef  `json:"flow" db:"flow_ref"`
	Tags        []string `json:"tags,omitempty"`
	Enabled     bool     `json:"enabled" db:"enabled"`
}

// Segment defines cohort membership: profiles satisfying Condition after
// an event of the trigger type belong to the segment.
// Same identity derivation as Rule.
type Segment struct {
	ID          SegmentID `json:"id" db:"segment_id"`
	Scope       string    `json:"scope" db:"scope"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Condition   string    `json:"condition" db:"condition"` // condition DSL text
	EventType   string    `json:"eventType" db:"event_type"`
	Enabled     bool      `json:"enabled" db:"enabled"`
}

// Diagnostic records one (event,rule) workflow outcome: either the
// workflow's debug trace or a captured failure with message and origin.
// Keyed by event type then rule name. Purely observational, never used
// for control flow.
type Diagnostic struct {
	EventID   EventID        `json:"eventId" db:"event_id"`
	EventType string         `json:"eventType" db:"event_type"`
	RuleName  string         `json:"ruleName" db:"rule_name"`
	Trace     map[string]any `json:"trace,omitempty"`
	Error     string         `json:"error,omitempty" db:"error"`
	Origin    string         `json:"origin,omitempty" db:"origin"` // component that produced the failure
}

// Failed reports whether the unit captured a failure rather than a trace.
func (d Diagnostic) Failed() bool {
	return d.Error != ""
}

// Resource limits enforced by the pipeline to bound memory and write volume.
const (
	// MaxMergeCandidates caps the duplicate-profile scan per merge cycle.
	// 2000 duplicates covers pathological identity collisions without
	// unbounded reads; remaining duplicates resolve on later cycles.
	MaxMergeCandidates = 2000

	// MaxBatchEvents limits events per orchestration batch.
	// Batches belong to one profile/session; 1000 is far above any
	// realistic per-session burst.
	MaxBatchEvents = 1000
)
