// internal/pipeline/workflow.go
package pipeline

import (
	"context"

	"github.com/solatis/profilekeeper/internal/types"
)

/*
 * Workflow runtime boundary.
 *
 * The graph-execution runtime is an external collaborator consumed as an
 * opaque invoke capability. Invocations run concurrently, so they do not
 * mutate the shared profile: each returns a ProfileDelta the orchestrator
 * applies under its own lock after the unit completes. That keeps profile
 * mutation single-writer while the workflow units themselves fan out.
 */

// InvokeResult is the diagnostic outcome of one workflow invocation.
type InvokeResult struct {
	Trace map[string]any // debug trace, populated when debug was requested
	Delta *ProfileDelta  // profile mutations, nil when the flow changed nothing
}

// WorkflowRuntime is the external graph-execution capability.
// Invoke may fail with arbitrary errors; the orchestrator captures them
// per (event,rule) unit and never lets them fail the batch.
type WorkflowRuntime interface {
	// Resolve checks that the flow reference is known. Called before the
	// unit is scheduled so unresolvable flows surface as diagnostics, not
	// wasted invocations.
	Resolve(ctx context.Context, flow types.FlowRef) error

	Invoke(ctx context.Context, flow types.FlowRef, event *types.Event, session types.SessionID, profile types.Profile, debug bool) (InvokeResult, error)
}

// ProfileDelta is a patch produced by one workflow invocation.
// All fields are optional; zero values change nothing.
type ProfileDelta struct {
	TraitsPrivate map[string]any
	TraitsPublic  map[string]any
	PII           map[string]any // keyed by pii field name; unknown keys land in Other
	Consents      map[string]types.ConsentState

	VisitInc    int64
	ViewInc     int64
	CounterIncs map[string]int64

	// Operation flag raises. Flags only ever go up within a batch: a flow
	// cannot clear another flow's pending update.
	Update      bool
	Segment     bool
	MergeFields []string
}

// Apply patches the profile in place. Callers serialize: Apply is not
// safe for concurrent use on one profile.
func (d *ProfileDelta) Apply(p *types.Profile) {
	if d == nil {
		return
	}

	if len(d.TraitsPrivate) > 0 {
		if p.Traits.Private == nil {
			p.Traits.Private = make(map[string]any)
		}
		for k, v := range d.TraitsPrivate {
			p.Traits.Private[k] = v
		}
	}
	if len(d.TraitsPublic) > 0 {
		if p.Traits.Public == nil {
			p.Traits.Public = make(map[string]any)
		}
		for k, v := range d.TraitsPublic {
			p.Traits.Public[k] = v
		}
	}

	for key, value := range d.PII {
		applyPII(&p.PII, key, value)
	}

	if len(d.Consents) > 0 {
		if p.Consents == nil {
			p.Consents = make(map[string]types.ConsentState)
		}
		for id, state := range d.Consents {
			p.Consents[id] = state
		}
	}

	p.Stats.Visits += d.VisitInc
	p.Stats.Views += d.ViewInc
	if len(d.CounterIncs) > 0 {
		if p.Stats.Counters == nil {
			p.Stats.Counters = make(map[string]int64)
		}
		for name, inc := range d.CounterIncs {
			p.Stats.Counters[name] += inc
		}
	}

	if d.Update {
		p.Operation.Update = true
	}
	if d.Segment {
		p.Operation.Segment = true
	}
	for _, field := range d.MergeFields {
		if !containsString(p.Operation.Merge, field) {
			p.Operation.Merge = append(p.Operation.Merge, field)
		}
	}
}

func applyPII(pii *types.ProfilePII, key string, value any) {
	s, isString := value.(string)
	switch {
	case key == "name" && isString:
		pii.Name = s
	case key == "surname" && isString:
		pii.Surname = s
	case key == "email" && isString:
		pii.Email = s
	case key == "telephone" && isString:
		pii.Telephone = s
	case key == "birthDate" && isString:
		pii.BirthDate = s
	default:
		if pii.Other == nil {
			pii.Other = make(map[string]any)
		}
		pii.Other[key] = value
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
