// internal/pipeline/interfaces.go

// Package pipeline orchestrates rule matching, workflow execution,
// segmentation, merge and persistence for a batch of events belonging to
// one profile/session.
package pipeline

import (
	"context"

	"github.com/solatis/profilekeeper/internal/types"
)

// RuleSource loads enabled rules triggered by an event type.
// Implementations surface transport failures as types.ErrStoreUnavailable.
type RuleSource interface {
	LoadEnabledByEventType(ctx context.Context, eventType string) ([]types.Rule, error)
}

// SegmentSource loads enabled segments triggered by an event type.
type SegmentSource interface {
	LoadEnabledByEventType(ctx context.Context, eventType string) ([]types.Segment, error)
}

// ProfileStore persists profiles and scans for duplicate candidates.
// Save and SaveMany must support concurrent independent calls.
type ProfileStore interface {
	Save(ctx context.Context, profile *types.Profile) error
	SaveMany(ctx context.Context, profiles []*types.Profile) error

	// LoadDuplicates returns active profiles other than exclude whose
	// attributes match the field values, bounded by limit.
	LoadDuplicates(ctx context.Context, exclude types.ProfileID, fields map[string]any, limit int) ([]*types.Profile, error)
}

// DiagnosticSink receives per-(event,rule) outcome records. Best-effort:
// the pipeline logs sink failures and completes regardless.
type DiagnosticSink interface {
	SaveBatch(ctx context.Context, diagnostics []types.Diagnostic) error
}
