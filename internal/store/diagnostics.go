package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solatis/profilekeeper/internal/types"
)

// Diagnostics persists per-(event,rule) workflow outcomes. Purely
// observational: the orchestrator treats writes as best-effort.
type Diagnostics struct {
	q *queries
}

// SaveBatch inserts one row per diagnostic.
func (s *Diagnostics) SaveBatch(ctx context.Context, batch []types.Diagnostic) error {
	stamp := nowStamp()
	for _, d := range batch {
		trace := "{}"
		if len(d.Trace) > 0 {
			raw, err := json.Marshal(d.Trace)
			if err != nil {
				return fmt.Errorf("encode trace for event %s: %w", d.EventID, err)
			}
			trace = string(raw)
		}

		_, err := s.q.Exec(ctx, "insert-diagnostic",
			string(d.EventID), d.EventType, d.RuleName,
			trace, d.Error, d.Origin, stamp)
		if err != nil {
			return fmt.Errorf("%w: save diagnostic for event %s: %v", types.ErrStoreUnavailable, d.EventID, err)
		}
	}
	return nil
}
