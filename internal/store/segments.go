package store

import (
	"context"
	"fmt"

	"github.com/solatis/profilekeeper/internal/types"
)

// Segments is the segment catalog.
type Segments struct {
	q *queries
}

type segmentRow struct {
	SegmentID   string `db:"segment_id"`
	Scope       string `db:"scope"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Condition   string `db:"condition"`
	EventType   string `db:"event_type"`
	Enabled     bool   `db:"enabled"`
}

// LoadEnabledByEventType returns the enabled segments triggered by the
// event type.
func (s *Segments) LoadEnabledByEventType(ctx context.Context, eventType string) ([]types.Segment, error) {
	var rows []segmentRow
	if err := s.q.Select(ctx, "segments-by-event-type", &rows, eventType, true); err != nil {
		return nil, fmt.Errorf("%w: query segments for %q: %v", types.ErrStoreUnavailable, eventType, err)
	}

	segments := make([]types.Segment, 0, len(rows))
	for _, r := range rows {
		segments = append(segments, types.Segment{
			ID:          types.SegmentID(r.SegmentID),
			Scope:       r.Scope,
			Name:        r.Name,
			Description: r.Description,
			Condition:   r.Condition,
			EventType:   r.EventType,
			Enabled:     r.Enabled,
		})
	}
	return segments, nil
}

// Save upserts a segment by ID.
func (s *Segments) Save(ctx context.Context, segment types.Segment) error {
	_, err := s.q.Exec(ctx, "upsert-segment",
		string(segment.ID), segment.Scope, segment.Name, segment.Description,
		segment.Condition, segment.EventType, segment.Enabled, nowStamp())
	if err != nil {
		return fmt.Errorf("%w: save segment %q: %v", types.ErrStoreUnavailable, segment.Name, err)
	}
	return nil
}

// Delete removes a segment by ID. Deleting an unknown segment is a no-op.
func (s *Segments) Delete(ctx context.Context, id types.SegmentID) error {
	if _, err := s.q.Exec(ctx, "delete-segment", string(id)); err != nil {
		return fmt.Errorf("%w: delete segment %s: %v", types.ErrStoreUnavailable, id, err)
	}
	return nil
}
