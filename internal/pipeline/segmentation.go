// internal/pipeline/segmentation.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/profilekeeper/internal/cache"
	"github.com/solatis/profilekeeper/internal/condition"
	"github.com/solatis/profilekeeper/internal/types"
)

/*
 * Segmentation evaluation.
 *
 * For each distinct event type in the batch, loads the segments that type
 * triggers and evaluates each segment's condition against the flattened
 * profile. Matching segments join the profile's segment set (set
 * semantics, re-adding is a no-op). One segment's evaluation failure is
 * collected into the batch's error list and never prevents evaluating the
 * rest.
 */

// Segmenter applies segment conditions to a profile.
type Segmenter struct {
	segments SegmentSource
	cache    *cache.Service
	log      *zap.Logger
}

// NewSegmenter creates a segmentation evaluator sharing the process-wide
// cache service.
func NewSegmenter(segments SegmentSource, cacheSvc *cache.Service, log *zap.Logger) *Segmenter {
	return &Segmenter{segments: segments, cache: cacheSvc, log: log}
}

// Evaluate re-evaluates cohort membership for every segment triggered by
// the batch's event types. Mutates the profile's segment set in place.
func (s *Segmenter) Evaluate(ctx context.Context, profile *types.Profile, eventTypes []string) SegmentationInfo {
	var info SegmentationInfo

	record, err := flattenProfile(profile)
	if err != nil {
		info.Errors = append(info.Errors, fmt.Sprintf("flatten profile: %v", err))
		return info
	}

	for _, eventType := range eventTypes {
		segments, err := s.loadSegments(ctx, eventType)
		if err != nil {
			info.Errors = append(info.Errors, fmt.Sprintf("load segments for %q: %v", eventType, err))
			continue
		}

		for _, segment := range segments {
			matched, err := condition.Evaluate(segment.Condition, record)
			if err != nil {
				s.log.Warn("segment condition failed",
					zap.String("segment", segment.Name),
					zap.String("event_type", eventType),
					zap.Error(err))
				info.Errors = append(info.Errors, fmt.Sprintf("segment %q: %v", segment.Name, err))
				continue
			}
			if matched {
				profile.AddSegment(segment.ID)
				info.Segments = append(info.Segments, segment.ID)
			}
		}
	}

	return info
}

func (s *Segmenter) loadSegments(ctx context.Context, eventType string) ([]types.Segment, error) {
	if segments, ok := s.cache.Segments(eventType); ok {
		return segments, nil
	}
	segments, err := s.segments.LoadEnabledByEventType(ctx, eventType)
	if err != nil {
		return nil, err
	}
	s.cache.SetSegments(eventType, segments)
	return segments, nil
}

// flattenProfile renders the profile as the dotted-path record condition
// evaluation runs against. The JSON round-trip keeps condition field
// names aligned with the profile's serialized form, so a condition like
// pii.email = "..." addresses the same path the API exposes.
func flattenProfile(profile *types.Profile) (map[string]any, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return condition.Flatten(tree), nil
}

// mergeFieldValues resolves the profile's merge field paths against its
// flattened form. Paths the profile does not carry are skipped.
func mergeFieldValues(profile *types.Profile) (map[string]any, error) {
	record, err := flattenProfile(profile)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(profile.Operation.Merge))
	for _, path := range profile.Operation.Merge {
		if value, ok := record[path]; ok && value != nil {
			fields[path] = value
		}
	}
	return fields, nil
}
