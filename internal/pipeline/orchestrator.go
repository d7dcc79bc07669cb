// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solatis/profilekeeper/internal/cache"
	"github.com/solatis/profilekeeper/internal/condition"
	"github.com/solatis/profilekeeper/internal/merge"
	"github.com/solatis/profilekeeper/internal/types"
)

/*
 * Rule/workflow orchestration.
 *
 * For a batch of events belonging to one profile/session:
 *
 *   1. Load enabled rules per event type (through the TTL cache).
 *   2. Gate each rule on its condition against the flattened event;
 *      empty conditions always match.
 *   3. Resolve each rule's flow; unresolvable flows become diagnostic
 *      failures for that (event,rule) pair, never batch failures.
 *   4. Apply the optional source filter before scheduling.
 *   5. Fan out one unit per (event,rule) pair, bounded by MaxConcurrency,
 *      cancellation propagated from the parent context.
 *   6. A failing unit's error is captured into its diagnostic record;
 *      siblings keep running (failure isolation).
 *   7. Segmentation runs when the profile needs it, over all event types
 *      touched in the batch.
 *   8. Merge runs when requested, bounded by MaxMergeCandidates; retired
 *      duplicates persist concurrently with other pending saves.
 *   9. The profile's own save is the last write scheduled.
 *  10. All scheduled persistence is awaited before returning.
 *
 * Stage ordering is an invariant: workflows complete before segmentation,
 * segmentation before merge, merge before the profile's save, so segment
 * and merge effects land in the persisted record.
 *
 * Profile mutation is single-writer: units return deltas, and the
 * orchestrator applies each under a mutex as its unit completes.
 */

// Diagnostics maps event type to the (event,rule) outcomes recorded for it.
type Diagnostics map[string][]types.Diagnostic

// SegmentationInfo summarizes the segmentation stage for one batch.
type SegmentationInfo struct {
	Errors   []string          `json:"errors,omitempty"`
	Segments []types.SegmentID `json:"ids,omitempty"`
}

// Options bound the orchestrator's resource usage.
type Options struct {
	// MaxConcurrency caps in-flight (event,rule) units. Zero or negative
	// falls back to DefaultMaxConcurrency; the fan-out is never unbounded.
	MaxConcurrency int

	// MaxMergeCandidates caps the duplicate scan per merge cycle.
	MaxMergeCandidates int
}

// DefaultMaxConcurrency bounds workflow fan-out when unset. 32 keeps a
// pathological event type (hundreds of matching rules) from exhausting
// runtime resources while saturating typical batches.
const DefaultMaxConcurrency = 32

// Orchestrator is the single entry point of the processing core.
type Orchestrator struct {
	rules    RuleSource
	segments *Segmenter
	profiles ProfileStore
	sink     DiagnosticSink
	runtime  WorkflowRuntime
	cache    *cache.Service
	log      *zap.Logger

	maxConcurrency     int
	maxMergeCandidates int
}

// New creates an orchestrator. The cache service is constructed once at
// process start and shared; segments may be nil only in tests that never
// trigger segmentation.
func New(rules RuleSource, segments *Segmenter, profiles ProfileStore, sink DiagnosticSink, runtime WorkflowRuntime, cacheSvc *cache.Service, log *zap.Logger, opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.MaxMergeCandidates <= 0 {
		opts.MaxMergeCandidates = types.MaxMergeCandidates
	}
	return &Orchestrator{
		rules:              rules,
		segments:           segments,
		profiles:           profiles,
		sink:               sink,
		runtime:            runtime,
		cache:              cacheSvc,
		log:                log,
		maxConcurrency:     opts.MaxConcurrency,
		maxMergeCandidates: opts.MaxMergeCandidates,
	}
}

// unit is one scheduled (event,rule) workflow invocation.
type unit struct {
	event *types.Event
	rule  types.Rule
}

// Run processes one batch of events for one profile/session.
// sourceFilter, when non-empty, limits scheduling to events from that
// source. The profile is mutated in place; on return it reflects all
// workflow deltas, segmentation and merge effects, and has been persisted
// if any stage requested an update.
func (o *Orchestrator) Run(ctx context.Context, profile *types.Profile, events []*types.Event, sourceFilter string) (Diagnostics, SegmentationInfo, error) {
	var info SegmentationInfo
	if len(events) > types.MaxBatchEvents {
		return nil, info, types.ErrBatchTooLarge
	}

	diagnostics := make(Diagnostics)
	var diagMu sync.Mutex
	record := func(d types.Diagnostic) {
		diagMu.Lock()
		diagnostics[d.EventType] = append(diagnostics[d.EventType], d)
		diagMu.Unlock()
	}

	// Shared setup: rule loading failures propagate to the caller.
	units, err := o.schedule(ctx, events, sourceFilter, record)
	if err != nil {
		return nil, info, err
	}

	// Fan out workflow invocations, bounded. Units never return errors:
	// failures are captured per unit, so one failing workflow cannot
	// cancel its siblings.
	var profileMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for _, u := range units {
		u := u
		g.Go(func() error {
			// Deep clone: a shallow copy would alias the profile's maps,
			// racing invocations reading the snapshot against sibling
			// deltas applied under the mutex.
			profileMu.Lock()
			snapshot := profile.Clone()
			profileMu.Unlock()

			result, err := o.runtime.Invoke(gctx, u.rule.Flow, u.event, u.event.Session, snapshot, true)
			if err != nil {
				record(types.Diagnostic{
					EventID:   u.event.ID,
					EventType: u.event.Type,
					RuleName:  u.rule.Name,
					Error:     err.Error(),
					Origin:    "workflow",
				})
				return nil
			}

			profileMu.Lock()
			result.Delta.Apply(profile)
			profileMu.Unlock()

			record(types.Diagnostic{
				EventID:   u.event.ID,
				EventType: u.event.Type,
				RuleName:  u.rule.Name,
				Trace:     result.Trace,
			})
			return nil
		})
	}
	_ = g.Wait()

	// Segmentation before merge, so cohort membership computed on the
	// post-workflow profile carries into the merged record.
	if profile.Operation.NeedsSegmentation() && o.segments != nil {
		info = o.segments.Evaluate(ctx, profile, eventTypes(events))
	}

	retired, err := o.mergeIfRequested(ctx, profile)
	if err != nil {
		return diagnostics, info, err
	}

	if err := o.persist(ctx, profile, retired); err != nil {
		return diagnostics, info, err
	}

	o.flushDiagnostics(ctx, diagnostics)
	return diagnostics, info, nil
}

// schedule expands events into (event,rule) units. Condition and flow
// resolution failures become diagnostics; the pair is skipped, the batch
// continues.
func (o *Orchestrator) schedule(ctx context.Context, events []*types.Event, sourceFilter string, record func(types.Diagnostic)) ([]unit, error) {
	var units []unit
	for _, event := range events {
		if sourceFilter != "" && event.Source != sourceFilter {
			continue
		}

		rules, err := o.loadRules(ctx, event.Type)
		if err != nil {
			return nil, fmt.Errorf("load rules for %q: %w", event.Type, err)
		}
		if len(rules) == 0 {
			continue
		}

		eventRecord, err := flattenEvent(event)
		if err != nil {
			return nil, fmt.Errorf("flatten event %s: %w", event.ID, err)
		}

		for _, rule := range rules {
			if !rule.Enabled {
				continue
			}
			if rule.Condition != "" {
				matched, err := condition.Evaluate(rule.Condition, eventRecord)
				if err != nil {
					record(types.Diagnostic{
						EventID:   event.ID,
						EventType: event.Type,
						RuleName:  rule.Name,
						Error:     err.Error(),
						Origin:    "condition",
					})
					continue
				}
				if !matched {
					continue
				}
			}
			if err := o.runtime.Resolve(ctx, rule.Flow); err != nil {
				record(types.Diagnostic{
					EventID:   event.ID,
					EventType: event.Type,
					RuleName:  rule.Name,
					Error:     err.Error(),
					Origin:    "flow-resolution",
				})
				continue
			}
			units = append(units, unit{event: event, rule: rule})
		}
	}
	return units, nil
}

// loadRules consults the cache first; expired entries reload from the
// store and repopulate.
func (o *Orchestrator) loadRules(ctx context.Context, eventType string) ([]types.Rule, error) {
	if rules, ok := o.cache.Rules(eventType); ok {
		return rules, nil
	}
	rules, err := o.rules.LoadEnabledByEventType(ctx, eventType)
	if err != nil {
		return nil, err
	}
	o.cache.SetRules(eventType, rules)
	return rules, nil
}

// mergeIfRequested runs the merge engine when the profile asks for it.
// The profile is replaced in place by the merge result, which has the
// consumed merge keys cleared.
func (o *Orchestrator) mergeIfRequested(ctx context.Context, profile *types.Profile) ([]*types.Profile, error) {
	if !profile.Operation.NeedsMerge() {
		return nil, nil
	}

	fields, err := mergeFieldValues(profile)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		// Merge keys reference attributes this profile does not carry;
		// nothing to scan for. Consume the keys so the next cycle does
		// not retry forever.
		profile.Operation.Merge = nil
		return nil, nil
	}

	duplicates, err := o.profiles.LoadDuplicates(ctx, profile.ID, fields, o.maxMergeCandidates)
	if err != nil {
		return nil, fmt.Errorf("load duplicates: %w", err)
	}
	if len(duplicates) == 0 {
		profile.Operation.Merge = nil
		return nil, nil
	}

	merged, retired, err := merge.Profiles(duplicates, profile)
	if err != nil {
		return nil, fmt.Errorf("merge profiles: %w", err)
	}

	o.log.Info("merged duplicate profiles",
		zap.String("profile_id", string(merged.ID)),
		zap.Int("duplicates", len(retired)))

	*profile = *merged
	return retired, nil
}

// persist awaits all scheduled writes together. Retired-duplicate saves
// run concurrently and are best-effort; the profile's own save is the
// last write scheduled and the only one that can fail the batch.
func (o *Orchestrator) persist(ctx context.Context, profile *types.Profile, retired []*types.Profile) error {
	g, gctx := errgroup.WithContext(ctx)

	if len(retired) > 0 {
		retired := retired
		g.Go(func() error {
			if err := o.profiles.SaveMany(gctx, retired); err != nil {
				// Duplicate cleanup must not block the primary save.
				o.log.Warn("failed to persist retired duplicates",
					zap.Int("count", len(retired)), zap.Error(err))
			}
			return nil
		})
	}

	if profile.Operation.Update {
		g.Go(func() error {
			if err := o.profiles.Save(gctx, profile); err != nil {
				return fmt.Errorf("save profile %s: %w", profile.ID, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// flushDiagnostics pushes the batch's records to the sink. Best-effort:
// sink failures are logged, never surfaced.
func (o *Orchestrator) flushDiagnostics(ctx context.Context, diagnostics Diagnostics) {
	if o.sink == nil || len(diagnostics) == 0 {
		return
	}
	var batch []types.Diagnostic
	for _, records := range diagnostics {
		batch = append(batch, records...)
	}
	if err := o.sink.SaveBatch(ctx, batch); err != nil {
		o.log.Warn("failed to persist diagnostics", zap.Int("count", len(batch)), zap.Error(err))
	}
}

// flattenEvent renders the event as the dotted-path record rule
// conditions run against, aligned with the event's serialized form.
func flattenEvent(event *types.Event) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return condition.Flatten(tree), nil
}

// eventTypes returns the distinct event types in batch order.
func eventTypes(events []*types.Event) []string {
	seen := make(map[string]bool, len(events))
	var out []string
	for _, e := range events {
		if !seen[e.Type] {
			seen[e.Type] = true
			out = append(out, e.Type)
		}
	}
	return out
}
