package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/profilekeeper/internal/cache"
	"github.com/solatis/profilekeeper/internal/core/config"
	"github.com/solatis/profilekeeper/internal/core/db"
	"github.com/solatis/profilekeeper/internal/pipeline"
	"github.com/solatis/profilekeeper/internal/store"
	"github.com/solatis/profilekeeper/internal/types"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Replay an event batch through the full pipeline",
	Long: `Reads events (one JSON object per line) and runs them through rules,
workflows, segmentation and merge against the configured store. Workflow
invocations use an echo runtime that traces each (event,rule) pair, so
the command doubles as an operational smoke test.`,
	RunE: runTrack,
}

var (
	trackEventsFile   string
	trackSourceFilter string
)

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.Flags().StringVar(&trackEventsFile, "events", "", "path to JSONL events file (required)")
	trackCmd.Flags().StringVar(&trackSourceFilter, "source", "", "only schedule events from this source")
	trackCmd.MarkFlagRequired("events")
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	events, err := readEvents(trackEventsFile)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events in %s", trackEventsFile)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	stores, err := store.New(database)
	if err != nil {
		return fmt.Errorf("failed to load store queries: %w", err)
	}

	profile, err := loadOrCreateProfile(ctx, stores.Profiles, events[0].Profile)
	if err != nil {
		return err
	}

	cacheSvc := cache.New(cfg.RuleCacheTTL)
	segmenter := pipeline.NewSegmenter(stores.Segments, cacheSvc, log)
	orchestrator := pipeline.New(stores.Rules, segmenter, stores.Profiles, stores.Diagnostics,
		echoRuntime{}, cacheSvc, log, pipeline.Options{
			MaxConcurrency:     cfg.MaxConcurrency,
			MaxMergeCandidates: cfg.MaxMergeCandidates,
		})

	diagnostics, segmentation, err := orchestrator.Run(ctx, profile, events, trackSourceFilter)
	if err != nil {
		return err
	}

	out := struct {
		Profile      *types.Profile            `json:"profile"`
		Diagnostics  pipeline.Diagnostics      `json:"diagnostics"`
		Segmentation pipeline.SegmentationInfo `json:"segmentation"`
	}{profile, diagnostics, segmentation}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// readEvents decodes one event per non-empty line.
func readEvents(path string) ([]*types.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	var events []*types.Event
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var event types.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if event.ID == "" {
			event.ID = types.NewEventID()
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	return events, nil
}

func loadOrCreateProfile(ctx context.Context, profiles *store.Profiles, id types.ProfileID) (*types.Profile, error) {
	if id == "" {
		id = types.NewProfileID()
	}
	profile, err := profiles.Load(ctx, id)
	if errors.Is(err, types.ErrProfileNotFound) {
		return &types.Profile{
			ID:        id,
			Active:    true,
			Operation: types.Operation{New: true},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// echoRuntime resolves every flow and returns a trace of the invocation
// without touching the profile.
type echoRuntime struct{}

func (echoRuntime) Resolve(ctx context.Context, flow types.FlowRef) error {
	return nil
}

func (echoRuntime) Invoke(ctx context.Context, flow types.FlowRef, event *types.Event, session types.SessionID, profile types.Profile, debug bool) (pipeline.InvokeResult, error) {
	return pipeline.InvokeResult{
		Trace: map[string]any{
			"flow":    string(flow),
			"event":   string(event.ID),
			"type":    event.Type,
			"profile": string(profile.ID),
		},
	}, nil
}

var _ pipeline.WorkflowRuntime = echoRuntime{}
