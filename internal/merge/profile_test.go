// internal/merge/profile_test.go
package merge

import (
	"testing"

	"github.com/solatis/profilekeeper/internal/types"
)

func TestProfiles(t *testing.T) {
	dup := &types.Profile{
		ID:     "dup-1",
		Active: true,
		Stats: types.ProfileStats{
			Visits:   3,
			Views:    10,
			Counters: map[string]int64{"purchases": 2},
		},
		Traits: types.ProfileTraits{
			Public: map[string]any{"plan": "free"},
		},
		PII:      types.ProfilePII{Email: "old@example.com", Name: "Ann"},
		Segments: []types.SegmentID{"seg-a"},
		Consents: map[string]types.ConsentState{
			"marketing": {Granted: true},
		},
	}
	survivor := &types.Profile{
		ID:     "main-1",
		Active: true,
		Stats: types.ProfileStats{
			Visits:   1,
			Views:    4,
			Counters: map[string]int64{"purchases": 1, "returns": 1},
		},
		Traits: types.ProfileTraits{
			Public: map[string]any{"plan": "pro"},
		},
		PII:      types.ProfilePII{Email: "new@example.com"},
		Segments: []types.SegmentID{"seg-a", "seg-b"},
		Consents: map[string]types.ConsentState{
			"marketing": {Granted: false},
		},
		Operation: types.Operation{Update: true, Merge: []string{"pii.email"}},
	}

	result, retired, err := Profiles([]*types.Profile{dup}, survivor)
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}

	if result.ID != "main-1" {
		t.Errorf("result ID = %s, want main-1", result.ID)
	}
	if !result.Active {
		t.Error("result not active")
	}

	// Stat counters sum across inputs.
	if result.Stats.Visits != 4 || result.Stats.Views != 14 {
		t.Errorf("stats = %+v, want visits 4 views 14", result.Stats)
	}
	if result.Stats.Counters["purchases"] != 3 || result.Stats.Counters["returns"] != 1 {
		t.Errorf("counters = %v", result.Stats.Counters)
	}

	// Segment sets union.
	if len(result.Segments) != 2 || !result.HasSegment("seg-a") || !result.HasSegment("seg-b") {
		t.Errorf("segments = %v, want union {seg-a seg-b}", result.Segments)
	}

	// Conflicting traits combine into a list.
	plan, ok := result.Traits.Public["plan"].([]any)
	if !ok || len(plan) != 2 {
		t.Errorf("plan = %#v, want two-element list", result.Traits.Public["plan"])
	}

	// Later profile wins consents; survivor is last.
	if result.Consents["marketing"].Granted {
		t.Error("consent resolution did not pick the last writer")
	}

	// Later non-empty PII wins; empty fields fall back to earlier values.
	if result.PII.Email != "new@example.com" {
		t.Errorf("email = %s, want new@example.com", result.PII.Email)
	}
	if result.PII.Name != "Ann" {
		t.Errorf("name = %s, want Ann", result.PII.Name)
	}

	// Consumed merge keys are cleared; the update flag survives.
	if len(result.Operation.Merge) != 0 {
		t.Errorf("merge keys not cleared: %v", result.Operation.Merge)
	}
	if !result.Operation.Update {
		t.Error("update flag dropped")
	}

	// The duplicate is retired: inactive, linked one-way to the survivor.
	if len(retired) != 1 {
		t.Fatalf("retired = %d profiles, want 1", len(retired))
	}
	if retired[0].ID != "dup-1" || retired[0].Active || retired[0].MergedWith != "main-1" {
		t.Errorf("retired = %+v", retired[0])
	}

	// Inputs must not be mutated.
	if !dup.Active || dup.MergedWith != "" {
		t.Errorf("input duplicate mutated: %+v", dup)
	}
}

func TestProfiles_PriorMergeTarget(t *testing.T) {
	// A survivor already linked to an earlier merge target resolves the
	// final identity to that target, and itself retires into it.
	survivor := &types.Profile{ID: "p-2", MergedWith: "p-1", Active: true}
	dup := &types.Profile{ID: "p-3", Active: true}

	result, retired, err := Profiles([]*types.Profile{dup}, survivor)
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}

	if result.ID != "p-1" {
		t.Errorf("result ID = %s, want prior target p-1", result.ID)
	}
	if len(retired) != 2 {
		t.Fatalf("retired = %d profiles, want 2", len(retired))
	}
	for _, r := range retired {
		if r.MergedWith != "p-1" || r.Active {
			t.Errorf("retired profile %s not linked to p-1: %+v", r.ID, r)
		}
	}
}

func TestProfiles_UnsupportedTraitShape(t *testing.T) {
	type opaque struct{}
	survivor := &types.Profile{
		ID:     "main",
		Traits: types.ProfileTraits{Private: map[string]any{"bad": opaque{}}},
	}

	_, _, err := Profiles(nil, survivor)
	if err == nil {
		t.Fatal("Profiles() error = nil, want ErrUnsupportedMergeType")
	}
}
