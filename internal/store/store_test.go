package store

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/profilekeeper/internal/core/db"
	"github.com/solatis/profilekeeper/internal/types"
)

// openTestStore migrates a fresh in-memory SQLite database.
// Pool is pinned to one connection: every pooled connection would
// otherwise get its own empty :memory: database.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.MigrateUp(conn))

	s, err := New(conn)
	require.NoError(t, err)
	return s
}

func TestRules_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rule := types.Rule{
		ID:          types.DeriveRuleID("vip purchase"),
		Scope:       "acme",
		Name:        "vip purchase",
		Description: "tags big purchases",
		Condition:   `properties.total > 100`,
		EventType:   "purchase",
		Flow:        "flow-vip",
		Tags:        []string{"commerce", "vip"},
		Enabled:     true,
	}
	require.NoError(t, s.Rules.Save(ctx, rule))

	loaded, err := s.Rules.LoadEnabledByEventType(ctx, "purchase")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, rule, loaded[0])

	// Unknown event types load empty, not an error.
	none, err := s.Rules.LoadEnabledByEventType(ctx, "page-view")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRules_DisabledExcluded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rule := types.Rule{
		ID:        types.DeriveRuleID("paused rule"),
		Name:      "paused rule",
		Condition: `properties.total > 0`,
		EventType: "purchase",
		Flow:      "flow-1",
		Enabled:   false,
	}
	require.NoError(t, s.Rules.Save(ctx, rule))

	loaded, err := s.Rules.LoadEnabledByEventType(ctx, "purchase")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRules_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rule := types.Rule{
		ID:        types.DeriveRuleID("mutable rule"),
		Name:      "mutable rule",
		Condition: `properties.total > 0`,
		EventType: "purchase",
		Flow:      "flow-1",
		Enabled:   true,
	}
	require.NoError(t, s.Rules.Save(ctx, rule))

	rule.Condition = `properties.total > 50`
	require.NoError(t, s.Rules.Save(ctx, rule))

	loaded, err := s.Rules.LoadEnabledByEventType(ctx, "purchase")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, `properties.total > 50`, loaded[0].Condition)
}

func TestSegments_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	segment := types.Segment{
		ID:        types.DeriveSegmentID("big spenders"),
		Name:      "big spenders",
		Condition: `stats.counters.spend >= 1000`,
		EventType: "purchase",
		Enabled:   true,
	}
	require.NoError(t, s.Segments.Save(ctx, segment))

	loaded, err := s.Segments.LoadEnabledByEventType(ctx, "purchase")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, segment, loaded[0])

	require.NoError(t, s.Segments.Delete(ctx, segment.ID))
	loaded, err = s.Segments.LoadEnabledByEventType(ctx, "purchase")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestProfiles_SaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	profile := &types.Profile{
		ID:     types.NewProfileID(),
		Active: true,
		Stats:  types.ProfileStats{Visits: 3, Counters: map[string]int64{"orders": 2}},
		PII:    types.ProfilePII{Name: "Ada", Email: "ada@example.com"},
	}
	profile.Traits.Public = map[string]any{"tier": "gold"}
	require.NoError(t, s.Profiles.Save(ctx, profile))

	loaded, err := s.Profiles.Load(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, loaded.ID)
	assert.Equal(t, int64(3), loaded.Stats.Visits)
	assert.Equal(t, "ada@example.com", loaded.PII.Email)
	assert.Equal(t, "gold", loaded.Traits.Public["tier"])

	_, err = s.Profiles.Load(ctx, "no-such-profile")
	assert.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestProfiles_LoadDuplicatesByEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	shared := "dup@example.com"
	dup := &types.Profile{ID: "dup-1", Active: true, PII: types.ProfilePII{Email: shared}}
	other := &types.Profile{ID: "other-1", Active: true, PII: types.ProfilePII{Email: "else@example.com"}}
	retired := &types.Profile{ID: "retired-1", Active: false, MergedWith: "dup-1", PII: types.ProfilePII{Email: shared}}
	self := &types.Profile{ID: "self-1", Active: true, PII: types.ProfilePII{Email: shared}}
	for _, p := range []*types.Profile{dup, other, retired, self} {
		require.NoError(t, s.Profiles.Save(ctx, p))
	}

	found, err := s.Profiles.LoadDuplicates(ctx, "self-1", map[string]any{"pii.email": shared}, types.MaxMergeCandidates)
	require.NoError(t, err)

	// Inactive profiles and the excluded profile never surface.
	require.Len(t, found, 1)
	assert.Equal(t, types.ProfileID("dup-1"), found[0].ID)
}

func TestProfiles_LoadDuplicatesByDocumentField(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	match := &types.Profile{ID: "match-1", Active: true}
	match.Traits.Public = map[string]any{"crm-id": "c-42"}
	miss := &types.Profile{ID: "miss-1", Active: true}
	miss.Traits.Public = map[string]any{"crm-id": "c-7"}
	for _, p := range []*types.Profile{match, miss} {
		require.NoError(t, s.Profiles.Save(ctx, p))
	}

	found, err := s.Profiles.LoadDuplicates(ctx, "self-1",
		map[string]any{"traits.public.crm-id": "c-42"}, types.MaxMergeCandidates)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, types.ProfileID("match-1"), found[0].ID)
}

func TestProfiles_LoadDuplicatesEmptyFields(t *testing.T) {
	s := openTestStore(t)

	found, err := s.Profiles.LoadDuplicates(context.Background(), "self-1", nil, types.MaxMergeCandidates)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDiagnostics_SaveBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := []types.Diagnostic{
		{EventID: "ev-1", EventType: "purchase", RuleName: "rule one", Trace: map[string]any{"flow": "flow-1"}},
		{EventID: "ev-1", EventType: "purchase", RuleName: "rule two", Error: "boom", Origin: "workflow"},
	}
	require.NoError(t, s.Diagnostics.SaveBatch(ctx, batch))
}
