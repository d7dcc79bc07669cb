package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/solatis/profilekeeper/internal/condition"
	"github.com/solatis/profilekeeper/internal/types"
)

// Profiles persists profiles as JSON documents with the identity fields
// used for duplicate lookup extracted into indexed columns.
type Profiles struct {
	q *queries
}

type profileRow struct {
	ProfileID  string `db:"profile_id"`
	MergedWith string `db:"merged_with"`
	Active     bool   `db:"active"`
	Document   string `db:"document"`
}

func (r profileRow) decode() (*types.Profile, error) {
	var p types.Profile
	if err := json.Unmarshal([]byte(r.Document), &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", r.ProfileID, err)
	}
	return &p, nil
}

// Save upserts one profile.
func (s *Profiles) Save(ctx context.Context, profile *types.Profile) error {
	document, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", profile.ID, err)
	}

	_, err = s.q.Exec(ctx, "upsert-profile",
		string(profile.ID), string(profile.MergedWith),
		profile.PII.Email, profile.PII.Telephone,
		profile.Active, string(document), nowStamp())
	if err != nil {
		return fmt.Errorf("%w: save profile %s: %v", types.ErrStoreUnavailable, profile.ID, err)
	}
	return nil
}

// SaveMany upserts a set of profiles. Stops at the first failure; callers
// treating the write as best-effort log and move on.
func (s *Profiles) SaveMany(ctx context.Context, profiles []*types.Profile) error {
	for _, p := range profiles {
		if err := s.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Load fetches one profile by ID.
func (s *Profiles) Load(ctx context.Context, id types.ProfileID) (*types.Profile, error) {
	var row profileRow
	err := s.q.Get(ctx, "get-profile", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrProfileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load profile %s: %v", types.ErrStoreUnavailable, id, err)
	}
	return row.decode()
}

// LoadDuplicates returns up to limit active profiles whose flattened form
// carries every requested field with an equal value, excluding the profile
// the merge runs for. Email and telephone lookups hit indexed columns; the
// remaining fields are matched against the stored document.
func (s *Profiles) LoadDuplicates(ctx context.Context, exclude types.ProfileID, fields map[string]any, limit int) ([]*types.Profile, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	rows, err := s.candidateRows(ctx, exclude, fields, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query duplicates: %v", types.ErrStoreUnavailable, err)
	}

	var duplicates []*types.Profile
	for _, r := range rows {
		p, err := r.decode()
		if err != nil {
			return nil, err
		}
		if matchesFields(p, fields) {
			duplicates = append(duplicates, p)
		}
	}
	return duplicates, nil
}

// candidateRows narrows the scan through an indexed column when one of
// the identity fields names it, falling back to a bounded scan of active
// profiles otherwise.
func (s *Profiles) candidateRows(ctx context.Context, exclude types.ProfileID, fields map[string]any, limit int) ([]profileRow, error) {
	var rows []profileRow

	if email, ok := fields["pii.email"].(string); ok && email != "" {
		err := s.q.Select(ctx, "profiles-by-email", &rows, true, email, string(exclude), limit)
		return rows, err
	}
	if telephone, ok := fields["pii.telephone"].(string); ok && telephone != "" {
		err := s.q.Select(ctx, "profiles-by-telephone", &rows, true, telephone, string(exclude), limit)
		return rows, err
	}

	err := s.q.Select(ctx, "active-profiles", &rows, true, string(exclude), limit)
	return rows, err
}

// matchesFields reports whether the profile's flattened serialized form
// carries every field with an equal value. Both sides go through a JSON
// round trip, so numeric values compare as float64 on both.
func matchesFields(p *types.Profile, fields map[string]any) bool {
	raw, err := json.Marshal(p)
	if err != nil {
		return false
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return false
	}
	record := condition.Flatten(tree)

	for path, want := range fields {
		got, ok := record[path]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
