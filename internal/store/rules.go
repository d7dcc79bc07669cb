package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solatis/profilekeeper/internal/types"
)

// Rules is the rule catalog. Read-mostly: the pipeline loads per event
// type through the cache service, writes come from catalog management.
type Rules struct {
	q *queries
}

type ruleRow struct {
	RuleID      string `db:"rule_id"`
	Scope       string `db:"scope"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Condition   string `db:"condition"`
	EventType   string `db:"event_type"`
	FlowRef     string `db:"flow_ref"`
	Tags        string `db:"tags"` // JSON array
	Enabled     bool   `db:"enabled"`
}

// LoadEnabledByEventType returns the enabled rules triggered by the event
// type. Rules with malformed tag payloads are returned with empty tags
// rather than dropped.
func (s *Rules) LoadEnabledByEventType(ctx context.Context, eventType string) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "rules-by-event-type", &rows, eventType, true); err != nil {
		return nil, fmt.Errorf("%w: query rules for %q: %v", types.ErrStoreUnavailable, eventType, err)
	}

	rules := make([]types.Rule, 0, len(rows))
	for _, r := range rows {
		var tags []string
		if r.Tags != "" {
			_ = json.Unmarshal([]byte(r.Tags), &tags)
		}
		rules = append(rules, types.Rule{
			ID:          types.RuleID(r.RuleID),
			Scope:       r.Scope,
			Name:        r.Name,
			Description: r.Description,
			Condition:   r.Condition,
			EventType:   r.EventType,
			Flow:        types.FlowRef(r.FlowRef),
			Tags:        tags,
			Enabled:     r.Enabled,
		})
	}
	return rules, nil
}

// Save upserts a rule by ID.
func (s *Rules) Save(ctx context.Context, rule types.Rule) error {
	tags, err := json.Marshal(rule.Tags)
	if err != nil {
		return fmt.Errorf("encode rule tags: %w", err)
	}
	if rule.Tags == nil {
		tags = []byte("[]")
	}

	_, err = s.q.Exec(ctx, "upsert-rule",
		string(rule.ID), rule.Scope, rule.Name, rule.Description,
		rule.Condition, rule.EventType, string(rule.Flow),
		string(tags), rule.Enabled, nowStamp())
	if err != nil {
		return fmt.Errorf("%w: save rule %q: %v", types.ErrStoreUnavailable, rule.Name, err)
	}
	return nil
}

// Delete removes a rule by ID. Deleting an unknown rule is a no-op.
func (s *Rules) Delete(ctx context.Context, id types.RuleID) error {
	if _, err := s.q.Exec(ctx, "delete-rule", string(id)); err != nil {
		return fmt.Errorf("%w: delete rule %s: %v", types.ErrStoreUnavailable, id, err)
	}
	return nil
}
