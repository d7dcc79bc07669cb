// internal/cache/cache.go

// Package cache provides a short-TTL cache for rules and segments matching
// an event type, avoiding repeated store lookups under burst load.
//
// Explicit service object: constructed once at process start and passed by
// reference to the orchestrator, no package-level state. Entries are keyed
// by event type so cached rules for one type are never served for another.
// An entry read after its expiry is a miss and triggers a reload by the
// caller; concurrent refreshes may race and duplicate a store read, which
// is acceptable - the cache is an optimization, not a correctness
// mechanism.
package cache

import (
	"sync"
	"time"

	"github.com/solatis/profilekeeper/internal/types"
)

type entry[T any] struct {
	data    T
	expires time.Time
}

// Service caches rule and segment lists per event type with one TTL.
type Service struct {
	ttl time.Duration
	now func() time.Time // overridable for tests

	mu       sync.RWMutex
	rules    map[string]entry[[]types.Rule]
	segments map[string]entry[[]types.Segment]
}

// New creates a cache service with the given TTL.
// A zero or negative TTL disables caching: every read is a miss.
func New(ttl time.Duration) *Service {
	return &Service{
		ttl:      ttl,
		now:      time.Now,
		rules:    make(map[string]entry[[]types.Rule]),
		segments: make(map[string]entry[[]types.Segment]),
	}
}

// Rules returns the cached rule list for an event type.
// ok is false on miss or expiry.
func (s *Service) Rules(eventType string) ([]types.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rules[eventType]
	if !ok || s.now().After(e.expires) {
		return nil, false
	}
	return e.data, true
}

// SetRules stores the rule list for an event type with a fresh expiry.
func (s *Service) SetRules(eventType string, rules []types.Rule) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[eventType] = entry[[]types.Rule]{data: rules, expires: s.now().Add(s.ttl)}
}

// Segments returns the cached segment list for an event type.
// ok is false on miss or expiry.
func (s *Service) Segments(eventType string) ([]types.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.segments[eventType]
	if !ok || s.now().After(e.expires) {
		return nil, false
	}
	return e.data, true
}

// SetSegments stores the segment list for an event type with a fresh expiry.
func (s *Service) SetSegments(eventType string, segments []types.Segment) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[eventType] = entry[[]types.Segment]{data: segments, expires: s.now().Add(s.ttl)}
}

// Invalidate drops every cached entry. Called when rules or segments
// change out of band (admin updates) so the next batch reloads.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make(map[string]entry[[]types.Rule])
	s.segments = make(map[string]entry[[]types.Segment])
}
