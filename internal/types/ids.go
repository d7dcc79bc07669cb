package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Namespace for deterministic rule and segment identity.
// Fixed so every deployment derives the same ID for the same name.
var entityNamespace = uuid.MustParse("8b109bdd-2fa9-4b51-b0e3-2e1d5a6f5a10")

// NewEventID generates a UUIDv7 event identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// NewProfileID generates a UUIDv7 profile identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewProfileID() ProfileID {
	return ProfileID(uuid.Must(uuid.NewV7()).String())
}

// NewSessionID generates a UUIDv7 session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

// NormalizeName canonicalizes an entity name for identity derivation:
// lowercased, trimmed, inner whitespace collapsed to single spaces.
// "My  Rule " and "my rule" derive the same ID.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// DeriveRuleID derives the deterministic identity of a rule from its
// normalized name (UUIDv5 in the entity namespace).
func DeriveRuleID(name string) RuleID {
	return RuleID(uuid.NewSHA1(entityNamespace, []byte(NormalizeName(name))).String())
}

// DeriveSegmentID derives the deterministic identity of a segment from its
// normalized name. Shares the namespace with rules: names are unique per
// entity kind, not across kinds, so collisions between a rule and a segment
// of the same name are harmless.
func DeriveSegmentID(name string) SegmentID {
	return SegmentID(uuid.NewSHA1(entityNamespace, []byte(NormalizeName(name))).String())
}

// ParseProfileID validates and converts a string to ProfileID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseProfileID(s string) (ProfileID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ProfileID(s), nil
}

// EventIDTime extracts the timestamp embedded in a UUIDv7 event ID.
// Enables time-based queries without database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EventIDTime(id EventID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
