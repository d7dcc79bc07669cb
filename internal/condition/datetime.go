// internal/condition/datetime.go
package condition

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTime interprets a value as a point in time.
// Strings go through flexible format detection (RFC3339, common date
// layouts, unix-ish strings) so stored conditions keep working regardless
// of which layout the original deployment wrote.
func ParseTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse %q as datetime: %w", v, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("cannot interpret %T as datetime", value)
	}
}
