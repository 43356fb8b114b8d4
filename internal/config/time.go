package config

import (
	"fmt"
	"strings"
	"time"
)

// timeRefLayouts are the absolute formats accepted by --since/--until.
var timeRefLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimeRef parses an absolute timestamp or a relative duration.
// Relative values are subtracted from the current time (e.g. "1h", "30m").
func ParseTimeRef(s string) (time.Time, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return time.Time{}, fmt.Errorf("time reference is empty")
	}

	for _, layout := range timeRefLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}

	if d, err := time.ParseDuration(input); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("relative time reference must be positive: %s", input)
		}
		return time.Now().Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time reference: %s", input)
}
