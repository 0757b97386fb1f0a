package jira

import (
	"fmt"
	"time"
)

// Layouts Jira is known to emit. The REST API usually formats
// timestamps as 2024-01-01T12:34:56.789+0000, which time.RFC3339 does
// not accept.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTime parses a timestamp in any of the formats Jira returns.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil { return t, nil }
	}
	return time.Time{}, fmt.Errorf("jira: unrecognised timestamp %q", value)
}
