package load

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/RodeFRode/jira-extraction/internal/transform"
)

// Console emits transforms as indented JSON instead of persisting
// them; used for dry runs.
type Console struct {
	w      io.Writer
	indent string
}

func NewConsole(w io.Writer) *Console {
	if w == nil { w = os.Stdout }
	return &Console{w: w, indent: "  "}
}

func (c *Console) LoadPage(_ context.Context, transforms []transform.IssueTransform) (Stats, error) {
	var stats Stats
	enc := json.NewEncoder(c.w)
	enc.SetIndent("", c.indent)
	for _, t := range transforms {
		if err := enc.Encode(t); err != nil { return stats, err }
		stats.Issues++
		stats.Links += len(t.Links)
		stats.Changes += len(t.Changes)
	}
	return stats, nil
}
