// Package load persists transformed issue pages. All loaders are
// idempotent under repeated delivery of the same page.
package load

import (
	"context"

	"github.com/RodeFRode/jira-extraction/internal/transform"
)

// Stats summarises one LoadPage call.
type Stats struct {
	Issues  int `json:"issues"`
	Links   int `json:"links"`
	Changes int `json:"changes"`
}

func (s *Stats) Add(other Stats) {
	s.Issues += other.Issues
	s.Links += other.Links
	s.Changes += other.Changes
}

// Loader writes one batch of transforms to a sink. The batch is an
// atomic unit where the backend supports it.
type Loader interface {
	LoadPage(ctx context.Context, transforms []transform.IssueTransform) (Stats, error)
}
