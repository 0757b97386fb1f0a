// Package state persists per-scope extraction cursors so interrupted
// runs can resume without losing or duplicating issues.
package state

import (
	"context"
	"sync"
	"time"
)

// Cursor marks where the next run of a scope should resume.
// LastUpdatedAt/LastIssueKey form the logical watermark (timestamp
// primary, issue key as lexicographic tie-break); ResumePageAt is the
// page offset within the current query only and must be reset when the
// query changes shape.
type Cursor struct {
	LastUpdatedAt time.Time
	LastIssueKey  string
	ResumePageAt  int
}

// Store is the durability contract shared by every backend. Load
// returns a zero Cursor for an unknown scope, never an error; Save must
// be durable before it returns.
type Store interface {
	Load(ctx context.Context, scope string) (Cursor, error)
	Save(ctx context.Context, scope string, cursor Cursor) error
}

// Memory keeps cursors in process memory; used in tests and for
// console-only runs where nothing should be persisted.
type Memory struct {
	mu   sync.Mutex
	data map[string]Cursor
}

func NewMemory() *Memory { return &Memory{data: map[string]Cursor{}} }

func (m *Memory) Load(_ context.Context, scope string) (Cursor, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	return m.data[scope], nil
}

func (m *Memory) Save(_ context.Context, scope string, cursor Cursor) error {
	m.mu.Lock(); defer m.mu.Unlock()
	m.data[scope] = cursor
	return nil
}
