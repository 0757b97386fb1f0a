package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/state"
	"github.com/stretchr/testify/require"
)

func TestMemoryUnknownScopeIsZeroCursor(t *testing.T) {
	store := state.NewMemory()
	cur, err := store.Load(context.Background(), "ABC:Bug")
	require.NoError(t, err)
	require.Equal(t, state.Cursor{}, cur)
}

func TestMemoryRoundtrip(t *testing.T) {
	store := state.NewMemory()
	want := state.Cursor{
		LastUpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		LastIssueKey:  "ABC-7",
		ResumePageAt:  200,
	}
	require.NoError(t, store.Save(context.Background(), "ABC:Bug", want))
	got, err := store.Load(context.Background(), "ABC:Bug")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSQLiteRoundtrip(t *testing.T) {
	ctx := context.Background()
	store, err := state.NewSQLite(ctx, filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load(ctx, "ABC:Bug")
	require.NoError(t, err)
	require.Equal(t, state.Cursor{}, got)

	want := state.Cursor{
		LastUpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC),
		LastIssueKey:  "ABC-7",
		ResumePageAt:  200,
	}
	require.NoError(t, store.Save(ctx, "ABC:Bug", want))
	got, err = store.Load(ctx, "ABC:Bug")
	require.NoError(t, err)
	require.True(t, want.LastUpdatedAt.Equal(got.LastUpdatedAt))
	require.Equal(t, want.LastIssueKey, got.LastIssueKey)
	require.Equal(t, want.ResumePageAt, got.ResumePageAt)
}

func TestSQLiteSaveIsUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := state.NewSQLite(ctx, filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	defer store.Close()

	first := state.Cursor{LastUpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), LastIssueKey: "ABC-1", ResumePageAt: 2}
	second := state.Cursor{LastUpdatedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), LastIssueKey: "ABC-9", ResumePageAt: 6}
	require.NoError(t, store.Save(ctx, "ABC:Bug", first))
	require.NoError(t, store.Save(ctx, "ABC:Bug", second))

	got, err := store.Load(ctx, "ABC:Bug")
	require.NoError(t, err)
	require.True(t, second.LastUpdatedAt.Equal(got.LastUpdatedAt))
	require.Equal(t, "ABC-9", got.LastIssueKey)
	require.Equal(t, 6, got.ResumePageAt)
}

func TestSQLiteScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store, err := state.NewSQLite(ctx, filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, "ABC:Bug", state.Cursor{LastIssueKey: "ABC-1", ResumePageAt: 4}))
	require.NoError(t, store.Save(ctx, "ABC:Story", state.Cursor{LastIssueKey: "ABC-2", ResumePageAt: 8}))

	bug, err := store.Load(ctx, "ABC:Bug")
	require.NoError(t, err)
	story, err := store.Load(ctx, "ABC:Story")
	require.NoError(t, err)
	require.Equal(t, 4, bug.ResumePageAt)
	require.Equal(t, 8, story.ResumePageAt)
}
