package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.StartRun(ctx, "run-1", started))
	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, StatusRunning, runs[0].Status)
	require.True(t, runs[0].FinishedAt.IsZero())

	detail := RunDetail{
		Run: Run{
			ID:           "run-1",
			StartedAt:    started,
			FinishedAt:   started.Add(2 * time.Second),
			Status:       StatusPartial,
			Repositories: 2,
			Files:        2,
			Error:        "beta: clone failed",
		},
		Files: []File{
			{Repository: "alpha", Path: "guide.md", Fingerprint: "fp-guide"},
			{Repository: "alpha", Path: "README.md", Fingerprint: "fp-readme"},
		},
		Broken: []BrokenLink{{Repository: "alpha", Source: "README.md", Target: "gone.md"}},
	}
	require.NoError(t, s.SaveReport(ctx, detail))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, detail.Run, got.Run)
	require.Equal(t, []File{
		{Repository: "alpha", Path: "README.md", Fingerprint: "fp-readme"},
		{Repository: "alpha", Path: "guide.md", Fingerprint: "fp-guide"},
	}, got.Files)
	require.Equal(t, detail.Broken, got.Broken)

	// Saving again replaces the details.
	detail.Files = detail.Files[:1]
	detail.Broken = nil
	require.NoError(t, s.SaveReport(ctx, detail))
	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	require.Empty(t, got.Broken)
}

func TestStore_ListOrderAndLatestFingerprint(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, fp := range []string{"v1", "v2", "v3"} {
		id := []string{"a", "b", "c"}[i]
		require.NoError(t, s.SaveReport(ctx, RunDetail{
			Run:   Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour), Status: StatusSucceeded},
			Files: []File{{Repository: "alpha", Path: "README.md", Fingerprint: fp}},
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "c", runs[0].ID)
	require.Equal(t, "b", runs[1].ID)

	fp, err := s.LatestFingerprint(ctx, "alpha", "README.md")
	require.NoError(t, err)
	require.Equal(t, "v3", fp)

	fp, err = s.LatestFingerprint(ctx, "alpha", "missing.md")
	require.NoError(t, err)
	require.Empty(t, fp)
}

func TestStore_GetRunNotFound(t *testing.T) {
	_, err := openMemory(t).GetRun(context.Background(), "nope")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.StartRun(ctx, "persisted", time.Now()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "persisted", runs[0].ID)
}

func TestFingerprint(t *testing.T) {
	md := Fingerprint([]byte("---\ntitle: A\n---\n# Body\n"))
	require.NotEmpty(t, md)
	require.Equal(t, md, Fingerprint([]byte("---\ntitle: A\n---\n# Body\n")))
	require.NotEqual(t, md, Fingerprint([]byte("---\ntitle: B\n---\n# Body\n")))

	bin := Fingerprint([]byte{0x00, 0x01})
	require.Len(t, bin, 64)
}
