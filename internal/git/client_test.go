package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/testutil/testutils"
)

func TestSync_ClonesThenUpdates(t *testing.T) {
	remote := testutils.NewRemote(t)
	first := remote.Commit(t, "README.md", "# Docs\n")

	ws := t.TempDir()
	c := NewClient(ws, Options{Branch: "master"})

	res, err := c.Sync(context.Background(), "docs", remote.Bare)
	require.NoError(t, err)
	require.True(t, res.Cloned)
	require.Equal(t, first, res.Commit)
	require.FileExists(t, filepath.Join(ws, "docs", "README.md"))

	origin, err := OriginURL(res.Path)
	require.NoError(t, err)
	require.Equal(t, remote.Bare, origin)

	second := remote.Commit(t, "guide.md", "guide\n")
	require.NoError(t, os.WriteFile(filepath.Join(res.Path, "README.md"), []byte("local edit\n"), 0o600))

	res, err = c.Sync(context.Background(), "docs", remote.Bare)
	require.NoError(t, err)
	require.False(t, res.Cloned)
	require.Equal(t, second, res.Commit)
	require.FileExists(t, filepath.Join(ws, "docs", "guide.md"))

	readme, err := os.ReadFile(filepath.Join(ws, "docs", "README.md"))
	require.NoError(t, err)
	require.Equal(t, "# Docs\n", string(readme))
}

func TestSync_ReclonesOnOriginMismatch(t *testing.T) {
	old := testutils.NewRemote(t)
	old.Commit(t, "old.md", "old\n")
	current := testutils.NewRemote(t)
	want := current.Commit(t, "README.md", "new\n")

	ws := t.TempDir()
	c := NewClient(ws, Options{})
	_, err := c.Sync(context.Background(), "docs", old.Bare)
	require.NoError(t, err)

	res, err := c.Sync(context.Background(), "docs", current.Bare)
	require.NoError(t, err)
	require.True(t, res.Cloned)
	require.Equal(t, want, res.Commit)
	require.NoFileExists(t, filepath.Join(ws, "docs", "old.md"))
}

func TestSync_ReplacesNonRepositoryDirectory(t *testing.T) {
	remote := testutils.NewRemote(t)
	remote.Commit(t, "README.md", "# Docs\n")

	ws := t.TempDir()
	stale := filepath.Join(ws, "docs")
	require.NoError(t, os.MkdirAll(stale, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "junk.txt"), []byte("x"), 0o600))

	res, err := NewClient(ws, Options{}).Sync(context.Background(), "docs", remote.Bare)
	require.NoError(t, err)
	require.True(t, res.Cloned)
	require.NoFileExists(t, filepath.Join(stale, "junk.txt"))
}

func TestSync_MissingBranchFails(t *testing.T) {
	remote := testutils.NewRemote(t)
	remote.Commit(t, "README.md", "# Docs\n")

	ws := t.TempDir()
	_, err := NewClient(ws, Options{Branch: "does-not-exist"}).Sync(context.Background(), "docs", remote.Bare)
	require.Error(t, err)
	require.NoDirExists(t, filepath.Join(ws, "docs"))
}
