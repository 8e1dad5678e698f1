// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// Remote is a bare repository plus a seed clone that pushes to it.
type Remote struct {
	// Bare is the clone URL.
	Bare string
	work string
	repo *git.Repository
}

// NewRemote initializes an empty bare repository and its seed clone.
func NewRemote(t *testing.T) *Remote {
	t.Helper()
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	work := filepath.Join(tmp, "seed")
	repo, err := git.PlainInit(work, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	return &Remote{Bare: bare, work: work, repo: repo}
}

// Commit writes name (slash separated, parents created) and pushes a commit
// holding it. It returns the commit hash.
func (r *Remote) Commit(t *testing.T, name, content string) string {
	t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(t, err)
	p := filepath.Join(r.work, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, r.repo.Push(&git.PushOptions{RemoteName: "origin"}))
	return hash.String()
}
