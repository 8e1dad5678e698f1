package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/retry"
)

// Options configures a Client.
type Options struct {
	Branch   string
	Depth    int // 0 clones full history
	Username string
	Password string
	Retry    retry.Policy
	Logger   *slog.Logger
}

// Client syncs repositories below a workspace directory.
type Client struct {
	workspace string
	opts      Options
	logger    *slog.Logger
}

// NewClient returns a client cloning into workspace.
func NewClient(workspace string, opts Options) *Client {
	if opts.Branch == "" {
		opts.Branch = "master"
	}
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.NewPolicy(retry.Fixed, 0, 0, 0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{workspace: workspace, opts: opts, logger: logger}
}

// SyncResult describes a synced checkout.
type SyncResult struct {
	Path   string
	Commit string
	Cloned bool
}

// Sync makes workspace/name a checkout of cloneURL at the configured branch.
func (c *Client) Sync(ctx context.Context, name, cloneURL string) (SyncResult, error) {
	repoPath := filepath.Join(c.workspace, name)

	var res SyncResult
	err := c.opts.Retry.Do(ctx, func() error {
		var err error
		res, err = c.sync(ctx, repoPath, cloneURL)
		return err
	}, func(attempt int, err error) {
		c.logger.Warn("Retrying git sync",
			logfields.Repository(name),
			slog.Int("attempt", attempt),
			logfields.Error(err))
	})
	if err != nil {
		return SyncResult{}, err
	}

	c.logger.Info("Repository synced",
		logfields.Repository(name),
		logfields.Path(res.Path),
		slog.String("commit", shortHash(res.Commit)),
		slog.Bool("cloned", res.Cloned))
	return res, nil
}

func (c *Client) sync(ctx context.Context, repoPath, cloneURL string) (SyncResult, error) {
	origin, err := OriginURL(repoPath)
	if err == nil && origin == cloneURL {
		return c.update(ctx, repoPath, cloneURL)
	}
	if err == nil {
		c.logger.Info("Origin mismatch, recloning", logfields.Path(repoPath), logfields.URL(origin))
	}
	return c.clone(ctx, repoPath, cloneURL)
}

// OriginURL returns the first URL of the origin remote of the checkout at
// repoPath.
func OriginURL(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", err
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("origin has no URL")
	}
	return urls[0], nil
}

func (c *Client) clone(ctx context.Context, repoPath, cloneURL string) (SyncResult, error) {
	if err := os.RemoveAll(repoPath); err != nil {
		return SyncResult{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to remove stale checkout").
			WithContext("path", repoPath).
			Build()
	}
	if err := os.MkdirAll(c.workspace, 0o750); err != nil {
		return SyncResult{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to create workspace").
			WithContext("path", c.workspace).
			Build()
	}

	opts := &git.CloneOptions{
		URL:           cloneURL,
		Auth:          c.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(c.opts.Branch),
		SingleBranch:  true,
		Tags:          git.NoTags,
	}
	if c.opts.Depth > 0 {
		opts.Depth = c.opts.Depth
	}
	c.logger.Debug("Cloning repository", logfields.URL(cloneURL), logfields.Path(repoPath), slog.String("branch", c.opts.Branch))

	repo, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		_ = os.RemoveAll(repoPath)
		return SyncResult{}, classify(err, "failed to clone repository", cloneURL)
	}
	head, err := repo.Head()
	if err != nil {
		return SyncResult{}, errors.GitError("failed to resolve HEAD after clone").
			WithCause(err).
			WithContext("path", repoPath).
			Build()
	}
	return SyncResult{Path: repoPath, Commit: head.Hash().String(), Cloned: true}, nil
}

func (c *Client) update(ctx context.Context, repoPath, cloneURL string) (SyncResult, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return SyncResult{}, errors.GitError("failed to open checkout").WithCause(err).WithContext("path", repoPath).Build()
	}

	branch := c.opts.Branch
	spec := ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	fetch := &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Auth:       c.auth(),
		Tags:       git.NoTags,
		Force:      true,
	}
	if c.opts.Depth > 0 {
		fetch.Depth = c.opts.Depth
	}
	if err := repo.FetchContext(ctx, fetch); err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return SyncResult{}, classify(err, "failed to fetch repository", cloneURL)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return SyncResult{}, errors.GitError("remote branch not found").
			WithCause(err).
			WithContext("branch", branch).
			WithContext("path", repoPath).
			Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return SyncResult{}, errors.GitError("failed to open worktree").WithCause(err).WithContext("path", repoPath).Build()
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return SyncResult{}, errors.GitError("failed to reset worktree").
			WithCause(err).
			WithContext("path", repoPath).
			Build()
	}
	return SyncResult{Path: repoPath, Commit: remoteRef.Hash().String()}, nil
}

func (c *Client) auth() transport.AuthMethod {
	if c.opts.Username == "" {
		return nil
	}
	return &http.BasicAuth{Username: c.opts.Username, Password: c.opts.Password}
}

// classify maps go-git transport failures onto error categories. Anything
// not known to be permanent is retryable.
func classify(err error, msg, url string) error {
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed):
		return errors.WrapError(err, errors.CategoryAuth, msg).WithContext("url", url).UserAction().Build()
	case stderrors.Is(err, transport.ErrRepositoryNotFound),
		stderrors.Is(err, transport.ErrEmptyRemoteRepository):
		return errors.WrapError(err, errors.CategoryNotFound, msg).WithContext("url", url).Build()
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.WrapError(err, errors.CategoryGit, msg).WithContext("url", url).Build()
	}
	var noBranch git.NoMatchingRefSpecError
	if stderrors.As(err, &noBranch) || stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return errors.WrapError(err, errors.CategoryGit, msg).WithContext("url", url).Build()
	}
	return errors.WrapError(err, errors.CategoryGit, msg).WithContext("url", url).Retryable().Build()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
