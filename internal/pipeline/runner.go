package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docweave/internal/book"
	"git.home.luguber.info/inful/docweave/internal/closure"
	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/events"
	"git.home.luguber.info/inful/docweave/internal/forge"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/git"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/observability"
	"git.home.luguber.info/inful/docweave/internal/retry"
	"git.home.luguber.info/inful/docweave/internal/rewrite"
	"git.home.luguber.info/inful/docweave/internal/state"
)

// Syncer makes a local checkout of a repository available.
type Syncer interface {
	Sync(ctx context.Context, name, cloneURL string) (git.SyncResult, error)
}

// History is the subset of the run store the runner writes to.
type History interface {
	StartRun(ctx context.Context, id string, started time.Time) error
	SaveReport(ctx context.Context, d state.RunDetail) error
	LatestFingerprint(ctx context.Context, repository, path string) (string, error)
}

// Runner executes build runs for one configuration.
type Runner struct {
	cfg      *config.Config
	lister   forge.Lister
	syncer   Syncer
	history  History
	events   events.Publisher
	recorder metrics.Recorder
	retry    retry.Policy
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLister replaces the repository source built from the configuration.
func WithLister(l forge.Lister) Option { return func(r *Runner) { r.lister = l } }

// WithSyncer replaces the git client built from the configuration.
func WithSyncer(s Syncer) Option { return func(r *Runner) { r.syncer = s } }

// WithHistory records runs in h.
func WithHistory(h History) Option { return func(r *Runner) { r.history = h } }

// WithPublisher publishes a RunEvent after every run.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runner) {
		if p != nil {
			r.events = p
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(m metrics.Recorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.recorder = m
		}
	}
}

// New returns a Runner for cfg. Unless replaced by options, a Bitbucket
// source gets a forge client and a git client built from cfg.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		events:   events.Noop{},
		recorder: metrics.NoopRecorder{},
		retry:    retry.NewPolicy(retry.Mode(cfg.Retry.Mode), cfg.Retry.Initial, cfg.Retry.Max, cfg.Retry.MaxRetries),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if cfg.Source.Type == config.SourceLocal {
		return r, nil
	}

	if r.lister == nil {
		client, err := forge.NewBitbucketClient(forge.BitbucketConfig{
			BaseURL:   cfg.Source.BaseURL,
			Port:      cfg.Source.Port,
			Project:   cfg.Source.Project,
			Username:  cfg.Source.Username,
			Password:  cfg.Source.Password,
			PageLimit: cfg.Source.PageLimit,
		}, &http.Client{Timeout: cfg.Source.Timeout}, r.logger)
		if err != nil {
			return nil, err
		}
		r.lister = client
		if len(cfg.Source.Repositories) > 0 {
			r.lister = forge.Static{Client: client, Names: cfg.Source.Repositories}
		}
	}
	if r.syncer == nil {
		r.syncer = git.NewClient(cfg.Git.Workspace, git.Options{
			Branch:   cfg.Git.Branch,
			Depth:    cfg.Git.Depth,
			Username: cfg.Source.Username,
			Password: cfg.Source.Password,
			Retry:    r.retry,
			Logger:   r.logger,
		})
	}
	return r, nil
}

// Run performs one build. The returned report is always non-nil. The error
// is set when a stage outside the per-repository loop failed; repository
// failures only show in the report and its status.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), StartedAt: r.now().UTC(), Status: state.StatusRunning}
	ctx = observability.WithRunID(ctx, rep.RunID)
	r.logger.InfoContext(ctx, "Run started", slog.String("source", string(r.cfg.Source.Type)))

	if r.history != nil {
		if err := r.history.StartRun(ctx, rep.RunID, rep.StartedAt); err != nil {
			r.logger.WarnContext(ctx, "Failed to record run start", logfields.Error(err))
		}
	}

	err := r.build(ctx, rep)
	r.finish(ctx, rep, err)
	return rep, err
}

func (r *Runner) build(ctx context.Context, rep *Report) error {
	asm := book.New(book.Options{
		OutputDir:       r.cfg.Output.Directory,
		Clean:           r.cfg.Output.Clean,
		Title:           r.cfg.Output.Title,
		Project:         r.cfg.Source.Project,
		ReadmeTemplate:  r.cfg.Output.ReadmeTemplate,
		SummaryTemplate: r.cfg.Output.SummaryTemplate,
		Logger:          r.logger,
	})
	if err := r.stage(ctx, "prepare", asm.Prepare); err != nil {
		return err
	}

	var repos []forge.Repository
	if err := r.stage(ctx, "enumerate", func() error {
		var err error
		repos, err = r.enumerate(ctx)
		return err
	}); err != nil {
		return err
	}

	var index []book.Repository
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "run canceled").Build()
		}
		rr := r.processRepository(observability.WithRepository(ctx, repo.Slug), asm, repo)
		rep.Repositories = append(rep.Repositories, rr)
		if !rr.Failed() {
			index = append(index, book.Repository{Name: rr.Name, Readme: rr.Readme, Files: len(rr.Files)})
		}
	}

	if err := r.stage(ctx, "rewrite", func() error {
		results, err := rewrite.Tree(asm.OutputDir(), rewrite.Options{Markdown: r.markdownOptions(), Logger: r.logger})
		for _, res := range results {
			rep.Rewritten += res.Rewritten
		}
		return err
	}); err != nil {
		return err
	}

	return r.stage(ctx, "index", func() error { return asm.WriteIndex(index) })
}

// stage runs fn and records its duration under name.
func (r *Runner) stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	r.recorder.ObserveStageDuration(name, d)
	if err != nil {
		r.logger.ErrorContext(observability.WithStage(ctx, name), "Stage failed", logfields.Duration(d), logfields.Error(err))
		return err
	}
	r.logger.DebugContext(observability.WithStage(ctx, name), "Stage complete", logfields.Duration(d))
	return nil
}

func (r *Runner) markdownOptions() markdown.Options {
	return markdown.Options{HTMLLinks: r.cfg.Markdown.HTMLLinks}
}

// enumerate lists the repositories of the run, minus the excluded ones,
// sorted by slug.
func (r *Runner) enumerate(ctx context.Context) ([]forge.Repository, error) {
	var repos []forge.Repository
	if r.cfg.Source.Type == config.SourceLocal {
		var err error
		if repos, err = localRepositories(r.cfg.Git.Workspace, r.cfg.Source.Repositories); err != nil {
			return nil, err
		}
	} else {
		err := r.retry.Do(ctx, func() error {
			var err error
			repos, err = r.lister.ListRepositories(ctx)
			return err
		}, func(attempt int, err error) {
			r.recorder.IncRetry("forge_list")
			r.logger.WarnContext(ctx, "Retrying repository listing", slog.Int("attempt", attempt), logfields.Error(err))
		})
		if err != nil {
			return nil, err
		}
	}

	repos = slices.DeleteFunc(repos, func(repo forge.Repository) bool {
		return slices.Contains(r.cfg.Source.Exclude, repo.Slug) || slices.Contains(r.cfg.Source.Exclude, repo.Name)
	})
	slices.SortFunc(repos, func(a, b forge.Repository) int { return strings.Compare(a.Slug, b.Slug) })
	r.logger.InfoContext(ctx, "Repositories enumerated", logfields.Count(len(repos)))
	return repos, nil
}

// localRepositories lists the non-hidden directories of workspace, limited to
// names when it is not empty.
func localRepositories(workspace string, names []string) ([]forge.Repository, error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list workspace").
			WithContext("path", workspace).
			Build()
	}
	var repos []forge.Repository
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, e.Name()) {
			continue
		}
		repos = append(repos, forge.Repository{Name: e.Name(), Slug: e.Name()})
	}
	return repos, nil
}

func (r *Runner) processRepository(ctx context.Context, asm *book.Assembler, repo forge.Repository) RepositoryReport {
	rr := RepositoryReport{Name: repo.Slug}
	fail := func(stage string, err error) RepositoryReport {
		rr.Error = err.Error()
		rr.Files = nil
		r.recorder.IncRepositoryResult(repo.Slug, metrics.ResultFailed)
		r.logger.ErrorContext(observability.WithStage(ctx, stage), "Repository failed", logfields.Error(err))
		return rr
	}

	dir := filepath.Join(r.cfg.Git.Workspace, repo.Slug)
	if r.cfg.Source.Type != config.SourceLocal {
		res, err := r.syncer.Sync(ctx, repo.Slug, repo.CloneURL)
		if err != nil {
			return fail("sync", err)
		}
		dir, rr.Commit = res.Path, res.Commit
	}

	walker := closure.NewWalker(os.DirFS(dir),
		closure.WithLogger(r.logger),
		closure.WithMarkdownOptions(r.markdownOptions()),
		closure.WithFragmentFallback(r.cfg.Closure.FollowFragments()),
		closure.WithStrict(r.cfg.Closure.Strict),
	)
	readme, res, err := walker.ComputeRepository()
	if err != nil && len(res.Files) == 0 {
		return fail("closure", err)
	}
	if err != nil {
		// Unreadable linked files are left out; the rest of the closure is published.
		r.logger.WarnContext(ctx, "Closure incomplete", logfields.Error(err))
	}
	rr.Readme, rr.Broken, rr.Skipped = readme, res.Broken, res.Skipped
	rr.Files = res.Files
	if !slices.Contains(rr.Files, readme) {
		rr.Files = append([]string{readme}, rr.Files...)
	}

	if _, err := asm.Copy(repo.Slug, dir, rr.Files); err != nil {
		_ = os.RemoveAll(filepath.Join(asm.OutputDir(), repo.Slug))
		return fail("copy", err)
	}

	r.recorder.IncRepositoryResult(repo.Slug, metrics.ResultSuccess)
	r.recorder.AddFilesPublished(repo.Slug, len(rr.Files))
	r.recorder.AddBrokenLinks(repo.Slug, len(rr.Broken))
	r.logger.InfoContext(ctx, "Repository published",
		slog.String("readme", readme),
		logfields.Count(len(rr.Files)),
		slog.Int("broken", len(rr.Broken)))
	return rr
}

// finish sets the final status, then persists, publishes and records the
// run. Failures here are logged and do not change the outcome.
func (r *Runner) finish(ctx context.Context, rep *Report, stageErr error) {
	rep.FinishedAt = r.now().UTC()
	rep.Status = rep.status(stageErr)
	if stageErr != nil {
		rep.Error = stageErr.Error()
	} else if failed := rep.FailedNames(); len(failed) > 0 {
		rep.Error = "failed repositories: " + strings.Join(failed, ", ")
	}

	files := r.fingerprints(ctx, rep)
	if r.history != nil {
		detail := state.RunDetail{
			Run: state.Run{
				ID:           rep.RunID,
				StartedAt:    rep.StartedAt,
				FinishedAt:   rep.FinishedAt,
				Status:       rep.Status,
				Repositories: len(rep.Repositories),
				Files:        len(files),
				Error:        rep.Error,
			},
			Files: files,
		}
		for _, rr := range rep.Repositories {
			for _, l := range rr.Broken {
				detail.Broken = append(detail.Broken, state.BrokenLink{Repository: rr.Name, Source: l.Source, Target: l.Target})
			}
		}
		if err := r.history.SaveReport(ctx, detail); err != nil {
			r.logger.WarnContext(ctx, "Failed to save run report", logfields.Error(err))
		}
	}

	if err := r.events.Publish(ctx, events.RunEvent{
		RunID:        rep.RunID,
		Status:       string(rep.Status),
		StartedAt:    rep.StartedAt,
		FinishedAt:   rep.FinishedAt,
		Repositories: rep.Names(),
		Failed:       rep.FailedNames(),
		Files:        rep.FileCount(),
		BrokenLinks:  rep.BrokenCount(),
	}); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish run event", logfields.Error(err))
	}

	d := rep.FinishedAt.Sub(rep.StartedAt)
	r.recorder.ObserveRunDuration(d)
	r.recorder.IncRunOutcome(string(rep.Status))
	r.logger.InfoContext(ctx, "Run finished",
		slog.String("status", string(rep.Status)),
		logfields.Count(rep.FileCount()),
		slog.Int("rewritten", rep.Rewritten),
		logfields.Duration(d))
}

// fingerprints reads the published copy of every file, fills in the
// Changed counts against the previous run, and returns the store records.
func (r *Runner) fingerprints(ctx context.Context, rep *Report) []state.File {
	var out []state.File
	for i := range rep.Repositories {
		rr := &rep.Repositories[i]
		for _, f := range rr.Files {
			p := filepath.Join(r.cfg.Output.Directory, rr.Name, filepath.FromSlash(f))
			// #nosec G304 -- p is a file this run just published.
			content, err := os.ReadFile(p)
			if err != nil {
				r.logger.DebugContext(ctx, "Skipping fingerprint", logfields.Path(p), logfields.Error(err))
				continue
			}
			fp := state.Fingerprint(content)
			if r.history != nil {
				prev, err := r.history.LatestFingerprint(ctx, rr.Name, f)
				if err == nil && prev != fp {
					rr.Changed++
				}
			}
			out = append(out, state.File{Repository: rr.Name, Path: f, Fingerprint: fp})
		}
	}
	return out
}
