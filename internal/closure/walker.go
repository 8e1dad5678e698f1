package closure

import (
	stderrors "errors"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/uri"
)

// Link is a relative link target found in Source that could not be followed.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Result is the outcome of one closure computation.
type Result struct {
	// OK is false when the starting file is not valid markdown.
	OK bool `json:"ok"`
	// Files is the reachable set including the starting file, sorted.
	Files []string `json:"files"`
	// Broken lists relative targets that resolved to no regular file.
	Broken []Link `json:"broken"`
	// Skipped lists targets resolving outside the repository root.
	Skipped []Link `json:"skipped"`
}

// Contains reports whether p is part of the reachable set.
func (r Result) Contains(p string) bool {
	_, found := slices.BinarySearch(r.Files, p)
	return found
}

// Walker follows relative links through the files of one fs.FS.
type Walker struct {
	fsys             fs.FS
	logger           *slog.Logger
	mdOpts           markdown.Options
	fragmentFallback bool
	strict           bool
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMarkdownOptions sets the options every document is parsed with.
func WithMarkdownOptions(o markdown.Options) Option {
	return func(w *Walker) { w.mdOpts = o }
}

// WithFragmentFallback controls whether a target whose literal path does not
// exist is retried without its "#fragment" or "?query" suffix. On by default.
func WithFragmentFallback(enabled bool) Option {
	return func(w *Walker) { w.fragmentFallback = enabled }
}

// WithStrict logs broken links at warning level instead of debug.
func WithStrict(strict bool) Option {
	return func(w *Walker) { w.strict = strict }
}

// NewWalker returns a Walker reading from fsys.
func NewWalker(fsys fs.FS, opts ...Option) *Walker {
	w := &Walker{
		fsys:             fsys,
		logger:           slog.Default(),
		fragmentFallback: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type pending struct {
	path string
	doc  *markdown.Document
}

// Compute returns every file reachable from start. Each newly discovered
// path is added to visited before it is processed, so cycles terminate and
// no file is read twice. A nil visited starts from an empty set.
//
// A start file that cannot be read fails the computation. Read failures of
// linked files do not: they are returned joined alongside a usable Result.
func (w *Walker) Compute(start string, visited VisitedSet) (Result, error) {
	start = path.Clean(strings.TrimPrefix(start, "/"))
	if !fs.ValidPath(start) {
		return Result{}, errors.ValidationError("start path is outside the repository").
			WithContext("path", start).
			Build()
	}
	if visited == nil {
		visited = NewVisitedSet()
	}
	visited.Add(start)

	content, err := fs.ReadFile(w.fsys, start)
	if err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryFileSystem, "failed to read start file").
			WithContext("path", start).
			Build()
	}
	doc, err := markdown.Parse(content, w.mdOpts)
	if err != nil {
		w.logger.Debug("Start file is not markdown", logfields.Path(start))
		return Result{OK: false}, nil
	}

	res := Result{OK: true}
	files := NewVisitedSet(start)
	stack := []pending{{path: start, doc: doc}}
	var ioErrs []error

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, target := range markdown.ExtractLinks(cur.doc) {
			if uri.IsAbsolute(target) {
				continue
			}
			resolved, ok := w.resolve(cur.path, target)
			if !ok {
				w.logger.Debug("Link target outside repository", logfields.Source(cur.path), logfields.Target(target))
				res.Skipped = append(res.Skipped, Link{Source: cur.path, Target: target})
				continue
			}
			if resolved == "" || !visited.Add(resolved) {
				continue
			}

			child, included, err := w.visit(resolved)
			switch {
			case err != nil:
				w.logger.Warn("Failed to read linked file", logfields.Path(resolved), logfields.Error(err))
				ioErrs = append(ioErrs, err)
			case !included:
				w.logBroken(cur.path, target)
				res.Broken = append(res.Broken, Link{Source: cur.path, Target: target})
			default:
				files.Add(resolved)
				if child != nil {
					stack = append(stack, pending{path: resolved, doc: child})
				}
			}
		}
	}

	res.Files = files.Sorted()
	return res, stderrors.Join(ioErrs...)
}

// ComputeRepository computes the closure of the repository README.
func (w *Walker) ComputeRepository() (string, Result, error) {
	readme, err := FindReadme(w.fsys)
	if err != nil {
		return "", Result{}, err
	}
	res, err := w.Compute(readme, NewVisitedSet())
	return readme, res, err
}

// visit reads p. It returns the parsed document for markdown files, whether
// p is a regular file to include, and any read error.
func (w *Walker) visit(p string) (*markdown.Document, bool, error) {
	info, err := fs.Stat(w.fsys, p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat linked file").
			WithContext("path", p).
			Build()
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}

	content, err := fs.ReadFile(w.fsys, p)
	if err != nil {
		return nil, false, errors.WrapError(err, errors.CategoryFileSystem, "failed to read linked file").
			WithContext("path", p).
			Build()
	}
	doc, err := markdown.Parse(content, w.mdOpts)
	if err != nil {
		return nil, true, nil
	}
	return doc, true, nil
}

// resolve maps target, found in the document at from, to a cleaned path
// under the root. The first candidate naming an existing entry wins; when none
// does the literal candidate is returned. An empty result refers to the
// linking document itself. ok is false when the literal target escapes the
// root.
func (w *Walker) resolve(from, target string) (string, bool) {
	base := path.Dir(from)
	var literal string
	for i, c := range w.candidates(target) {
		if c == "" {
			return "", true
		}
		var p string
		if strings.HasPrefix(c, "/") {
			p = path.Clean(strings.TrimLeft(c, "/"))
		} else {
			p = path.Join(base, c)
		}
		if !fs.ValidPath(p) {
			if i == 0 {
				return "", false
			}
			continue
		}
		if i == 0 {
			literal = p
		}
		if _, err := fs.Stat(w.fsys, p); err == nil {
			return p, true
		}
	}
	return literal, true
}

func (w *Walker) candidates(target string) []string {
	cands := []string{target}
	if w.fragmentFallback {
		if p, suffix := uri.SplitFragment(target); suffix != "" {
			cands = append(cands, p)
		}
	}
	last := cands[len(cands)-1]
	if strings.Contains(last, "%") {
		if unescaped, err := url.PathUnescape(last); err == nil && unescaped != last {
			cands = append(cands, unescaped)
		}
	}
	return cands
}

func (w *Walker) logBroken(source, target string) {
	attrs := []any{logfields.Source(source), logfields.Target(target)}
	if w.strict {
		w.logger.Warn("Broken link", attrs...)
		return
	}
	w.logger.Debug("Broken link", attrs...)
}
