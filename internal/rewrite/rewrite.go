// Package rewrite prefixes relative link and image targets with a namespace
// so documents stay valid after being moved under a per-repository directory.
package rewrite

import (
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/uri"
)

// Rewrite sets every relative target in doc to namespace + "/" + target and
// returns how many targets changed. The prefix goes in front of the
// destination text as written, so escapes in the source are kept. Absolute
// targets are left alone, as are nodes whose destination has no location in
// the source.
//
// Calling Rewrite twice on the same document prefixes twice.
func Rewrite(doc *markdown.Document, namespace string) int {
	n := 0
	for _, node := range markdown.LinkNodes(doc) {
		target := node.Target()
		if !uri.IsRelative(target) || !node.Editable() {
			continue
		}
		node.Prefix(namespace + "/")
		n++
	}
	return n
}

// Options configures File and Tree.
type Options struct {
	Markdown markdown.Options
	// DryRun counts rewrites without writing files.
	DryRun bool
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// FileResult reports what File did to one file.
type FileResult struct {
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
	Rewritten int    `json:"rewritten"`
	// Skipped is set for content that is not markdown.
	Skipped bool `json:"skipped,omitempty"`
}

// File rewrites the relative targets of the markdown file at path in place,
// keeping its permissions. Files that are not markdown are left untouched.
func File(path, namespace string, opts Options) (FileResult, error) {
	res := FileResult{Path: path, Namespace: namespace}

	// #nosec G304 -- path comes from the book output tree.
	data, err := os.ReadFile(path)
	if err != nil {
		return res, errors.WrapError(err, errors.CategoryFileSystem, "failed to read file for rewrite").
			WithContext("path", path).
			Build()
	}

	doc, err := markdown.Parse(data, opts.Markdown)
	if err != nil {
		res.Skipped = true
		return res, nil
	}

	res.Rewritten = Rewrite(doc, namespace)
	if res.Rewritten == 0 || opts.DryRun {
		return res, nil
	}

	out, err := doc.Render()
	if err != nil {
		return res, errors.WrapError(err, errors.CategoryMarkdown, "failed to render rewritten document").
			WithContext("path", path).
			Build()
	}

	info, err := os.Stat(path)
	if err != nil {
		return res, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat file for rewrite").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return res, errors.WrapError(err, errors.CategoryFileSystem, "failed to write rewritten file").
			WithContext("path", path).
			Build()
	}

	opts.logger().Debug("Rewrote links",
		logfields.Path(path),
		logfields.Namespace(namespace),
		logfields.Count(res.Rewritten))
	return res, nil
}

// Tree applies Dir to each top-level directory of outputDir, using the
// directory name as namespace. Files directly in outputDir are not touched.
func Tree(outputDir string, opts Options) ([]FileResult, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list output directory").
			WithContext("path", outputDir).
			Build()
	}

	var (
		results []FileResult
		errs    []error
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		res, err := Dir(filepath.Join(outputDir, e.Name()), e.Name(), opts)
		results = append(results, res...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, stderrors.Join(errs...)
}

// Dir applies File with namespace to every regular file below dir, in path
// order. A failing file is logged and collected; the remaining files are
// still processed.
func Dir(dir, namespace string, opts Options) ([]FileResult, error) {
	var files []string
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if walkErr != nil {
		return nil, errors.WrapError(walkErr, errors.CategoryFileSystem, "failed to walk namespace").
			WithContext("path", dir).
			Build()
	}
	slices.Sort(files)

	log := opts.logger()
	var (
		results []FileResult
		errs    []error
	)
	for _, p := range files {
		res, err := File(p, namespace, opts)
		if err != nil {
			log.Warn("Failed to rewrite file", logfields.Path(p), logfields.Error(err))
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	log.Info("Rewrote namespace", logfields.Namespace(namespace), logfields.Count(len(files)))
	return results, stderrors.Join(errs...)
}
