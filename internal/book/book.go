// Package book assembles closure files from many repositories into one
// output tree and generates its README.md and SUMMARY.md.
package book

import (
	"bytes"
	"embed"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

//go:embed templates_defaults/*.tmpl
var embeddedTemplates embed.FS

const (
	ReadmeFile  = "README.md"
	SummaryFile = "SUMMARY.md"
)

// Options configures an Assembler.
type Options struct {
	OutputDir string
	// Clean empties a non-empty output directory instead of failing.
	Clean   bool
	Title   string
	Project string
	// ReadmeTemplate and SummaryTemplate are paths overriding the embedded
	// templates.
	ReadmeTemplate  string
	SummaryTemplate string
	Logger          *slog.Logger
}

// Assembler writes the book tree.
type Assembler struct {
	opts   Options
	logger *slog.Logger
}

// New returns an Assembler for opts.
func New(opts Options) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{opts: opts, logger: logger}
}

// OutputDir returns the root of the book tree.
func (a *Assembler) OutputDir() string { return a.opts.OutputDir }

// Prepare creates the output directory. An existing directory must be empty
// unless Clean is set, in which case its contents are removed.
func (a *Assembler) Prepare() error {
	dir := a.opts.OutputDir
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
				WithContext("path", dir).
				Build()
		}
		return nil
	case err != nil:
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read output directory").
			WithContext("path", dir).
			Build()
	case len(entries) == 0:
		return nil
	case !a.opts.Clean:
		return errors.BookError("output directory is not empty").
			WithContext("path", dir).
			UserAction().
			Build()
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clean output directory").
				WithContext("path", dir).
				Build()
		}
	}
	a.logger.Info("Cleaned output directory", logfields.Path(dir), logfields.Count(len(entries)))
	return nil
}

// Copy copies files, slash paths relative to srcRoot, to
// OutputDir/namespace/path. Missing or non-regular sources are skipped. It
// returns the number of files copied.
func (a *Assembler) Copy(namespace, srcRoot string, files []string) (int, error) {
	base := filepath.Join(a.opts.OutputDir, namespace)
	copied := 0
	for _, rel := range files {
		src := filepath.Join(srcRoot, filepath.FromSlash(rel))
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			a.logger.Debug("Skipping non-file closure entry", logfields.Path(src))
			continue
		}
		dst := filepath.Join(base, filepath.FromSlash(rel))
		if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
			return copied, errors.WrapError(err, errors.CategoryFileSystem, "failed to copy file").
				WithContext("source", src).
				WithContext("path", dst).
				Build()
		}
		copied++
	}
	a.logger.Debug("Copied repository files", logfields.Namespace(namespace), logfields.Count(copied))
	return copied, nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	// #nosec G304 -- src is a closure file inside a managed checkout.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Repository is one entry of the generated README.
type Repository struct {
	Name   string
	Readme string
	Files  int
}

// Entry is one line of the generated SUMMARY.
type Entry struct {
	Indent string
	Name   string
	Link   string
	Depth  int
}

// WriteIndex renders README.md and SUMMARY.md into the output directory.
// The summary reflects whatever is in the tree when it is called.
func (a *Assembler) WriteIndex(repos []Repository) error {
	readme, err := a.render("readme", a.opts.ReadmeTemplate, map[string]any{
		"Title":        a.opts.Title,
		"Project":      a.opts.Project,
		"Repositories": repos,
	})
	if err != nil {
		return err
	}
	if err := a.write(ReadmeFile, readme); err != nil {
		return err
	}

	entries, err := SummaryEntries(a.opts.OutputDir)
	if err != nil {
		return err
	}
	summary, err := a.render("summary", a.opts.SummaryTemplate, map[string]any{
		"Title":   a.opts.Title,
		"Entries": entries,
	})
	if err != nil {
		return err
	}
	if err := a.write(SummaryFile, summary); err != nil {
		return err
	}
	a.logger.Info("Generated book index", logfields.Path(a.opts.OutputDir), logfields.Count(len(entries)))
	return nil
}

func (a *Assembler) write(name string, data []byte) error {
	p := filepath.Join(a.opts.OutputDir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil { //nolint:gosec // generated documentation
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write index file").
			WithContext("path", p).
			Build()
	}
	return nil
}

func (a *Assembler) render(kind, override string, data any) ([]byte, error) {
	body, err := a.templateBody(kind, override)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(kind).Parse(body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryBook, "failed to parse template").
			WithContext("template", kind).
			Build()
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.WrapError(err, errors.CategoryBook, "failed to execute template").
			WithContext("template", kind).
			Build()
	}
	return buf.Bytes(), nil
}

func (a *Assembler) templateBody(kind, override string) (string, error) {
	if override != "" {
		// #nosec G304 -- operator-supplied template path.
		b, err := os.ReadFile(override)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryConfig, "failed to read template override").
				WithContext("path", override).
				Build()
		}
		a.logger.Debug("Loaded template override", slog.String("kind", kind), logfields.Path(override))
		return string(b), nil
	}
	b, err := embeddedTemplates.ReadFile("templates_defaults/" + kind + ".md.tmpl")
	if err != nil {
		return "", errors.InternalError("embedded template missing").
			WithCause(err).
			WithContext("template", kind).
			Build()
	}
	return string(b), nil
}

// SummaryEntries lists every file and directory below dir in byte order of
// their slash paths, skipping any path containing "readme" or "summary" in
// any case. Each entry is indented four spaces per level below the top and
// links to its path relative to dir.
func SummaryEntries(dir string) ([]Entry, error) {
	var rels []string
	err := filepath.WalkDir(dir, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to scan output directory").
			WithContext("path", dir).
			Build()
	}
	slices.Sort(rels)

	entries := make([]Entry, 0, len(rels))
	for _, rel := range rels {
		lower := strings.ToLower(rel)
		if strings.Contains(lower, "readme") || strings.Contains(lower, "summary") {
			continue
		}
		depth := strings.Count(rel, "/") + 1
		entries = append(entries, Entry{
			Indent: strings.Repeat("    ", depth-1),
			Name:   path.Base(rel),
			Link:   path.Dir(rel) + "/" + path.Base(rel),
			Depth:  depth,
		})
	}
	return entries, nil
}
