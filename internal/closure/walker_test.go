package closure

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/markdown"
)

func file(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

func TestCompute_NoRelativeLinks(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md": file("# Title\n\nSee [site](https://example.com).\n"),
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, []string{"README.md"}, res.Files)
	require.Empty(t, res.Broken)
}

func TestCompute_CycleVisitsEachFileOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"a.md": file("[b](b.md)\n"),
		"b.md": file("[a](a.md) and [again](./b.md)\n"),
	}
	visited := NewVisitedSet()

	res, err := NewWalker(fsys).Compute("a.md", visited)
	require.NoError(t, err)
	require.Equal(t, []string{"a.md", "b.md"}, res.Files)
	require.True(t, visited.Has("a.md"))
	require.True(t, visited.Has("b.md"))
	require.Len(t, visited, 2)
}

func TestCompute_BinaryLeafIncluded(t *testing.T) {
	fsys := fstest.MapFS{
		"a.md":         file("![logo](img/logo.png)\n"),
		"img/logo.png": {Data: []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}},
	}

	res, err := NewWalker(fsys).Compute("a.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a.md", "img/logo.png"}, res.Files)
}

func TestCompute_StartNotMarkdown(t *testing.T) {
	fsys := fstest.MapFS{
		"blob.bin": {Data: []byte{0xff, 0xfe, 0x00}},
	}

	res, err := NewWalker(fsys).Compute("blob.bin", nil)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Empty(t, res.Files)
}

func TestCompute_MissingStartIsFileSystemError(t *testing.T) {
	_, err := NewWalker(fstest.MapFS{}).Compute("README.md", nil)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}

func TestCompute_BrokenAndSkippedLinks(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md": file("[gone](missing.md) [up](../outside.md) [dir](docs) [ok](docs/a.md)\n"),
		"docs/a.md": file("[sibling](b.md)\n"),
		"docs/b.md": file("back to [root](/README.md)\n"),
	}

	res, err := NewWalker(fsys, WithStrict(true)).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "docs/a.md", "docs/b.md"}, res.Files)
	require.Equal(t, []Link{
		{Source: "README.md", Target: "missing.md"},
		{Source: "README.md", Target: "docs"},
	}, res.Broken)
	require.Equal(t, []Link{{Source: "README.md", Target: "../outside.md"}}, res.Skipped)
}

func TestCompute_EscapedAndEntityTargets(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md":  file("[s](my\\_file.md) [amp](a&amp;b.md)\n"),
		"my_file.md": file("underscore\n"),
		"a&b.md":     file("ampersand\n"),
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "a&b.md", "my_file.md"}, res.Files)
	require.Empty(t, res.Broken)
}

func TestCompute_ResolvesRelativeToLinkingDocument(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md":           file("[guide](docs/guide/index.md)\n"),
		"docs/guide/index.md": file("![shot](../img/shot.png)\n"),
		"docs/img/shot.png":   {Data: []byte{0x00}},
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "docs/guide/index.md", "docs/img/shot.png"}, res.Files)
}

func TestCompute_FragmentFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md":   file("[install](guide.md#install) [self](#top) [spaced](my%20notes.md)\n"),
		"guide.md":    file("# Install\n"),
		"my notes.md": file("notes\n"),
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "guide.md", "my notes.md"}, res.Files)
	require.Empty(t, res.Broken)

	res, err = NewWalker(fsys, WithFragmentFallback(false)).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "my notes.md"}, res.Files)
	require.Contains(t, res.Broken, Link{Source: "README.md", Target: "guide.md#install"})
}

func TestCompute_LiteralPathWinsOverFragment(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md": file("[odd](c#.md)\n"),
		"c#.md":     file("literal\n"),
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "c#.md"}, res.Files)
}

func TestCompute_SharedVisitedSetSkipsKnownFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.md": file("[b](b.md)\n"),
		"b.md": file("leaf\n"),
	}

	res, err := NewWalker(fsys).Compute("a.md", NewVisitedSet("b.md"))
	require.NoError(t, err)
	require.Equal(t, []string{"a.md"}, res.Files)
}

type failingFS struct {
	fs.FS
	fail string
}

func (f failingFS) Open(name string) (fs.File, error) {
	if name == f.fail {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return f.FS.Open(name)
}

func TestCompute_ChildReadErrorIsCollected(t *testing.T) {
	fsys := failingFS{
		FS: fstest.MapFS{
			"README.md": file("[locked](locked.md) [open](open.md)\n"),
			"locked.md": file("secret\n"),
			"open.md":   file("fine\n"),
		},
		fail: "locked.md",
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, fs.ErrPermission)
	require.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
	require.True(t, res.OK)
	require.Equal(t, []string{"README.md", "open.md"}, res.Files)
}

func TestCompute_HTMLLinksOption(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md": file("<a href=\"setup.md\">setup</a>\n"),
		"setup.md":  file("steps\n"),
	}

	res, err := NewWalker(fsys).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md"}, res.Files)

	res, err = NewWalker(fsys, WithMarkdownOptions(markdown.Options{HTMLLinks: true})).Compute("README.md", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md", "setup.md"}, res.Files)
}

func TestCompute_EndToEndOnDisk(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("README.md", "# Docs\n\n[Guide](guide.md) and [site](https://example.com)\n")
	write("guide.md", "![diagram](img/diagram.png)\n")
	write("img/diagram.png", "\x89PNG\x00")
	write("unlinked.md", "nobody links here\n")

	readme, res, err := NewWalker(os.DirFS(dir)).ComputeRepository()
	require.NoError(t, err)
	require.Equal(t, "README.md", readme)
	require.True(t, res.OK)
	require.Equal(t, []string{"README.md", "guide.md", "img/diagram.png"}, res.Files)
	require.True(t, res.Contains("guide.md"))
	require.False(t, res.Contains("unlinked.md"))
}
