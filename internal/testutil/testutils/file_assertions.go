package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// FileAssertions checks files below a base directory. Paths are slash
// separated and relative to the base.
type FileAssertions struct {
	t       *testing.T
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t *testing.T, baseDir string) *FileAssertions {
	return &FileAssertions{t: t, baseDir: baseDir}
}

func (fa *FileAssertions) path(rel string) string {
	return filepath.Join(fa.baseDir, filepath.FromSlash(rel))
}

// AssertFileExists validates that a regular file exists.
func (fa *FileAssertions) AssertFileExists(rel string) *FileAssertions {
	fa.t.Helper()
	info, err := os.Stat(fa.path(rel))
	if assert.NoError(fa.t, err, "expected file %s", rel) {
		assert.True(fa.t, info.Mode().IsRegular(), "expected %s to be a regular file", rel)
	}
	return fa
}

// AssertNoFile validates that nothing exists at rel.
func (fa *FileAssertions) AssertNoFile(rel string) *FileAssertions {
	fa.t.Helper()
	_, err := os.Stat(fa.path(rel))
	assert.True(fa.t, os.IsNotExist(err), "expected %s to be absent", rel)
	return fa
}

// AssertFileContent validates the exact content of a file.
func (fa *FileAssertions) AssertFileContent(rel, want string) *FileAssertions {
	fa.t.Helper()
	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(fa.path(rel))
	if assert.NoError(fa.t, err, "reading %s", rel) {
		assert.Equal(fa.t, want, string(content), "content of %s", rel)
	}
	return fa
}

// AssertFileContains validates that a file contains expected content.
func (fa *FileAssertions) AssertFileContains(rel, expected string) *FileAssertions {
	fa.t.Helper()
	// #nosec G304 - test helper, paths are controlled by test code
	content, err := os.ReadFile(fa.path(rel))
	if assert.NoError(fa.t, err, "reading %s", rel) {
		assert.Contains(fa.t, string(content), expected, "content of %s", rel)
	}
	return fa
}
