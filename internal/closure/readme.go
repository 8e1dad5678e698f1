package closure

import (
	"io/fs"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// ErrNoReadme is returned when a repository root holds no README file.
var ErrNoReadme = errors.NewError(errors.CategoryNotFound, "no readme found").Warning().Build()

// FindReadme returns the root entry whose name contains "readme" in any case.
// Names whose stem is exactly "readme" rank first; ties are broken by the
// case-folded name. Directories never match.
func FindReadme(fsys fs.FS) (string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to list repository root").Build()
	}

	fold := cases.Fold()
	type candidate struct {
		exact  bool
		folded string
		name   string
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		folded := fold.String(e.Name())
		if !strings.Contains(folded, "readme") {
			continue
		}
		stem, _, _ := strings.Cut(folded, ".")
		candidates = append(candidates, candidate{exact: stem == "readme", folded: folded, name: e.Name()})
	}
	if len(candidates) == 0 {
		return "", ErrNoReadme
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if a.exact != b.exact {
			if a.exact {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.folded, b.folded); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return candidates[0].name, nil
}
