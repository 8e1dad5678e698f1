// Package markdown adapts goldmark's AST into a small owned tree of link,
// image and container nodes, and renders a mutated tree back to markdown by
// applying byte-range edits to the original source.
package markdown

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// ErrNotMarkdown is returned by Parse for content that is not text.
var ErrNotMarkdown = errors.MarkdownError("content is not markdown").Build()

// Options controls parsing behavior.
type Options struct {
	// HTMLLinks exposes <a href> and <img src> found in raw HTML as link and
	// image nodes.
	HTMLLinks bool
}

// Document is a parsed markdown file: the original bytes plus the node tree
// built over them. Nodes belong to exactly one Document.
type Document struct {
	source      []byte
	frontmatter []byte
	bodyOffset  int
	hadFM       bool
	root        *Node
}

// Parse parses content into a Document. Content that is not valid UTF-8 or
// contains NUL bytes fails with ErrNotMarkdown.
func Parse(content []byte, opts Options) (*Document, error) {
	if !utf8.Valid(content) || bytes.IndexByte(content, 0) >= 0 {
		return nil, ErrNotMarkdown
	}

	src := append([]byte(nil), content...)
	fm, offset, had := splitFrontmatter(src)
	body := src[offset:]

	gm := goldmark.New().Parser().Parse(text.NewReader(body))
	b := &treeBuilder{body: body, offset: offset, opts: opts, claimed: map[int]bool{}}

	return &Document{
		source:      src,
		frontmatter: fm,
		bodyOffset:  offset,
		hadFM:       had,
		root:        b.build(gm),
	}, nil
}

// ParseFile reads and parses a file.
func ParseFile(path string, opts Options) (*Document, error) {
	// #nosec G304 -- paths come from the closure walker and book assembler.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read document").
			WithContext("path", path).
			Build()
	}
	doc, err := Parse(content, opts)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryMarkdown, "failed to parse document").
			WithContext("path", path).
			Build()
	}
	return doc, nil
}

// Root returns the root node of the tree.
func (d *Document) Root() *Node { return d.root }

// Source returns a copy of the original bytes.
func (d *Document) Source() []byte { return append([]byte(nil), d.source...) }

// RawFrontmatter returns the frontmatter block without its delimiters.
func (d *Document) RawFrontmatter() string { return string(d.frontmatter) }

// Body returns the source after the frontmatter block.
func (d *Document) Body() []byte { return append([]byte(nil), d.source[d.bodyOffset:]...) }

// HadFrontmatter reports whether the document started with a YAML block.
func (d *Document) HadFrontmatter() bool { return d.hadFM }

// Frontmatter decodes the YAML frontmatter block. Documents without one
// return an empty map.
func (d *Document) Frontmatter() (map[string]any, error) {
	fields := map[string]any{}
	if !d.hadFM || len(bytes.TrimSpace(d.frontmatter)) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(d.frontmatter, &fields); err != nil {
		return nil, errors.WrapError(err, errors.CategoryMarkdown, "failed to decode frontmatter").Build()
	}
	return fields, nil
}

// Render serializes the document. Targets left unchanged are emitted as they
// appeared in the source, so rendering an unmodified document returns its
// original bytes.
func (d *Document) Render() ([]byte, error) {
	var edits []Edit
	seen := make(map[int]string)

	var renderErr error
	Walk(d.root, func(n *Node) {
		if renderErr != nil || !n.IsLink() {
			return
		}
		if !n.changed() {
			return
		}
		if len(n.spans) == 0 {
			renderErr = errors.MarkdownError("link destination not located in source").
				WithContext("target", n.original).
				Build()
			return
		}
		value := n.destination()
		for _, s := range n.spans {
			replacement := s.encode(value)
			if prev, ok := seen[s.start]; ok {
				if prev != replacement {
					renderErr = errors.MarkdownError("conflicting edits for shared link definition").
						WithContext("target", n.original).
						Build()
				}
				continue
			}
			seen[s.start] = replacement
			edits = append(edits, Edit{Start: s.start, End: s.end, Replacement: []byte(replacement)})
		}
	})
	if renderErr != nil {
		return nil, renderErr
	}

	if len(edits) == 0 {
		return d.Source(), nil
	}
	out, err := ApplyEdits(d.source, edits)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to apply link edits").Build()
	}
	return out, nil
}

// splitFrontmatter detects a leading `---` YAML block and returns its raw
// bytes and the body offset. An unterminated block is treated as body.
func splitFrontmatter(content []byte) (fm []byte, bodyOffset int, had bool) {
	nl := "\n"
	if bytes.HasPrefix(content, []byte("---\r\n")) {
		nl = "\r\n"
	} else if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, 0, false
	}

	start := len("---" + nl)
	if bytes.HasPrefix(content[start:], []byte("---"+nl)) {
		return []byte{}, start + len("---"+nl), true
	}
	closing := nl + "---" + nl
	idx := bytes.Index(content[start:], []byte(closing))
	if idx < 0 {
		// A closing delimiter at EOF without trailing newline.
		if strings.HasSuffix(string(content), nl+"---") {
			end := len(content) - len(nl+"---")
			return content[start:end+len(nl)], len(content), true
		}
		return nil, 0, false
	}
	return content[start : start+idx+len(nl)], start + idx + len(closing), true
}
