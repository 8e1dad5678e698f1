package markdown

import (
	"bytes"
	"regexp"

	gmast "github.com/yuin/goldmark/ast"
)

// referenceDefinition matches the start of a link reference definition up to
// its destination: `[label]:` plus optional whitespace and one line ending.
var referenceDefinition = regexp.MustCompile(`(?m)^[ \t]{0,3}\[(?:[^\]\\\n]|\\.)+\]:[ \t]*(?:\r?\n[ \t]*)?`)

type refDef struct {
	dest string
	loc  span
}

// treeBuilder converts a goldmark AST into Nodes and records where each
// destination sits in the source. Offsets are relative to body and shifted by
// offset (the frontmatter length) when stored.
type treeBuilder struct {
	body    []byte
	offset  int
	opts    Options
	claimed map[int]bool
	defs    []refDef
	scanned bool
}

func (b *treeBuilder) build(n gmast.Node) *Node {
	out := b.convert(n)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out.Children = append(out.Children, b.build(c))
	}
	return out
}

func (b *treeBuilder) convert(n gmast.Node) *Node {
	switch v := n.(type) {
	case *gmast.Link:
		node := newLinkNode(KindLink, v.Kind().String(), decode(v.Destination))
		node.raw = string(v.Destination)
		if len(v.Title) > 0 {
			node.Attrs[AttrTitle] = decode(v.Title)
		}
		node.spans = b.locate(v, v.Destination)
		return node
	case *gmast.Image:
		node := newLinkNode(KindImage, v.Kind().String(), decode(v.Destination))
		node.raw = string(v.Destination)
		if len(v.Title) > 0 {
			node.Attrs[AttrTitle] = decode(v.Title)
		}
		node.spans = b.locate(v, v.Destination)
		return node
	case *gmast.AutoLink:
		// Autolinks always carry a scheme (or become mailto:), so they are never rewritten.
		return newLinkNode(KindLink, v.Kind().String(), string(v.URL(b.body)))
	case *gmast.RawHTML:
		node := newContainer(v.Kind().String())
		if b.opts.HTMLLinks && v.Segments.Len() > 0 {
			lo, hi := v.Segments.At(0).Start, v.Segments.At(v.Segments.Len()-1).Stop
			node.Children = b.htmlLinks(lo, hi)
		}
		return node
	case *gmast.HTMLBlock:
		node := newContainer(v.Kind().String())
		if b.opts.HTMLLinks && v.Lines().Len() > 0 {
			lo, hi := v.Lines().At(0).Start, v.Lines().At(v.Lines().Len()-1).Stop
			if v.HasClosure() && v.ClosureLine.Stop > hi {
				hi = v.ClosureLine.Stop
			}
			node.Children = b.htmlLinks(lo, hi)
		}
		return node
	default:
		return newContainer(n.Kind().String())
	}
}

// locate finds the source span of an inline link or image destination. It
// searches the enclosing block after the link's own text, then falls back to
// reference definitions carrying the same destination.
func (b *treeBuilder) locate(n gmast.Node, dest []byte) []span {
	lo, hi := b.window(n)
	if stop := lastTextStop(n); stop > lo {
		lo = stop
	}
	if s, ok := b.findInline(lo, hi, dest); ok {
		return []span{s}
	}
	return b.findDefinitions(string(dest))
}

// window returns the byte range of the nearest enclosing block with lines.
func (b *treeBuilder) window(n gmast.Node) (int, int) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() != gmast.TypeBlock {
			continue
		}
		lines := p.Lines()
		if lines == nil || lines.Len() == 0 {
			continue
		}
		return lines.At(0).Start, lines.At(lines.Len() - 1).Stop
	}
	return 0, len(b.body)
}

func lastTextStop(n gmast.Node) int {
	stop := -1
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if t, ok := c.(*gmast.Text); entering && ok && t.Segment.Stop > stop {
			stop = t.Segment.Stop
		}
		return gmast.WalkContinue, nil
	})
	return stop
}

func (b *treeBuilder) findInline(lo, hi int, dest []byte) (span, bool) {
	if hi > len(b.body) {
		hi = len(b.body)
	}
	for i := lo; i >= 0 && i < hi; {
		idx := bytes.Index(b.body[i:hi], []byte("]("))
		if idx < 0 {
			break
		}
		p := skipDestinationSpace(b.body, i+idx+2, hi)
		i += idx + 2

		var s span
		switch {
		case p < hi && b.body[p] == '<':
			end := p + 1 + len(dest)
			if end >= hi || !bytes.HasPrefix(b.body[p+1:hi], dest) || b.body[end] != '>' {
				continue
			}
			s = span{start: p + 1, end: end, angled: true}
		case bytes.HasPrefix(b.body[p:hi], dest):
			end := p + len(dest)
			if end < hi && !isDestinationEnd(b.body[end]) {
				continue
			}
			s = span{start: p, end: end}
		default:
			continue
		}

		s.start += b.offset
		s.end += b.offset
		if b.claimed[s.start] {
			continue
		}
		b.claimed[s.start] = true
		return s, true
	}
	return span{}, false
}

func (b *treeBuilder) findDefinitions(dest string) []span {
	if !b.scanned {
		b.scanDefinitions()
	}
	var out []span
	for _, d := range b.defs {
		if d.dest == dest {
			out = append(out, d.loc)
		}
	}
	return out
}

func (b *treeBuilder) scanDefinitions() {
	b.scanned = true
	for _, m := range referenceDefinition.FindAllIndex(b.body, -1) {
		p := m[1]
		if p >= len(b.body) {
			continue
		}
		if b.body[p] == '<' {
			end := bytes.IndexAny(b.body[p+1:], ">\n")
			if end < 0 || b.body[p+1+end] != '>' {
				continue
			}
			b.defs = append(b.defs, refDef{
				dest: string(b.body[p+1 : p+1+end]),
				loc:  span{start: b.offset + p + 1, end: b.offset + p + 1 + end, angled: true},
			})
			continue
		}
		end := p
		for end < len(b.body) && !isSpace(b.body[end]) {
			end++
		}
		if end == p {
			continue
		}
		b.defs = append(b.defs, refDef{
			dest: string(b.body[p:end]),
			loc:  span{start: b.offset + p, end: b.offset + end},
		})
	}
}

// skipDestinationSpace skips spaces, tabs and at most one line ending.
func skipDestinationSpace(src []byte, p, hi int) int {
	newline := false
	for p < hi {
		switch src[p] {
		case ' ', '\t':
			p++
		case '\r', '\n':
			if newline {
				return p
			}
			newline = true
			if src[p] == '\r' && p+1 < hi && src[p+1] == '\n' {
				p++
			}
			p++
		default:
			return p
		}
	}
	return p
}

func isDestinationEnd(c byte) bool { return isSpace(c) || c == ')' }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
