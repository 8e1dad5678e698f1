package markdown

import (
	"bytes"

	"golang.org/x/net/html"
)

// htmlLinks tokenizes body[lo:hi] and returns link nodes for <a href> and
// image nodes for <img src>. Attribute values that appear verbatim in the
// source are editable; entity-encoded ones are read-only.
func (b *treeBuilder) htmlLinks(lo, hi int) []*Node {
	if lo < 0 || hi > len(b.body) || lo >= hi {
		return nil
	}

	var nodes []*Node
	z := html.NewTokenizer(bytes.NewReader(b.body[lo:hi]))
	pos := lo
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return nodes
		}
		// The tokenizer lower-cases and unescapes in place, so keep a copy.
		raw := append([]byte(nil), z.Raw()...)
		start := pos
		pos += len(raw)
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		name, hasAttr := z.TagName()
		var kind Kind
		var key string
		switch string(name) {
		case "a":
			kind, key = KindLink, AttrHref
		case "img":
			kind, key = KindImage, AttrSrc
		default:
			continue
		}

		for hasAttr {
			var k, v []byte
			k, v, hasAttr = z.TagAttr()
			if string(k) != key {
				continue
			}
			node := newLinkNode(kind, "HTML", string(v))
			if s, e, ok := attrValueSpan(raw, key); ok && bytes.Equal(raw[s:e], v) {
				node.spans = []span{{start: b.offset + start + s, end: b.offset + start + e, angled: true}}
			}
			nodes = append(nodes, node)
			break
		}
	}
}

// attrValueSpan returns the byte range of attribute key's value in a raw tag.
func attrValueSpan(raw []byte, key string) (int, int, bool) {
	lower := bytes.ToLower(raw)
	needle := []byte(key)
	for from := 0; from < len(lower); {
		idx := bytes.Index(lower[from:], needle)
		if idx < 0 {
			return 0, 0, false
		}
		at := from + idx
		from = at + len(needle)
		if at == 0 || !isSpace(lower[at-1]) {
			continue
		}

		p := from
		for p < len(raw) && isSpace(raw[p]) {
			p++
		}
		if p >= len(raw) || raw[p] != '=' {
			continue
		}
		p++
		for p < len(raw) && isSpace(raw[p]) {
			p++
		}
		if p >= len(raw) {
			return 0, 0, false
		}

		if q := raw[p]; q == '"' || q == '\'' {
			end := bytes.IndexByte(raw[p+1:], q)
			if end < 0 {
				return 0, 0, false
			}
			return p + 1, p + 1 + end, true
		}
		end := p
		for end < len(raw) && !isSpace(raw[end]) && raw[end] != '>' {
			end++
		}
		return p, end, true
	}
	return 0, 0, false
}
