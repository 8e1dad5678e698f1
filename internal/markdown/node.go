package markdown

import (
	"strings"

	"github.com/yuin/goldmark/util"
)

// Kind is the type of a tree node.
type Kind string

const (
	KindLink      Kind = "link"
	KindImage     Kind = "image"
	KindContainer Kind = "container"
)

// Attribute names carried by link and image nodes.
const (
	AttrHref  = "href"
	AttrSrc   = "src"
	AttrTitle = "title"
)

// Node is one element of a Document tree. Link nodes carry AttrHref, image
// nodes carry AttrSrc. Container nodes carry the goldmark node type in Type.
type Node struct {
	Kind     Kind
	Type     string
	Children []*Node
	Attrs    map[string]string

	// raw is the destination as written in the source; original is its
	// decoded form, the target at parse time.
	raw      string
	original string
	prefix   string
	spans    []span
}

// span is the byte range of a destination in the document source.
type span struct {
	start, end int
	angled     bool
}

// encode formats a new destination for the span's original syntax. Bare
// destinations that gain whitespace are switched to the <...> form.
func (s span) encode(value string) string {
	if s.angled || !strings.ContainsAny(value, " \t") {
		return value
	}
	return "<" + value + ">"
}

// IsLink reports whether the node is a link or an image.
func (n *Node) IsLink() bool { return n.Kind == KindLink || n.Kind == KindImage }

// TargetAttr returns the attribute holding the node's target ("href" or
// "src"), or "" for container nodes.
func (n *Node) TargetAttr() string {
	switch n.Kind {
	case KindLink:
		return AttrHref
	case KindImage:
		return AttrSrc
	default:
		return ""
	}
}

// Target returns the node's link target.
func (n *Node) Target() string {
	if attr := n.TargetAttr(); attr != "" {
		return n.Attrs[attr]
	}
	return ""
}

// SetTarget replaces the node's link target. It is a no-op on containers.
func (n *Node) SetTarget(value string) {
	if attr := n.TargetAttr(); attr != "" {
		n.Attrs[attr] = value
	}
}

// Prefix prepends p to the target. When the target is otherwise unchanged,
// Render writes p before the destination as it was written, so backslash
// escapes and entity references in the source survive.
func (n *Node) Prefix(p string) {
	if !n.IsLink() {
		return
	}
	n.SetTarget(p + n.Target())
	n.prefix = p + n.prefix
}

// destination returns the text Render writes in place of the source
// destination.
func (n *Node) destination() string {
	if v := n.Target(); n.prefix != "" && v == n.prefix+n.original {
		return n.prefix + n.raw
	}
	return n.Target()
}

// Editable reports whether Render can write a changed target back.
func (n *Node) Editable() bool { return len(n.spans) > 0 }

func (n *Node) changed() bool { return n.IsLink() && n.Target() != n.original }

func newContainer(typ string) *Node {
	return &Node{Kind: KindContainer, Type: typ, Attrs: map[string]string{}}
}

func newLinkNode(kind Kind, typ, target string) *Node {
	n := &Node{Kind: kind, Type: typ, Attrs: map[string]string{}, raw: target, original: target}
	n.SetTarget(target)
	return n
}

// decode resolves backslash escapes and entity references in a destination
// or title.
func decode(raw []byte) string {
	return string(util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(raw))))
}
