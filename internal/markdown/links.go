package markdown

// Walk visits n and its descendants in pre-order.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(cur)
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// LinkNodes returns every link and image node of doc in document order.
func LinkNodes(doc *Document) []*Node {
	var out []*Node
	Walk(doc.Root(), func(n *Node) {
		if n.IsLink() {
			out = append(out, n)
		}
	})
	return out
}

// ExtractLinks returns every link href and image src of doc in document
// order. Targets are not deduplicated.
func ExtractLinks(doc *Document) []string {
	nodes := LinkNodes(doc)
	targets := make([]string, 0, len(nodes))
	for _, n := range nodes {
		targets = append(targets, n.Target())
	}
	return targets
}
