// browser/csspath_test.go
package browser

import "testing"

func TestCSSPathSegments(t *testing.T) {
	li2 := elem("li", map[string]string{"class": "item active"})
	root := elem("html", nil,
		elem("body", nil,
			elem("ul", nil,
				elem("li", map[string]string{"class": "item"}),
				li2,
			),
		),
	)
	_ = root
	if got, want := CSSPath(li2), "html > body > ul > li.item.active:nth-child(2)"; got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestCSSPathIDStopsAscent(t *testing.T) {
	btn := elem("button", map[string]string{"id": "go"})
	elem("html", nil, elem("body", nil, elem("div", nil, btn)))
	if got := CSSPath(btn); got != "button#go" {
		t.Fatalf("path = %q", got)
	}
}

func TestCSSPathNoNthChildForUniqueTag(t *testing.T) {
	form := elem("form", nil)
	elem("body", nil, elem("nav", nil), form)
	if got := CSSPath(form); got != "body > form" {
		t.Fatalf("path = %q", got)
	}
}

func TestCSSPathNilAndText(t *testing.T) {
	if CSSPath(nil) != "" {
		t.Fatal("nil node has a path")
	}
	text := &pathNode{typ: TextNode}
	if CSSPath(text) != "" {
		t.Fatal("text node has a path")
	}
}

// pathNode is a minimal Node for selector tests; the full tree
// implementation lives in memdom, which cannot be imported here.
type pathNode struct {
	typ      NodeType
	tag      string
	attrs    map[string]string
	parent   *pathNode
	children []*pathNode
}

func elem(tag string, attrs map[string]string, children ...*pathNode) *pathNode {
	n := &pathNode{typ: ElementNode, tag: tag, attrs: attrs}
	if n.attrs == nil {
		n.attrs = map[string]string{}
	}
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

func (n *pathNode) NodeType() NodeType { return n.typ }
func (n *pathNode) TagName() string    { return n.tag }
func (n *pathNode) Attr(k string) string {
	return n.attrs[k]
}
func (n *pathNode) Attributes() map[string]string { return n.attrs }
func (n *pathNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}
func (n *pathNode) Children() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}
func (n *pathNode) Text() string  { return "" }
func (n *pathNode) Value() string { return "" }
