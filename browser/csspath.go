// browser/csspath.go
package browser

import (
	"strconv"
	"strings"
)

// CSSPath encodes an element as a selector path built root-to-leaf.
// Per segment: tag name, then `#id` (which also stops the ascent; an id
// is assumed unique), then `.class` parts joined by dots, then
// `:nth-child(k)` when more than one same-tag sibling exists. The same
// rule addresses behavior targets and replay delta nodes, so both sides
// of the protocol resolve paths identically.
func CSSPath(n Node) string {
	if n == nil || n.NodeType() != ElementNode {
		return ""
	}

	var segments []string
	for cur := n; cur != nil && cur.NodeType() == ElementNode; cur = cur.Parent() {
		seg := cur.TagName()

		if id := cur.Attr("id"); id != "" {
			segments = append(segments, seg+"#"+id)
			break
		}

		if class := strings.TrimSpace(cur.Attr("class")); class != "" {
			seg += "." + strings.Join(strings.Fields(class), ".")
		}

		if k, needed := nthOfTag(cur); needed {
			seg += ":nth-child(" + strconv.Itoa(k) + ")"
		}

		segments = append(segments, seg)
	}

	// built leaf-to-root; reverse
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " > ")
}

// nthOfTag returns the 1-based position of n among its parent's children
// and whether a disambiguating :nth-child is needed (more than one
// sibling shares the tag).
func nthOfTag(n Node) (int, bool) {
	parent := n.Parent()
	if parent == nil {
		return 1, false
	}
	pos, sameTag, idx := 0, 0, 0
	for _, sib := range parent.Children() {
		if sib.NodeType() != ElementNode {
			continue
		}
		idx++
		if sib == n {
			pos = idx
		}
		if sib.TagName() == n.TagName() {
			sameTag++
		}
	}
	return pos, sameTag > 1
}
