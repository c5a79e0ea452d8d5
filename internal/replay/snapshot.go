// internal/replay/snapshot.go
package replay

import (
	"strings"

	"webmon-sdk/browser"
)

// Masked replaces values and subtrees that must never appear in a
// recording.
const Masked = "[MASKED]"

// maskedAttrs always have their value replaced, wherever they appear.
var maskedAttrs = map[string]bool{
	"data-secret":  true,
	"data-token":   true,
	"data-api-key": true,
}

// sensitiveInputTypes drive the input[type=...] part of the selector set.
var sensitiveInputTypes = map[string]bool{
	"password": true, "email": true, "tel": true,
}

// sensitiveClasses drive the .class part of the selector set.
var sensitiveClasses = map[string]bool{
	"password": true, "credit-card": true, "sensitive": true,
}

// isSensitiveElement implements the fixed selector set: sensitive input
// types, [data-sensitive], and the sensitive class names. Matching
// elements get their whole subtree replaced with a masked text node.
func isSensitiveElement(n browser.Node) bool {
	if n.NodeType() != browser.ElementNode {
		return false
	}
	if n.TagName() == "input" && sensitiveInputTypes[strings.ToLower(n.Attr("type"))] {
		return true
	}
	if _, ok := n.Attributes()["data-sensitive"]; ok {
		return true
	}
	for _, class := range strings.Fields(n.Attr("class")) {
		if sensitiveClasses[class] {
			return true
		}
	}
	return false
}

// serializeNode renders one node (and its subtree) into the snapshot
// shape: {type: element, tagName, attributes, children} and
// {type: text, textContent}.
func serializeNode(n browser.Node) map[string]any {
	if n == nil {
		return nil
	}
	if n.NodeType() == browser.TextNode {
		return map[string]any{"type": "text", "textContent": n.Text()}
	}

	attrs := n.Attributes()
	for name := range attrs {
		if maskedAttrs[name] {
			attrs[name] = Masked
		}
	}
	out := map[string]any{
		"type":       "element",
		"tagName":    n.TagName(),
		"attributes": attrs,
	}

	if isSensitiveElement(n) {
		out["children"] = []any{
			map[string]any{"type": "text", "textContent": Masked},
		}
		return out
	}

	children := n.Children()
	serialized := make([]any, 0, len(children))
	for _, c := range children {
		serialized = append(serialized, serializeNode(c))
	}
	out["children"] = serialized
	return out
}

// maskAttrValue hides mutation old-values for allowlisted attributes.
func maskAttrValue(name, value string) string {
	if maskedAttrs[name] {
		return Masked
	}
	return value
}

// collectMedia walks the tree gathering the <img> and <video> elements
// the intersection observer should watch.
func collectMedia(n browser.Node) []browser.Node {
	if n == nil || n.NodeType() != browser.ElementNode {
		return nil
	}
	var out []browser.Node
	if tag := n.TagName(); tag == "img" || tag == "video" {
		out = append(out, n)
	}
	for _, c := range n.Children() {
		out = append(out, collectMedia(c)...)
	}
	return out
}
