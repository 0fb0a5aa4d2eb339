// Package extract finds interactive candidates in a document and produces
// normalized descriptors for classification.
//
// Two front-ends share one contract: FromNode walks an already-parsed DOM
// tree (golang.org/x/net/html), FromPage evaluates the same logic inside a
// live browser page where computed styles and layout are available. Both are
// deterministic for an unchanged DOM and both tag untagged elements with a
// generated identifier so later UI interactions can resolve back to the
// node. Tagging is idempotent: re-extraction reuses existing tags.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cogniclear/cogniclear/descriptor"
)

// TagAttr is the attribute used to tag elements lacking a native id.
const TagAttr = "data-cogni-id"

// idPrefix is the generated-identifier prefix. The suffix is the element's
// index in traversal order over all matching candidates, which keeps IDs
// stable across repeated passes on the same DOM.
const idPrefix = "cogni-element-"

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0(\.0*)?\s*(;|$)`),
}

// FromNode extracts interactive candidates from a parsed DOM tree in
// traversal (document) order. The tree is mutated: untagged candidates
// receive a TagAttr attribute.
func FromNode(doc *html.Node) []descriptor.ElementDescriptor {
	var out []descriptor.ElementDescriptor
	index := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isInteractive(n) {
			// Index counts every matching candidate, hidden or not,
			// so generated IDs don't shift when visibility changes.
			i := index
			index++
			if !isHidden(n) {
				out = append(out, describe(n, i))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return out
}

// isInteractive reports whether a node matches the candidate selectors:
// buttons, links with an href, submit/button inputs, role=button,
// role=link, or an inline click handler.
func isInteractive(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button:
		return true
	case atom.A:
		return attr(n, "href") != ""
	case atom.Input:
		t := strings.ToLower(attr(n, "type"))
		return t == "submit" || t == "button"
	}
	switch strings.ToLower(attr(n, "role")) {
	case "button", "link":
		return true
	}
	return hasAttr(n, "onclick")
}

// isHidden reports whether the element is explicitly hidden via the hidden
// attribute or an inline style marking it invisible. Without a layout
// engine this is the best the static path can do; the live path checks
// computed styles.
func isHidden(n *html.Node) bool {
	if hasAttr(n, "hidden") {
		return true
	}
	style := attr(n, "style")
	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return true
		}
	}
	return false
}

func describe(n *html.Node, index int) descriptor.ElementDescriptor {
	d := descriptor.ElementDescriptor{
		ID:              resolveID(n, index),
		Text:            clip(label(n), descriptor.MaxTextLen),
		AriaLabel:       attr(n, "aria-label"),
		AriaDescribedBy: attr(n, "aria-describedby"),
		ParentText:      clip(parentText(n), descriptor.MaxParentTextLen),
		Type:            elementType(n),
		Href:            attr(n, "href"),
		IsVisible:       true,
	}
	return d
}

// resolveID returns the element's stable identifier, tagging it when
// needed. Precedence: native id → existing tag → new generated tag.
func resolveID(n *html.Node, index int) string {
	if id := attr(n, "id"); id != "" {
		return id
	}
	if tag := attr(n, TagAttr); tag != "" {
		return tag
	}
	id := idPrefix + strconv.Itoa(index)
	n.Attr = append(n.Attr, html.Attribute{Key: TagAttr, Val: id})
	return id
}

// label resolves the element's label with the precedence rendered text →
// full text content → form value.
func label(n *html.Node) string {
	if t := visibleText(n); t != "" {
		return t
	}
	if t := allText(n); t != "" {
		return t
	}
	return attr(n, "value")
}

// visibleText collects text content, skipping hidden subtrees.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style || isHidden(c) {
				return
			}
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(n)
	return collapse(sb.String())
}

// allText collects all text content regardless of visibility.
func allText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			walk(gc)
		}
	}
	walk(n)
	return collapse(sb.String())
}

// parentText walks up at most 3 ancestors and returns the first ancestor's
// direct text (its immediate text children only, not the whole subtree).
func parentText(n *html.Node) string {
	parent := n.Parent
	for depth := 0; parent != nil && depth < 3; depth++ {
		var parts []string
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				if t := strings.TrimSpace(c.Data); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
		parent = parent.Parent
	}
	return ""
}

// elementType is the ARIA role when present, otherwise the tag name.
func elementType(n *html.Node) string {
	if role := attr(n, "role"); role != "" {
		return strings.ToLower(role)
	}
	return strings.ToLower(n.Data)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// collapse trims and squeezes whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
