// Package domadapter hides goquery behind a DOM adapter interface: a
// handful of named operations instead of duck-typing goquery selections
// directly (the pattern the teacher repeats inline in both scraper.go and
// rod_scraper.go). textproc.ExtractText is the only code that walks markup
// through it; the HTML Processor, Markdown Converter, and Link Discoverer
// operate on goquery selections directly.
package domadapter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node wraps a single goquery selection of exactly one element.
type Node struct {
	sel *goquery.Selection
}

// Document wraps a parsed document tree.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from an HTML string.
func Parse(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// Root returns the document's root node (the <html> element, or its
// nearest equivalent after parsing).
func (d *Document) Root() *Node {
	return &Node{sel: d.doc.Selection}
}

// HTML serializes the full document back to a string.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// QuerySelectorAll returns every node inside n matching selector, in
// document order.
func (n *Node) QuerySelectorAll(selector string) []*Node {
	sel := n.sel.Find(selector)
	out := make([]*Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Node{sel: s})
	})
	return out
}

// TextContent returns the concatenated text of n and its descendants.
func (n *Node) TextContent() string {
	return n.sel.Text()
}

// InnerMarkup returns n's inner HTML.
func (n *Node) InnerMarkup() string {
	h, err := n.sel.Html()
	if err != nil {
		return ""
	}
	return h
}

// OuterMarkup returns n's full markup, including its own tag.
func (n *Node) OuterMarkup() string {
	h, err := goquery.OuterHtml(n.sel)
	if err != nil {
		return ""
	}
	return h
}

// TagName returns n's lowercase tag name, or "" if n wraps no element.
func (n *Node) TagName() string {
	if n.sel.Length() == 0 {
		return ""
	}
	return goquery.NodeName(n.sel)
}

// Attribute returns the named attribute's value and whether it was present.
func (n *Node) Attribute(name string) (string, bool) {
	return n.sel.Attr(name)
}

// Remove detaches n from the tree.
func (n *Node) Remove() {
	n.sel.Remove()
}

// Each invokes fn for every node in n's selection (useful when n itself
// came back from QuerySelectorAll as a multi-element selection).
func (n *Node) Each(fn func(*Node)) {
	n.sel.Each(func(_ int, s *goquery.Selection) {
		fn(&Node{sel: s})
	})
}

// Len reports how many elements n's selection currently holds.
func (n *Node) Len() int {
	return n.sel.Length()
}

// TreeWalk visits every descendant of n for which filter returns true,
// depth-first, document order — the generic traversal hook spec.md §9
// names alongside the rest of the adapter surface.
func (n *Node) TreeWalk(filter func(*Node) bool) []*Node {
	var out []*Node
	n.sel.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := &Node{sel: s}
		if filter(node) {
			out = append(out, node)
		}
	})
	return out
}
