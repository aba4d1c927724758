package page

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextContent returns the text of n and all of its descendants, like the DOM property.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	return goquery.NewDocumentFromNode(n).Text()
}

// OuterHTML renders n back to markup. Used for diagnostics only.
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return buf.String()
}

// IsRow reports whether n is a <tr> element.
func IsRow(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Tr
}

// Attr returns the value of the named attribute, if present.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// ParseRows parses a fragment of <tr> markup in a tbody context.
func ParseRows(fragment string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "tbody", DataAtom: atom.Tbody}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rows: %w", err)
	}

	rows := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if IsRow(n) {
			rows = append(rows, n)
		}
	}
	return rows, nil
}

func elementChildren(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, c)
		}
	}
	return out
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
