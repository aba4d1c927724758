package watcher

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"trade-monitor/internal/page"
)

// AcceptPolicy decides whether an inserted row is the newest trade, given the
// row currently sitting at the top of the table.
type AcceptPolicy interface {
	Name() string
	Accept(added, first *html.Node) bool
}

// ContentEquality accepts a row whose trimmed text matches the first row's.
type ContentEquality struct{}

func (ContentEquality) Name() string { return "content" }

func (ContentEquality) Accept(added, first *html.Node) bool {
	if added == nil || first == nil {
		return false
	}
	return strings.TrimSpace(page.TextContent(added)) == strings.TrimSpace(page.TextContent(first))
}

// RowKeyIdentity accepts a row whose key attribute matches the first row's.
type RowKeyIdentity struct {
	Attr string
}

func (p RowKeyIdentity) Name() string { return "row-key" }

func (p RowKeyIdentity) Accept(added, first *html.Node) bool {
	a, ok := page.Attr(added, p.Attr)
	if !ok || a == "" {
		return false
	}
	f, ok := page.Attr(first, p.Attr)
	return ok && a == f
}

// ParsePolicy maps a configured policy name to an AcceptPolicy.
func ParsePolicy(name, keyAttr string) (AcceptPolicy, error) {
	switch strings.ToLower(name) {
	case "", "content":
		return ContentEquality{}, nil
	case "row-key":
		if keyAttr == "" {
			return nil, fmt.Errorf("row-key accept policy needs a key attribute")
		}
		return RowKeyIdentity{Attr: keyAttr}, nil
	}
	return nil, fmt.Errorf("unknown accept policy %q", name)
}
