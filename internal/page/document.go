package page

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultTableSelector locates the trades table body on the watched page.
const DefaultTableSelector = "#tabs-leftTabs--tabpanel-2 .g-table-content table tbody"

// timeColumn is the 1-based index of the relative-time cell; it changes on every
// re-render so it is left out of row identity.
const timeColumn = 7

type ReadyState string

const (
	StateLoading  ReadyState = "loading"
	StateComplete ReadyState = "complete"
)

type subscription struct {
	body    *html.Node
	handler func([]*html.Node)
}

// Document is the live view of a page. Snapshots are reconciled into it so that a
// row keeps the same *html.Node for as long as it stays in the table.
// A Document belongs to one tab loop and is not safe for concurrent use.
type Document struct {
	selector string
	keyAttr  string

	state  ReadyState
	body   *html.Node
	keys   map[*html.Node]string
	subs   map[int]subscription
	nextID int
	onLoad []func()
}

func NewDocument(selector, keyAttr string) *Document {
	if selector == "" {
		selector = DefaultTableSelector
	}
	return &Document{
		selector: selector,
		keyAttr:  keyAttr,
		state:    StateLoading,
		keys:     make(map[*html.Node]string),
		subs:     make(map[int]subscription),
	}
}

func (d *Document) ReadyState() ReadyState {
	return d.state
}

// OnLoad runs fn once the first snapshot has been applied, or right away if it has.
func (d *Document) OnLoad(fn func()) {
	if d.state == StateComplete {
		fn()
		return
	}
	d.onLoad = append(d.onLoad, fn)
}

// TableBody returns the live table body, or nil when the page has none.
func (d *Document) TableBody() *TableBody {
	if d.body == nil {
		return nil
	}
	return &TableBody{doc: d, node: d.body}
}

// Apply reconciles a freshly loaded page into the document and reports inserted rows
// to the subscribers of the current table body.
func (d *Document) Apply(root *html.Node) {
	defer d.complete()

	sel := goquery.NewDocumentFromNode(root).Find(d.selector).First()
	if sel.Length() == 0 {
		d.body = nil
		return
	}
	incoming := elementChildren(sel.Nodes[0], atom.Tr)

	if d.body == nil {
		// First render of the table: rows are already there, nothing was "added".
		d.body = &html.Node{Type: html.ElementNode, Data: "tbody", DataAtom: atom.Tbody}
		d.keys = make(map[*html.Node]string)
		for i, key := range d.rowKeys(incoming) {
			row := incoming[i]
			detach(row)
			d.keys[row] = key
			d.body.AppendChild(row)
		}
		return
	}

	added := d.reconcile(incoming)
	if len(added) == 0 || d.state != StateComplete {
		return
	}
	for _, sub := range d.subs {
		if sub.body == d.body {
			sub.handler(added)
		}
	}
}

func (d *Document) complete() {
	if d.state == StateComplete {
		return
	}
	d.state = StateComplete
	handlers := d.onLoad
	d.onLoad = nil
	for _, fn := range handlers {
		fn()
	}
}

func (d *Document) reconcile(incoming []*html.Node) []*html.Node {
	byKey := make(map[string]*html.Node, len(d.keys))
	for n, key := range d.keys {
		byKey[key] = n
	}

	var added []*html.Node
	order := make([]*html.Node, 0, len(incoming))
	for i, key := range d.rowKeys(incoming) {
		row := incoming[i]
		if live, ok := byKey[key]; ok {
			refresh(live, row)
			order = append(order, live)
			delete(byKey, key)
			continue
		}
		detach(row)
		d.keys[row] = key
		order = append(order, row)
		added = append(added, row)
	}

	for _, gone := range byKey {
		delete(d.keys, gone)
	}

	removeChildren(d.body)
	for _, n := range order {
		d.body.AppendChild(n)
	}
	return added
}

// rowKeys derives a stable identity for each row. Occurrences of identical rows are
// counted from the bottom because new trades are prepended.
func (d *Document) rowKeys(rows []*html.Node) []string {
	keys := make([]string, len(rows))
	seen := make(map[string]int)
	for i := len(rows) - 1; i >= 0; i-- {
		base := d.identity(rows[i])
		seen[base]++
		keys[i] = fmt.Sprintf("%s#%d", base, seen[base])
	}
	return keys
}

func (d *Document) identity(row *html.Node) string {
	if d.keyAttr != "" {
		if v, ok := Attr(row, d.keyAttr); ok && v != "" {
			return "key:" + v
		}
	}
	cells := elementChildren(row, atom.Td)
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i == timeColumn-1 {
			continue
		}
		parts = append(parts, strings.TrimSpace(TextContent(cell)))
	}
	return "text:" + strings.Join(parts, "\x1f")
}

// refresh moves the content of a re-rendered row into the live node.
func refresh(live, fresh *html.Node) {
	live.Attr = fresh.Attr
	removeChildren(live)
	for c := fresh.FirstChild; c != nil; {
		next := c.NextSibling
		fresh.RemoveChild(c)
		live.AppendChild(c)
		c = next
	}
}

// Validation mirrors the structure checks of the debug panel.
type Validation struct {
	TBody     bool            `json:"tbody"`
	Rows      int             `json:"rows"`
	Selectors map[string]bool `json:"selectors"`
}

func (d *Document) Validate() Validation {
	v := Validation{Selectors: map[string]bool{
		"type": false, "token": false, "total": false, "amount": false, "price": false,
	}}
	if d.body == nil {
		return v
	}
	v.TBody = true
	body := goquery.NewDocumentFromNode(d.body)
	v.Rows = body.ChildrenFiltered("tr").Length()
	v.Selectors["type"] = body.Find("td:first-child div").Length() > 0
	v.Selectors["token"] = body.Find("td:nth-child(2)").Length() > 0
	v.Selectors["total"] = body.Find("td:nth-child(3) div").Length() > 0
	v.Selectors["amount"] = body.Find("td:nth-child(4) div").Length() > 0
	v.Selectors["price"] = body.Find("td:nth-child(5) div").Length() > 0
	return v
}

// TableBody is a handle on the live table body.
type TableBody struct {
	doc  *Document
	node *html.Node
}

func (t *TableBody) Node() *html.Node {
	return t.node
}

// FirstRow returns the row in the "latest trade" position.
func (t *TableBody) FirstRow() *html.Node {
	for c := t.node.FirstChild; c != nil; c = c.NextSibling {
		if IsRow(c) {
			return c
		}
	}
	return nil
}

func (t *TableBody) Rows() []*html.Node {
	return elementChildren(t.node, atom.Tr)
}

// Contains reports whether n is a descendant of the table body.
func (t *TableBody) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == t.node {
			return true
		}
	}
	return false
}

// OnRowsAppended subscribes to row insertions. The returned func cancels it.
func (t *TableBody) OnRowsAppended(handler func([]*html.Node)) func() {
	d := t.doc
	id := d.nextID
	d.nextID++
	d.subs[id] = subscription{body: t.node, handler: handler}
	return func() { delete(d.subs, id) }
}
