package page

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func row(typ, token, ago string) string {
	return fmt.Sprintf(`<tr><td><div>%s</div></td><td>%s</td><td><div>$100</div></td>`+
		`<td><div>5</div></td><td><div>$20</div></td><td>0x1</td><td>%s</td></tr>`, typ, token, ago)
}

func pageHTML(rows ...string) string {
	return `<html><body><div id="tabs-leftTabs--tabpanel-2"><div class="g-table-content">` +
		`<table><tbody>` + strings.Join(rows, "") + `</tbody></table></div></div></body></html>`
}

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return root
}

func TestDocumentFirstRenderIsSilent(t *testing.T) {
	doc := NewDocument("", "")
	loaded := false
	doc.OnLoad(func() { loaded = true })

	assert.Equal(t, StateLoading, doc.ReadyState())
	assert.Nil(t, doc.TableBody())

	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"), row("Sell", "BBB", "2m ago"))))

	assert.True(t, loaded)
	assert.Equal(t, StateComplete, doc.ReadyState())
	body := doc.TableBody()
	require.NotNil(t, body)
	assert.Len(t, body.Rows(), 2)
	assert.Contains(t, TextContent(body.FirstRow()), "AAA")

	ran := false
	doc.OnLoad(func() { ran = true })
	assert.True(t, ran, "OnLoad after completion runs immediately")
}

func TestDocumentReportsPrependedRowAndKeepsIdentity(t *testing.T) {
	doc := NewDocument("", "")
	doc.Apply(mustParse(t, pageHTML(row("Sell", "BBB", "2m ago"))))

	body := doc.TableBody()
	require.NotNil(t, body)
	old := body.FirstRow()

	var added []*html.Node
	body.OnRowsAppended(func(nodes []*html.Node) { added = append(added, nodes...) })

	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "0m ago"), row("Sell", "BBB", "3m ago"))))

	require.Len(t, added, 1)
	assert.Same(t, added[0], body.FirstRow())
	assert.Contains(t, TextContent(added[0]), "AAA")

	rows := body.Rows()
	require.Len(t, rows, 2)
	assert.Same(t, old, rows[1])
	assert.Contains(t, TextContent(old), "3m ago", "matched row is refreshed in place")
	assert.True(t, body.Contains(added[0].FirstChild))
}

func TestDocumentTimeChangeIsNotAnInsertion(t *testing.T) {
	doc := NewDocument("", "")
	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"))))

	calls := 0
	doc.TableBody().OnRowsAppended(func([]*html.Node) { calls++ })

	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "2m ago"))))
	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "3m ago"))))

	assert.Zero(t, calls)
}

func TestDocumentIdenticalRowsCountFromBottom(t *testing.T) {
	doc := NewDocument("", "")
	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"))))

	body := doc.TableBody()
	old := body.FirstRow()

	var added []*html.Node
	body.OnRowsAppended(func(nodes []*html.Node) { added = append(added, nodes...) })

	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "0m ago"), row("Buy", "AAA", "1m ago"))))

	require.Len(t, added, 1)
	assert.Same(t, added[0], body.FirstRow())
	assert.Same(t, old, body.Rows()[1])
}

func TestDocumentRowKeyAttribute(t *testing.T) {
	keyed := func(key, token string) string {
		return strings.Replace(row("Buy", token, "1m ago"), "<tr>", `<tr data-row-key="`+key+`">`, 1)
	}

	doc := NewDocument("", "data-row-key")
	doc.Apply(mustParse(t, pageHTML(keyed("k1", "AAA"))))

	body := doc.TableBody()
	old := body.FirstRow()

	var added []*html.Node
	body.OnRowsAppended(func(nodes []*html.Node) { added = append(added, nodes...) })

	// Same key, different content: updated in place.
	doc.Apply(mustParse(t, pageHTML(keyed("k1", "CHANGED"))))
	assert.Empty(t, added)
	assert.Same(t, old, body.FirstRow())
	assert.Contains(t, TextContent(old), "CHANGED")

	// Same content, new key: a new row.
	doc.Apply(mustParse(t, pageHTML(keyed("k2", "CHANGED"), keyed("k1", "CHANGED"))))
	require.Len(t, added, 1)
	v, ok := Attr(added[0], "data-row-key")
	assert.True(t, ok)
	assert.Equal(t, "k2", v)
}

func TestDocumentCancelSubscription(t *testing.T) {
	doc := NewDocument("", "")
	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"))))

	calls := 0
	cancel := doc.TableBody().OnRowsAppended(func([]*html.Node) { calls++ })

	doc.Apply(mustParse(t, pageHTML(row("Sell", "BBB", "0m ago"), row("Buy", "AAA", "1m ago"))))
	cancel()
	doc.Apply(mustParse(t, pageHTML(row("Buy", "CCC", "0m ago"), row("Sell", "BBB", "0m ago"), row("Buy", "AAA", "1m ago"))))

	assert.Equal(t, 1, calls)
}

func TestDocumentReplacedTableDropsOldSubscribers(t *testing.T) {
	doc := NewDocument("", "")
	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"))))

	old := doc.TableBody()
	calls := 0
	old.OnRowsAppended(func([]*html.Node) { calls++ })

	doc.Apply(mustParse(t, `<html><body><p>maintenance</p></body></html>`))
	assert.Nil(t, doc.TableBody())

	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"))))
	doc.Apply(mustParse(t, pageHTML(row("Sell", "BBB", "0m ago"), row("Buy", "AAA", "1m ago"))))

	require.NotNil(t, doc.TableBody())
	assert.NotSame(t, old.Node(), doc.TableBody().Node())
	assert.Zero(t, calls)
	assert.False(t, doc.TableBody().Contains(old.FirstRow()))
}

func TestDocumentValidate(t *testing.T) {
	doc := NewDocument("", "")
	v := doc.Validate()
	assert.False(t, v.TBody)
	assert.False(t, v.Selectors["type"])

	doc.Apply(mustParse(t, pageHTML(row("Buy", "AAA", "1m ago"), row("Sell", "BBB", "2m ago"))))
	v = doc.Validate()
	assert.True(t, v.TBody)
	assert.Equal(t, 2, v.Rows)
	for name, ok := range v.Selectors {
		assert.True(t, ok, name)
	}
}

func TestParseRows(t *testing.T) {
	rows, err := ParseRows(row("Buy", "AAA", "1m ago") + row("Sell", "BBB", "2m ago"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, IsRow(rows[0]))
	assert.Contains(t, OuterHTML(rows[1]), "BBB")
}
