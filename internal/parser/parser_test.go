package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"trade-monitor/internal/page"
)

func parseRow(t *testing.T, markup string) *html.Node {
	t.Helper()
	rows, err := page.ParseRows(markup)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0]
}

func TestParseWellFormedRow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	row := parseRow(t, `<tr>
		<td><div>Buy
			<span>market</span></div></td>
		<td>TOKN</td>
		<td><div> $100 </div></td>
		<td><div>5</div></td>
		<td><div>$20</div></td>
		<td>0xabc</td>
		<td>3h ago</td>
	</tr>`)

	trade, err := Parse(row, now)
	require.NoError(t, err)

	assert.Equal(t, "Buy", trade.Type)
	assert.Equal(t, "TOKN", trade.TokenName)
	assert.Empty(t, trade.TokenSvgs)
	assert.Equal(t, "$100", trade.TotalUSD)
	assert.Equal(t, "5", trade.Amount)
	assert.Equal(t, "$20", trade.Price)
	assert.Equal(t, "3h ago", trade.Time)
	assert.Equal(t, now.Add(-3*time.Hour), trade.Timestamp)
}

func TestParseTokenCell(t *testing.T) {
	tests := []struct {
		name     string
		cell     string
		wantName string
		wantSvgs int
	}{
		{"plain text", `<td> TOKN </td>`, "TOKN", 0},
		{"text and element", `<td>TOKN<span>Token Inc</span></td>`, "TOKN - Token Inc", 0},
		{"icon only", `<td><svg width="10"><path d="M0"></path></svg>TOKN</td>`, "TOKN", 1},
		{"icon with text", `<td><svg><text>$</text></svg><span>TOKN</span></td>`, "$ - TOKN", 1},
		{"empty", `<td>  </td>`, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := parseRow(t, `<tr><td>Sell</td>`+tt.cell+`<td>1</td><td>2</td><td>3</td><td></td><td>now</td></tr>`)
			trade, err := Parse(row, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, trade.TokenName)
			require.Len(t, trade.TokenSvgs, tt.wantSvgs)
			for _, svg := range trade.TokenSvgs {
				assert.Contains(t, svg, "<svg")
			}
		})
	}
}

func TestParseMissingCells(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		cell   string
	}{
		{"empty row", `<tr></tr>`, CellType},
		{"only type", `<tr><td>Buy</td></tr>`, CellToken},
		{"no price", `<tr><td>Buy</td><td>T</td><td>1</td><td>2</td></tr>`, CellPrice},
		{"no time", `<tr><td>Buy</td><td>T</td><td>1</td><td>2</td><td>3</td><td></td></tr>`, CellTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := parseRow(t, tt.markup)
			trade, err := Parse(row, time.Now())

			var malformed *MalformedRowError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.cell, malformed.Cell)
			assert.Contains(t, malformed.HTML, "<tr>")
			assert.Zero(t, trade)
		})
	}
}

func TestRelativeTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		text string
		want time.Time
	}{
		{"3h ago", now.Add(-3 * time.Hour)},
		{"15m ago", now.Add(-15 * time.Minute)},
		{" 1h ago", now.Add(-time.Hour)},
		{"0m ago", now},
		{"45s ago", now},
		{"12:30:01", now},
		{"", now},
		{"just now", now},
		{"3000000h ago", now},
		{"99999999999999999999m ago", now},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeTimestamp(tt.text, now))
		})
	}
}
