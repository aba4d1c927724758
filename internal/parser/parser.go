package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"trade-monitor/internal/models"
	"trade-monitor/internal/page"
)

// Cell names, in column order. The time cell sits in column 7.
const (
	CellType   = "type"
	CellToken  = "token"
	CellTotal  = "total"
	CellAmount = "amount"
	CellPrice  = "price"
	CellTime   = "time"
)

var cellColumns = []struct {
	name   string
	column int
}{
	{CellType, 1},
	{CellToken, 2},
	{CellTotal, 3},
	{CellAmount, 4},
	{CellPrice, 5},
	{CellTime, 7},
}

var relativeTimePattern = regexp.MustCompile(`^\s*(\d+)\s*(h|m) ago`)

// MalformedRowError is returned when a row lacks one of the required cells.
type MalformedRowError struct {
	Cell string
	HTML string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%s cell not found", e.Cell)
}

// Parse converts one table row into a Trade. now anchors the relative time.
func Parse(row *html.Node, now time.Time) (models.Trade, error) {
	sel := goquery.NewDocumentFromNode(row).Selection

	cells := make(map[string]*goquery.Selection, len(cellColumns))
	for _, c := range cellColumns {
		cell := sel.ChildrenFiltered(fmt.Sprintf("td:nth-child(%d)", c.column))
		if cell.Length() == 0 {
			return models.Trade{}, &MalformedRowError{Cell: c.name, HTML: page.OuterHTML(row)}
		}
		cells[c.name] = cell.First()
	}

	tokenName, svgs := tokenParts(cells[CellToken].Nodes[0])
	timeText := strings.TrimSpace(cells[CellTime].Text())

	return models.Trade{
		Type:      firstLine(cells[CellType].Text()),
		TokenName: tokenName,
		TokenSvgs: svgs,
		TotalUSD:  strings.TrimSpace(cells[CellTotal].Text()),
		Amount:    strings.TrimSpace(cells[CellAmount].Text()),
		Price:     strings.TrimSpace(cells[CellPrice].Text()),
		Timestamp: RelativeTimestamp(timeText, now),
		Time:      timeText,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// tokenParts walks the direct children of the token cell. Icons are kept as markup,
// everything else contributes its trimmed text.
func tokenParts(cell *html.Node) (string, []string) {
	var texts, svgs []string
	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			texts = append(texts, strings.TrimSpace(c.Data))
		case c.Type == html.ElementNode && (c.DataAtom == atom.Svg || c.Data == "svg"):
			svgs = append(svgs, page.OuterHTML(c))
			texts = append(texts, strings.TrimSpace(page.TextContent(c)))
		case c.Type == html.ElementNode:
			texts = append(texts, strings.TrimSpace(page.TextContent(c)))
		}
	}
	texts = lo.Compact(texts)
	return strings.Join(texts, " - "), svgs
}

// RelativeTimestamp turns "<N>h ago" and "<N>m ago" into an absolute time.
// Anything else, seconds included, is taken as now.
func RelativeTimestamp(text string, now time.Time) time.Time {
	m := relativeTimePattern.FindStringSubmatch(text)
	if m == nil {
		return now
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return now
	}
	unit := time.Minute
	if m[2] == "h" {
		unit = time.Hour
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return now
	}
	return now.Add(-time.Duration(n) * unit)
}
