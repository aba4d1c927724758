package watcher

import (
	"errors"
	"time"

	"github.com/samber/lo"

	"trade-monitor/internal/models"
	"trade-monitor/internal/parser"
)

var (
	ErrNoTable       = errors.New("table body not found")
	ErrNoRows        = errors.New("no trades found in table")
	ErrNotMonitoring = errors.New("monitoring is not active")
	ErrInitialDelay  = errors.New("initial delay window is still open")
)

// DebugInfo is the snapshot reported by the status command.
type DebugInfo struct {
	Page        string        `json:"page"`
	Monitoring  bool          `json:"monitoring"`
	Attached    bool          `json:"attached"`
	Suppressed  bool          `json:"initialDelay"`
	Policy      string        `json:"policy"`
	Processed   int           `json:"processedRows"`
	StartTime   time.Time     `json:"startTime"`
	TradeCount  int           `json:"tradeCount"`
	LastTrade   *models.Trade `json:"lastTrade,omitempty"`
	Errors      []ErrorEntry  `json:"errors"`
	MemoryUsage uint64        `json:"memoryUsage"`
	Theme       string        `json:"theme"`
}

func (s *Session) DebugInfo() DebugInfo {
	return DebugInfo{
		Page:        s.name,
		Monitoring:  s.monitoring,
		Attached:    s.table != nil,
		Suppressed:  s.suppressed,
		Policy:      s.policy.Name(),
		Processed:   len(s.processed),
		StartTime:   s.stats.StartTime,
		TradeCount:  s.stats.TradeCount,
		LastTrade:   s.stats.LastTrade,
		Errors:      append([]ErrorEntry(nil), s.stats.Errors...),
		MemoryUsage: memoryMB(),
		Theme:       s.theme.Key,
	}
}

// ReadLast parses the row currently at the top of the table without dispatching it.
func (s *Session) ReadLast() (models.Trade, error) {
	body := s.doc.TableBody()
	if body == nil {
		return models.Trade{}, ErrNoTable
	}
	first := body.FirstRow()
	if first == nil {
		return models.Trade{}, ErrNoRows
	}
	return parser.Parse(first, s.now())
}

var sampleTrades = []models.Trade{
	{Type: "Buy", TokenName: "YZI", TokenSvgs: []string{}, TotalUSD: "$4,208.93", Amount: "33.7M", Price: "$0.00012", Time: "6h ago"},
	{Type: "Sell", TokenName: "YZI", TokenSvgs: []string{}, TotalUSD: "$4,208.93", Amount: "33.7M", Price: "$0.00012", Time: "3h ago"},
}

// Simulate pushes a random sample trade through the session as if it had been
// detected on the page.
func (s *Session) Simulate() (models.Trade, error) {
	trade := lo.Sample(sampleTrades)
	trade.Timestamp = parser.RelativeTimestamp(trade.Time, s.now())

	if !s.monitoring {
		return trade, ErrNotMonitoring
	}
	if s.suppressed {
		return trade, ErrInitialDelay
	}
	s.handleTrade(trade)
	return trade, nil
}

// DebugTrade is the trade used to check the notification path end to end.
func DebugTrade(now time.Time) models.Trade {
	return models.Trade{
		Type:      "SELL",
		TokenName: "DEBUG",
		TokenSvgs: []string{},
		TotalUSD:  "$4,208.93",
		Amount:    "33.7M",
		Price:     "$0.00012",
		Timestamp: parser.RelativeTimestamp("3h ago", now),
		Time:      "3h ago",
	}
}
