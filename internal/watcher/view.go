package watcher

import (
	"trade-monitor/internal/models"
)

// View is what the stats panel shows for one page.
type View struct {
	Page       string        `json:"page"`
	Monitoring bool          `json:"monitoring"`
	Attached   bool          `json:"attached"`
	TradeCount int           `json:"tradeCount"`
	Elapsed    string        `json:"elapsed"`
	MemoryMB   uint64        `json:"memoryMB"`
	LastTrade  *models.Trade `json:"lastTrade,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
	Log        []LogEntry    `json:"log"`
	Theme      Theme         `json:"theme"`
}

func (s *Session) View() View {
	return View{
		Page:       s.name,
		Monitoring: s.monitoring,
		Attached:   s.table != nil,
		TradeCount: s.stats.TradeCount,
		Elapsed:    FormatElapsed(s.now().Sub(s.stats.StartTime)),
		MemoryMB:   memoryMB(),
		LastTrade:  s.stats.LastTrade,
		LastError:  s.stats.lastError(),
		Log:        s.trades.snapshot(),
		Theme:      s.theme,
	}
}

func (s *Session) render() {
	if s.presenter == nil {
		return
	}
	s.presenter.Render(s.View())
}
