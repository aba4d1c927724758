package watcher

import (
	"fmt"
	"runtime"
	"time"

	"trade-monitor/internal/models"
)

type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

type LogEntry struct {
	Time time.Time   `json:"time"`
	Side models.Side `json:"side"`
	Text string      `json:"text"`
}

// Stats is the running aggregate shown in the panel.
type Stats struct {
	StartTime  time.Time     `json:"startTime"`
	TradeCount int           `json:"tradeCount"`
	LastTrade  *models.Trade `json:"lastTrade,omitempty"`
	Errors     []ErrorEntry  `json:"errors"`

	maxErrors int
}

func newStats(now time.Time, maxErrors int) *Stats {
	return &Stats{StartTime: now, Errors: []ErrorEntry{}, maxErrors: maxErrors}
}

func (s *Stats) recordTrade(t models.Trade) {
	s.TradeCount++
	s.LastTrade = &t
}

func (s *Stats) addError(now time.Time, msg string) {
	s.Errors = append(s.Errors, ErrorEntry{Time: now, Message: msg})
	if s.maxErrors > 0 && len(s.Errors) > s.maxErrors {
		s.Errors = s.Errors[len(s.Errors)-s.maxErrors:]
	}
}

func (s *Stats) lastError() string {
	if len(s.Errors) == 0 {
		return ""
	}
	return s.Errors[len(s.Errors)-1].Message
}

// FormatElapsed renders d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func memoryMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc / (1024 * 1024)
}

// tradeLog keeps the most recent entries first.
type tradeLog struct {
	entries  []LogEntry
	capacity int
}

func (l *tradeLog) prepend(e LogEntry) {
	l.entries = append([]LogEntry{e}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

func (l *tradeLog) snapshot() []LogEntry {
	return append([]LogEntry(nil), l.entries...)
}
