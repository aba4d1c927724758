package models

import (
	"fmt"
	"strings"
	"time"
)

// Side is the canonical, upper-case trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one normalized row of the trading-activity table.
// Values are copied around; nothing mutates a Trade after Parse builds it.
type Trade struct {
	Type      string    `json:"type"`
	TokenName string    `json:"tokenName"`
	TokenSvgs []string  `json:"tokenSvgs,omitempty"`
	TotalUSD  string    `json:"totalUSD"`
	Amount    string    `json:"amount"`
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Time      string    `json:"time"`
}

// Side normalizes Type case-insensitively. Unknown types return "".
func (t Trade) Side() Side {
	switch Side(strings.ToUpper(strings.TrimSpace(t.Type))) {
	case SideBuy:
		return SideBuy
	case SideSell:
		return SideSell
	}
	return ""
}

// NotificationTitle is the desktop notification title for the trade.
func (t Trade) NotificationTitle() string {
	return fmt.Sprintf("%s Alert", t.Type)
}

// NotificationBody is the desktop notification body for the trade.
func (t Trade) NotificationBody() string {
	return fmt.Sprintf("%s: %s @ %s", t.TokenName, t.TotalUSD, t.Price)
}

// Summary is the one-line form used by the trade log.
func (t Trade) Summary() string {
	return fmt.Sprintf("%s %s: %s @ %s", t.Type, t.TokenName, t.TotalUSD, t.Price)
}
