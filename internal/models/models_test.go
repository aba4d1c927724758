package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeSide(t *testing.T) {
	tests := []struct {
		typ  string
		want Side
	}{
		{"Buy", SideBuy},
		{"BUY", SideBuy},
		{" sell ", SideSell},
		{"Transfer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, Trade{Type: tt.typ}.Side())
		})
	}
}

func TestTradeNotificationText(t *testing.T) {
	trade := Trade{Type: "Buy", TokenName: "TOKN", TotalUSD: "$100", Amount: "5", Price: "$20"}

	assert.Equal(t, "Buy Alert", trade.NotificationTitle())
	assert.Equal(t, "TOKN: $100 @ $20", trade.NotificationBody())
	assert.Equal(t, "Buy TOKN: $100 @ $20", trade.Summary())
}
