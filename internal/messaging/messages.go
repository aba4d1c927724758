package messaging

import (
	"trade-monitor/internal/models"
)

type Action string

const (
	ActionNewTrade         Action = "NEW_TRADE"
	ActionToggleMonitoring Action = "TOGGLE_MONITORING"
	ActionUpdateTheme      Action = "UPDATE_THEME"
	ActionResetAll         Action = "RESET_ALL"
)

// Message is the envelope carried between the page side and the background.
type Message struct {
	Action       Action        `json:"action"`
	Trade        *models.Trade `json:"trade,omitempty"`
	IsMonitoring *bool         `json:"isMonitoring,omitempty"`
	Theme        string        `json:"theme,omitempty"`
}

// Response answers a request sent to the background.
type Response struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notificationId,omitempty"`
	Error          string `json:"error,omitempty"`
	SoundError     string `json:"soundError,omitempty"`
}

// Sender identifies where a request came from. TabID is empty for requests that
// did not originate in a tab (control commands, tests).
type Sender struct {
	TabID string `json:"tabId,omitempty"`
}

func NewTrade(trade models.Trade) Message {
	return Message{Action: ActionNewTrade, Trade: &trade}
}

func ToggleMonitoring(on bool) Message {
	return Message{Action: ActionToggleMonitoring, IsMonitoring: &on}
}

func UpdateTheme(theme string) Message {
	return Message{Action: ActionUpdateTheme, Theme: theme}
}

func ResetAll() Message {
	return Message{Action: ActionResetAll}
}
