package watcher

import "strings"

type ThemeColors struct {
	Background string `json:"background"`
	Border     string `json:"border"`
	Text       string `json:"text"`
	Title      string `json:"title"`
	Accent     string `json:"accent"`
}

type Theme struct {
	Key    string      `json:"key"`
	Name   string      `json:"name"`
	Colors ThemeColors `json:"colors"`
}

const DefaultTheme = "default"

var themes = map[string]Theme{
	"matrix":    {"matrix", "The Matrix", ThemeColors{"rgba(0, 20, 0, 0.9)", "#00ff00", "#00ff00", "#00ff00", "rgba(0, 255, 0, 0.1)"}},
	"cyberpunk": {"cyberpunk", "Night City", ThemeColors{"rgba(20, 0, 30, 0.9)", "#ff00ff", "#00ffff", "#ff00ff", "rgba(255, 0, 255, 0.1)"}},
	"hacker":    {"hacker", "Elite Hacker", ThemeColors{"rgba(0, 0, 0, 0.95)", "#0f0", "#0f0", "#fff", "rgba(0, 255, 0, 0.1)"}},
	"trader":    {"trader", "Pro Trader", ThemeColors{"rgba(28, 32, 38, 0.9)", "#ffd700", "#ffffff", "#ffd700", "rgba(255, 215, 0, 0.1)"}},
	"crypto":    {"crypto", "Bitcoin Orange", ThemeColors{"rgba(30, 20, 0, 0.9)", "#ff9900", "#ffffff", "#ff9900", "rgba(255, 153, 0, 0.1)"}},
	"stark":     {"stark", "Stark Industries", ThemeColors{"rgba(40, 40, 45, 0.9)", "#e63e3e", "#ffffff", "#e63e3e", "rgba(230, 62, 62, 0.1)"}},
	"wakanda":   {"wakanda", "Wakanda Forever", ThemeColors{"rgba(30, 0, 30, 0.9)", "#b967ff", "#ffffff", "#b967ff", "rgba(185, 103, 255, 0.1)"}},
	"shield":    {"shield", "S.H.I.E.L.D.", ThemeColors{"rgba(20, 20, 25, 0.9)", "#3e7be6", "#ffffff", "#3e7be6", "rgba(62, 123, 230, 0.1)"}},
	"default":   {"default", "Default", ThemeColors{"rgba(33, 33, 33, 0.9)", "rgba(76, 175, 80, 0.6)", "#ffffff", "#4CAF50", "rgba(76, 175, 80, 0.1)"}},
}

// ResolveTheme returns the named theme, falling back to the default one.
func ResolveTheme(key string) Theme {
	if t, ok := themes[strings.ToLower(key)]; ok {
		return t
	}
	return themes[DefaultTheme]
}

// IsTheme reports whether key names a known theme.
func IsTheme(key string) bool {
	_, ok := themes[strings.ToLower(key)]
	return ok
}
