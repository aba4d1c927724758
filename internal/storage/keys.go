package storage

// Keys are scoped by page path so each watched page keeps its own preferences.

func MonitorKey(path string) string {
	return "monitor_" + path
}

func PrefsKey(path string) string {
	return MonitorKey(path) + "_prefs"
}

func SizeKey(path string) string {
	return MonitorKey(path) + "_size"
}

func PositionKey(path string) string {
	return "infopos_" + path
}

// Prefs is stored under PrefsKey.
type Prefs struct {
	Theme string `json:"theme"`
}

// Size is stored under SizeKey.
type Size struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Position is stored under PositionKey.
type Position struct {
	Top  float32 `json:"top"`
	Left float32 `json:"left"`
}

// MonitoringEnabled reports the saved monitoring flag for path. Missing means off.
func (d *DB) MonitoringEnabled(path string) (bool, error) {
	var on bool
	err := d.Get(MonitorKey(path), &on)
	if err == ErrNotFound {
		return false, nil
	}
	return on, err
}

// LoadPrefs returns saved preferences for path, or zero Prefs when none exist.
func (d *DB) LoadPrefs(path string) (Prefs, error) {
	var p Prefs
	err := d.Get(PrefsKey(path), &p)
	if err == ErrNotFound {
		return Prefs{}, nil
	}
	return p, err
}

// ResetPage removes the layout and preference keys of path. The monitoring flag stays.
func (d *DB) ResetPage(path string) error {
	return d.Remove(PositionKey(path), PrefsKey(path), SizeKey(path))
}
