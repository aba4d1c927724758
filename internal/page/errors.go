package page

import (
	"errors"
	"fmt"
)

var (
	ErrTabClosed     = errors.New("tab closed")
	ErrNoAudioOutput = errors.New("tab has no audio output")
)

// PlaybackBlockedError means the tab's autoplay policy refused to start a sound
// before the user interacted with the tab.
type PlaybackBlockedError struct {
	TabID string
	Asset string
}

func (e *PlaybackBlockedError) Error() string {
	return fmt.Sprintf("playback of %s blocked in tab %s until user gesture", e.Asset, e.TabID)
}
