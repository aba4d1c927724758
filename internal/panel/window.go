package panel

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"trade-monitor/internal/watcher"
)

const maxDebugLines = 1000

// Actions are the buttons of the window.
type Actions struct {
	Toggle           func(page string)
	Simulate         func(page string)
	TestNotification func(page string)
}

// Window is the desktop stats panel. It shows one page at a time.
type Window struct {
	window  fyne.Window
	actions Actions

	pages      *widget.Select
	status     *widget.Label
	trades     *widget.Label
	elapsed    *widget.Label
	memory     *widget.Label
	theme      *widget.Label
	lastError  *widget.Label
	logEntries *widget.TextGrid
	debugArea  *widget.TextGrid

	mu       sync.Mutex
	views    map[string]watcher.View
	selected string
	debug    []string
}

// NewWindow builds the panel in app. onClose receives the last window size.
func NewWindow(app fyne.App, size fyne.Size, actions Actions, onClose func(fyne.Size)) *Window {
	w := &Window{
		window:     app.NewWindow("Trade Monitor"),
		actions:    actions,
		status:     widget.NewLabel("Waiting for pages..."),
		trades:     widget.NewLabel("Trades: 0"),
		elapsed:    widget.NewLabel("Elapsed: 00:00:00"),
		memory:     widget.NewLabel("Memory: 0 MB"),
		theme:      widget.NewLabel(""),
		lastError:  widget.NewLabel(""),
		logEntries: widget.NewTextGrid(),
		debugArea:  widget.NewTextGrid(),
		views:      make(map[string]watcher.View),
	}
	w.pages = widget.NewSelect(nil, w.selectPage)

	buttons := container.NewHBox(
		widget.NewButton("Toggle", func() { w.act(w.actions.Toggle) }),
		widget.NewButton("Simulate", func() { w.act(w.actions.Simulate) }),
		widget.NewButton("Test Notification", func() { w.act(w.actions.TestNotification) }),
		widget.NewButton("Clear Debug", w.ClearDebug),
	)

	stats := container.NewVBox(
		w.pages,
		w.status,
		container.NewHBox(w.trades, w.elapsed, w.memory),
		w.theme,
		w.lastError,
	)

	tabs := container.NewAppTabs(
		container.NewTabItem("Trades", container.NewScroll(w.logEntries)),
		container.NewTabItem("Debug", container.NewScroll(w.debugArea)),
	)

	w.window.SetContent(container.NewBorder(stats, buttons, nil, nil, tabs))
	if size.Width <= 0 || size.Height <= 0 {
		size = fyne.NewSize(600, 400)
	}
	w.window.Resize(size)

	w.window.SetCloseIntercept(func() {
		if onClose != nil {
			onClose(w.window.Canvas().Size())
		}
		w.window.Close()
	})

	return w
}

func (w *Window) act(fn func(string)) {
	w.mu.Lock()
	page := w.selected
	w.mu.Unlock()
	if fn != nil && page != "" {
		go fn(page)
	}
}

func (w *Window) selectPage(page string) {
	w.mu.Lock()
	w.selected = page
	v, ok := w.views[page]
	w.mu.Unlock()
	if ok {
		w.show(v)
	}
}

// Render implements watcher.Presenter.
func (w *Window) Render(v watcher.View) {
	w.mu.Lock()
	_, known := w.views[v.Page]
	w.views[v.Page] = v
	if w.selected == "" {
		w.selected = v.Page
	}
	current := w.selected == v.Page
	var options []string
	if !known {
		for p := range w.views {
			options = append(options, p)
		}
		sort.Strings(options)
	}
	w.mu.Unlock()

	if !known {
		w.pages.Options = options
		w.pages.Refresh()
		if current {
			w.pages.SetSelected(v.Page)
		}
	}
	if current {
		w.show(v)
	}
}

func (w *Window) show(v watcher.View) {
	w.status.SetText(statusText(v))
	w.trades.SetText(fmt.Sprintf("Trades: %d", v.TradeCount))
	w.elapsed.SetText("Elapsed: " + v.Elapsed)
	w.memory.SetText(fmt.Sprintf("Memory: %d MB", v.MemoryMB))
	w.theme.SetText("Theme: " + v.Theme.Name)
	if v.LastError != "" {
		w.lastError.SetText("Last error: " + v.LastError)
	} else {
		w.lastError.SetText("")
	}
	w.logEntries.SetText(LogText(v.Log))
}

func statusText(v watcher.View) string {
	switch {
	case !v.Monitoring:
		return v.Page + ": stopped"
	case !v.Attached:
		return v.Page + ": waiting for table"
	}
	return v.Page + ": monitoring"
}

// LogText renders the trade log, newest first.
func LogText(entries []watcher.LogEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s %s", e.Time.Format("15:04:05"), e.Side, e.Text))
	}
	return strings.Join(lines, "\n")
}

// AddDebug appends a line to the debug tab.
func (w *Window) AddDebug(text string) {
	w.mu.Lock()
	w.debug = append(w.debug, text)
	// Keep only last 1000 lines
	if len(w.debug) > maxDebugLines {
		w.debug = w.debug[len(w.debug)-maxDebugLines:]
	}
	displayText := strings.Join(w.debug, "\n")
	w.mu.Unlock()

	w.debugArea.SetText(displayText)
}

func (w *Window) ClearDebug() {
	w.mu.Lock()
	w.debug = nil
	w.mu.Unlock()
	w.debugArea.SetText("")
}

func (w *Window) ShowAndRun() {
	w.window.ShowAndRun()
}

// Close closes the window, which quits the app if it is the last one.
func (w *Window) Close() {
	w.window.Close()
}

// DebugWriter feeds log output into the debug tab.
type DebugWriter struct {
	window *Window
}

func NewDebugWriter(window *Window) *DebugWriter {
	return &DebugWriter{window: window}
}

func (d *DebugWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimSpace(string(p))
	if text != "" {
		d.window.AddDebug(text)
	}
	return len(p), nil
}
