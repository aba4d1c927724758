package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"trade-monitor/internal/background"
	"trade-monitor/internal/ipc"
	"trade-monitor/internal/messaging"
	"trade-monitor/internal/page"
	"trade-monitor/internal/panel"
	"trade-monitor/internal/storage"
	"trade-monitor/internal/watcher"
	"trade-monitor/pkg/config"
	"trade-monitor/pkg/logger"
	"trade-monitor/pkg/notify"
	"trade-monitor/pkg/sound"
)

// monitor pairs a tab with the session living on its loop.
type monitor struct {
	tab     *page.Tab
	session *watcher.Session
	stop    func()
}

type Options struct {
	// Notifier replaces the desktop notifier chain.
	Notifier background.Notifier
	// Speaker replaces the audio output.
	Speaker page.Speaker
	// Gestures, when set, is read line by line. Each line is a click on the
	// named tab, or on the active tab for an empty line.
	Gestures io.Reader
}

// TradeMonitor wires pages, sessions, the background service and the control
// surfaces together.
type TradeMonitor struct {
	cfg *config.Config
	log *logger.Logger

	db       *storage.DB
	bus      *messaging.Bus
	registry *page.Registry
	service  *background.Service
	player   *sound.Player
	hub      *panel.Hub
	gestures io.Reader

	monitors map[string]*monitor

	mu     sync.RWMutex
	window *panel.Window
}

func New(cfg *config.Config, log *logger.Logger, opts Options) (*TradeMonitor, error) {
	log.Debug("Initializing trade monitor", "pages", len(cfg.GetPages()))

	pages := cfg.GetPages()
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages configured")
	}

	policy, err := watcher.ParsePolicy(cfg.GetAcceptPolicy(), cfg.GetRowKeyAttr())
	if err != nil {
		return nil, err
	}
	autoplay, err := page.ParseAutoplayPolicy(cfg.GetAutoplayPolicy())
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.GetDatabasePath(), cfg.GetHistoryCapacity(), log)
	if err != nil {
		return nil, err
	}

	m := &TradeMonitor{
		cfg:      cfg,
		log:      log,
		db:       db,
		bus:      messaging.NewBus(cfg.GetDispatchTimeout(), log),
		registry: page.NewRegistry(),
		hub:      panel.NewHub(log),
		gestures: opts.Gestures,
		monitors: make(map[string]*monitor),
	}

	speaker := opts.Speaker
	if speaker == nil {
		m.player = sound.NewPlayer(cfg.AssetsFS(), log)
		speaker = m.player
	}

	var notifier background.Notifier = opts.Notifier
	if notifier == nil {
		notifier = notify.New(log,
			notify.WithCommand(cfg.GetNotifyCommand()),
			notify.WithLogFile(filepath.Join(cfg.GetConfigDir(), "logs", "notifications.log")))
	}

	m.service = background.New(background.RegistryTabs{Registry: m.registry}, notifier, db, log)
	m.bus.Listen(m.service.HandleMessage)

	for _, p := range pages {
		tab, err := page.NewTab(page.TabOptions{
			URL:          p.URL,
			Selector:     cfg.GetTableSelector(),
			KeyAttr:      cfg.GetRowKeyAttr(),
			PollInterval: cfg.GetPollInterval(),
			Autoplay:     autoplay,
			Speaker:      speaker,
			Log:          log,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		m.addTab(tab, policy)
	}

	return m, nil
}

func (m *TradeMonitor) addTab(tab *page.Tab, policy watcher.AcceptPolicy) {
	session := watcher.NewSession(watcher.Options{
		Name:          tab.Path(),
		Document:      tab.Document(),
		Scheduler:     tab,
		Dispatcher:    m.bus.Port(tab.ID()),
		Presenter:     m,
		Log:           m.log,
		Policy:        policy,
		InitialDelay:  m.cfg.GetInitialDelay(),
		RetryInterval: m.cfg.GetAttachRetryInterval(),
		StatsInterval: m.cfg.GetStatsInterval(),
		LogCapacity:   m.cfg.GetLogCapacity(),
	})

	stop := m.bus.ListenTab(tab.ID(), func(msg messaging.Message) {
		tab.Post(func() { session.HandleMessage(msg) })
	})

	m.registry.Add(tab)
	m.monitors[tab.ID()] = &monitor{tab: tab, session: session, stop: stop}

	tab.Post(func() { m.restore(tab, session) })
}

// restore applies what was persisted for the page before the tab was opened.
func (m *TradeMonitor) restore(tab *page.Tab, session *watcher.Session) {
	path := tab.Path()

	prefs, err := m.db.LoadPrefs(path)
	if err != nil {
		m.log.Error("Failed to load preferences", err, "page", path)
	} else if prefs.Theme != "" {
		session.SetTheme(prefs.Theme)
	}

	enabled, err := m.db.MonitoringEnabled(path)
	if err != nil {
		m.log.Error("Failed to read monitoring state", err, "page", path)
		return
	}
	if enabled {
		m.log.Info("Restoring monitoring", "page", path)
		session.Start()
	}
}

// Render implements watcher.Presenter for every session.
func (m *TradeMonitor) Render(v watcher.View) {
	m.hub.Render(v)

	m.mu.RLock()
	w := m.window
	m.mu.RUnlock()
	if w != nil {
		w.Render(v)
	}
}

// NewWindow opens the desktop panel. Its size is restored from, and saved to,
// the active page's preferences.
func (m *TradeMonitor) NewWindow(a fyne.App) *panel.Window {
	sizeKey := ""
	if tab, ok := m.registry.Active(); ok {
		sizeKey = storage.SizeKey(tab.Path())
	}

	var size storage.Size
	if sizeKey != "" {
		if err := m.db.Get(sizeKey, &size); err != nil && err != storage.ErrNotFound {
			m.log.Error("Failed to load panel size", err)
		}
	}

	actions := panel.Actions{
		Toggle: func(p string) {
			if _, err := m.Toggle(context.Background(), p, nil); err != nil {
				m.log.Error("Toggle failed", err, "page", p)
			}
		},
		Simulate: func(p string) {
			if _, err := m.Simulate(context.Background(), p); err != nil {
				m.log.Error("Simulation failed", err, "page", p)
			}
		},
		TestNotification: func(p string) {
			if _, err := m.TestNotification(context.Background(), p); err != nil {
				m.log.Error("Test notification failed", err, "page", p)
			}
		},
	}

	w := panel.NewWindow(a, fyne.NewSize(size.Width, size.Height), actions, func(s fyne.Size) {
		if sizeKey == "" {
			return
		}
		if err := m.db.Set(sizeKey, storage.Size{Width: s.Width, Height: s.Height}); err != nil {
			m.log.Error("Failed to save panel size", err)
		}
	})

	m.log.AddWriter(panel.NewDebugWriter(w))

	m.mu.Lock()
	m.window = w
	m.mu.Unlock()
	return w
}

// Run blocks until ctx is cancelled or a component fails.
func (m *TradeMonitor) Run(ctx context.Context) error {
	m.log.Info("Starting trade monitor",
		"pages", len(m.monitors),
		"socket", m.cfg.GetSocketPath(),
		"panel", m.cfg.GetPanelAddr())

	g, ctx := errgroup.WithContext(ctx)

	for _, tab := range m.registry.All() {
		g.Go(func() error { return tab.Run(ctx) })
	}

	if path := m.cfg.GetSocketPath(); path != "" {
		srv := ipc.NewServer(path, m, m.log)
		g.Go(func() error { return srv.Serve(ctx) })
	}

	if addr := m.cfg.GetPanelAddr(); addr != "" {
		g.Go(func() error { return m.hub.Serve(ctx, addr) })
	}

	if m.gestures != nil {
		go m.readGestures(ctx, m.gestures)
	}

	err := g.Wait()
	m.close()
	return err
}

func (m *TradeMonitor) close() {
	// no handler may reach the service or the database after this
	m.bus.Close()
	m.service.Wait()
	for _, mon := range m.monitors {
		mon.stop()
	}
	if m.player != nil {
		m.player.Close()
	}
	if err := m.db.Close(); err != nil {
		m.log.Error("Failed to close database", err)
	}
	m.log.Info("Trade monitor stopped")
}

func (m *TradeMonitor) readGestures(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		ref := strings.TrimSpace(scanner.Text())
		if err := m.Click(ctx, ref); err != nil {
			m.log.Warn("Gesture not delivered", "tab", ref, "error", err.Error())
		}
	}
}

// Pages lists the paths of all monitored pages.
func (m *TradeMonitor) Pages() []string {
	return lo.Map(m.registry.All(), func(t *page.Tab, _ int) string { return t.Path() })
}
