package app

import (
	"context"
	"fmt"
	"time"

	"trade-monitor/internal/ipc"
	"trade-monitor/internal/messaging"
	"trade-monitor/internal/models"
	"trade-monitor/internal/page"
	"trade-monitor/internal/storage"
	"trade-monitor/internal/watcher"
)

// TabNotFoundError is returned when a control command names an unknown tab.
type TabNotFoundError struct {
	Ref string
}

func (e *TabNotFoundError) Error() string {
	if e.Ref == "" {
		return "no active tab"
	}
	return fmt.Sprintf("tab %q not found", e.Ref)
}

// resolve finds a tab by id or page path. An empty ref is the active tab.
func (m *TradeMonitor) resolve(ref string) (*monitor, error) {
	if ref == "" {
		if tab, ok := m.registry.Active(); ok {
			return m.monitors[tab.ID()], nil
		}
		return nil, &TabNotFoundError{}
	}
	if mon, ok := m.monitors[ref]; ok {
		return mon, nil
	}
	for _, tab := range m.registry.All() {
		if tab.Path() == ref {
			return m.monitors[tab.ID()], nil
		}
	}
	return nil, &TabNotFoundError{Ref: ref}
}

// onLoop runs fn on the tab loop and waits for it.
func onLoop(ctx context.Context, mon *monitor, fn func() error) error {
	return mon.tab.Exec(ctx, func(page.Context) error { return fn() })
}

// Toggle flips monitoring, or sets it when on is given, persists the flag and
// tells the tab.
func (m *TradeMonitor) Toggle(ctx context.Context, ref string, on *bool) (bool, error) {
	mon, err := m.resolve(ref)
	if err != nil {
		return false, err
	}

	var current bool
	if err := onLoop(ctx, mon, func() error {
		current = mon.session.Monitoring()
		return nil
	}); err != nil {
		return false, err
	}

	next := !current
	if on != nil {
		next = *on
	}

	path := mon.tab.Path()
	if err := m.db.Set(storage.MonitorKey(path), next); err != nil {
		return current, err
	}
	if err := m.bus.SendToTab(ctx, mon.tab.ID(), messaging.ToggleMonitoring(next)); err != nil {
		return current, err
	}

	m.log.Info("Monitoring toggled", "page", path, "monitoring", next)
	return next, nil
}

func (m *TradeMonitor) SetTheme(ctx context.Context, ref, theme string) error {
	mon, err := m.resolve(ref)
	if err != nil {
		return err
	}
	if err := m.db.Set(storage.PrefsKey(mon.tab.Path()), storage.Prefs{Theme: theme}); err != nil {
		return err
	}
	return m.bus.SendToTab(ctx, mon.tab.ID(), messaging.UpdateTheme(theme))
}

// Reset drops the saved layout and theme of a page.
func (m *TradeMonitor) Reset(ctx context.Context, ref string) error {
	mon, err := m.resolve(ref)
	if err != nil {
		return err
	}
	if err := m.db.ResetPage(mon.tab.Path()); err != nil {
		return err
	}
	return m.bus.SendToTab(ctx, mon.tab.ID(), messaging.ResetAll())
}

func (m *TradeMonitor) Status(ctx context.Context, ref string) (watcher.DebugInfo, error) {
	mon, err := m.resolve(ref)
	if err != nil {
		return watcher.DebugInfo{}, err
	}
	var info watcher.DebugInfo
	err = onLoop(ctx, mon, func() error {
		info = mon.session.DebugInfo()
		return nil
	})
	return info, err
}

func (m *TradeMonitor) History(ctx context.Context, limit int) ([]models.Trade, error) {
	return m.db.GetTrades(limit)
}

// Click delivers a user gesture, which releases sounds held back by autoplay.
func (m *TradeMonitor) Click(ctx context.Context, ref string) error {
	mon, err := m.resolve(ref)
	if err != nil {
		return err
	}
	if !mon.tab.Click() {
		return page.ErrTabClosed
	}
	return nil
}

// Activate makes the tab the one commands and routed trades fall back to.
func (m *TradeMonitor) Activate(ctx context.Context, ref string) error {
	mon, err := m.resolve(ref)
	if err != nil {
		return err
	}
	m.registry.Activate(mon.tab.ID())
	m.log.Info("Tab activated", "tab", mon.tab.ID(), "page", mon.tab.Path())
	return nil
}

func (m *TradeMonitor) Validate(ctx context.Context, ref string) (page.Validation, error) {
	mon, err := m.resolve(ref)
	if err != nil {
		return page.Validation{}, err
	}
	var v page.Validation
	err = onLoop(ctx, mon, func() error {
		v = mon.tab.Document().Validate()
		return nil
	})
	return v, err
}

func (m *TradeMonitor) ReadLast(ctx context.Context, ref string) (models.Trade, error) {
	mon, err := m.resolve(ref)
	if err != nil {
		return models.Trade{}, err
	}
	var trade models.Trade
	err = onLoop(ctx, mon, func() error {
		var err error
		trade, err = mon.session.ReadLast()
		return err
	})
	return trade, err
}

func (m *TradeMonitor) Simulate(ctx context.Context, ref string) (models.Trade, error) {
	mon, err := m.resolve(ref)
	if err != nil {
		return models.Trade{}, err
	}
	var trade models.Trade
	err = onLoop(ctx, mon, func() error {
		var err error
		trade, err = mon.session.Simulate()
		return err
	})
	return trade, err
}

// TestNotification sends a debug trade straight to the background, bypassing
// the session. It must not run on the tab loop: the background executes the
// sound script there.
func (m *TradeMonitor) TestNotification(ctx context.Context, ref string) (messaging.Response, error) {
	mon, err := m.resolve(ref)
	if err != nil {
		return messaging.Response{}, err
	}
	return m.bus.Port(mon.tab.ID()).SendMessage(ctx, messaging.NewTrade(watcher.DebugTrade(time.Now())))
}

func (m *TradeMonitor) Tabs(ctx context.Context) ([]ipc.TabInfo, error) {
	active, _ := m.registry.Active()

	var infos []ipc.TabInfo
	for _, tab := range m.registry.All() {
		mon := m.monitors[tab.ID()]
		info := ipc.TabInfo{
			ID:     tab.ID(),
			URL:    tab.URL().String(),
			Path:   tab.Path(),
			Active: active != nil && active.ID() == tab.ID(),
		}
		if err := onLoop(ctx, mon, func() error {
			info.Monitoring = mon.session.Monitoring()
			return nil
		}); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

var _ ipc.Controller = (*TradeMonitor)(nil)
