package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-monitor/pkg/config"
	"trade-monitor/pkg/logger"
)

type notification struct {
	title, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Create(title, body string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{title, body})
	return fmt.Sprintf("n-%d", len(n.sent)), nil
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	played []string
}

func (s *fakeSpeaker) Play(asset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, asset)
	return nil
}

func (s *fakeSpeaker) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

func row(typ, token, ago string) string {
	return fmt.Sprintf(`<tr><td><div>%s</div></td><td>%s</td><td><div>$100</div></td>`+
		`<td><div>5</div></td><td><div>$20</div></td><td>0x1</td><td>%s</td></tr>`, typ, token, ago)
}

// writePage replaces the page atomically so a poll never sees half a file.
func writePage(t *testing.T, path string, rows ...string) {
	t.Helper()
	body := `<html><body><div id="tabs-leftTabs--tabpanel-2"><div class="g-table-content">` +
		`<table><tbody>` + strings.Join(rows, "") + `</tbody></table></div></div></body></html>`
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

type fixture struct {
	pagePath string
	extra    []string
	cfg      *config.Config
	notifier *fakeNotifier
	speaker  *fakeSpeaker
}

// newFixture configures one page plus a page for each extra name.
func newFixture(t *testing.T, extra ...string) *fixture {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	pagesDir := t.TempDir()
	pagePath := filepath.Join(pagesDir, "trades.html")
	writePage(t, pagePath, row("Sell", "OLD", "5m ago"))

	pages := []string{fmt.Sprintf(`{"url": "file://%s"}`, pagePath)}
	var extraPaths []string
	for _, name := range extra {
		p := filepath.Join(pagesDir, name)
		writePage(t, p, row("Sell", "OLD", "5m ago"))
		pages = append(pages, fmt.Sprintf(`{"url": "file://%s"}`, p))
		extraPaths = append(extraPaths, p)
	}

	dir := filepath.Join(home, "trade-monitor")
	require.NoError(t, os.MkdirAll(dir, 0755))
	cfgJSON := fmt.Sprintf(`{
		"pages": [%s],
		"poll_interval": "20ms",
		"initial_delay": "60ms",
		"attach_retry_interval": "20ms",
		"stats_interval": "50ms",
		"socket_path": "",
		"panel_addr": ""
	}`, strings.Join(pages, ", "))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfgJSON), 0644))

	assets := fstest.MapFS{"assets/buy.wav": {Data: []byte("x")}}
	cfg, err := config.FindConfig("", logger.NewNop(), assets, nil)
	require.NoError(t, err)

	return &fixture{pagePath: pagePath, extra: extraPaths, cfg: cfg, notifier: &fakeNotifier{}, speaker: &fakeSpeaker{}}
}

func (f *fixture) start(t *testing.T) (*TradeMonitor, func()) {
	t.Helper()
	m, err := New(f.cfg, logger.NewNop(), Options{Notifier: f.notifier, Speaker: f.speaker})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	return m, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("trade monitor did not stop")
		}
	}
}

func TestEndToEndTrade(t *testing.T) {
	f := newFixture(t)
	m, stop := f.start(t)
	defer stop()
	ctx := context.Background()

	on := true
	state, err := m.Toggle(ctx, "", &on)
	require.NoError(t, err)
	assert.True(t, state)

	require.Eventually(t, func() bool {
		info, err := m.Status(ctx, "")
		return err == nil && info.Monitoring && info.Attached && !info.Suppressed
	}, 3*time.Second, 20*time.Millisecond)

	assert.Empty(t, f.notifier.all(), "rows present at start are not trades")

	writePage(t, f.pagePath, row("Buy", "TOKN", "1m ago"), row("Sell", "OLD", "5m ago"))

	require.Eventually(t, func() bool { return len(f.notifier.all()) == 1 }, 3*time.Second, 20*time.Millisecond)
	n := f.notifier.all()[0]
	assert.Equal(t, "Buy Alert", n.title)
	assert.Equal(t, "TOKN: $100 @ $20", n.body)
	assert.Equal(t, []string{"buy.wav"}, f.speaker.all())

	require.Eventually(t, func() bool {
		trades, err := m.History(ctx, 10)
		return err == nil && len(trades) == 1
	}, 2*time.Second, 20*time.Millisecond)

	info, err := m.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, info.TradeCount)
	require.NotNil(t, info.LastTrade)
	assert.Equal(t, "TOKN", info.LastTrade.TokenName)

	last, err := m.ReadLast(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "TOKN", last.TokenName)

	v, err := m.Validate(ctx, "")
	require.NoError(t, err)
	assert.True(t, v.TBody)
	assert.Equal(t, 2, v.Rows)
}

func TestToggleIsPersistedAndRestored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, stop := f.start(t)
	state, err := m.Toggle(ctx, f.pagePath, nil)
	require.NoError(t, err)
	assert.True(t, state)
	require.NoError(t, m.SetTheme(ctx, "", "matrix"))
	stop()

	m, stop = f.start(t)
	defer stop()

	require.Eventually(t, func() bool {
		info, err := m.Status(ctx, "")
		return err == nil && info.Monitoring && info.Theme == "matrix"
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, m.Reset(ctx, ""))
	require.Eventually(t, func() bool {
		info, err := m.Status(ctx, "")
		return err == nil && info.Theme == "default"
	}, 2*time.Second, 20*time.Millisecond)

	state, err = m.Toggle(ctx, "", nil)
	require.NoError(t, err)
	assert.False(t, state)
}

func TestTestNotificationBypassesSession(t *testing.T) {
	f := newFixture(t)
	m, stop := f.start(t)
	defer stop()
	ctx := context.Background()

	resp, err := m.TestNotification(ctx, "")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "n-1", resp.NotificationID)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "SELL Alert", sent[0].title)
	assert.Equal(t, []string{"sell.wav"}, f.speaker.all())

	info, err := m.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, info.TradeCount)
}

func TestSimulateRequiresMonitoring(t *testing.T) {
	f := newFixture(t)
	m, stop := f.start(t)
	defer stop()
	ctx := context.Background()

	_, err := m.Simulate(ctx, "")
	assert.Error(t, err)

	on := true
	_, err = m.Toggle(ctx, "", &on)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := m.Simulate(ctx, "")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool { return len(f.notifier.all()) == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestTabsAndResolve(t *testing.T) {
	f := newFixture(t)
	m, stop := f.start(t)
	defer stop()
	ctx := context.Background()

	tabs, err := m.Tabs(ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 1)
	assert.True(t, tabs[0].Active)
	assert.Equal(t, f.pagePath, tabs[0].Path)
	assert.Equal(t, []string{f.pagePath}, m.Pages())

	err = m.Click(ctx, "/nope")
	var notFound *TabNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.NoError(t, m.Click(ctx, tabs[0].ID))
}

func TestActivateChangesDefaultTab(t *testing.T) {
	f := newFixture(t, "other.html")
	m, stop := f.start(t)
	defer stop()
	ctx := context.Background()

	info, err := m.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, f.pagePath, info.Page)

	require.NoError(t, m.Activate(ctx, f.extra[0]))

	tabs, err := m.Tabs(ctx)
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.False(t, tabs[0].Active)
	assert.True(t, tabs[1].Active)

	info, err = m.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, f.extra[0], info.Page)

	var notFound *TabNotFoundError
	assert.ErrorAs(t, m.Activate(ctx, "/nope"), &notFound)
}

func TestNewRequiresPages(t *testing.T) {
	cfg, err := config.DefaultConfig(logger.NewNop())
	require.NoError(t, err)
	_, err = New(cfg, logger.NewNop(), Options{})
	assert.Error(t, err)
}
