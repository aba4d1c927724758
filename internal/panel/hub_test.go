package panel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-monitor/internal/models"
	"trade-monitor/internal/watcher"
	"trade-monitor/pkg/logger"
)

func view(page string, trades int) watcher.View {
	return watcher.View{
		Page:       page,
		Monitoring: true,
		Attached:   true,
		TradeCount: trades,
		Elapsed:    "00:00:05",
		Theme:      watcher.ResolveTheme("matrix"),
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubPushesViews(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.Render(view("/a", 1))

	srv := httptest.NewServer(hub.Mux())
	defer srv.Close()

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got watcher.View
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "/a", got.Page)
	assert.Equal(t, 1, got.TradeCount)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Render(view("/a", 2))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 2, got.TradeCount)
	assert.Equal(t, "The Matrix", got.Theme.Name)
}

func TestHubStatsEndpoint(t *testing.T) {
	hub := NewHub(logger.NewNop())
	hub.Render(view("/b", 4))
	hub.Render(view("/a", 1))

	srv := httptest.NewServer(hub.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var views []watcher.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)
	assert.Equal(t, "/a", views[0].Page)
	assert.Equal(t, 4, views[1].TradeCount)
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub.Mux())
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRenderDoesNotWaitOnStalledClient(t *testing.T) {
	hub := NewHub(logger.NewNop())

	// nothing drains this queue, as with a peer that stopped reading
	stalled := &client{send: make(chan []byte, 1)}
	stalled.send <- []byte("pending")
	hub.mu.Lock()
	hub.clients[stalled] = struct{}{}
	hub.mu.Unlock()

	rendered := make(chan struct{})
	go func() {
		hub.Render(view("/a", 1))
		close(rendered)
	}()

	select {
	case <-rendered:
	case <-time.After(time.Second):
		t.Fatal("Render blocked on a stalled client")
	}
	assert.Equal(t, 0, hub.Clients())
	assert.Len(t, hub.Views(), 1)

	_, open := <-stalled.send
	assert.True(t, open, "queued view is still readable")
	_, open = <-stalled.send
	assert.False(t, open, "send queue is closed once the client is dropped")
}

type countingPresenter struct{ n int }

func (c *countingPresenter) Render(watcher.View) { c.n++ }

func TestPresentersFanOut(t *testing.T) {
	a, b := &countingPresenter{}, &countingPresenter{}
	Presenters{a, b}.Render(view("/a", 0))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

func TestWindowRender(t *testing.T) {
	app := test.NewApp()
	defer app.Quit()

	w := NewWindow(app, fyne.NewSize(300, 200), Actions{}, nil)

	v := view("/a", 3)
	v.Log = []watcher.LogEntry{{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Side: models.SideBuy, Text: "Buy TOKN: $100 @ $20"}}
	w.Render(v)
	w.Render(view("/b", 9))

	assert.Equal(t, "/a: monitoring", w.status.Text)
	assert.Equal(t, "Trades: 3", w.trades.Text)
	assert.Equal(t, "Theme: The Matrix", w.theme.Text)
	assert.Equal(t, "[12:00:00] BUY Buy TOKN: $100 @ $20", w.logEntries.Text())
	assert.Equal(t, []string{"/a", "/b"}, w.pages.Options)

	w.selectPage("/b")
	assert.Equal(t, "Trades: 9", w.trades.Text)

	w.AddDebug("line one")
	assert.Equal(t, "line one", w.debugArea.Text())
	n, err := NewDebugWriter(w).Write([]byte("  line two \n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, "line one\nline two", w.debugArea.Text())

	w.ClearDebug()
	assert.Empty(t, w.debugArea.Text())

	w.Close()
}
