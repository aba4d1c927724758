package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"trade-monitor/internal/messaging"
	"trade-monitor/internal/page"
	"trade-monitor/pkg/logger"
)

type fakeTimer struct {
	at   time.Time
	fn   func()
	done bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.done
	t.done = true
	return was
}

// fakeLoop is a manual clock standing in for a tab loop. Timers only fire from
// Advance, and posted callbacks only run from Drain, both on the test goroutine.
type fakeLoop struct {
	now    time.Time
	timers []*fakeTimer

	mu     sync.Mutex
	posted []func()
	signal chan struct{}
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		now:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		signal: make(chan struct{}, 64),
	}
}

func (l *fakeLoop) Now() time.Time { return l.now }

func (l *fakeLoop) AfterFunc(d time.Duration, fn func()) page.Timer {
	t := &fakeTimer{at: l.now.Add(d), fn: fn}
	l.timers = append(l.timers, t)
	return t
}

func (l *fakeLoop) Post(fn func()) bool {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.signal <- struct{}{}
	return true
}

func (l *fakeLoop) Advance(d time.Duration) {
	target := l.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range l.timers {
			if !t.done && !t.at.After(target) && (next == nil || t.at.Before(next.at)) {
				next = t
			}
		}
		if next == nil {
			break
		}
		l.now = next.at
		next.done = true
		next.fn()
	}
	l.now = target
}

// Drain waits for n posted callbacks and runs them.
func (l *fakeLoop) Drain(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-l.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d posted callbacks, got %d", n, i)
		}
	}
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range posted {
		fn()
	}
}

type fakeDispatcher struct {
	mu   sync.Mutex
	resp messaging.Response
	err  error
	sent chan messaging.Message
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		resp: messaging.Response{Success: true, NotificationID: "n-1"},
		sent: make(chan messaging.Message, 16),
	}
}

func (d *fakeDispatcher) SendMessage(ctx context.Context, msg messaging.Message) (messaging.Response, error) {
	d.sent <- msg
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resp, d.err
}

func (d *fakeDispatcher) next(t *testing.T) messaging.Message {
	t.Helper()
	select {
	case msg := <-d.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
	}
	return messaging.Message{}
}

type recordingPresenter struct {
	views []View
}

func (p *recordingPresenter) Render(v View) {
	p.views = append(p.views, v)
}

func (p *recordingPresenter) last() View {
	if len(p.views) == 0 {
		return View{}
	}
	return p.views[len(p.views)-1]
}

type harness struct {
	doc        *page.Document
	loop       *fakeLoop
	dispatcher *fakeDispatcher
	presenter  *recordingPresenter
	session    *Session
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		doc:        page.NewDocument("", ""),
		loop:       newFakeLoop(),
		dispatcher: newFakeDispatcher(),
		presenter:  &recordingPresenter{},
	}
	opts := Options{
		Name:       "/trades",
		Document:   h.doc,
		Scheduler:  h.loop,
		Dispatcher: h.dispatcher,
		Presenter:  h.presenter,
		Log:        logger.NewNop(),
		Now:        h.loop.Now,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.doc = opts.Document
	h.session = NewSession(opts)
	return h
}

func (h *harness) apply(t *testing.T, rows ...string) {
	t.Helper()
	root, err := html.Parse(strings.NewReader(pageHTML(rows...)))
	require.NoError(t, err)
	h.doc.Apply(root)
}

func (h *harness) applyRaw(t *testing.T, markup string) {
	t.Helper()
	root, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	h.doc.Apply(root)
}

func tradeRow(typ, token, total, amount, price, ago string) string {
	return fmt.Sprintf(`<tr><td><div>%s</div></td><td>%s</td><td><div>%s</div></td>`+
		`<td><div>%s</div></td><td><div>%s</div></td><td></td><td>%s</td></tr>`,
		typ, token, total, amount, price, ago)
}

func simpleRow(token string) string {
	return tradeRow("Sell", token, "$1", "1", "$1", "5m ago")
}

func pageHTML(rows ...string) string {
	return `<html><body><div id="tabs-leftTabs--tabpanel-2"><div class="g-table-content">` +
		`<table><tbody>` + strings.Join(rows, "") + `</tbody></table></div></div></body></html>`
}
