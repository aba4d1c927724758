package page

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"trade-monitor/pkg/core"
)

// AutoplayPolicy decides whether a tab may start audio without a prior user gesture.
type AutoplayPolicy string

const (
	AutoplayAllow   AutoplayPolicy = "allow"
	AutoplayGesture AutoplayPolicy = "gesture"
)

func ParseAutoplayPolicy(s string) (AutoplayPolicy, error) {
	switch AutoplayPolicy(strings.ToLower(s)) {
	case AutoplayAllow, "":
		return AutoplayAllow, nil
	case AutoplayGesture:
		return AutoplayGesture, nil
	}
	return "", fmt.Errorf("unknown autoplay policy %q", s)
}

// Speaker plays a named sound asset without blocking.
type Speaker interface {
	Play(asset string) error
}

// Context is what a script executed inside a tab can use.
type Context interface {
	ID() string
	PlaySound(asset string) error
	OnNextClick(fn func())
}

type TabOptions struct {
	ID           string
	URL          string
	Selector     string
	KeyAttr      string
	PollInterval time.Duration
	Autoplay     AutoplayPolicy
	Speaker      Speaker
	Source       Source
	Log          core.Logger
}

// Tab is one page context: it owns a live Document and an event loop. Every
// callback that touches page state (mutation handlers, timers, scripts, clicks)
// runs on that loop, one at a time.
type Tab struct {
	id       string
	url      *url.URL
	source   Source
	doc      *Document
	log      core.Logger
	speaker  Speaker
	autoplay AutoplayPolicy
	interval time.Duration

	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once

	// loop-owned
	activated     bool
	clickHandlers []func()
}

func NewTab(opts TabOptions) (*Tab, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", opts.URL, err)
	}

	source := opts.Source
	if source == nil {
		source, err = NewSource(u, nil)
		if err != nil {
			return nil, err
		}
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Autoplay == "" {
		opts.Autoplay = AutoplayAllow
	}
	id := opts.ID
	if id == "" {
		id = u.String()
	}

	return &Tab{
		id:       id,
		url:      u,
		source:   source,
		doc:      NewDocument(opts.Selector, opts.KeyAttr),
		log:      opts.Log,
		speaker:  opts.Speaker,
		autoplay: opts.Autoplay,
		interval: opts.PollInterval,
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
	}, nil
}

func (t *Tab) ID() string {
	return t.id
}

func (t *Tab) URL() *url.URL {
	return t.url
}

// Path is the page path used to scope persisted preferences.
func (t *Tab) Path() string {
	if t.url.Path == "" {
		return "/"
	}
	return t.url.Path
}

// Document must only be used from the tab loop.
func (t *Tab) Document() *Document {
	return t.doc
}

// Run drives the event loop and the page poller until ctx is done.
func (t *Tab) Run(ctx context.Context) error {
	t.log.Info("Tab opened", "tab", t.id, "url", t.url.String())
	defer t.close()

	go t.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			t.log.Info("Tab closed", "tab", t.id)
			return nil
		case fn := <-t.tasks:
			fn()
		}
	}
}

func (t *Tab) close() {
	t.stopOnce.Do(func() { close(t.done) })
}

func (t *Tab) poll(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var lastError error
	var lastErrorTime time.Time

	for {
		root, err := t.source.Load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if lastError == nil || err.Error() != lastError.Error() ||
				time.Since(lastErrorTime) > time.Minute {
				t.log.Error("Failed to load page", err, "tab", t.id)
				lastError = err
				lastErrorTime = time.Now()
			}
		} else {
			lastError = nil
			t.Post(func() { t.doc.Apply(root) })
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Post queues fn on the tab loop. It returns false once the tab is closed.
func (t *Tab) Post(fn func()) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.tasks <- fn:
		return true
	case <-t.done:
		return false
	}
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc runs fn on the tab loop after d.
func (t *Tab) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { t.Post(fn) })
}

// Exec runs a script on the tab loop and waits for its result.
func (t *Tab) Exec(ctx context.Context, script func(Context) error) error {
	result := make(chan error, 1)
	if !t.Post(func() { result <- script(t) }) {
		return ErrTabClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrTabClosed
	}
}

// PlaySound starts an asset through the tab's audio output. Loop only.
func (t *Tab) PlaySound(asset string) error {
	if t.autoplay == AutoplayGesture && !t.activated {
		return &PlaybackBlockedError{TabID: t.id, Asset: asset}
	}
	if t.speaker == nil {
		return ErrNoAudioOutput
	}
	return t.speaker.Play(asset)
}

// OnNextClick registers a one-shot handler for the next user gesture. Loop only.
func (t *Tab) OnNextClick(fn func()) {
	t.clickHandlers = append(t.clickHandlers, fn)
}

// Click delivers a user gesture to the tab.
func (t *Tab) Click() bool {
	return t.Post(func() {
		t.activated = true
		handlers := t.clickHandlers
		t.clickHandlers = nil
		t.log.Debug("User gesture", "tab", t.id, "pending_handlers", len(handlers))
		for _, fn := range handlers {
			fn()
		}
	})
}
