package watcher

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"trade-monitor/internal/messaging"
	"trade-monitor/internal/models"
	"trade-monitor/internal/page"
	"trade-monitor/internal/parser"
	"trade-monitor/pkg/core"
)

const (
	DefaultInitialDelay  = 3 * time.Second
	DefaultRetryInterval = 500 * time.Millisecond
	DefaultStatsInterval = time.Second
	DefaultLogCapacity   = 50
)

// Scheduler is the event loop a session lives on. *page.Tab implements it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) page.Timer
	Post(fn func()) bool
}

// Dispatcher forwards trades to the background. *messaging.Port implements it.
type Dispatcher interface {
	SendMessage(ctx context.Context, msg messaging.Message) (messaging.Response, error)
}

// Table is the observed table body. *page.TableBody implements it.
type Table interface {
	Node() *html.Node
	FirstRow() *html.Node
	Contains(n *html.Node) bool
	OnRowsAppended(handler func([]*html.Node)) func()
}

// Presenter receives a fresh View on every stats tick and state change.
type Presenter interface {
	Render(v View)
}

type Options struct {
	Name          string
	Document      *page.Document
	Scheduler     Scheduler
	Dispatcher    Dispatcher
	Presenter     Presenter
	Log           core.Logger
	Policy        AcceptPolicy
	InitialDelay  time.Duration
	RetryInterval time.Duration
	StatsInterval time.Duration
	LogCapacity   int
	Now           func() time.Time
}

// Session is the monitoring state of one tab. All methods must run on the tab's
// loop (see Scheduler), which is what keeps the session free of locks.
type Session struct {
	name       string
	doc        *page.Document
	sched      Scheduler
	dispatcher Dispatcher
	presenter  Presenter
	log        core.Logger
	policy     AcceptPolicy
	now        func() time.Time

	initialDelay  time.Duration
	retryInterval time.Duration
	statsInterval time.Duration

	monitoring bool
	suppressed bool
	gen        int
	timers     map[string]page.Timer

	table     Table
	cancel    func()
	processed map[*html.Node]struct{}

	stats  *Stats
	trades tradeLog
	theme  Theme
}

func NewSession(opts Options) *Session {
	if opts.Policy == nil {
		opts.Policy = ContentEquality{}
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	if opts.LogCapacity <= 0 {
		opts.LogCapacity = DefaultLogCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Session{
		name:          opts.Name,
		doc:           opts.Document,
		sched:         opts.Scheduler,
		dispatcher:    opts.Dispatcher,
		presenter:     opts.Presenter,
		log:           opts.Log,
		policy:        opts.Policy,
		now:           opts.Now,
		initialDelay:  opts.InitialDelay,
		retryInterval: opts.RetryInterval,
		statsInterval: opts.StatsInterval,
		processed:     make(map[*html.Node]struct{}),
		timers:        make(map[string]page.Timer),
		stats:         newStats(opts.Now(), opts.LogCapacity),
		trades:        tradeLog{capacity: opts.LogCapacity},
		theme:         ResolveTheme(DefaultTheme),
	}
}

func (s *Session) Monitoring() bool {
	return s.monitoring
}

func (s *Session) Attached() bool {
	return s.table != nil
}

// Start turns monitoring on. Rows already on the page are absorbed by the initial
// delay window; the table is attached once the document has loaded.
func (s *Session) Start() {
	if s.monitoring {
		return
	}
	s.gen++
	s.monitoring = true
	s.suppressed = true
	s.stats = newStats(s.now(), s.trades.capacity)
	clear(s.processed)

	s.log.Info("Monitoring started",
		"page", s.name,
		"policy", s.policy.Name(),
		"initial_delay", s.initialDelay.String())

	gen := s.gen
	s.after("initial-delay", s.initialDelay, gen, func() {
		s.suppressed = false
		s.log.Debug("Initial delay completed", "page", s.name)
	})
	s.scheduleStats(gen)
	s.doc.OnLoad(func() { s.tryAttach(gen) })
	s.render()
}

// Stop turns monitoring off and detaches immediately. Dispatches already in
// flight are left to finish.
func (s *Session) Stop() {
	if !s.monitoring {
		return
	}
	s.gen++
	s.monitoring = false
	s.suppressed = false
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.Detach()
	s.log.Info("Monitoring stopped", "page", s.name, "trades", s.stats.TradeCount)
	s.render()
}

// after replaces the pending timer registered under key.
func (s *Session) after(key string, d time.Duration, gen int, fn func()) {
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = s.sched.AfterFunc(d, func() {
		if s.gen != gen {
			return
		}
		delete(s.timers, key)
		fn()
	})
}

func (s *Session) scheduleStats(gen int) {
	s.after("stats", s.statsInterval, gen, func() {
		s.checkTable(gen)
		s.render()
		s.scheduleStats(gen)
	})
}

// checkTable reattaches when the page replaced or dropped the observed table body.
func (s *Session) checkTable(gen int) {
	if s.table == nil {
		return
	}
	body := s.doc.TableBody()
	if body != nil && body.Node() == s.table.Node() {
		return
	}
	s.log.Info("Trade table replaced, reattaching", "page", s.name)
	s.Detach()
	s.tryAttach(gen)
}

func (s *Session) tryAttach(gen int) {
	if s.gen != gen || !s.monitoring || s.table != nil {
		return
	}
	if body := s.doc.TableBody(); body != nil && s.Attach(body) {
		return
	}
	s.log.Debug("Trade table not found, retrying", "page", s.name, "in", s.retryInterval.String())
	s.after("attach-retry", s.retryInterval, gen, func() { s.tryAttach(gen) })
}

// Attach starts observing table. It returns false and does nothing when table is nil.
func (s *Session) Attach(table Table) bool {
	if table == nil {
		return false
	}
	if s.cancel != nil {
		s.Detach()
	}
	clear(s.processed)
	s.table = table
	s.cancel = table.OnRowsAppended(s.notifyBatch)
	s.log.Info("Observing trade table", "page", s.name)
	return true
}

// Detach stops observing and forgets processed rows.
func (s *Session) Detach() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.table = nil
	clear(s.processed)
}

func (s *Session) notifyBatch(nodes []*html.Node) {
	for _, n := range nodes {
		s.Notify(n)
	}
}

// Notify handles one inserted node. Only a row that matches the current first
// row of the table becomes a trade, and only once.
func (s *Session) Notify(node *html.Node) {
	if !s.monitoring || s.table == nil {
		return
	}
	if !page.IsRow(node) {
		return
	}
	if _, seen := s.processed[node]; seen {
		return
	}
	if s.doc.ReadyState() != page.StateComplete {
		return
	}
	if !s.table.Contains(node) {
		return
	}

	first := s.table.FirstRow()
	if first == nil {
		return
	}
	if !s.policy.Accept(node, first) {
		s.log.Debug("Skipping non-matching row", "page", s.name, "policy", s.policy.Name())
		return
	}

	s.processed[node] = struct{}{}

	trade, err := parser.Parse(node, s.now())
	if err != nil {
		s.log.Error("Failed to parse row", err, "page", s.name, "html", page.OuterHTML(node))
		s.stats.addError(s.now(), err.Error())
		s.render()
		return
	}

	if s.suppressed {
		s.log.Debug("Trade ignored during initial delay", "page", s.name, "trade", trade.Summary())
		return
	}

	s.handleTrade(trade)
}

func (s *Session) handleTrade(trade models.Trade) {
	s.trades.prepend(LogEntry{Time: s.now(), Side: trade.Side(), Text: trade.Summary()})
	s.stats.recordTrade(trade)
	s.log.Info("New trade detected",
		"page", s.name,
		"type", trade.Type,
		"token", trade.TokenName,
		"total", trade.TotalUSD,
		"price", trade.Price,
		"time", trade.Time)

	s.dispatch(trade)
	s.render()
}

// dispatch sends the trade without waiting. The outcome is recorded back on the loop.
func (s *Session) dispatch(trade models.Trade) {
	if s.dispatcher == nil {
		return
	}
	msg := messaging.NewTrade(trade)
	go func() {
		resp, err := s.dispatcher.SendMessage(context.Background(), msg)
		s.sched.Post(func() { s.recordResponse(trade, resp, err) })
	}()
}

func (s *Session) recordResponse(trade models.Trade, resp messaging.Response, err error) {
	switch {
	case err != nil:
		s.log.Error("Failed to dispatch trade", err, "page", s.name, "trade", trade.Summary())
		s.stats.addError(s.now(), err.Error())
		s.render()
	case !resp.Success:
		s.log.Warn("Background rejected trade", "page", s.name, "trade", trade.Summary(), "error", resp.Error)
		s.stats.addError(s.now(), resp.Error)
		s.render()
	case resp.SoundError != "":
		s.log.Warn("Trade notified without sound",
			"page", s.name,
			"notification", resp.NotificationID,
			"sound_error", resp.SoundError)
	default:
		s.log.Debug("Trade dispatched", "page", s.name, "notification", resp.NotificationID)
	}
}

// HandleMessage applies a message pushed to this tab.
func (s *Session) HandleMessage(msg messaging.Message) {
	switch msg.Action {
	case messaging.ActionToggleMonitoring:
		if msg.IsMonitoring != nil && *msg.IsMonitoring {
			s.Start()
		} else {
			s.Stop()
		}
	case messaging.ActionUpdateTheme:
		s.SetTheme(msg.Theme)
	case messaging.ActionResetAll:
		s.SetTheme(DefaultTheme)
	default:
		s.log.Debug("Ignoring message", "page", s.name, "action", msg.Action)
	}
}

func (s *Session) SetTheme(key string) {
	s.theme = ResolveTheme(key)
	s.render()
}

func (s *Session) Theme() Theme {
	return s.theme
}
