package background

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trade-monitor/internal/messaging"
	"trade-monitor/internal/models"
	"trade-monitor/internal/page"
	"trade-monitor/pkg/core"
	"trade-monitor/pkg/sound"
)

// Tab is a page context the service can run scripts in.
type Tab interface {
	ID() string
	Exec(ctx context.Context, script func(page.Context) error) error
}

type Tabs interface {
	Get(id string) (Tab, bool)
	Active() (Tab, bool)
}

type Notifier interface {
	Create(title, body string) (string, error)
}

type History interface {
	AddTrade(trade models.Trade) error
}

// Service is the privileged side of the pipeline. It owns sound routing,
// desktop notifications and the trade history.
type Service struct {
	tabs     Tabs
	notifier Notifier
	history  History
	log      core.Logger

	wg sync.WaitGroup
}

func New(tabs Tabs, notifier Notifier, history History, log core.Logger) *Service {
	return &Service{
		tabs:     tabs,
		notifier: notifier,
		history:  history,
		log:      log,
	}
}

// HandleMessage is installed as the bus handler.
func (s *Service) HandleMessage(ctx context.Context, sender messaging.Sender, msg messaging.Message) messaging.Response {
	switch msg.Action {
	case messaging.ActionNewTrade:
		if msg.Trade == nil {
			return messaging.Response{Success: false, Error: "NEW_TRADE without trade"}
		}
		return s.handleNewTrade(ctx, sender, *msg.Trade)
	default:
		s.log.Debug("Ignoring message", "action", msg.Action, "tab", sender.TabID)
		return messaging.Response{Success: false, Error: fmt.Sprintf("unsupported action %s", msg.Action)}
	}
}

func (s *Service) handleNewTrade(ctx context.Context, sender messaging.Sender, trade models.Trade) messaging.Response {
	s.log.Info("Received trade",
		"tab", sender.TabID,
		"type", trade.Type,
		"token", trade.TokenName,
		"total", trade.TotalUSD,
		"price", trade.Price)

	s.persist(trade)

	tab, err := s.resolveTab(sender)
	if err != nil {
		s.log.Error("Cannot route trade", err, "trade", trade.Summary())
		return messaging.Response{Success: false, Error: err.Error()}
	}

	soundErr := s.playSound(ctx, tab, trade)
	if soundErr != nil {
		s.log.Error("Sound playback failed", soundErr, "tab", tab.ID(), "trade", trade.Summary())
	}

	id, err := s.notifier.Create(trade.NotificationTitle(), trade.NotificationBody())
	if err != nil {
		nerr := &NotificationCreationError{Err: err}
		s.log.Error("Notification creation failed", nerr, "trade", trade.Summary())
		resp := messaging.Response{Success: false, Error: nerr.Error()}
		if soundErr != nil {
			resp.SoundError = soundErr.Error()
		}
		return resp
	}

	s.log.Info("Notification created", "id", id, "title", trade.NotificationTitle())
	resp := messaging.Response{Success: true, NotificationID: id}
	if soundErr != nil {
		resp.SoundError = soundErr.Error()
	}
	return resp
}

// persist records the trade independently of sound and notification.
func (s *Service) persist(trade models.Trade) {
	if s.history == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.history.AddTrade(trade); err != nil {
			s.log.Error("Failed to store trade", err, "trade", trade.Summary())
		}
	}()
}

// Wait blocks until pending history writes are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) resolveTab(sender messaging.Sender) (Tab, error) {
	if sender.TabID != "" {
		if tab, ok := s.tabs.Get(sender.TabID); ok {
			return tab, nil
		}
	}
	if tab, ok := s.tabs.Active(); ok {
		return tab, nil
	}
	return nil, &DispatchRoutingError{SenderTabID: sender.TabID}
}

// AssetFor picks the sound for a trade side.
func AssetFor(trade models.Trade) (string, error) {
	switch trade.Side() {
	case models.SideBuy:
		return sound.BuyAsset, nil
	case models.SideSell:
		return sound.SellAsset, nil
	}
	return "", fmt.Errorf("no sound for trade type %q", trade.Type)
}

// playSound runs playback inside the tab. A blocked autoplay is deferred to the
// tab's next user gesture and is not an error.
func (s *Service) playSound(ctx context.Context, tab Tab, trade models.Trade) error {
	asset, err := AssetFor(trade)
	if err != nil {
		return err
	}

	err = tab.Exec(ctx, func(c page.Context) error {
		err := c.PlaySound(asset)
		var blocked *page.PlaybackBlockedError
		if errors.As(err, &blocked) {
			c.OnNextClick(func() {
				if err := c.PlaySound(asset); err != nil {
					s.log.Error("Deferred sound failed", err, "tab", c.ID(), "asset", asset)
					return
				}
				s.log.Debug("Deferred sound played", "tab", c.ID(), "asset", asset)
			})
		}
		return err
	})

	var blocked *page.PlaybackBlockedError
	if errors.As(err, &blocked) {
		s.log.Warn("Audio autoplay blocked, will play on next user interaction",
			"tab", tab.ID(),
			"asset", asset)
		return nil
	}
	return err
}

// RegistryTabs exposes a page.Registry as Tabs.
type RegistryTabs struct {
	Registry *page.Registry
}

func (r RegistryTabs) Get(id string) (Tab, bool) {
	t, ok := r.Registry.Get(id)
	if !ok {
		return nil, false
	}
	return t, true
}

func (r RegistryTabs) Active() (Tab, bool) {
	t, ok := r.Registry.Active()
	if !ok {
		return nil, false
	}
	return t, true
}
