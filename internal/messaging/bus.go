package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"trade-monitor/pkg/core"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrResponseTimeout = errors.New("no response from background before timeout")
	ErrNoReceiver      = errors.New("receiving end does not exist")
	ErrBusClosed       = errors.New("message bus closed")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler answers requests on the background side.
type Handler func(ctx context.Context, sender Sender, msg Message) Response

// TabListener receives messages pushed to one tab. It must not block.
type TabListener func(msg Message)

// Bus joins the page side and the background. Every message is copied through
// its JSON form so the two sides never share memory.
type Bus struct {
	mu      sync.RWMutex
	handler Handler
	tabs    map[string]map[string]TabListener
	timeout time.Duration
	log     core.Logger

	closed   bool
	inflight sync.WaitGroup
}

func NewBus(timeout time.Duration, log core.Logger) *Bus {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bus{
		tabs:    make(map[string]map[string]TabListener),
		timeout: timeout,
		log:     log,
	}
}

// Listen installs the background handler, replacing any previous one.
func (b *Bus) Listen(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// SendMessage delivers msg to the background and waits for its response. Each
// request is handled on its own goroutine. A handler that outlives the timeout is
// left running but its answer is dropped.
func (b *Bus) SendMessage(ctx context.Context, sender Sender, msg Message) (Response, error) {
	var in Message
	if err := clone(msg, &in); err != nil {
		return Response{}, err
	}

	b.mu.RLock()
	h, closed := b.handler, b.closed
	if !closed && h != nil {
		b.inflight.Add(1)
	}
	b.mu.RUnlock()
	if closed {
		return Response{}, ErrBusClosed
	}
	if h == nil {
		return Response{}, ErrNoReceiver
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan []byte, 1)
	go func() {
		defer b.inflight.Done()
		resp := h(ctx, sender, in)
		data, err := json.Marshal(resp)
		if err != nil {
			b.log.Error("Failed to encode response", err, "action", in.Action)
			data = nil
		}
		done <- data
	}()

	select {
	case data := <-done:
		var resp Response
		if data == nil {
			return resp, fmt.Errorf("response for %s could not be encoded", in.Action)
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
		return resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.log.Warn("Background did not answer in time",
				"action", in.Action,
				"tab", sender.TabID,
				"timeout", b.timeout.String())
			return Response{}, ErrResponseTimeout
		}
		return Response{}, ctx.Err()
	}
}

// Close refuses new requests and waits for handlers already running.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.inflight.Wait()
}

// ListenTab subscribes to messages pushed to tabID. The returned func removes it.
func (b *Bus) ListenTab(tabID string, l TabListener) func() {
	id := uuid.NewString()

	b.mu.Lock()
	if b.tabs[tabID] == nil {
		b.tabs[tabID] = make(map[string]TabListener)
	}
	b.tabs[tabID][id] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.tabs[tabID], id)
		if len(b.tabs[tabID]) == 0 {
			delete(b.tabs, tabID)
		}
	}
}

// SendToTab pushes msg to every listener of tabID.
func (b *Bus) SendToTab(ctx context.Context, tabID string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	listeners := make([]TabListener, 0, len(b.tabs[tabID]))
	for _, l := range b.tabs[tabID] {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	if len(listeners) == 0 {
		return ErrNoReceiver
	}

	for _, l := range listeners {
		var out Message
		if err := clone(msg, &out); err != nil {
			return err
		}
		l(out)
	}
	return nil
}

// Port binds a sender so page-side code does not need to know its own identity.
func (b *Bus) Port(tabID string) *Port {
	return &Port{bus: b, sender: Sender{TabID: tabID}}
}

type Port struct {
	bus    *Bus
	sender Sender
}

func (p *Port) SendMessage(ctx context.Context, msg Message) (Response, error) {
	return p.bus.SendMessage(ctx, p.sender, msg)
}

func clone(in Message, out *Message) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", in.Action, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s message: %w", in.Action, err)
	}
	return nil
}
