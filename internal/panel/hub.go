package panel

import (
	"context"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"trade-monitor/internal/watcher"
	"trade-monitor/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait = time.Second
	// sendBuffer is how many views a client may fall behind before it is dropped.
	sendBuffer = 64
)

// client is one websocket connection. Its writer goroutine drains send, so a
// slow client never holds up Render.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writeLoop(log core.Logger) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug("Websocket write failed", "error", err.Error())
			return
		}
	}
}

// Hub keeps the latest view of every page and pushes each new one to the
// connected websocket clients.
type Hub struct {
	log      core.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  map[string]watcher.View
}

func NewHub(log core.Logger) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
		latest:   make(map[string]watcher.View),
	}
}

// Render implements watcher.Presenter. It never waits on a client.
func (h *Hub) Render(v watcher.View) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to marshal view", err, "page", v.Page)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[v.Page] = v
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("Dropping slow websocket client")
			h.removeLocked(c)
		}
	}
}

// removeLocked unregisters c and stops its writer. h.mu must be held.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Views returns the latest view of every page, sorted by page.
func (h *Hub) Views() []watcher.View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewsLocked()
}

func (h *Hub) viewsLocked() []watcher.View {
	views := make([]watcher.View, 0, len(h.latest))
	for _, v := range h.latest {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Page < views[j].Page })
	return views
}

// Clients is the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler accepts websocket connections. New clients get the current views
// straight away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error("Websocket upgrade failed", err)
			return
		}

		c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

		h.mu.Lock()
		for _, v := range h.viewsLocked() {
			msg, err := json.Marshal(v)
			if err != nil {
				continue
			}
			select {
			case c.send <- msg:
			default:
			}
		}
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		h.log.Debug("Websocket client connected", "remote_addr", r.RemoteAddr)

		go c.writeLoop(h.log)

		// read loop only notices the close
		go func() {
			defer func() {
				h.mu.Lock()
				h.removeLocked(c)
				h.mu.Unlock()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}

func (h *Hub) statsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.Views())
}

// Mux wires the panel endpoints.
func (h *Hub) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.Handler())
	mux.HandleFunc("/stats", h.statsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the panel HTTP server until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h.Mux()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)

		h.mu.Lock()
		for c := range h.clients {
			h.removeLocked(c)
			c.conn.Close()
		}
		h.mu.Unlock()
	}()

	h.log.Info("Panel server started", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		h.log.Error("Panel server error", err)
		return err
	}
	return nil
}

// Presenters fans one view out to several presenters.
type Presenters []watcher.Presenter

func (p Presenters) Render(v watcher.View) {
	for _, r := range p {
		r.Render(v)
	}
}
