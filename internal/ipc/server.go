package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"trade-monitor/internal/messaging"
	"trade-monitor/internal/models"
	"trade-monitor/internal/page"
	"trade-monitor/internal/watcher"
	"trade-monitor/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	CmdToggle           = "toggle"
	CmdTheme            = "theme"
	CmdReset            = "reset"
	CmdStatus           = "status"
	CmdHistory          = "history"
	CmdClick            = "click"
	CmdValidate         = "validate"
	CmdReadLast         = "read-last"
	CmdSimulate         = "simulate"
	CmdTestNotification = "test-notification"
	CmdTabs             = "tabs"
	CmdActivate         = "activate"
)

type Request struct {
	Command string `json:"command"`
	// Tab selects a page by id or path. Empty means the active tab.
	Tab string `json:"tab,omitempty"`
	// Arg carries the theme name, "on"/"off" for toggle, or a history limit.
	Arg string `json:"arg,omitempty"`
}

type Response struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// TabInfo describes one open page.
type TabInfo struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Path       string `json:"path"`
	Active     bool   `json:"active"`
	Monitoring bool   `json:"monitoring"`
}

// Controller is what the socket commands act on.
type Controller interface {
	Toggle(ctx context.Context, tab string, on *bool) (bool, error)
	SetTheme(ctx context.Context, tab, theme string) error
	Reset(ctx context.Context, tab string) error
	Status(ctx context.Context, tab string) (watcher.DebugInfo, error)
	History(ctx context.Context, limit int) ([]models.Trade, error)
	Click(ctx context.Context, tab string) error
	Validate(ctx context.Context, tab string) (page.Validation, error)
	ReadLast(ctx context.Context, tab string) (models.Trade, error)
	Simulate(ctx context.Context, tab string) (models.Trade, error)
	TestNotification(ctx context.Context, tab string) (messaging.Response, error)
	Tabs(ctx context.Context) ([]TabInfo, error)
	// Activate makes tab the target of commands and trades that name no tab.
	Activate(ctx context.Context, tab string) error
}

type Server struct {
	path       string
	controller Controller
	log        core.Logger

	wg sync.WaitGroup
}

func NewServer(path string, controller Controller, log core.Logger) *Server {
	return &Server{path: path, controller: controller, log: log}
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	log := s.log

	// Remove the socket file if it already exists
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		log.Error("Failed to remove existing socket file", err)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		log.Error("Failed to create socket directory", err)
		return err
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		log.Error("Failed to start socket server", err)
		return err
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info("Socket server started", "path", s.path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				os.Remove(s.path)
				log.Info("Socket server stopped", "path", s.path)
				return nil
			}
			log.Error("Failed to accept connection", err)
			continue
		}

		log.Debug("New connection accepted", "remote_addr", conn.RemoteAddr())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	log := s.log
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Error("Failed to decode request", err)
		return
	}

	log.Info("Received request", "command", req.Command, "tab", req.Tab)

	resp := s.handle(ctx, req)

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Error("Failed to encode response", err)
	} else {
		log.Debug("Response sent successfully", "status", resp.Status)
	}
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	c := s.controller

	switch req.Command {
	case CmdToggle:
		on, err := parseSwitch(req.Arg)
		if err != nil {
			return failure(req.Command, err)
		}
		state, err := c.Toggle(ctx, req.Tab, on)
		if err != nil {
			return failure(req.Command, err)
		}
		if state {
			return success("Monitoring started", nil)
		}
		return success("Monitoring stopped", nil)

	case CmdTheme:
		if !watcher.IsTheme(req.Arg) {
			return failure(req.Command, fmt.Errorf("unknown theme %q", req.Arg))
		}
		if err := c.SetTheme(ctx, req.Tab, req.Arg); err != nil {
			return failure(req.Command, err)
		}
		return success("Theme updated", nil)

	case CmdReset:
		if err := c.Reset(ctx, req.Tab); err != nil {
			return failure(req.Command, err)
		}
		return success("Panel state reset", nil)

	case CmdStatus:
		info, err := c.Status(ctx, req.Tab)
		return result(req.Command, "Debug info", info, err)

	case CmdHistory:
		limit, err := parseLimit(req.Arg)
		if err != nil {
			return failure(req.Command, err)
		}
		trades, err := c.History(ctx, limit)
		return result(req.Command, fmt.Sprintf("%d trades", len(trades)), trades, err)

	case CmdClick:
		if err := c.Click(ctx, req.Tab); err != nil {
			return failure(req.Command, err)
		}
		return success("Click delivered", nil)

	case CmdValidate:
		v, err := c.Validate(ctx, req.Tab)
		return result(req.Command, "DOM structure", v, err)

	case CmdReadLast:
		trade, err := c.ReadLast(ctx, req.Tab)
		return result(req.Command, "Last trade", trade, err)

	case CmdSimulate:
		trade, err := c.Simulate(ctx, req.Tab)
		return result(req.Command, "Simulated "+trade.Summary(), trade, err)

	case CmdTestNotification:
		r, err := c.TestNotification(ctx, req.Tab)
		if err == nil && !r.Success {
			err = errors.New(r.Error)
		}
		return result(req.Command, "Test notification sent", r, err)

	case CmdTabs:
		tabs, err := c.Tabs(ctx)
		return result(req.Command, fmt.Sprintf("%d tabs", len(tabs)), tabs, err)

	case CmdActivate:
		if req.Tab == "" && req.Arg == "" {
			return failure(req.Command, errors.New("tab required"))
		}
		ref := req.Tab
		if ref == "" {
			ref = req.Arg
		}
		if err := c.Activate(ctx, ref); err != nil {
			return failure(req.Command, err)
		}
		return success("Tab activated", nil)
	}

	s.log.Error("Unknown command received", fmt.Errorf("command: %s", req.Command))
	return Response{Status: "error", Message: "Unknown command"}
}

func result(command, msg string, data interface{}, err error) Response {
	if err != nil {
		return failure(command, err)
	}
	return success(msg, data)
}

func success(msg string, data interface{}) Response {
	resp := Response{Status: "success", Message: msg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Response{Status: "error", Message: err.Error()}
		}
		resp.Data = raw
	}
	return resp
}

func failure(command string, err error) Response {
	return Response{Status: "error", Message: fmt.Sprintf("%s: %v", command, err)}
}
