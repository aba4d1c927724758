package ipc

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"trade-monitor/pkg/core"
)

const dialTimeout = 2 * time.Second

// SendCommand sends one request to a running daemon and waits for its reply.
func SendCommand(socketPath string, req Request, log core.Logger) (Response, error) {
	log.Debug("Attempting to connect to socket server", "path", socketPath)

	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		log.Error("Failed to connect to socket server", err)
		return Response{}, err
	}
	defer conn.Close()

	log.Debug("Connected to socket server", "remote_addr", conn.RemoteAddr())

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		log.Error("Failed to encode request", err)
		return Response{}, err
	}

	log.Info("Request sent successfully", "command", req.Command)

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		log.Error("Failed to decode response", err)
		return Response{}, err
	}

	log.Info("Response received", "status", resp.Status, "message", resp.Message)
	return resp, nil
}

// parseSwitch reads the toggle argument. Empty flips the current state.
func parseSwitch(arg string) (*bool, error) {
	switch strings.ToLower(arg) {
	case "":
		return nil, nil
	case "on", "true", "1":
		on := true
		return &on, nil
	case "off", "false", "0":
		off := false
		return &off, nil
	}
	return nil, fmt.Errorf("expected on or off, got %q", arg)
}

func parseLimit(arg string) (int, error) {
	if arg == "" {
		return 20, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid history limit %q", arg)
	}
	return n, nil
}
