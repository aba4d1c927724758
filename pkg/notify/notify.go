package notify

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"trade-monitor/pkg/core"
)

const appName = "trade-monitor"

// Notifier shows desktop notifications. It walks a chain of mechanisms and
// stops at the first one that works: the configured command, the known
// notification tools, the controlling terminal and finally a log file.
type Notifier struct {
	log           core.Logger
	notifyCommand string
	tools         []notificationTool
	terminal      bool
	logPath       string
}

type Option func(*Notifier)

// WithCommand sets a custom command. It is run through sh with the title and
// body as its two arguments.
func WithCommand(command string) Option {
	return func(n *Notifier) {
		n.notifyCommand = command
	}
}

// WithTools restricts the system tools that are tried, in the given order.
func WithTools(names ...string) Option {
	return func(n *Notifier) {
		var tools []notificationTool
		for _, name := range names {
			for _, t := range notificationTools {
				if t.name == name {
					tools = append(tools, t)
				}
			}
		}
		n.tools = tools
	}
}

// WithoutTerminal skips printing to the controlling terminal.
func WithoutTerminal() Option {
	return func(n *Notifier) {
		n.terminal = false
	}
}

// WithLogFile sets the last-resort log file. An empty path disables it.
func WithLogFile(path string) Option {
	return func(n *Notifier) {
		n.logPath = path
	}
}

func New(log core.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		log:      log,
		tools:    notificationTools,
		terminal: true,
	}
	if home, err := os.UserHomeDir(); err == nil {
		n.logPath = filepath.Join(home, ".local", "share", appName, "notifications.log")
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Create shows a notification and returns its id. Tools that report an id
// (dunstify, notify-send -p) have it passed through; otherwise one is generated.
func (n *Notifier) Create(title, body string) (string, error) {
	// First try configured notification command if available
	if n.notifyCommand != "" {
		id, err := n.executeNotifyCommand(title, body)
		if err == nil {
			return id, nil
		}
		n.log.Warn("Custom notification command failed", "command", n.notifyCommand, "error", err.Error())
	}

	// Try system notification tools
	if id, err := n.trySystemNotification(title, body); err == nil {
		return id, nil
	}

	// If running in terminal, print directly
	if n.terminal && isRunningInTerminal() {
		n.printToTerminal(title, body)
		return uuid.NewString(), nil
	}

	// Last resort: log file
	if n.logPath != "" {
		if err := n.writeToLogFile(title, body); err != nil {
			return "", err
		}
		return uuid.NewString(), nil
	}

	return "", fmt.Errorf("no notification mechanism available")
}

func (n *Notifier) executeNotifyCommand(title, body string) (string, error) {
	n.log.Debug("Executing notify command", "command", n.notifyCommand)

	cmd := exec.Command("sh", "-c", n.notifyCommand+` "$@"`, appName, title, body)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("notify command failed: %w", err)
	}
	return idFromOutput(out), nil
}

func idFromOutput(out []byte) string {
	if id := strings.TrimSpace(string(out)); id != "" && !strings.ContainsAny(id, " \n") {
		return id
	}
	return uuid.NewString()
}
