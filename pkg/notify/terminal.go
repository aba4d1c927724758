package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func (n *Notifier) writeToLogFile(title string, body string) error {
	if err := os.MkdirAll(filepath.Dir(n.logPath), 0755); err != nil {
		return fmt.Errorf("failed to create notification log directory: %w", err)
	}

	f, err := os.OpenFile(n.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notification log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s: %s\n", time.Now().Format("2006-01-02 15:04:05"), title, body)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	n.log.Debug("Notification written to log file", "path", n.logPath)
	return nil
}

func (n *Notifier) printToTerminal(title string, body string) {
	fmt.Fprintf(os.Stderr, "\x1b[32m%s:\x1b[0m %s\n", title, body)
}

func isRunningInTerminal() bool {
	// Check if stderr is connected to a terminal
	fileInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
