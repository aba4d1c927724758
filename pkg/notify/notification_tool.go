package notify

import (
	"fmt"
	"os/exec"
)

type notificationTool struct {
	name         string
	printsID     bool
	buildCommand func(tool string, title string, body string) *exec.Cmd
}

// Trade alerts are shown with critical urgency so they stay on screen.
var notificationTools = []notificationTool{
	{
		name:     "dunstify",
		printsID: true,
		buildCommand: func(tool string, title string, body string) *exec.Cmd {
			return exec.Command(tool, "-a", appName, "-u", "critical", "-p", title, body)
		},
	},
	{
		name:     "notify-send",
		printsID: true,
		buildCommand: func(tool string, title string, body string) *exec.Cmd {
			return exec.Command(tool, "-a", appName, "-u", "critical", "-p", title, body)
		},
	},
	{
		name: "zenity",
		buildCommand: func(tool string, title string, body string) *exec.Cmd {
			return exec.Command(tool, "--notification", "--text", title+"\n"+body)
		},
	},
}

func (n *Notifier) trySystemNotification(title string, body string) (string, error) {
	for _, tool := range n.tools {
		if _, err := exec.LookPath(tool.name); err != nil {
			continue
		}
		cmd := tool.buildCommand(tool.name, title, body)
		out, err := cmd.Output()
		if err != nil {
			n.log.Debug("Notification tool failed", "tool", tool.name, "error", err.Error())
			continue
		}

		id := idFromOutput(nil)
		if tool.printsID {
			id = idFromOutput(out)
		}
		n.log.Debug("Notification sent successfully", "tool", tool.name, "id", id)
		return id, nil
	}
	return "", fmt.Errorf("no notification tools available")
}
