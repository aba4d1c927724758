package background

import "fmt"

// DispatchRoutingError means neither the sending tab nor an active tab exists.
type DispatchRoutingError struct {
	SenderTabID string
}

func (e *DispatchRoutingError) Error() string {
	if e.SenderTabID != "" {
		return fmt.Sprintf("tab %s is gone and no tab is active", e.SenderTabID)
	}
	return "no tab available to play sound"
}

// NotificationCreationError wraps a failure of the desktop notifier.
type NotificationCreationError struct {
	Err error
}

func (e *NotificationCreationError) Error() string {
	return fmt.Sprintf("notification creation failed: %v", e.Err)
}

func (e *NotificationCreationError) Unwrap() error {
	return e.Err
}
