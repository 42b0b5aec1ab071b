// Package notify defines the fire-and-forget notification boundary.
//
// Actual delivery (email, push, in-app) is owned by the institution
// platform's notification service; the billing engine only hands it a
// structured message. Delivery failures are logged and never propagated
// into billing transactions.
package notify

import (
	"context"

	"github.com/campuskit/bursar/pkg/observability"
)

// Priority indicates how urgently a notification should be surfaced
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a single message for one user
type Notification struct {
	UserID        int64    `json:"user_id"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	ReferenceType string   `json:"reference_type"`
	ReferenceID   int64    `json:"reference_id"`
	Link          string   `json:"link,omitempty"`
	Priority      Priority `json:"priority"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. Used in
// development and as the default when no delivery backend is wired.
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification and always succeeds
func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.WithFields(map[string]interface{}{
		"user_id":        notification.UserID,
		"title":          notification.Title,
		"reference_type": notification.ReferenceType,
		"reference_id":   notification.ReferenceID,
		"priority":       string(notification.Priority),
	}).Info("notification dispatched")
	return nil
}
