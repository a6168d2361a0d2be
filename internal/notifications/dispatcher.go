// Package notifications delivers out-of-band notices (in-app inbox, email,
// push) for events the real-time layer produces.
package notifications

//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks crewlink/internal/notifications Dispatcher

import "context"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DeliveryChannel names a delivery route for a notification.
type DeliveryChannel string

const (
	DeliverInApp DeliveryChannel = "in_app"
	DeliverEmail DeliveryChannel = "email"
	DeliverPush  DeliveryChannel = "push"
)

// Notification types produced by the messaging core.
const (
	TypeMention  = "mention"
	TypeHSEAlert = "hse_alert"
)

type Request struct {
	UserID   int64
	Type     string
	Title    string
	Message  string
	Data     map[string]any
	Priority Priority
	Channels []DeliveryChannel
}

// Dispatcher accepts notification requests. Implementations may deliver
// asynchronously; a nil error only means the request was accepted.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}
