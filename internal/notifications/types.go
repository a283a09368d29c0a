package notifications

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// AnnouncementsTag is the tag shown as site-wide announcements.
const AnnouncementsTag = "announcements"

type Notification struct {
	ID        string     `json:"id"`
	Tag       string     `json:"tag"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	LinkURL   string     `json:"link_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Subscription struct {
	ID       string   `json:"id"`
	Endpoint string   `json:"endpoint"`
	Tags     []string `json:"tags"`
	// Device is a display label such as "Firefox on Linux".
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
}

// ProcessingStatus is the delivery state of one push.
type ProcessingStatus string

const (
	StatusPending ProcessingStatus = "PENDING"
	StatusDone    ProcessingStatus = "DONE"
)

func (s ProcessingStatus) Valid() bool {
	return s == StatusPending || s == StatusDone
}

// Push is the delivery record of one notification to one subscription.
type Push struct {
	NotificationID   string           `json:"notification_id"`
	SubscriptionID   string           `json:"subscription_id"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	Attempts         int              `json:"attempts"`
	FailedAt         *time.Time       `json:"failed_at,omitempty"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// PushStatusUpdate changes the push keyed by (NotificationID,
// SubscriptionID). Nil timestamps leave the stored value unchanged.
type PushStatusUpdate struct {
	ProcessingStatus ProcessingStatus
	NotificationID   string
	SubscriptionID   string
	FailedAt         *time.Time
	DeliveredAt      *time.Time
	// CountAttempt increments the push's attempt counter.
	CountAttempt bool
}

// Delivery is a pending push joined with what is needed to send it.
type Delivery struct {
	Push         Push
	Notification Notification
	Endpoint     string
}
