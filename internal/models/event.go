package models

import (
	"strings"
	"time"
)

// Event is a single immutable behavioral fact recorded by the funnel:
// an inquiry being created, a payment succeeding, a page being reached.
// Events are append-only; they are never mutated or deleted.
type Event struct {
	ID        int64  `json:"id"`
	EventType string `json:"event_type"`

	// InquiryID correlates events belonging to one prospective customer.
	// Empty means the event is not tied to an inquiry and is ignored by
	// funnel computations.
	InquiryID string `json:"inquiry_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Course    string `json:"course,omitempty"`

	// Timestamp is the caller-supplied occurrence time. It is not
	// guaranteed to be monotonic or globally ordered.
	Timestamp time.Time `json:"timestamp"`

	Metadata map[string]any `json:"metadata,omitempty"`

	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`

	// CreatedAt is the server-assigned ingestion time.
	CreatedAt time.Time `json:"created_at"`
}

// ConversionEventTypes is the closed set of event types that count as a
// conversion in the funnel. Comparison is case-insensitive.
var ConversionEventTypes = []string{
	"payment",
	"payment_success",
	"paid",
	"converted",
	"completed",
	"transaction_success",
}

// IsConversionEvent reports whether the given event type belongs to the
// conversion set.
func IsConversionEvent(eventType string) bool {
	t := strings.ToLower(strings.TrimSpace(eventType))
	for _, c := range ConversionEventTypes {
		if t == c {
			return true
		}
	}
	return false
}
