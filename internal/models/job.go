package models

import (
	"errors"
	"time"
)

// ErrInvalidPayload marks a verified body that cannot be decoded as the announced event
var ErrInvalidPayload = errors.New("invalid payload")

// WebhookJob is a verified webhook delivery waiting to be dispatched
type WebhookJob struct {
	// Delivery ID from X-GitHub-Delivery, or a generated one
	DeliveryID string

	// Event type from X-GitHub-Event (issues, pull_request, push, ...)
	EventType string

	// Raw request body, already authenticated
	Body []byte

	// Repository full name read from the envelope, for logging
	Repository string

	// Timestamps
	ReceivedAt time.Time
	QueuedAt   time.Time
}

// DispatchOutcome describes how a job finished
type DispatchOutcome string

const (
	OutcomeDelivered    DispatchOutcome = "delivered"
	OutcomeFiltered     DispatchOutcome = "filtered"
	OutcomeIgnored      DispatchOutcome = "ignored"
	OutcomeRenderFailed DispatchOutcome = "render_failed"
	OutcomeParseFailed  DispatchOutcome = "parse_failed"
)

// Artifact is a rendered image, base64 encoded
type Artifact struct {
	Base64 string
}

// IsEmpty reports whether the renderer produced no image
func (a Artifact) IsEmpty() bool {
	return a.Base64 == ""
}

// Destinations is the static set of chat recipients for every notification
type Destinations struct {
	// Operator is the private recipient; empty when operator notifications are off
	Operator string

	// Groups are delivered in configuration order
	Groups []string
}

// Count returns the number of deliveries one notification produces
func (d Destinations) Count() int {
	n := len(d.Groups)
	if d.Operator != "" {
		n++
	}
	return n
}
