package history

import (
	"context"
	"time"
)

// EventType defines the kind of update-cycle event.
type EventType string

const (
	EventCheck    EventType = "check"
	EventOffer    EventType = "offer"
	EventDecision EventType = "decision"
	EventInstall  EventType = "install"
)

// Source values for check events.
const (
	SourceManual    = "manual"
	SourceScheduled = "scheduled"
)

// Event represents one step of an update cycle to be exported to external
// systems. Fields beyond Type and OccurredAt are populated per type: checks
// carry Source and Outcome, offers and installs carry VersionTag, decisions
// carry VersionTag and Decision. Detail holds free text such as an error
// message or a spawned PID.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	VersionTag string    `json:"version_tag,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for audit events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
