// Package types defines shared types for login events and notifications
// used by the classifier, tracker, and the monitor pipeline.
package types

import "time"

// EventKind identifies the outcome of an SSH login attempt.
type EventKind int

const (
	LoginUnknown EventKind = iota
	LoginFailed
	LoginAccepted
)

// String returns the lowercase name of the event kind, used as a metric label.
func (k EventKind) String() string {
	switch k {
	case LoginFailed:
		return "failed"
	case LoginAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// LoginEvent is one classified auth-log line. Values are immutable once built.
type LoginEvent struct {
	Kind       EventKind
	User       string
	SourceIP   string
	ObservedAt time.Time
}

// PromptMode selects how much of the AI prompt is sent to the analysis backend.
type PromptMode int

const (
	// PromptFull sends the prompt unmodified.
	PromptFull PromptMode = iota
	// PromptShort truncates the prompt to a bounded length before sending,
	// keeping payloads small during high-frequency brute-force bursts.
	PromptShort
)

// NotificationRequest carries one outbound notification through the
// enrichment and delivery steps. It is built by the monitor and discarded
// after delivery.
type NotificationRequest struct {
	Summary    string
	AIPrompt   string
	PromptMode PromptMode
}
