package model

import "strings"

// UserCreatedPrefix marks events that were created by the user rather
// than sourced from the feed. Such events have no feed source of truth
// and are exempt from removal when absent from a fetch.
const UserCreatedPrefix = "custom_"

// Event is a calendar item tracked by the daemon. Feed-sourced events
// are replaced wholesale on every refresh; the completion and
// in-progress fields are user state and are re-applied from the stored
// status records during reconciliation.
type Event struct {
	// ID is the stable event identifier: the feed-supplied UID when one
	// exists, otherwise a persisted surrogate minted at first
	// observation, or a UserCreatedPrefix id for user-created events.
	ID string `json:"id"`

	Title string `json:"title"`

	// DueRaw / StartRaw are the feed-native date tokens, kept verbatim
	// so identity and scheduling both work from the same value.
	DueRaw   string `json:"due_raw,omitempty"`
	StartRaw string `json:"start_raw,omitempty"`

	IsAssignment bool `json:"is_assignment"`

	IsCompleted  bool `json:"is_completed,omitempty"`
	IsInProgress bool `json:"is_in_progress,omitempty"`

	// Status timestamps in epoch milliseconds.
	CompletedAt  int64 `json:"completed_at,omitempty"`
	InProgressAt int64 `json:"in_progress_at,omitempty"`
}

// IsUserCreated reports whether the event carries the user-created
// identifier marker.
func (e Event) IsUserCreated() bool {
	return strings.HasPrefix(e.ID, UserCreatedPrefix)
}

// ContentEquals compares two events excluding the user-owned
// completion/in-progress fields. The reconciler counts any difference
// here as an update.
func (e Event) ContentEquals(o Event) bool {
	return e.ID == o.ID &&
		e.Title == o.Title &&
		e.DueRaw == o.DueRaw &&
		e.StartRaw == o.StartRaw &&
		e.IsAssignment == o.IsAssignment
}

// StatusRecord holds user-set completion or in-progress status for an
// event, keyed by event id. It survives independently of the Event so
// a feed re-sync cannot drop user state.
type StatusRecord struct {
	EventID string `json:"event_id"`
	// At is the status timestamp in epoch milliseconds.
	At int64 `json:"at"`
	// Title is an optional snapshot of the event title at the time the
	// status was set.
	Title string `json:"title,omitempty"`
}
