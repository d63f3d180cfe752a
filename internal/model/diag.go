package model

// Diagnostic snapshots are last-write-wins records for external
// inspection (the /api/status surface). No scheduling logic branches
// on their content.

// NotificationResult records the outcome of the most recent
// notification dispatch attempt.
type NotificationResult struct {
	Name string `json:"name"`
	// Outcome is one of "shown", "missing_payload", "render_failed",
	// or a terminal ReminderState name for action handling.
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
	// At is in epoch milliseconds.
	At int64 `json:"at"`
}

// RefreshSummary records the outcome of the most recent successful
// feed refresh.
type RefreshSummary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
	// Scheduled is the count of reminders armed by the post-refresh
	// scheduling pass.
	Scheduled int  `json:"scheduled"`
	FromCache bool `json:"from_cache"`
	// At is in epoch milliseconds.
	At int64 `json:"at"`
}

// RefreshError records the most recent failed refresh.
type RefreshError struct {
	Error string `json:"error"`
	// UserInitiated marks whether the failed refresh was requested
	// through the API (and therefore also surfaced to the caller).
	UserInitiated bool `json:"user_initiated"`
	// At is in epoch milliseconds.
	At int64 `json:"at"`
}
