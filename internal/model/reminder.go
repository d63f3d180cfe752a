package model

// ReminderState tracks a reminder through its lifecycle. Transitions
// are single atomic store updates:
//
//	Pending -> Armed  (timer created)
//	Armed   -> Fired  (timer fired, render attempt starts)
//
// Terminal outcomes consume the payload: a successful render deletes
// it, a "mark complete" click writes a completion record, a snooze
// creates a fresh decoupled reminder. The terminal names below appear
// in the last-notification diagnostic snapshot.
type ReminderState string

const (
	StatePending   ReminderState = "pending"
	StateArmed     ReminderState = "armed"
	StateFired     ReminderState = "fired"
	StateCompleted ReminderState = "completed"
	StateSnoozed   ReminderState = "snoozed"
	StateExpired   ReminderState = "expired"
)

// Reminder is a scheduled notification intent. At most one live
// reminder may hold an outstanding timer per (event id, lead hours)
// pair; the history set enforces that across scheduler passes.
type Reminder struct {
	// Name is the derived reminder identifier; it doubles as the timer
	// and notification identifier.
	Name    string `json:"name"`
	EventID string `json:"event_id"`

	Message string `json:"message"`
	Title   string `json:"title,omitempty"`

	// DueMillis is the owning event's due instant in epoch milliseconds.
	DueMillis int64 `json:"due_millis"`

	// LeadHours is the lead time that produced this reminder. Zero for
	// manual and test reminders.
	LeadHours int `json:"lead_hours,omitempty"`

	State ReminderState `json:"state"`

	// CreatedAt is in epoch milliseconds.
	CreatedAt int64 `json:"created_at"`
}
