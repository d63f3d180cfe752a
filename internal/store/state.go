package store

import "remindd/internal/model"

// State is the whole persistent blob. Every component reads the subset
// it needs through a snapshot and writes back through a single atomic
// Update, so there are no partial-key races between triggers.
type State struct {
	// Events is the current merged event collection.
	Events []model.Event `json:"events"`

	// Surrogates maps a title+due fingerprint to the surrogate id
	// minted for a feed event that carried no UID, so identity survives
	// later title edits once observed.
	Surrogates map[string]string `json:"surrogates,omitempty"`

	// Reminders holds live reminder payloads keyed by reminder name.
	Reminders map[string]model.Reminder `json:"reminders,omitempty"`

	// History marks reminder names that were already scheduled or
	// fired; such names are never scheduled again until the reaper
	// clears them.
	History map[string]bool `json:"history,omitempty"`

	// Completions / InProgress are user status records keyed by event id.
	Completions map[string]model.StatusRecord `json:"completions,omitempty"`
	InProgress  map[string]model.StatusRecord `json:"in_progress,omitempty"`

	// Alarms persists armed one-shot timers (name -> fire-at epoch ms)
	// so they survive a process restart.
	Alarms map[string]int64 `json:"alarms,omitempty"`

	// Diagnostic snapshots, last-write-wins.
	LastNotificationResult *model.NotificationResult `json:"last_notification_result,omitempty"`
	LastRefreshSummary     *model.RefreshSummary     `json:"last_refresh_summary,omitempty"`
	LastRefreshError       *model.RefreshError       `json:"last_refresh_error,omitempty"`
}

func newState() State {
	return State{
		Surrogates:  map[string]string{},
		Reminders:   map[string]model.Reminder{},
		History:     map[string]bool{},
		Completions: map[string]model.StatusRecord{},
		InProgress:  map[string]model.StatusRecord{},
		Alarms:      map[string]int64{},
	}
}

// normalize ensures all maps are non-nil after a load from disk.
func (s *State) normalize() {
	if s.Surrogates == nil {
		s.Surrogates = map[string]string{}
	}
	if s.Reminders == nil {
		s.Reminders = map[string]model.Reminder{}
	}
	if s.History == nil {
		s.History = map[string]bool{}
	}
	if s.Completions == nil {
		s.Completions = map[string]model.StatusRecord{}
	}
	if s.InProgress == nil {
		s.InProgress = map[string]model.StatusRecord{}
	}
	if s.Alarms == nil {
		s.Alarms = map[string]int64{}
	}
}

// clone deep-copies the state so snapshots handed to readers can never
// alias the committed copy.
func (s State) clone() State {
	out := s
	out.Events = append([]model.Event(nil), s.Events...)
	out.Surrogates = cloneMap(s.Surrogates)
	out.Reminders = cloneMap(s.Reminders)
	out.History = cloneMap(s.History)
	out.Completions = cloneMap(s.Completions)
	out.InProgress = cloneMap(s.InProgress)
	out.Alarms = cloneMap(s.Alarms)
	if s.LastNotificationResult != nil {
		v := *s.LastNotificationResult
		out.LastNotificationResult = &v
	}
	if s.LastRefreshSummary != nil {
		v := *s.LastRefreshSummary
		out.LastRefreshSummary = &v
	}
	if s.LastRefreshError != nil {
		v := *s.LastRefreshError
		out.LastRefreshError = &v
	}
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
