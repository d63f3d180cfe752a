package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReminderKind discriminates the two reminder families: lead-time
// reminders produced by the periodic scheduler scan, and per-event
// manual reminders configured outside it.
type ReminderKind int

const (
	KindLead ReminderKind = iota
	KindManual
)

const (
	leadPrefix   = "reminder_"
	manualPrefix = "assignment_reminder_"
	snoozeInfix  = "_snooze_"
)

// ReminderRef identifies a reminder with structured fields instead of
// an ad-hoc string encoding. Name renders the wire form used as timer
// and notification identifier; ParseReminderRef is the single decode
// point for identifiers arriving from fired timers.
type ReminderRef struct {
	Kind    ReminderKind
	EventID string

	// LeadHours is set for KindLead refs only.
	LeadHours int

	// SnoozeNonce is a nonzero epoch-millisecond tag on refs derived by
	// a snooze action. A snoozed ref keeps the kind and event of its
	// origin but has a fresh identity.
	SnoozeNonce int64
}

// LeadRef builds the ref for a (event id, lead hours) reminder.
func LeadRef(eventID string, leadHours int) ReminderRef {
	return ReminderRef{Kind: KindLead, EventID: eventID, LeadHours: leadHours}
}

// ManualRef builds the ref for a per-event manual reminder.
func ManualRef(eventID string) ReminderRef {
	return ReminderRef{Kind: KindManual, EventID: eventID}
}

// Snoozed derives a fresh ref from r, tagged with the given instant so
// repeated snoozes of the same reminder stay distinct.
func (r ReminderRef) Snoozed(now time.Time) ReminderRef {
	out := r
	out.SnoozeNonce = now.UnixMilli()
	return out
}

// IsSnooze reports whether this ref was derived by a snooze action.
func (r ReminderRef) IsSnooze() bool {
	return r.SnoozeNonce != 0
}

// Name renders the wire identifier, e.g. "reminder_A1_24h",
// "assignment_reminder_A1", "reminder_A1_24h_snooze_1748685600000".
func (r ReminderRef) Name() string {
	var base string
	switch r.Kind {
	case KindManual:
		base = manualPrefix + r.EventID
	default:
		base = fmt.Sprintf("%s%s_%dh", leadPrefix, r.EventID, r.LeadHours)
	}
	if r.SnoozeNonce != 0 {
		base += snoozeInfix + strconv.FormatInt(r.SnoozeNonce, 10)
	}
	return base
}

// ParseReminderRef decodes a wire identifier back into a ReminderRef.
// Identifiers that are not reminder-shaped (e.g. periodic job names)
// return ok=false. Event ids may themselves contain underscores, so
// decoding anchors on the fixed prefixes and suffixes only.
func ParseReminderRef(name string) (ReminderRef, bool) {
	var ref ReminderRef
	rest := name

	if i := strings.LastIndex(rest, snoozeInfix); i >= 0 {
		nonce, err := strconv.ParseInt(rest[i+len(snoozeInfix):], 10, 64)
		if err != nil || nonce <= 0 {
			return ReminderRef{}, false
		}
		ref.SnoozeNonce = nonce
		rest = rest[:i]
	}

	switch {
	case strings.HasPrefix(rest, manualPrefix):
		id := strings.TrimPrefix(rest, manualPrefix)
		if id == "" {
			return ReminderRef{}, false
		}
		ref.Kind = KindManual
		ref.EventID = id

	case strings.HasPrefix(rest, leadPrefix):
		body := strings.TrimPrefix(rest, leadPrefix)
		j := strings.LastIndex(body, "_")
		if j <= 0 || !strings.HasSuffix(body, "h") {
			return ReminderRef{}, false
		}
		hours, err := strconv.Atoi(body[j+1 : len(body)-1])
		if err != nil || hours <= 0 {
			return ReminderRef{}, false
		}
		ref.Kind = KindLead
		ref.EventID = body[:j]
		ref.LeadHours = hours

	default:
		return ReminderRef{}, false
	}

	return ref, true
}
