package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadRefName(t *testing.T) {
	assert.Equal(t, "reminder_A1_24h", LeadRef("A1", 24).Name())
	assert.Equal(t, "assignment_reminder_A1", ManualRef("A1").Name())
}

func TestRefRoundTrip(t *testing.T) {
	now := time.UnixMilli(1748685600000)

	refs := []ReminderRef{
		LeadRef("A1", 24),
		LeadRef("A1", 2),
		// Event ids routinely contain underscores.
		LeadRef("custom_abc", 24),
		LeadRef("event_assignment_42", 6),
		ManualRef("A1"),
		ManualRef("custom_abc"),
		LeadRef("A1", 24).Snoozed(now),
		ManualRef("custom_abc").Snoozed(now),
	}

	for _, ref := range refs {
		got, ok := ParseReminderRef(ref.Name())
		require.True(t, ok, ref.Name())
		assert.Equal(t, ref, got, ref.Name())
	}
}

func TestParseRejectsNonReminderNames(t *testing.T) {
	for _, name := range []string{
		"",
		"check_events",
		"refresh_feed",
		"reminder_",
		"reminder_A1",          // no lead suffix
		"reminder_A1_24",       // missing h
		"reminder_A1_xh",       // non-numeric lead
		"reminder_A1_0h",       // zero lead
		"reminder_A1_-3h",      // negative lead
		"assignment_reminder_", // empty event id
		"reminder_A1_24h_snooze_",
		"reminder_A1_24h_snooze_abc",
	} {
		_, ok := ParseReminderRef(name)
		assert.False(t, ok, name)
	}
}

func TestSnoozedRefsAreDistinctFromOrigin(t *testing.T) {
	base := LeadRef("A1", 24)
	s1 := base.Snoozed(time.UnixMilli(1000))
	s2 := base.Snoozed(time.UnixMilli(2000))

	assert.False(t, base.IsSnooze())
	assert.True(t, s1.IsSnooze())
	assert.NotEqual(t, base.Name(), s1.Name())
	assert.NotEqual(t, s1.Name(), s2.Name())
	assert.Equal(t, "A1", s1.EventID)
	assert.Equal(t, 24, s1.LeadHours)
}
