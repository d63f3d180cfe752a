package remind

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/model"
	"remindd/internal/store"
)

func TestCheckEventsArmsLeadTimeReminder(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	scheduled := env.engine.CheckEvents(context.Background())
	require.Equal(t, 1, scheduled)

	// Due 20250601T090000Z minus 24h lead is 4h after the test clock.
	at, ok := env.alarms.armedAt("reminder_A1_24h")
	require.True(t, ok)
	assert.Equal(t, env.now.Add(4*time.Hour), at)

	snap := env.snapshot()
	assert.True(t, snap.History["reminder_A1_24h"])
	r, ok := snap.Reminders["reminder_A1_24h"]
	require.True(t, ok)
	assert.Equal(t, "A1", r.EventID)
	assert.Equal(t, 24, r.LeadHours)
	assert.Equal(t, model.StateArmed, r.State)
}

func TestCheckEventsIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))
	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
	assert.Len(t, env.alarms.List(), 1)
}

func TestCheckEventsSkipsNonAssignments(t *testing.T) {
	env := newTestEnv()
	ev := assignmentEvent("L1", "Lecture")
	ev.IsAssignment = false
	env.seedEvents(ev)

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
	assert.Empty(t, env.alarms.List())
}

func TestCheckEventsNeverSchedulesZeroDueInstant(t *testing.T) {
	env := newTestEnv()
	for i, raw := range []string{"", "not-a-date", "2025-06-01", "20250601T09"} {
		ev := assignmentEvent("Z"+string(rune('0'+i)), "Broken due token")
		ev.DueRaw = raw
		env.seedEvents(ev)
	}

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
	assert.Empty(t, env.alarms.List())
}

func TestCheckEventsSkipsOverdueEvents(t *testing.T) {
	env := newTestEnv()
	ev := assignmentEvent("A1", "Late essay")
	ev.DueRaw = "20250530T090000Z" // before the test clock
	env.seedEvents(ev)

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
}

func TestCheckEventsSkipsCompletedAndRecordedEvents(t *testing.T) {
	env := newTestEnv()
	done := assignmentEvent("A1", "Done already")
	done.IsCompleted = true
	env.seedEvents(done, assignmentEvent("A2", "Recorded done"))

	require.NoError(t, env.store.Update(func(st *store.State) error {
		st.Completions["A2"] = model.StatusRecord{EventID: "A2", At: env.now.UnixMilli()}
		return nil
	}))

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
}

func TestCheckEventsHonorsHistoryWithoutPayload(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	// History marked but no payload and no live timer: the reminder was
	// already consumed. It must not come back.
	require.NoError(t, env.store.Update(func(st *store.State) error {
		st.History["reminder_A1_24h"] = true
		return nil
	}))

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
}

func TestCheckEventsDiscardsStalePayloadAndRebuilds(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	// Payload exists without history or live timer: leftover from an
	// interrupted run. The pass rebuilds it and arms a timer.
	require.NoError(t, env.store.Update(func(st *store.State) error {
		st.Reminders["reminder_A1_24h"] = model.Reminder{
			Name:    "reminder_A1_24h",
			EventID: "A1",
			Message: "stale leftover",
			State:   model.StatePending,
		}
		return nil
	}))

	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))

	snap := env.snapshot()
	r := snap.Reminders["reminder_A1_24h"]
	assert.NotEqual(t, "stale leftover", r.Message)
	assert.Equal(t, model.StateArmed, r.State)
}

func TestCheckEventsSkipsNamesWithLiveTimers(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	// A live timer without a history mark (desync): defend, don't
	// double-arm.
	_, err := env.alarms.Arm("reminder_A1_24h", env.now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
	assert.Len(t, env.alarms.List(), 1)
}

func TestCheckEventsClampsPastTargetToImmediate(t *testing.T) {
	env := newTestEnv()
	// Due in 2 hours with a 24h lead: target is long past, so the arm
	// request asks for a past instant (the alarm service clamps it to
	// its minimum delay).
	ev := assignmentEvent("A1", "Due soon")
	ev.DueRaw = "20250531T070000Z"
	env.seedEvents(ev)

	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))

	at, ok := env.alarms.armedAt("reminder_A1_24h")
	require.True(t, ok)
	assert.True(t, at.Before(env.now))
}

func TestCheckEventsSchedulesPerLeadHour(t *testing.T) {
	env := newTestEnv()
	env.engine.cfg.LeadHours = []int{2, 24}
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	require.Equal(t, 2, env.engine.CheckEvents(context.Background()))

	_, ok2 := env.alarms.armedAt("reminder_A1_2h")
	_, ok24 := env.alarms.armedAt("reminder_A1_24h")
	assert.True(t, ok2)
	assert.True(t, ok24)
}

func TestCheckEventsArmFailureLosesReminderNotDuplicates(t *testing.T) {
	env := newTestEnv()
	env.alarms.armErr = errRender
	env.seedEvents(assignmentEvent("A1", "Essay draft"))

	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))

	// History stays set, so the next pass does not re-create a timer.
	snap := env.snapshot()
	assert.True(t, snap.History["reminder_A1_24h"])

	env.alarms.armErr = nil
	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
}
