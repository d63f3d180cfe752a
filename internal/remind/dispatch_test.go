package remind

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/model"
	"remindd/internal/store"
)

func TestFiredReminderShowsExactlyOneNotificationAndConsumesPayload(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))
	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))

	env.engine.HandleAlarm(context.Background(), "reminder_A1_24h")

	require.Len(t, env.notifier.shown, 1)
	shown := env.notifier.shown[0]
	assert.Equal(t, "reminder_A1_24h", shown.id)
	assert.Contains(t, shown.n.Message, "Essay draft")
	assert.True(t, shown.n.RequireInteraction)
	require.Len(t, shown.n.Actions, 2)

	snap := env.snapshot()
	_, exists := snap.Reminders["reminder_A1_24h"]
	assert.False(t, exists, "payload must be consumed after display")
	assert.True(t, snap.History["reminder_A1_24h"])
	require.NotNil(t, snap.LastNotificationResult)
	assert.Equal(t, "shown", snap.LastNotificationResult.Outcome)
}

func TestFiredTimerWithoutPayloadIsBenign(t *testing.T) {
	env := newTestEnv()

	env.engine.HandleAlarm(context.Background(), "reminder_A1_24h")

	assert.Empty(t, env.notifier.shown)
	snap := env.snapshot()
	require.NotNil(t, snap.LastNotificationResult)
	assert.Equal(t, "missing_payload", snap.LastNotificationResult.Outcome)
}

func TestRenderFailureClearsHistoryForRetry(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))
	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))

	env.notifier.showErr = errRender
	env.engine.HandleAlarm(context.Background(), "reminder_A1_24h")
	env.alarms.Cancel("reminder_A1_24h") // the one-shot timer is spent

	snap := env.snapshot()
	assert.False(t, snap.History["reminder_A1_24h"], "history must be cleared so a later pass can retry")
	_, exists := snap.Reminders["reminder_A1_24h"]
	assert.True(t, exists, "payload must be retained")
	require.NotNil(t, snap.LastNotificationResult)
	assert.Equal(t, "render_failed", snap.LastNotificationResult.Outcome)

	// Next pass re-arms the reminder.
	env.notifier.showErr = nil
	assert.Equal(t, 1, env.engine.CheckEvents(context.Background()))
}

func TestMarkCompleteWritesRecordAndBlocksRescheduling(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))
	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))
	env.engine.HandleAlarm(context.Background(), "reminder_A1_24h")

	require.NoError(t, env.engine.HandleAction(context.Background(), "reminder_A1_24h", ActionComplete))

	snap := env.snapshot()
	rec, ok := snap.Completions["A1"]
	require.True(t, ok)
	assert.Equal(t, env.now.UnixMilli(), rec.At)
	assert.Contains(t, env.notifier.cleared, "reminder_A1_24h")

	// Even with history wiped (as the reaper would after the due date
	// rolls over), the completion record blocks rescheduling.
	require.NoError(t, env.store.Update(func(st *store.State) error {
		st.History = map[string]bool{}
		return nil
	}))
	env.alarms.Cancel("reminder_A1_24h")
	assert.Equal(t, 0, env.engine.CheckEvents(context.Background()))
}

func TestSnoozeCreatesDecoupledReminder(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))
	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))
	env.engine.HandleAlarm(context.Background(), "reminder_A1_24h")

	require.NoError(t, env.engine.HandleAction(context.Background(), "reminder_A1_24h", ActionSnooze))

	wantName := fmt.Sprintf("reminder_A1_24h_snooze_%d", env.now.UnixMilli())
	at, ok := env.alarms.armedAt(wantName)
	require.True(t, ok, "snooze must arm a fresh, time-suffixed timer")
	assert.Equal(t, env.now.Add(60*time.Minute), at)

	snap := env.snapshot()
	r, ok := snap.Reminders[wantName]
	require.True(t, ok)
	assert.Equal(t, "A1", r.EventID)
	assert.True(t, strings.HasPrefix(r.Message, "Snoozed: "))
	assert.Equal(t, model.StateArmed, r.State)
	assert.True(t, snap.History[wantName])
	// The original history entry is untouched.
	assert.True(t, snap.History["reminder_A1_24h"])
	assert.Contains(t, env.notifier.cleared, "reminder_A1_24h")
}

func TestSnoozedReminderFiresLikeAnyOther(t *testing.T) {
	env := newTestEnv()
	env.seedEvents(assignmentEvent("A1", "Essay draft"))
	require.Equal(t, 1, env.engine.CheckEvents(context.Background()))
	env.engine.HandleAlarm(context.Background(), "reminder_A1_24h")
	require.NoError(t, env.engine.HandleAction(context.Background(), "reminder_A1_24h", ActionSnooze))

	name := fmt.Sprintf("reminder_A1_24h_snooze_%d", env.now.UnixMilli())
	env.engine.HandleAlarm(context.Background(), name)

	require.Len(t, env.notifier.shown, 2)
	assert.Equal(t, name, env.notifier.shown[1].id)
}

func TestActionOnNonReminderIDFails(t *testing.T) {
	env := newTestEnv()
	assert.Error(t, env.engine.HandleAction(context.Background(), "check_events", ActionComplete))
	assert.Error(t, env.engine.HandleAction(context.Background(), "reminder_A1_24h", 7))
}

func TestTriggerTestReminderArmsManualTimer(t *testing.T) {
	env := newTestEnv()

	name, err := env.engine.TriggerTestReminder(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "assignment_reminder_test_"))

	_, ok := env.alarms.armedAt(name)
	assert.True(t, ok)

	env.engine.HandleAlarm(context.Background(), name)
	require.Len(t, env.notifier.shown, 1)
	assert.Equal(t, name, env.notifier.shown[0].id)
}
