package remind

import (
	"context"
	"fmt"
	"strconv"

	"remindd/internal/feed"
	appLog "remindd/internal/log"
	"remindd/internal/model"
	"remindd/internal/notify"
	"remindd/internal/store"
)

const notificationTitle = "Assignment reminder"

// dispatch reacts to a fired reminder timer: look up the payload,
// render the notification, and do the post-display bookkeeping.
//
// A missing payload means the timer fired but its reminder was already
// consumed or never written; that is recorded as a diagnostic and not
// retried. On a successful render the history mark is re-asserted and
// the payload is consumed. On a failed render the history mark is
// cleared and the payload kept, so a later scheduling pass can arm it
// again instead of stranding the reminder forever.
func (e *Engine) dispatch(ctx context.Context, name string) {
	now := e.now().UnixMilli()

	var payload model.Reminder
	found := false
	if err := e.store.Update(func(st *store.State) error {
		r, ok := st.Reminders[name]
		if !ok {
			st.LastNotificationResult = &model.NotificationResult{
				Name:    name,
				Outcome: "missing_payload",
				At:      now,
			}
			return nil
		}
		found = true
		r.State = model.StateFired
		st.Reminders[name] = r
		payload = r
		return nil
	}); err != nil {
		appLog.Error("dispatch: store update failed", err, "name", name)
		return
	}
	if !found {
		appLog.Warn("reminder timer fired without payload", "name", name)
		return
	}

	n := notify.Notification{
		Title:              notificationTitle,
		Message:            payload.Message,
		Actions:            []string{"Mark complete", e.snoozeLabel()},
		RequireInteraction: true,
	}
	if err := e.notifier.Show(ctx, name, n); err != nil {
		if uerr := e.store.Update(func(st *store.State) error {
			delete(st.History, name)
			if r, ok := st.Reminders[name]; ok {
				r.State = model.StatePending
				st.Reminders[name] = r
			}
			st.LastNotificationResult = &model.NotificationResult{
				Name:    name,
				Outcome: "render_failed",
				Error:   err.Error(),
				At:      now,
			}
			return nil
		}); uerr != nil {
			appLog.Error("dispatch: render-failure bookkeeping failed", uerr, "name", name)
		}
		appLog.Error("notification render failed", err, "name", name)
		return
	}

	if err := e.store.Update(func(st *store.State) error {
		st.History[name] = true
		delete(st.Reminders, name)
		st.LastNotificationResult = &model.NotificationResult{
			Name:    name,
			Outcome: "shown",
			At:      now,
		}
		return nil
	}); err != nil {
		appLog.Error("dispatch: post-show bookkeeping failed", err, "name", name)
	}
}

func (e *Engine) snoozeLabel() string {
	return fmt.Sprintf("Snooze %d min", e.cfg.SnoozeMinutes)
}

// HandleAction reacts to a button click on a displayed reminder.
// Index 0 marks the owning event complete; index 1 snoozes.
func (e *Engine) HandleAction(ctx context.Context, id string, action int) error {
	ref, ok := model.ParseReminderRef(id)
	if !ok {
		return fmt.Errorf("not a reminder notification id: %q", id)
	}

	switch action {
	case ActionComplete:
		return e.complete(ctx, id, ref)
	case ActionSnooze:
		return e.snooze(ctx, id, ref)
	default:
		return fmt.Errorf("unknown action index %d", action)
	}
}

// HandleClicked reacts to a click on the notification body.
func (e *Engine) HandleClicked(ctx context.Context, id string) error {
	if _, ok := model.ParseReminderRef(id); !ok {
		return fmt.Errorf("not a reminder notification id: %q", id)
	}
	return e.notifier.Clear(ctx, id)
}

func (e *Engine) complete(ctx context.Context, id string, ref model.ReminderRef) error {
	now := e.now().UnixMilli()

	if err := e.store.Update(func(st *store.State) error {
		title := ""
		if r, ok := st.Reminders[id]; ok {
			title = r.Title
		}
		for i := range st.Events {
			if st.Events[i].ID != ref.EventID {
				continue
			}
			if title == "" {
				title = st.Events[i].Title
			}
			st.Events[i].IsCompleted = true
			st.Events[i].CompletedAt = now
			st.Events[i].IsInProgress = false
			st.Events[i].InProgressAt = 0
		}

		st.Completions[ref.EventID] = model.StatusRecord{
			EventID: ref.EventID,
			At:      now,
			Title:   title,
		}
		delete(st.InProgress, ref.EventID)
		delete(st.Reminders, id)
		st.LastNotificationResult = &model.NotificationResult{
			Name:    id,
			Outcome: string(model.StateCompleted),
			At:      now,
		}
		return nil
	}); err != nil {
		return err
	}

	appLog.Info("event marked complete", "event_id", ref.EventID)
	return e.notifier.Clear(ctx, id)
}

// snooze derives a fresh, time-suffixed reminder from the original and
// arms it for the configured snooze delay. The new reminder gets its
// own history mark and is fully decoupled from the original lead-time
// bookkeeping.
func (e *Engine) snooze(ctx context.Context, id string, ref model.ReminderRef) error {
	now := e.now()
	newRef := ref.Snoozed(now)
	newName := newRef.Name()
	fireAt := now.Add(e.cfg.Snooze())

	if err := e.store.Update(func(st *store.State) error {
		base, ok := st.Reminders[id]
		if !ok {
			// The original payload was consumed when shown; rebuild
			// from the owning event.
			base = model.Reminder{
				EventID:   ref.EventID,
				LeadHours: ref.LeadHours,
			}
			for _, ev := range st.Events {
				if ev.ID == ref.EventID {
					base.Title = ev.Title
					base.DueMillis = feed.NormalizeToken(ev.DueRaw, e.loc)
					base.Message = reminderMessage(ev.Title, base.DueMillis, e.loc)
					break
				}
			}
			if base.Message == "" {
				base.Message = "Snoozed reminder"
			}
		}

		r := base
		r.Name = newName
		r.Message = "Snoozed: " + base.Message
		r.State = model.StatePending
		r.CreatedAt = now.UnixMilli()
		st.Reminders[newName] = r
		st.History[newName] = true
		delete(st.Reminders, id)
		st.LastNotificationResult = &model.NotificationResult{
			Name:    newName,
			Outcome: string(model.StateSnoozed),
			At:      now.UnixMilli(),
		}
		return nil
	}); err != nil {
		return err
	}

	if _, err := e.alarms.Arm(newName, fireAt); err != nil {
		return err
	}
	if err := e.store.Update(func(st *store.State) error {
		if r, ok := st.Reminders[newName]; ok {
			r.State = model.StateArmed
			st.Reminders[newName] = r
		}
		return nil
	}); err != nil {
		appLog.Error("marking snoozed reminder armed failed", err, "name", newName)
	}

	appLog.Info("reminder snoozed", "from", id, "to", newName, "fire_at", fireAt.Format("15:04:05"))
	return e.notifier.Clear(ctx, id)
}

// TriggerTestReminder arms a diagnostic reminder that fires at the
// platform minimum delay and returns its timer name.
func (e *Engine) TriggerTestReminder(_ context.Context) (string, error) {
	now := e.now()
	ref := model.ManualRef("test_" + strconv.FormatInt(now.UnixMilli(), 10))
	name := ref.Name()

	if err := e.store.Update(func(st *store.State) error {
		st.Reminders[name] = model.Reminder{
			Name:      name,
			EventID:   ref.EventID,
			Message:   "Test reminder: scheduling pipeline is working",
			Title:     "Test reminder",
			State:     model.StatePending,
			CreatedAt: now.UnixMilli(),
		}
		st.History[name] = true
		return nil
	}); err != nil {
		return "", err
	}

	// Asking for "now" lands on the minimum supported delay.
	if _, err := e.alarms.Arm(name, now); err != nil {
		return "", err
	}
	if err := e.store.Update(func(st *store.State) error {
		if r, ok := st.Reminders[name]; ok {
			r.State = model.StateArmed
			st.Reminders[name] = r
		}
		return nil
	}); err != nil {
		appLog.Error("marking test reminder armed failed", err, "name", name)
	}
	return name, nil
}
