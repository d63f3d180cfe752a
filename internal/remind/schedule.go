package remind

import (
	"context"
	"fmt"
	"time"

	"remindd/internal/feed"
	appLog "remindd/internal/log"
	"remindd/internal/model"
	"remindd/internal/store"
)

// CheckEvents runs one scheduling pass over the stored events and
// returns the number of reminders armed. The pass is idempotent: a
// second run with no state change in between schedules nothing.
//
// For each event and configured lead time, in order:
//
//   - skip events that are not assignments, are completed, or have a
//     completion record;
//   - skip events whose due instant is unresolved (zero) or already
//     passed;
//   - skip reminder names already marked in history (scheduled or fired
//     before) or already holding a live timer;
//   - discard a stale payload that has no live timer and rebuild it.
//
// The payload and the history mark are persisted before the timer is
// armed, so an interruption in between errs toward a lost reminder
// rather than a duplicated one.
func (e *Engine) CheckEvents(_ context.Context) int {
	now := e.now()

	live := map[string]bool{}
	for _, name := range e.alarms.List() {
		live[name] = true
	}

	type armReq struct {
		name string
		at   time.Time
	}
	var arms []armReq

	err := e.store.Update(func(st *store.State) error {
		for _, ev := range st.Events {
			if !ev.IsAssignment || ev.IsCompleted {
				continue
			}
			if _, done := st.Completions[ev.ID]; done {
				continue
			}

			due := feed.NormalizeToken(ev.DueRaw, e.loc)
			if due == 0 || due <= now.UnixMilli() {
				continue
			}

			for _, lead := range e.cfg.LeadHours {
				name := model.LeadRef(ev.ID, lead).Name()
				if st.History[name] {
					continue
				}
				if live[name] {
					// History/timer desync: a timer exists that history
					// does not know about. Leave it alone.
					continue
				}
				if _, stale := st.Reminders[name]; stale {
					// Payload without a live timer is leftover from an
					// interrupted run; discard and rebuild.
					delete(st.Reminders, name)
				}

				target := time.UnixMilli(due).In(e.loc).Add(-time.Duration(lead) * time.Hour)
				st.Reminders[name] = model.Reminder{
					Name:      name,
					EventID:   ev.ID,
					Message:   reminderMessage(ev.Title, due, e.loc),
					Title:     ev.Title,
					DueMillis: due,
					LeadHours: lead,
					State:     model.StatePending,
					CreatedAt: now.UnixMilli(),
				}
				st.History[name] = true
				arms = append(arms, armReq{name: name, at: target})
			}
		}
		return nil
	})
	if err != nil {
		appLog.Error("scheduling pass failed", err)
		return 0
	}

	scheduled := 0
	for _, a := range arms {
		// Past targets are clamped by the alarm service to its minimum
		// delay, i.e. they fire practically immediately.
		if _, err := e.alarms.Arm(a.name, a.at); err != nil {
			// History stays set: a failed arm loses the reminder rather
			// than risking a duplicate on the next pass.
			appLog.Error("arming reminder failed", err, "name", a.name)
			continue
		}
		if err := e.store.Update(func(st *store.State) error {
			if r, ok := st.Reminders[a.name]; ok {
				r.State = model.StateArmed
				st.Reminders[a.name] = r
			}
			return nil
		}); err != nil {
			appLog.Error("marking reminder armed failed", err, "name", a.name)
		}
		scheduled++
	}

	if scheduled > 0 {
		appLog.Info("reminders scheduled", "count", scheduled)
	}
	return scheduled
}

func reminderMessage(title string, dueMillis int64, loc *time.Location) string {
	due := time.UnixMilli(dueMillis).In(loc)
	return fmt.Sprintf("%s is due %s", title, due.Format("Mon, Jan 2 at 15:04"))
}
