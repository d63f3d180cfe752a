package remind

import (
	"context"

	"remindd/internal/feed"
	appLog "remindd/internal/log"
	"remindd/internal/model"
	"remindd/internal/store"
)

// Reap garbage-collects reminder bookkeeping for events that are no
// longer relevant: due at or before now, or no longer present in the
// event collection. It deletes the payloads and history marks and
// cancels any corresponding live timers, and returns the number of
// entries removed. A snoozed reminder whose timer is still pending is
// exempt: it fires at the user-chosen instant regardless of the owning
// event's due date, and its bookkeeping becomes reapable only after
// the timer is spent. Surrogate id mappings whose event left the
// collection are dropped in the same pass.
//
// Reap runs once at process start before the first scheduling pass, so
// a stale history entry can never block rescheduling for an event
// whose due date rolled over (e.g. a corrected feed entry reusing an
// id), and again on every periodic check.
func (e *Engine) Reap(_ context.Context) int {
	nowMillis := e.now().UnixMilli()

	live := map[string]bool{}
	for _, name := range e.alarms.List() {
		live[name] = true
	}

	removed := 0
	orphaned := 0
	cancels := map[string]bool{}

	err := e.store.Update(func(st *store.State) error {
		present := map[string]bool{}
		stillDue := map[string]bool{}
		for _, ev := range st.Events {
			present[ev.ID] = true
			due := feed.NormalizeToken(ev.DueRaw, e.loc)
			if due > nowMillis {
				stillDue[ev.ID] = true
			}
		}

		for name, r := range st.Reminders {
			if stillDue[r.EventID] {
				continue
			}
			if ref, ok := model.ParseReminderRef(name); ok && ref.IsSnooze() && live[name] {
				continue
			}
			delete(st.Reminders, name)
			cancels[name] = true
			removed++
		}

		for name := range st.History {
			ref, ok := model.ParseReminderRef(name)
			if !ok {
				// Not reminder-shaped; leave it, nothing schedules
				// under such a name anyway.
				continue
			}
			if stillDue[ref.EventID] {
				continue
			}
			if ref.IsSnooze() && live[name] {
				continue
			}
			delete(st.History, name)
			cancels[name] = true
			removed++
		}

		for fp, id := range st.Surrogates {
			if !present[id] {
				delete(st.Surrogates, fp)
				orphaned++
			}
		}
		return nil
	})
	if err != nil {
		appLog.Error("reap failed", err)
		return 0
	}

	for name := range cancels {
		e.alarms.Cancel(name)
	}

	if removed > 0 {
		appLog.Info("stale reminder entries reaped", "count", removed)
	}
	if orphaned > 0 {
		appLog.Info("orphaned surrogate ids dropped", "count", orphaned)
	}
	return removed
}
