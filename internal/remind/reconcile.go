package remind

import "remindd/internal/model"

// ReconcileResult is the outcome of merging a fresh fetch with the
// previously stored event collection.
type ReconcileResult struct {
	Events  []model.Event
	Added   int
	Updated int
	Removed int
	// RemovedIDs lists feed events that disappeared; their status
	// records must be deleted by the caller's same store update.
	RemovedIDs []string
}

// Reconcile merges fetched events with the previous collection.
//
//   - A fetched event with no previous entry counts as added.
//   - A fetched event differing from its previous entry outside the
//     completion/in-progress fields counts as updated.
//   - Stored completion (and, if not completed, in-progress) status is
//     re-applied onto every event in the result, so a feed re-sync
//     never loses user state.
//   - User-created events from the previous collection are carried over
//     regardless of the fetch; they have no feed source of truth.
//   - Previous feed events absent from the fetch count as removed.
func Reconcile(prev, fetched []model.Event, completions, inProgress map[string]model.StatusRecord) ReconcileResult {
	var res ReconcileResult

	prevByID := make(map[string]model.Event, len(prev))
	for _, ev := range prev {
		prevByID[ev.ID] = ev
	}

	nextIDs := make(map[string]bool, len(fetched))
	next := make([]model.Event, 0, len(fetched))

	for _, ev := range fetched {
		if nextIDs[ev.ID] {
			// Duplicate id within one fetch; first occurrence wins.
			continue
		}
		old, existed := prevByID[ev.ID]
		if !existed {
			res.Added++
		} else if !ev.ContentEquals(old) {
			res.Updated++
		}
		applyStatus(&ev, completions, inProgress)
		next = append(next, ev)
		nextIDs[ev.ID] = true
	}

	for _, ev := range prev {
		if !ev.IsUserCreated() || nextIDs[ev.ID] {
			continue
		}
		applyStatus(&ev, completions, inProgress)
		next = append(next, ev)
		nextIDs[ev.ID] = true
	}

	for _, ev := range prev {
		if nextIDs[ev.ID] || ev.IsUserCreated() {
			continue
		}
		res.Removed++
		res.RemovedIDs = append(res.RemovedIDs, ev.ID)
	}

	res.Events = next
	return res
}

// applyStatus resets and re-applies user status from the stored
// records. In-progress only applies when the event is not completed.
func applyStatus(ev *model.Event, completions, inProgress map[string]model.StatusRecord) {
	ev.IsCompleted = false
	ev.CompletedAt = 0
	ev.IsInProgress = false
	ev.InProgressAt = 0

	if rec, ok := completions[ev.ID]; ok {
		ev.IsCompleted = true
		ev.CompletedAt = rec.At
		return
	}
	if rec, ok := inProgress[ev.ID]; ok {
		ev.IsInProgress = true
		ev.InProgressAt = rec.At
	}
}
