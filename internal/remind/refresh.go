package remind

import (
	"context"

	"remindd/internal/feed"
	appLog "remindd/internal/log"
	"remindd/internal/model"
	"remindd/internal/store"
)

// Refresh fetches the feed, reconciles it against the stored events,
// and runs a scheduling pass over the result.
//
// urlOverride, if non-empty, replaces the configured feed URL for this
// refresh only. userInitiated controls failure handling: a fetch or
// parse failure is always recorded as the lastRefreshError diagnostic
// and leaves the previous event collection untouched, but it is only
// re-raised to the caller for user-initiated refreshes; background
// refreshes swallow it.
func (e *Engine) Refresh(ctx context.Context, urlOverride string, userInitiated bool) (model.RefreshSummary, error) {
	url := e.cfg.FeedURL
	if urlOverride != "" {
		url = urlOverride
	}

	body, fromCache, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return e.refreshFailed(err, userInitiated)
	}

	items, err := feed.Parse(body)
	if err != nil {
		return e.refreshFailed(err, userInitiated)
	}

	var res ReconcileResult
	if err := e.store.Update(func(st *store.State) error {
		fetched := eventsFromItems(st, items)
		res = Reconcile(st.Events, fetched, st.Completions, st.InProgress)
		st.Events = res.Events
		for _, id := range res.RemovedIDs {
			delete(st.Completions, id)
			delete(st.InProgress, id)
		}
		return nil
	}); err != nil {
		// A store failure is not a feed failure; surface it regardless
		// of who triggered the refresh.
		return model.RefreshSummary{}, err
	}

	scheduled := e.CheckEvents(ctx)

	summary := model.RefreshSummary{
		Added:     res.Added,
		Updated:   res.Updated,
		Removed:   res.Removed,
		Total:     len(res.Events),
		Scheduled: scheduled,
		FromCache: fromCache,
		At:        e.now().UnixMilli(),
	}
	if err := e.store.Update(func(st *store.State) error {
		st.LastRefreshSummary = &summary
		return nil
	}); err != nil {
		appLog.Error("refresh summary write failed", err)
	}

	appLog.Info("refresh completed",
		"added", summary.Added,
		"updated", summary.Updated,
		"removed", summary.Removed,
		"total", summary.Total,
		"scheduled", summary.Scheduled,
		"from_cache", summary.FromCache,
	)
	return summary, nil
}

func (e *Engine) refreshFailed(cause error, userInitiated bool) (model.RefreshSummary, error) {
	diag := model.RefreshError{
		Error:         cause.Error(),
		UserInitiated: userInitiated,
		At:            e.now().UnixMilli(),
	}
	if err := e.store.Update(func(st *store.State) error {
		st.LastRefreshError = &diag
		return nil
	}); err != nil {
		appLog.Error("refresh error write failed", err)
	}

	appLog.Error("refresh failed", cause, "user_initiated", userInitiated)
	if userInitiated {
		return model.RefreshSummary{}, cause
	}
	return model.RefreshSummary{}, nil
}
