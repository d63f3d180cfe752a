package remind

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"remindd/internal/config"
	"remindd/internal/feed"
	appLog "remindd/internal/log"
	"remindd/internal/model"
	"remindd/internal/notify"
	"remindd/internal/store"
)

// Periodic job names routed by HandleAlarm.
const (
	JobCheckEvents = "check_events"
	JobRefreshFeed = "refresh_feed"
)

// Action button indices on a displayed reminder.
const (
	ActionComplete = 0
	ActionSnooze   = 1
)

// Fetcher is the feed fetch primitive; *feed.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, bool, error)
}

// Alarms is the timer primitive; *alarm.Service satisfies it.
type Alarms interface {
	Arm(name string, at time.Time) (time.Time, error)
	Cancel(name string)
	List() []string
}

// Engine drives the whole reminder pipeline: refresh, reconcile,
// schedule, dispatch, reap. All shared state lives in the store; every
// logical operation is one atomic Update.
type Engine struct {
	cfg      *config.Config
	store    *store.Store
	alarms   Alarms
	notifier notify.Notifier
	fetcher  Fetcher

	now func() time.Time
	loc *time.Location
}

func New(cfg *config.Config, st *store.Store, alarms Alarms, notifier notify.Notifier, fetcher Fetcher) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    st,
		alarms:   alarms,
		notifier: notifier,
		fetcher:  fetcher,
		now:      time.Now,
		loc:      cfg.Location(),
	}
}

// SetNow overrides the clock, for tests.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

// Startup runs the initial reap -> refresh -> schedule pass. The reap
// runs against the pre-refresh snapshot: a history mark left over from
// a past due date must be cleared before the refresh rolls the due date
// forward, or the first scheduling pass would skip the corrected event.
// The refresh is treated as background-initiated, so feed failures are
// recorded but do not abort startup.
func (e *Engine) Startup(ctx context.Context) {
	e.Reap(ctx)
	if _, err := e.Refresh(ctx, "", false); err != nil {
		// Background refreshes swallow errors; only a store failure
		// lands here.
		appLog.Error("startup refresh failed", err)
	}
	e.CheckEvents(ctx)
}

// HandleAlarm routes a fired timer by name: the two periodic jobs by
// their fixed names, everything reminder-shaped to the dispatcher.
func (e *Engine) HandleAlarm(ctx context.Context, name string) {
	switch name {
	case JobCheckEvents:
		e.Reap(ctx)
		e.CheckEvents(ctx)
	case JobRefreshFeed:
		if _, err := e.Refresh(ctx, "", false); err != nil {
			appLog.Error("periodic refresh failed", err)
		}
	default:
		if _, ok := model.ParseReminderRef(name); ok {
			e.dispatch(ctx, name)
			return
		}
		appLog.Warn("alarm fired with unrecognized name", "name", name)
	}
}

// eventsFromItems converts parsed feed items into events, minting and
// persisting surrogate ids for items that carry no UID. The surrogate
// is keyed by a title+due fingerprint, so it is only as stable as the
// title until first observation; from then on the persisted mapping
// keeps identity stable.
func eventsFromItems(st *store.State, items []feed.Item) []model.Event {
	out := make([]model.Event, 0, len(items))
	for _, it := range items {
		id := it.UID
		if id == "" {
			fp := fingerprint(it.Summary, it.DueRaw)
			id = st.Surrogates[fp]
			if id == "" {
				id = uuid.NewString()
				st.Surrogates[fp] = id
			}
		}
		out = append(out, model.Event{
			ID:           id,
			Title:        it.Summary,
			DueRaw:       it.DueRaw,
			StartRaw:     it.StartRaw,
			IsAssignment: it.IsAssignment(),
		})
	}
	return out
}

func fingerprint(title, dueRaw string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + dueRaw))
	return hex.EncodeToString(sum[:8])
}
