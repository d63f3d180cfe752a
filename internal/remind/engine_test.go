package remind

import (
	"context"
	"errors"
	"sync"
	"time"

	"remindd/internal/config"
	"remindd/internal/model"
	"remindd/internal/notify"
	"remindd/internal/store"
)

// --- fakes ---

type fakeAlarms struct {
	mu     sync.Mutex
	armed  map[string]time.Time
	armErr error
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{armed: map[string]time.Time{}}
}

func (f *fakeAlarms) Arm(name string, at time.Time) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return time.Time{}, f.armErr
	}
	f.armed[name] = at
	return at, nil
}

func (f *fakeAlarms) Cancel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, name)
}

func (f *fakeAlarms) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.armed))
	for name := range f.armed {
		out = append(out, name)
	}
	return out
}

func (f *fakeAlarms) armedAt(name string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.armed[name]
	return at, ok
}

type shownNotification struct {
	id string
	n  notify.Notification
}

type fakeNotifier struct {
	mu      sync.Mutex
	shown   []shownNotification
	cleared []string
	showErr error
}

func (f *fakeNotifier) Show(_ context.Context, id string, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.showErr != nil {
		return f.showErr
	}
	f.shown = append(f.shown, shownNotification{id: id, n: n})
	return nil
}

func (f *fakeNotifier) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	return nil
}

type fakeFetcher struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, bool, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, false, f.err
	}
	return f.body, false, nil
}

var errRender = errors.New("display unavailable")

// --- helpers ---

type testEnv struct {
	engine   *Engine
	store    *store.Store
	alarms   *fakeAlarms
	notifier *fakeNotifier
	fetcher  *fakeFetcher
	now      time.Time
}

func newTestEnv() *testEnv {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.LeadHours = []int{24}

	st, err := store.Open("")
	if err != nil {
		panic(err)
	}

	env := &testEnv{
		store:    st,
		alarms:   newFakeAlarms(),
		notifier: &fakeNotifier{},
		fetcher:  &fakeFetcher{},
		now:      time.Date(2025, 5, 31, 5, 0, 0, 0, time.UTC),
	}
	env.engine = New(cfg, st, env.alarms, env.notifier, env.fetcher)
	env.engine.SetNow(func() time.Time { return env.now })
	return env
}

func (env *testEnv) seedEvents(events ...model.Event) {
	err := env.store.Update(func(st *store.State) error {
		st.Events = append(st.Events, events...)
		return nil
	})
	if err != nil {
		panic(err)
	}
}

func (env *testEnv) snapshot() store.State {
	snap, _ := env.store.Snapshot()
	return snap
}

// assignmentEvent builds a feed-sourced assignment event. The default
// due token 20250601T090000Z is 28h after the test clock.
func assignmentEvent(id, title string) model.Event {
	return model.Event{
		ID:           id,
		Title:        title,
		DueRaw:       "20250601T090000Z",
		StartRaw:     "20250601T080000Z",
		IsAssignment: true,
	}
}
