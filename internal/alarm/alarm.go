package alarm

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "remindd/internal/log"
	"remindd/internal/store"
)

// MinDelay is the minimum supported one-shot delay. Arming for an
// earlier instant clamps forward, which the scheduler treats as "fire
// immediately, practically".
const MinDelay = 30 * time.Second

// Handler receives the name of a fired alarm.
type Handler func(name string)

// Service provides named fire-once-at-time alarms and named periodic
// jobs on top of a single cron runner. One-shot alarms are persisted in
// the store and re-armed by Rearm after a restart; periodic jobs are
// re-registered by the caller at startup and are not persisted.
type Service struct {
	mu       sync.Mutex
	cron     *cron.Cron
	oneShots map[string]cron.EntryID
	periodic map[string]cron.EntryID
	handler  Handler
	store    *store.Store
	now      func() time.Time
}

// New creates a stopped Service backed by st.
func New(st *store.Store) *Service {
	return &Service{
		cron:     cron.New(),
		oneShots: map[string]cron.EntryID{},
		periodic: map[string]cron.EntryID{},
		store:    st,
		now:      time.Now,
	}
}

// OnFire sets the fire handler. Must be called before Start.
func (s *Service) OnFire(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) Start() { s.cron.Start() }

// Stop halts the runner and waits for in-flight jobs.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// onceSchedule fires a cron entry exactly once at a fixed instant.
type onceSchedule struct{ at time.Time }

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// Arm schedules a one-shot alarm under name, replacing any existing
// alarm with the same name. The effective fire instant (after the
// MinDelay clamp) is returned and persisted so the alarm survives a
// restart.
func (s *Service) Arm(name string, at time.Time) (time.Time, error) {
	if name == "" {
		return time.Time{}, errors.New("alarm name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	min := s.now().Add(MinDelay)
	if at.Before(min) {
		at = min
	}

	if old, ok := s.oneShots[name]; ok {
		s.cron.Remove(old)
		delete(s.oneShots, name)
	}

	if err := s.store.Update(func(st *store.State) error {
		st.Alarms[name] = at.UnixMilli()
		return nil
	}); err != nil {
		return time.Time{}, err
	}

	id := s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() { s.fire(name) }))
	s.oneShots[name] = id

	appLog.Debug("alarm armed", "name", name, "at", at.Format(time.RFC3339))
	return at, nil
}

// ArmPeriodic registers a periodic job under name with a cron spec.
// Re-registering an existing name is a no-op, so startup can simply
// ensure the job exists.
func (s *Service) ArmPeriodic(name, spec string) error {
	if name == "" {
		return errors.New("alarm name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.periodic[name]; ok {
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() { s.firePeriodic(name) })
	if err != nil {
		return err
	}
	s.periodic[name] = id
	return nil
}

// Cancel removes the named alarm or periodic job if present.
func (s *Service) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.oneShots[name]; ok {
		s.cron.Remove(id)
		delete(s.oneShots, name)
		if err := s.store.Update(func(st *store.State) error {
			delete(st.Alarms, name)
			return nil
		}); err != nil {
			appLog.Error("alarm cancel: store update failed", err, "name", name)
		}
	}
	if id, ok := s.periodic[name]; ok {
		s.cron.Remove(id)
		delete(s.periodic, name)
	}
}

// Exists reports whether a live alarm or periodic job is registered
// under name.
func (s *Service) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, one := s.oneShots[name]
	_, per := s.periodic[name]
	return one || per
}

// List returns the names of all live alarms and periodic jobs.
func (s *Service) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.oneShots)+len(s.periodic))
	for name := range s.oneShots {
		out = append(out, name)
	}
	for name := range s.periodic {
		out = append(out, name)
	}
	return out
}

// Rearm re-creates one-shot alarms persisted in the store, clamping
// fire instants that passed while the process was down.
func (s *Service) Rearm() error {
	var persisted map[string]int64
	s.store.View(func(st store.State) {
		persisted = st.Alarms
	})

	for name, millis := range persisted {
		if _, err := s.Arm(name, time.UnixMilli(millis)); err != nil {
			return err
		}
	}
	if len(persisted) > 0 {
		appLog.Info("alarms re-armed", "count", len(persisted))
	}
	return nil
}

// fire consumes a one-shot alarm: exactly one handler call per armed
// name, with the persisted record dropped before the handler runs.
func (s *Service) fire(name string) {
	s.mu.Lock()
	id, ok := s.oneShots[name]
	if ok {
		delete(s.oneShots, name)
	}
	h := s.handler
	s.mu.Unlock()

	if !ok {
		return
	}
	s.cron.Remove(id)

	if err := s.store.Update(func(st *store.State) error {
		delete(st.Alarms, name)
		return nil
	}); err != nil {
		appLog.Error("alarm fire: store update failed", err, "name", name)
	}

	appLog.Debug("alarm fired", "name", name)
	if h != nil {
		h(name)
	}
}

func (s *Service) firePeriodic(name string) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(name)
	}
}
