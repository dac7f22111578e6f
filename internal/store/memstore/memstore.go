// Package memstore is an in-memory Store implementation used by the
// resolver, scheduler, store and tunerhttp tests so they never touch a real
// SQLite file.
package memstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
	"github.com/snapetech/sportsgrid/internal/store"
)

type planRow struct {
	run       model.PlanRun
	slots     []model.PlanSlot
	committed bool
}

// Store is a goroutine-safe, in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	events   map[string]model.Event
	feeds    map[string][]model.Feed // by event_id
	channels map[string]model.Channel

	sticky map[string]model.EventLane

	plans     map[int64]*planRow
	nextPlan  int64
	latestID  int64
	hasLatest bool

	audits map[string]model.FilterAudit
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		events:   make(map[string]model.Event),
		feeds:    make(map[string][]model.Feed),
		channels: make(map[string]model.Channel),
		sticky:   make(map[string]model.EventLane),
		plans:    make(map[int64]*planRow),
		audits:   make(map[string]model.FilterAudit),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) UpsertEvent(e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.EventID] = e
	return nil
}

func (s *Store) UpsertFeed(f model.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.feeds[f.EventID]
	for i, existing := range list {
		if existing.FeedID == f.FeedID {
			list[i] = f
			s.feeds[f.EventID] = list
			return nil
		}
	}
	s.feeds[f.EventID] = append(list, f)
	return nil
}

func (s *Store) DeleteEventsBefore(t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.events {
		if e.StopUTC.Before(t) {
			delete(s.events, id)
			delete(s.feeds, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListEventsInWindow(from, to time.Time) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, e := range s.events {
		if e.StartUTC.Before(to) && e.StopUTC.After(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartUTC.Equal(out[j].StartUTC) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].StartUTC.Before(out[j].StartUTC)
	})
	return out, nil
}

func (s *Store) ListFeedsByEvent(eventID string) ([]model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]model.Feed(nil), s.feeds[eventID]...)
	sort.Slice(list, func(i, j int) bool { return list[i].FeedID < list[j].FeedID })
	return list, nil
}

func (s *Store) ListChannels() ([]model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chno < out[j].Chno })
	return out, nil
}

func (s *Store) EnsureChannels(count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	have := make(map[int]bool)
	for _, c := range s.channels {
		have[c.Chno] = true
	}
	for n := 1; n <= count; n++ {
		if have[n] {
			continue
		}
		id := fmt.Sprintf("eplus%02d", n)
		s.channels[id] = model.Channel{ChannelID: id, Chno: n, Name: fmt.Sprintf("ESPN+ %d", n), GroupName: "Sports", Active: true}
	}
	return nil
}

func (s *Store) LoadStickyMap() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]string, len(s.sticky))
	for id, lane := range s.sticky {
		m[id] = lane.ChannelID
	}
	return m, nil
}

func (s *Store) ClearStickyMap() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sticky = make(map[string]model.EventLane)
	return nil
}

func (s *Store) WriteStickyMap(m map[string]model.EventLane) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, lane := range m {
		s.sticky[id] = lane
	}
	return nil
}

func (s *Store) BeginPlan(validFrom, validTo time.Time, sourceVersion, note string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPlan++
	id := s.nextPlan
	s.plans[id] = &planRow{run: model.PlanRun{
		PlanID:         id,
		GeneratedAtUTC: time.Now().UTC(),
		ValidFromUTC:   validFrom,
		ValidToUTC:     validTo,
		SourceVersion:  sourceVersion,
		Note:           note,
	}}
	return id, nil
}

func (s *Store) WriteSlot(planID int64, slot model.PlanSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return fmt.Errorf("memstore: write slot: unknown plan %d", planID)
	}
	p.slots = append(p.slots, slot)
	return nil
}

func (s *Store) CommitPlan(planID int64, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return fmt.Errorf("memstore: commit plan: unknown plan %d", planID)
	}
	p.run.Checksum = checksum
	p.committed = true
	if !s.hasLatest || planID > s.latestID {
		s.latestID = planID
		s.hasLatest = true
	}
	return nil
}

func (s *Store) AbortPlan(planID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, planID)
	return nil
}

func (s *Store) LatestPlanID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLatest {
		return 0, store.ErrNoActivePlan{}
	}
	return s.latestID, nil
}

func (s *Store) LatestPlan() (model.PlanRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLatest {
		return model.PlanRun{}, store.ErrNoActivePlan{}
	}
	return s.plans[s.latestID].run, nil
}

func (s *Store) FindSlot(lane string, at time.Time) (model.PlanSlot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLatest {
		return model.PlanSlot{}, false, store.ErrNoActivePlan{}
	}
	p := s.plans[s.latestID]
	var best model.PlanSlot
	found := false
	for _, slot := range p.slots {
		if slot.ChannelID != lane {
			continue
		}
		if (slot.StartUTC.Before(at) || slot.StartUTC.Equal(at)) && slot.EndUTC.After(at) {
			if !found || slot.StartUTC.After(best.StartUTC) {
				best = slot
				found = true
			}
		}
	}
	return best, found, nil
}

func (s *Store) ListSlots(planID int64, lane string) ([]model.PlanSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, nil
	}
	var out []model.PlanSlot
	for _, slot := range p.slots {
		if slot.ChannelID == lane {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.Before(out[j].StartUTC) })
	return out, nil
}

func (s *Store) WriteFilterAudit(audits []model.FilterAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = make(map[string]model.FilterAudit, len(audits))
	for _, a := range audits {
		s.audits[a.EventID] = a
	}
	return nil
}

func (s *Store) Close() error { return nil }
