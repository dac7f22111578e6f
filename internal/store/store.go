// Package store defines the transactional state boundary every other
// component depends on: events, feeds, channels, committed plans, and the
// lane stickiness map. The resolver, the scheduler and the HTTP server take
// the Store interface, never the concrete SQLite type, so tests substitute
// an in-memory fake.
package store

import (
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
)

// Store is the durable transactional state for events, feeds, channels,
// plans, and the sticky map (§4.1).
type Store interface {
	UpsertEvent(e model.Event) error
	UpsertFeed(f model.Feed) error
	DeleteEventsBefore(t time.Time) (int64, error)

	ListEventsInWindow(from, to time.Time) ([]model.Event, error)
	ListFeedsByEvent(eventID string) ([]model.Feed, error)

	ListChannels() ([]model.Channel, error)
	EnsureChannels(count int) error

	LoadStickyMap() (map[string]string, error)
	ClearStickyMap() error
	WriteStickyMap(m map[string]model.EventLane) error

	// BeginPlan opens a new, uncommitted plan row and returns its id.
	// WriteSlot and CommitPlan must be called against the same id within
	// the same logical build; AbortPlan discards it.
	BeginPlan(validFrom, validTo time.Time, sourceVersion, note string) (int64, error)
	WriteSlot(planID int64, slot model.PlanSlot) error
	CommitPlan(planID int64, checksum string) error
	AbortPlan(planID int64) error

	LatestPlanID() (int64, error)
	LatestPlan() (model.PlanRun, error)
	FindSlot(lane string, at time.Time) (model.PlanSlot, bool, error)
	ListSlots(planID int64, lane string) ([]model.PlanSlot, error)

	WriteFilterAudit(audits []model.FilterAudit) error

	Close() error
}

// ErrNoActivePlan is returned by LatestPlan/LatestPlanID when no plan has
// ever been committed.
type ErrNoActivePlan struct{}

func (ErrNoActivePlan) Error() string { return "store: no committed plan" }
