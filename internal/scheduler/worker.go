// Package scheduler drives the periodic build cycle: ingest, filter,
// pad, assign, build, validate, commit, render. It owns single-writer
// discipline via an O_EXCL lockfile so overlapping timer fires and
// manual refresh triggers never race each other.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/snapetech/sportsgrid/internal/config"
	"github.com/snapetech/sportsgrid/internal/filter"
	"github.com/snapetech/sportsgrid/internal/ingest"
	"github.com/snapetech/sportsgrid/internal/m3u"
	"github.com/snapetech/sportsgrid/internal/model"
	"github.com/snapetech/sportsgrid/internal/planner"
	"github.com/snapetech/sportsgrid/internal/store"
	"github.com/snapetech/sportsgrid/internal/xmltv"
)

// Recorder observes build outcomes; nil fields disable that observation.
// The concrete prometheus-backed implementation lives in internal/metrics
// so this package stays free of the metrics dependency for tests.
type Recorder struct {
	ObserveBuildDuration func(time.Duration, error)
	ObserveDropped       func(n int)
	ObserveEventCount    func(n int)
}

// Config controls one Worker's refresh cadence and grid parameters.
type Config struct {
	Interval         time.Duration
	ValidHours       int
	AlignMins        int
	MinGapMins       int
	PlaceholderTitle string
	Padding          planner.PaddingConfig
	Filter           config.FilterConfig
	Lanes            int
	LockPath         string
	OutDir           string
	M3U              m3u.Config
}

// Worker runs the build cycle on a timer and on demand.
type Worker struct {
	cfg      Config
	st       store.Store
	client   *ingest.Client
	lock     *fileLock
	recorder Recorder

	// Refresh is a buffered channel (cap 1); send to trigger an immediate
	// rebuild outside the timer cadence (e.g. from an admin HTTP handler).
	Refresh chan struct{}
}

// New builds a Worker. recorder may be the zero value to disable metrics.
func New(cfg Config, st store.Store, client *ingest.Client, recorder Recorder) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &Worker{
		cfg:      cfg,
		st:       st,
		client:   client,
		lock:     newFileLock(cfg.LockPath),
		recorder: recorder,
		Refresh:  make(chan struct{}, 1),
	}
}

// TriggerRefresh requests an out-of-band rebuild. Non-blocking: if one is
// already pending, this is a no-op.
func (w *Worker) TriggerRefresh() {
	select {
	case w.Refresh <- struct{}{}:
	default:
	}
}

// Run blocks, rebuilding on every tick of cfg.Interval and whenever
// TriggerRefresh fires, until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("scheduler: worker started (interval=%s, valid_hours=%d, lanes=%d)", w.cfg.Interval, w.cfg.ValidHours, w.cfg.Lanes)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	if err := w.runOnce(ctx); err != nil {
		log.Printf("scheduler: initial build failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				log.Printf("scheduler: scheduled build failed: %v", err)
			}
		case <-w.Refresh:
			if err := w.runOnce(ctx); err != nil {
				log.Printf("scheduler: triggered build failed: %v", err)
			}
		}
	}
}

// runOnce acquires the build lock and executes one full cycle. A busy
// lock is not an error — it means a build is already in flight — so
// runOnce logs the skip and returns nil rather than treating it as a
// failure.
func (w *Worker) runOnce(ctx context.Context) error {
	got, err := w.lock.tryLock()
	if err != nil {
		return err
	}
	if !got {
		log.Print("scheduler: build already in progress, skipping this tick")
		return nil
	}
	defer w.lock.release()

	start := time.Now()
	err = w.build(ctx, false)
	if w.recorder.ObserveBuildDuration != nil {
		w.recorder.ObserveBuildDuration(time.Since(start), err)
	}
	return err
}

// RebuildForced runs one cycle ignoring the sticky map, per §4.4's
// force_replan path (the admin "clear sticky / force replan" operation).
func (w *Worker) RebuildForced(ctx context.Context) error {
	got, err := w.lock.tryLock()
	if err != nil {
		return err
	}
	if !got {
		return fmt.Errorf("scheduler: build already in progress")
	}
	defer w.lock.release()
	return w.build(ctx, true)
}

func (w *Worker) build(ctx context.Context, forceReplan bool) error {
	now := time.Now().UTC()

	if w.client != nil {
		events, feeds, changed, err := w.client.Fetch(ctx)
		if err != nil {
			// Transient ingest failures don't abort the cycle: replan
			// against whatever events/feeds the Store already has.
			log.Printf("scheduler: ingest failed, replanning against existing data: %v", err)
		} else if changed {
			for _, e := range events {
				if err := w.st.UpsertEvent(e); err != nil {
					return fmt.Errorf("scheduler: upsert event %s: %w", e.EventID, err)
				}
			}
			for _, f := range feeds {
				if err := w.st.UpsertFeed(f); err != nil {
					return fmt.Errorf("scheduler: upsert feed %s: %w", f.FeedID, err)
				}
			}
		}
	}

	if err := w.st.EnsureChannels(w.cfg.Lanes); err != nil {
		return fmt.Errorf("scheduler: ensure channels: %w", err)
	}
	lanes, err := w.st.ListChannels()
	if err != nil {
		return fmt.Errorf("scheduler: list channels: %w", err)
	}

	// validFrom/validTo are whatever wall-clock now() falls on; they are not
	// snapped to AlignMins. Build's placeholder fill covers [validFrom,
	// validTo) exactly regardless of grid alignment, so an off-grid window
	// never leaves a sliver uncovered — only the interior of a gap snaps to
	// the grid.
	validFrom := now
	validTo := now.Add(time.Duration(w.cfg.ValidHours) * time.Hour)
	windowEvents, err := w.st.ListEventsInWindow(validFrom, validTo)
	if err != nil {
		return fmt.Errorf("scheduler: list events in window: %w", err)
	}

	filtered := filter.Apply(windowEvents, w.cfg.Filter)
	if w.recorder.ObserveEventCount != nil {
		w.recorder.ObserveEventCount(len(filtered.Admitted))
	}
	if err := w.st.WriteFilterAudit(filtered.Audit); err != nil {
		return fmt.Errorf("scheduler: write filter audit: %w", err)
	}

	padded := planner.Pad(filtered.Admitted, w.cfg.Padding)

	feedsByEvent := make(map[string][]model.Feed, len(padded))
	for _, e := range padded {
		feeds, err := w.st.ListFeedsByEvent(e.EventID)
		if err != nil {
			return fmt.Errorf("scheduler: list feeds for event %s: %w", e.EventID, err)
		}
		feedsByEvent[e.EventID] = feeds
	}

	sticky, err := w.st.LoadStickyMap()
	if err != nil {
		return fmt.Errorf("scheduler: load sticky map: %w", err)
	}
	if forceReplan {
		sticky = nil
	}

	assignment := planner.AssignLanes(padded, sticky, lanes, forceReplan, now)
	dropped := len(windowEvents) - len(filtered.Admitted)
	for _, d := range assignment.Decisions {
		if d.Kind != planner.DecisionAssigned {
			dropped++
			log.Printf("scheduler: dropped event=%s reason=%s", d.EventID, d.Reason)
		}
	}
	if w.recorder.ObserveDropped != nil {
		w.recorder.ObserveDropped(dropped)
	}

	gridCfg := planner.GridConfig{
		AlignMins:        w.cfg.AlignMins,
		MinGapMins:       w.cfg.MinGapMins,
		ValidFrom:        validFrom,
		ValidTo:          validTo,
		PlaceholderTitle: w.cfg.PlaceholderTitle,
	}
	built := planner.Build(assignment.ByLane, lanes, feedsByEvent, gridCfg)

	if err := planner.Validate(built.SlotsByLane, lanes, validFrom.Unix(), validTo.Unix()); err != nil {
		return fmt.Errorf("scheduler: %w (keeping prior committed plan)", err)
	}

	planID, err := w.st.BeginPlan(validFrom, validTo, "", "")
	if err != nil {
		return fmt.Errorf("scheduler: begin plan: %w", err)
	}
	for _, slots := range built.SlotsByLane {
		for _, s := range slots {
			if err := w.st.WriteSlot(planID, s); err != nil {
				w.st.AbortPlan(planID)
				return fmt.Errorf("scheduler: write slot: %w", err)
			}
		}
	}
	if err := w.st.CommitPlan(planID, built.Checksum); err != nil {
		w.st.AbortPlan(planID)
		return fmt.Errorf("scheduler: commit plan: %w", err)
	}
	if err := w.st.WriteStickyMap(assignment.StickyMap); err != nil {
		return fmt.Errorf("scheduler: write sticky map: %w", err)
	}

	if err := w.renderArtifacts(lanes, built, windowEvents); err != nil {
		return fmt.Errorf("scheduler: render artifacts: %w", err)
	}

	log.Printf("scheduler: committed plan_id=%d checksum=%s events=%d dropped=%d", planID, built.Checksum, len(filtered.Admitted), len(windowEvents)-len(filtered.Admitted))
	return nil
}

func (w *Worker) renderArtifacts(lanes []model.Channel, built planner.BuildResult, events []model.Event) error {
	byID := make(map[string]model.Event, len(events))
	for _, e := range events {
		byID[e.EventID] = e
	}
	lookup := func(id string) (model.Event, bool) {
		e, ok := byID[id]
		return e, ok
	}

	if err := writeAtomic(filepath.Join(w.cfg.OutDir, "playlist.m3u"), m3u.Render(lanes, w.cfg.M3U)); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(w.cfg.OutDir, "epg.xml"), xmltv.Render(lanes, built.SlotsByLane, lookup, w.cfg.PlaceholderTitle)); err != nil {
		return err
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("scheduler: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sportsgrid-*.tmp")
	if err != nil {
		return fmt.Errorf("scheduler: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("scheduler: rename into %s: %w", path, err)
	}
	return nil
}
