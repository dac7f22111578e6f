package scheduler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/snapetech/sportsgrid/internal/config"
	"github.com/snapetech/sportsgrid/internal/ingest"
	"github.com/snapetech/sportsgrid/internal/m3u"
	"github.com/snapetech/sportsgrid/internal/model"
	"github.com/snapetech/sportsgrid/internal/planner"
	"github.com/snapetech/sportsgrid/internal/store/memstore"
)

func testConfig(t *testing.T, out string) Config {
	t.Helper()
	return Config{
		Interval:         time.Hour,
		ValidHours:       2,
		AlignMins:        30,
		MinGapMins:       5,
		PlaceholderTitle: "Stand By",
		Padding:          planner.PaddingConfig{LiveOnly: true},
		Filter:           config.FilterConfig{CaseInsensitive: true},
		Lanes:            2,
		LockPath:         filepath.Join(out, "build.lock"),
		OutDir:           out,
		M3U:              m3u.Config{ResolverBaseURL: "http://localhost:8085", GroupTitle: "Sports"},
	}
}

func TestBuild_commitsPlanAndWritesArtifacts(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	payload := `[{
		"event_id": "E1",
		"title": "Finals Game 7",
		"sport": "Basketball",
		"network": "ESPN",
		"event_type": "LIVE",
		"start_utc": "` + now.Add(30*time.Minute).Format(time.RFC3339) + `",
		"stop_utc": "` + now.Add(90*time.Minute).Format(time.RFC3339) + `",
		"feeds": [{"feed_id": "f1", "url": "https://cdn.example.com/f1.m3u8", "is_primary": true}]
	}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	out := t.TempDir()
	st := memstore.New()
	client := ingest.New(srv.URL, 5*time.Second, ingest.WithRateLimit(1000, 10))

	w := New(testConfig(t, out), st, client, Recorder{})
	if err := w.build(t.Context(), false); err != nil {
		t.Fatalf("build: %v", err)
	}

	planID, err := st.LatestPlanID()
	if err != nil {
		t.Fatalf("LatestPlanID: %v", err)
	}
	if planID == 0 {
		t.Fatal("expected a committed plan")
	}

	m3uBytes, err := os.ReadFile(filepath.Join(out, "playlist.m3u"))
	if err != nil {
		t.Fatalf("reading playlist.m3u: %v", err)
	}
	if !strings.HasPrefix(string(m3uBytes), "#EXTM3U") {
		t.Error("playlist.m3u missing #EXTM3U header")
	}

	epgBytes, err := os.ReadFile(filepath.Join(out, "epg.xml"))
	if err != nil {
		t.Fatalf("reading epg.xml: %v", err)
	}
	if !strings.Contains(string(epgBytes), "Finals Game 7") {
		t.Errorf("epg.xml missing the ingested event title:\n%s", epgBytes)
	}
}

// Regression: an off-grid now() and off-grid event boundaries must still
// produce a plan whose placeholder fill covers [valid_from, valid_to)
// exactly, even though none of the gap edges land on an ALIGN_MINS
// boundary.
func TestBuild_commitsPlanWithOffGridWindowAndEvent(t *testing.T) {
	now := time.Now().UTC()
	payload := `[{
		"event_id": "E1",
		"title": "Late Afternoon Match",
		"sport": "Soccer",
		"network": "FS1",
		"event_type": "LIVE",
		"start_utc": "` + now.Add(17*time.Minute + 3*time.Second).Format(time.RFC3339) + `",
		"stop_utc": "` + now.Add(83*time.Minute + 12*time.Second).Format(time.RFC3339) + `",
		"feeds": [{"feed_id": "f1", "url": "https://cdn.example.com/f1.m3u8", "is_primary": true}]
	}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	out := t.TempDir()
	st := memstore.New()
	client := ingest.New(srv.URL, 5*time.Second, ingest.WithRateLimit(1000, 10))

	w := New(testConfig(t, out), st, client, Recorder{})
	if err := w.build(t.Context(), false); err != nil {
		t.Fatalf("build with off-grid window/event: %v", err)
	}

	planID, err := st.LatestPlanID()
	if err != nil {
		t.Fatalf("LatestPlanID: %v", err)
	}
	if planID == 0 {
		t.Fatal("expected a committed plan despite off-grid boundaries")
	}

	slots, err := st.ListSlots(planID, "eplus01")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots on lane eplus01")
	}
	run, err := st.LatestPlan()
	if err != nil {
		t.Fatalf("LatestPlan: %v", err)
	}
	if !run.ValidToUTC.Equal(run.ValidFromUTC.Add(2 * time.Hour)) {
		t.Errorf("plan window = [%v, %v), want 2h long", run.ValidFromUTC, run.ValidToUTC)
	}
	if !slots[0].StartUTC.Equal(run.ValidFromUTC) {
		t.Errorf("first slot start = %v, want exactly valid_from = %v", slots[0].StartUTC, run.ValidFromUTC)
	}
	last := slots[len(slots)-1]
	if !last.EndUTC.Equal(run.ValidToUTC) {
		t.Errorf("last slot end = %v, want exactly valid_to = %v", last.EndUTC, run.ValidToUTC)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].StartUTC.Equal(slots[i-1].EndUTC) {
			t.Fatalf("coverage gap/overlap between slot %d (%v) and slot %d (%v)", i-1, slots[i-1], i, slots[i])
		}
	}
}

func TestRunOnce_skipsWhenLockHeld(t *testing.T) {
	out := t.TempDir()
	st := memstore.New()
	cfg := testConfig(t, out)
	w := New(cfg, st, nil, Recorder{})

	held := newFileLock(cfg.LockPath)
	got, err := held.tryLock()
	if err != nil || !got {
		t.Fatalf("failed to pre-acquire lock: got=%v err=%v", got, err)
	}
	defer held.release()

	if err := w.runOnce(t.Context()); err != nil {
		t.Fatalf("runOnce should not error on a busy lock, got: %v", err)
	}
	if _, err := st.LatestPlanID(); err == nil {
		t.Fatal("expected no plan committed while the lock was held")
	}
}

func TestBuild_ingestFailureReplansAgainstExistingData(t *testing.T) {
	out := t.TempDir()
	st := memstore.New()
	now := time.Now().UTC().Truncate(time.Hour)
	if err := st.EnsureChannels(2); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertEvent(model.Event{
		EventID: "E1", Title: "Already Stored Game", EventType: model.EventLive,
		StartUTC: now.Add(30 * time.Minute), StopUTC: now.Add(90 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(t, out)
	client := ingest.New(srv.URL, 5*time.Second, ingest.WithRateLimit(1000, 10))
	w := New(cfg, st, client, Recorder{})

	if err := w.build(t.Context(), false); err != nil {
		t.Fatalf("build should tolerate ingest failure, got: %v", err)
	}

	planID, err := st.LatestPlanID()
	if err != nil {
		t.Fatalf("LatestPlanID: %v", err)
	}
	if planID == 0 {
		t.Fatal("expected a plan committed from pre-existing store data")
	}
}

// S6 — filter yields an empty admitted set; Store events must be left
// untouched and a plan (all placeholders) still gets committed.
func TestBuild_filterEmptySetLeavesStoreEventsUntouched(t *testing.T) {
	out := t.TempDir()
	st := memstore.New()
	now := time.Now().UTC().Truncate(time.Hour)
	if err := st.EnsureChannels(1); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertEvent(model.Event{
		EventID: "E1", Title: "Excluded Game", Network: "BLOCKED", EventType: model.EventLive,
		StartUTC: now.Add(30 * time.Minute), StopUTC: now.Add(90 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, out)
	cfg.Filter.ExcludeNetworks = []string{"BLOCKED"}
	w := New(cfg, st, nil, Recorder{})

	if err := w.build(t.Context(), false); err != nil {
		t.Fatalf("build: %v", err)
	}

	events, err := st.ListEventsInWindow(now, now.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the excluded event to remain in the store, got %d events", len(events))
	}

	planID, err := st.LatestPlanID()
	if err != nil {
		t.Fatalf("LatestPlanID: %v", err)
	}
	slots, err := st.ListSlots(planID, "eplus01")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range slots {
		if s.Kind != model.SlotPlaceholder {
			t.Errorf("slot = %+v, want all placeholders with nothing admitted", s)
		}
	}
}

func TestRebuildForced_ignoresStickyMap(t *testing.T) {
	out := t.TempDir()
	st := memstore.New()
	cfg := testConfig(t, out)
	w := New(cfg, st, nil, Recorder{})

	now := time.Now().UTC()
	if err := st.UpsertEvent(model.Event{
		EventID: "E1", Title: "Pinned Game", EventType: model.EventLive,
		StartUTC: now.Add(30 * time.Minute), StopUTC: now.Add(90 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteStickyMap(map[string]model.EventLane{
		"E1": {EventID: "E1", ChannelID: "eplus02", PinnedAtUTC: now, LastSeenUTC: now},
	}); err != nil {
		t.Fatal(err)
	}

	if err := w.build(t.Context(), false); err != nil {
		t.Fatalf("initial build: %v", err)
	}
	sticky, err := st.LoadStickyMap()
	if err != nil {
		t.Fatal(err)
	}
	if sticky["E1"] != "eplus02" {
		t.Fatalf("after normal build, E1 pinned to %q, want sticky lane eplus02", sticky["E1"])
	}

	if err := w.RebuildForced(t.Context()); err != nil {
		t.Fatalf("forced rebuild: %v", err)
	}
	sticky, err = st.LoadStickyMap()
	if err != nil {
		t.Fatal(err)
	}
	if sticky["E1"] != "eplus01" {
		t.Errorf("after forced rebuild, E1 pinned to %q, want first free lane eplus01", sticky["E1"])
	}
}
