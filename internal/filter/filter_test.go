package filter

import (
	"testing"
	"time"

	"github.com/snapetech/sportsgrid/internal/config"
	"github.com/snapetech/sportsgrid/internal/model"
)

func sampleEvents() []model.Event {
	start := time.Unix(1000, 0).UTC()
	stop := time.Unix(2000, 0).UTC()
	return []model.Event{
		{EventID: "e1", Network: "ESPN", Sport: "Basketball", LeagueName: "NBA", Packages: []string{"ESPN_PLUS"}, StartUTC: start, StopUTC: stop},
		{EventID: "e2", Network: "FOX", Sport: "Football", LeagueName: "NFL", IsReair: true, StartUTC: start, StopUTC: stop},
		{EventID: "e3", Network: "ESPN2", Sport: "", LeagueName: "", StartUTC: start, StopUTC: stop},
		{EventID: "e4", Network: "PPV Network", Sport: "Boxing", LeagueName: "", Packages: []string{"PPV"}, StartUTC: start, StopUTC: stop},
	}
}

func defaultCfg() config.FilterConfig {
	return config.FilterConfig{
		CaseInsensitive: true,
		ExcludePPV:      true,
	}
}

func TestApply_noRestrictions_admitsAll(t *testing.T) {
	res := Apply(sampleEvents(), config.FilterConfig{CaseInsensitive: true})
	if len(res.Admitted) != 4 {
		t.Fatalf("admitted = %d, want 4", len(res.Admitted))
	}
}

func TestApply_excludePPV(t *testing.T) {
	res := Apply(sampleEvents(), defaultCfg())
	for _, e := range res.Admitted {
		if e.EventID == "e4" {
			t.Error("e4 (PPV) should have been excluded")
		}
	}
	if len(res.Admitted) != 3 {
		t.Fatalf("admitted = %d, want 3", len(res.Admitted))
	}
}

func TestApply_excludeReair(t *testing.T) {
	cfg := defaultCfg()
	cfg.ExcludeReair = true
	res := Apply(sampleEvents(), cfg)
	for _, e := range res.Admitted {
		if e.EventID == "e2" {
			t.Error("e2 (re-air) should have been excluded")
		}
	}
}

func TestApply_excludeNoSport(t *testing.T) {
	cfg := defaultCfg()
	cfg.ExcludeNoSport = true
	res := Apply(sampleEvents(), cfg)
	for _, e := range res.Admitted {
		if e.EventID == "e3" {
			t.Error("e3 (no sport) should have been excluded")
		}
	}
}

func TestApply_requireESPNPlus(t *testing.T) {
	cfg := defaultCfg()
	cfg.RequireESPNPlus = true
	res := Apply(sampleEvents(), cfg)
	if len(res.Admitted) != 1 || res.Admitted[0].EventID != "e1" {
		t.Fatalf("admitted = %+v, want only e1", res.Admitted)
	}
}

func TestApply_leaguePartialMatch(t *testing.T) {
	cfg := config.FilterConfig{CaseInsensitive: true, PartialLeagueMatch: true, IncludeLeagues: []string{"nb"}}
	res := Apply(sampleEvents(), cfg)
	if len(res.Admitted) != 1 || res.Admitted[0].EventID != "e1" {
		t.Fatalf("partial league match: admitted = %+v, want only e1 (NBA)", res.Admitted)
	}
}

func TestApply_leagueExactMatchRequiresFullString(t *testing.T) {
	cfg := config.FilterConfig{CaseInsensitive: true, PartialLeagueMatch: false, IncludeLeagues: []string{"nb"}}
	res := Apply(sampleEvents(), cfg)
	if len(res.Admitted) != 0 {
		t.Fatalf("exact league match on partial string should admit nothing; got %+v", res.Admitted)
	}
}

// Property 5: filter purity — deterministic and order-independent over E.
func TestApply_orderIndependent(t *testing.T) {
	events := sampleEvents()
	reversed := make([]model.Event, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}
	cfg := defaultCfg()
	a := Apply(events, cfg)
	b := Apply(reversed, cfg)
	admittedSet := func(res Result) map[string]bool {
		m := make(map[string]bool)
		for _, e := range res.Admitted {
			m[e.EventID] = true
		}
		return m
	}
	setA, setB := admittedSet(a), admittedSet(b)
	if len(setA) != len(setB) {
		t.Fatalf("admitted set size differs by input order: %d vs %d", len(setA), len(setB))
	}
	for id := range setA {
		if !setB[id] {
			t.Errorf("event %s admitted in one order but not the other", id)
		}
	}
}

// Property 5 (monotonicity): adding an exclusion can only shrink the admitted set.
func TestApply_monotonicUnderNewExclusion(t *testing.T) {
	events := sampleEvents()
	before := Apply(events, defaultCfg())

	tighter := defaultCfg()
	tighter.ExcludeNoSport = true
	after := Apply(events, tighter)

	beforeIDs := make(map[string]bool)
	for _, e := range before.Admitted {
		beforeIDs[e.EventID] = true
	}
	for _, e := range after.Admitted {
		if !beforeIDs[e.EventID] {
			t.Fatalf("tightening a filter admitted a new event %s that a looser config rejected", e.EventID)
		}
	}
}

// S6 — empty-set safety: Apply itself never deletes; the unfiltered events
// remain available to the caller regardless of what Apply returns.
func TestApply_emptyResultDoesNotPanicOrMutateInput(t *testing.T) {
	events := sampleEvents()
	cfg := config.FilterConfig{CaseInsensitive: true, IncludeNetworks: []string{"NOBODY"}}
	res := Apply(events, cfg)
	if len(res.Admitted) != 0 {
		t.Fatalf("admitted = %d, want 0 for an impossible include list", len(res.Admitted))
	}
	if len(events) != 4 {
		t.Fatalf("input slice mutated: len = %d, want 4", len(events))
	}
	if len(res.Audit) != 4 {
		t.Fatalf("audit len = %d, want one entry per input event", len(res.Audit))
	}
}
