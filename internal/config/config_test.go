package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.Lanes != 10 {
		t.Errorf("Lanes = %d, want 10", c.Lanes)
	}
	if c.ValidHours != 48 {
		t.Errorf("ValidHours = %d, want 48", c.ValidHours)
	}
	if c.AlignMins != 30 {
		t.Errorf("AlignMins = %d, want 30", c.AlignMins)
	}
	if c.MinGapMins != 5 {
		t.Errorf("MinGapMins = %d, want 5", c.MinGapMins)
	}
	if c.ScheduleHours != 6 {
		t.Errorf("ScheduleHours = %d, want 6", c.ScheduleHours)
	}
	if !c.PaddingLiveOnly {
		t.Errorf("PaddingLiveOnly = false, want true")
	}
	if c.Filter.ExcludePPV != true {
		t.Errorf("Filter.ExcludePPV = false, want true")
	}
	if c.Filter.CaseInsensitive != true {
		t.Errorf("Filter.CaseInsensitive = false, want true")
	}
	if c.WatchGraphTimeout != 20*time.Second {
		t.Errorf("WatchGraphTimeout = %v, want 20s", c.WatchGraphTimeout)
	}
}

func TestLoad_overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("SPORTSGRID_LANES", "24")
	os.Setenv("SPORTSGRID_VALID_HOURS", "72")
	os.Setenv("SPORTSGRID_ALIGN", "15")
	os.Setenv("SPORTSGRID_MIN_GAP_MINS", "0")
	os.Setenv("SPORTSGRID_PLACEHOLDER_TITLE", "Off Air")
	os.Setenv("SPORTSGRID_TZ", "America/New_York")
	os.Setenv("SPORTSGRID_DB", "/data/grid.db")

	c := Load()
	if c.Lanes != 24 {
		t.Errorf("Lanes = %d, want 24", c.Lanes)
	}
	if c.ValidHours != 72 {
		t.Errorf("ValidHours = %d, want 72", c.ValidHours)
	}
	if c.AlignMins != 15 {
		t.Errorf("AlignMins = %d, want 15", c.AlignMins)
	}
	if c.MinGapMins != 0 {
		t.Errorf("MinGapMins = %d, want 0", c.MinGapMins)
	}
	if c.PlaceholderTitle != "Off Air" {
		t.Errorf("PlaceholderTitle = %q, want %q", c.PlaceholderTitle, "Off Air")
	}
	if c.TZ != "America/New_York" {
		t.Errorf("TZ = %q", c.TZ)
	}
	if c.DB != "/data/grid.db" {
		t.Errorf("DB = %q", c.DB)
	}
}

func TestLoad_invalidIntsFallBackToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("SPORTSGRID_LANES", "not-a-number")
	c := Load()
	if c.Lanes != 10 {
		t.Errorf("Lanes = %d, want default 10 on parse failure", c.Lanes)
	}
}

func TestLoad_negativeLanesClampToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("SPORTSGRID_LANES", "-3")
	c := Load()
	if c.Lanes != 10 {
		t.Errorf("Lanes = %d, want default 10 for non-positive override", c.Lanes)
	}
}

func TestLoadFilterConfig_lists(t *testing.T) {
	os.Clearenv()
	os.Setenv("SPORTSGRID_FILTER_INCLUDE_NETWORKS", "ESPN, ESPN2 , FOX")
	os.Setenv("SPORTSGRID_FILTER_EXCLUDE_LEAGUES", "*")
	os.Setenv("SPORTSGRID_FILTER_REQUIRE_ESPN_PLUS", "true")

	c := Load()
	want := []string{"ESPN", "ESPN2", "FOX"}
	if len(c.Filter.IncludeNetworks) != len(want) {
		t.Fatalf("IncludeNetworks = %v, want %v", c.Filter.IncludeNetworks, want)
	}
	for i, w := range want {
		if c.Filter.IncludeNetworks[i] != w {
			t.Errorf("IncludeNetworks[%d] = %q, want %q", i, c.Filter.IncludeNetworks[i], w)
		}
	}
	if c.Filter.ExcludeLeagues != nil {
		t.Errorf("ExcludeLeagues = %v, want nil for wildcard", c.Filter.ExcludeLeagues)
	}
	if !c.Filter.RequireESPNPlus {
		t.Errorf("RequireESPNPlus = false, want true")
	}
}

func TestValidate(t *testing.T) {
	os.Clearenv()
	c := Load()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() on defaults: %v", err)
	}
	c.Lanes = 0
	if err := c.Validate(); err == nil {
		t.Errorf("Validate() with Lanes=0, want error")
	}
}

func TestWatchGraphTimeout_override(t *testing.T) {
	os.Clearenv()
	os.Setenv("SPORTSGRID_WATCHGRAPH_TIMEOUT", "5s")
	c := Load()
	if c.WatchGraphTimeout != 5*time.Second {
		t.Errorf("WatchGraphTimeout = %v, want 5s", c.WatchGraphTimeout)
	}
	os.Setenv("SPORTSGRID_WATCHGRAPH_TIMEOUT", "garbage")
	c = Load()
	if c.WatchGraphTimeout != 20*time.Second {
		t.Errorf("WatchGraphTimeout on parse failure = %v, want default 20s", c.WatchGraphTimeout)
	}
}
