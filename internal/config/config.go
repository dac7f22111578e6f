package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds planner, grid, padding, filter, and artifact settings.
// Load from env and/or config file (future); call LoadEnvFile(".env") before
// Load() to use a .env file.
type Config struct {
	// Planner / grid (§4.5, §6)
	Lanes            int
	ValidHours       int
	AlignMins        int
	MinGapMins       int
	PlaceholderTitle string

	// Padding (§4.3)
	PaddingStartMins int
	PaddingEndMins   int
	PaddingLiveOnly  bool

	// Scheduler (§4.7)
	ScheduleHours int

	// Filter (§4.2)
	Filter FilterConfig

	// Display / artifacts (§6)
	TZ              string
	VCSlateURL      string
	ResolverBaseURL string
	CCHost          string
	CCPort          int
	M3UGroupTitle   string

	// Storage paths
	DB   string
	Out  string
	Logs string

	// Upstream watch-graph ingest
	WatchGraphURL     string
	WatchGraphTimeout time.Duration
}

// FilterConfig is a typed struct enumerating every toggle in §4.2's table;
// no reflection over arbitrary keys.
type FilterConfig struct {
	IncludeNetworks  []string
	ExcludeNetworks  []string
	IncludeSports    []string
	ExcludeSports    []string
	IncludeLeagues   []string
	ExcludeLeagues   []string
	IncludeLanguages []string
	ExcludeLanguages []string
	IncludeEventTypes []string
	ExcludeEventTypes []string

	PartialLeagueMatch bool
	CaseInsensitive    bool

	RequireESPNPlus bool
	ExcludePPV      bool
	ExcludeReair    bool
	ExcludeNoSport  bool
}

// ESPNPlusPackageMarker is the canonical token §4.2's "Require ESPN+" rule looks for.
const ESPNPlusPackageMarker = "ESPN_PLUS"

// Load reads config from environment.
func Load() *Config {
	c := &Config{
		Lanes:            getEnvInt("SPORTSGRID_LANES", 10),
		ValidHours:       getEnvInt("SPORTSGRID_VALID_HOURS", 48),
		AlignMins:        getEnvInt("SPORTSGRID_ALIGN", 30),
		MinGapMins:       getEnvInt("SPORTSGRID_MIN_GAP_MINS", 5),
		PlaceholderTitle: getEnv("SPORTSGRID_PLACEHOLDER_TITLE", "Stand By"),

		PaddingStartMins: getEnvInt("SPORTSGRID_PADDING_START_MINS", 0),
		PaddingEndMins:   getEnvInt("SPORTSGRID_PADDING_END_MINS", 0),
		PaddingLiveOnly:  getEnvBool("SPORTSGRID_PADDING_LIVE_ONLY", true),

		ScheduleHours: getEnvInt("SPORTSGRID_SCHEDULE_HOURS", 6),

		TZ:              getEnv("SPORTSGRID_TZ", "UTC"),
		VCSlateURL:      os.Getenv("SPORTSGRID_VC_SLATE_URL"),
		ResolverBaseURL: getEnv("SPORTSGRID_RESOLVER_BASE_URL", "http://localhost:8085"),
		CCHost:          os.Getenv("SPORTSGRID_CC_HOST"),
		CCPort:          getEnvInt("SPORTSGRID_CC_PORT", 0),
		M3UGroupTitle:   getEnv("SPORTSGRID_M3U_GROUP_TITLE", "Sports"),

		DB:   getEnv("SPORTSGRID_DB", "./sportsgrid.db"),
		Out:  getEnv("SPORTSGRID_OUT", "./out"),
		Logs: getEnv("SPORTSGRID_LOGS", "./logs"),

		WatchGraphURL:     os.Getenv("SPORTSGRID_WATCHGRAPH_URL"),
		WatchGraphTimeout: getEnvDuration("SPORTSGRID_WATCHGRAPH_TIMEOUT", 20*time.Second),
	}
	c.Filter = loadFilterConfig()

	if c.Lanes <= 0 {
		c.Lanes = 10
	}
	if c.ValidHours <= 0 {
		c.ValidHours = 48
	}
	if c.AlignMins <= 0 {
		c.AlignMins = 30
	}
	if c.MinGapMins < 0 {
		c.MinGapMins = 0
	}
	if c.ScheduleHours <= 0 {
		c.ScheduleHours = 6
	}
	if c.WatchGraphTimeout <= 0 {
		c.WatchGraphTimeout = 20 * time.Second
	}
	return c
}

func loadFilterConfig() FilterConfig {
	return FilterConfig{
		IncludeNetworks:   getEnvList("SPORTSGRID_FILTER_INCLUDE_NETWORKS"),
		ExcludeNetworks:   getEnvList("SPORTSGRID_FILTER_EXCLUDE_NETWORKS"),
		IncludeSports:     getEnvList("SPORTSGRID_FILTER_INCLUDE_SPORTS"),
		ExcludeSports:     getEnvList("SPORTSGRID_FILTER_EXCLUDE_SPORTS"),
		IncludeLeagues:    getEnvList("SPORTSGRID_FILTER_INCLUDE_LEAGUES"),
		ExcludeLeagues:    getEnvList("SPORTSGRID_FILTER_EXCLUDE_LEAGUES"),
		IncludeLanguages:  getEnvList("SPORTSGRID_FILTER_INCLUDE_LANGUAGES"),
		ExcludeLanguages:  getEnvList("SPORTSGRID_FILTER_EXCLUDE_LANGUAGES"),
		IncludeEventTypes: getEnvList("SPORTSGRID_FILTER_INCLUDE_EVENT_TYPES"),
		ExcludeEventTypes: getEnvList("SPORTSGRID_FILTER_EXCLUDE_EVENT_TYPES"),

		PartialLeagueMatch: getEnvBool("SPORTSGRID_FILTER_PARTIAL_LEAGUE_MATCH", false),
		CaseInsensitive:    getEnvBool("SPORTSGRID_FILTER_CASE_INSENSITIVE", true),

		RequireESPNPlus: getEnvBool("SPORTSGRID_FILTER_REQUIRE_ESPN_PLUS", false),
		ExcludePPV:      getEnvBool("SPORTSGRID_FILTER_EXCLUDE_PPV", true),
		ExcludeReair:    getEnvBool("SPORTSGRID_FILTER_EXCLUDE_REAIR", false),
		ExcludeNoSport:  getEnvBool("SPORTSGRID_FILTER_EXCLUDE_NO_SPORT", false),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvList(key string) []string {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" || s == "*" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// Validate returns an error describing the first invalid setting, or nil.
func (c *Config) Validate() error {
	if c.Lanes <= 0 {
		return fmt.Errorf("config: SPORTSGRID_LANES must be > 0")
	}
	if c.ValidHours <= 0 {
		return fmt.Errorf("config: SPORTSGRID_VALID_HOURS must be > 0")
	}
	if c.AlignMins <= 0 {
		return fmt.Errorf("config: SPORTSGRID_ALIGN must be > 0")
	}
	if c.MinGapMins < 0 {
		return fmt.Errorf("config: SPORTSGRID_MIN_GAP_MINS must be >= 0")
	}
	return nil
}
