// Package filter implements §4.2: a pure, deterministic reduction of an
// event set to the subset admissible under the active FilterConfig.
package filter

import (
	"strings"

	"github.com/snapetech/sportsgrid/internal/config"
	"github.com/snapetech/sportsgrid/internal/model"
)

// ppvMarkers are package tokens that indicate pay-per-view; matched
// case-insensitively against Event.Packages.
var ppvMarkers = []string{"PPV", "PAY_PER_VIEW"}

// Result pairs the admitted subset with a per-event audit trail, persisted
// by the caller via Store.WriteFilterAudit.
type Result struct {
	Admitted []model.Event
	Audit    []model.FilterAudit
}

// Apply runs every independently-toggleable rule in the config against
// each event and returns the admitted subset plus an audit of every
// decision, admitted or not. Apply never mutates events or the input
// slice, and its output depends only on (events, cfg) — no global state.
func Apply(events []model.Event, cfg config.FilterConfig) Result {
	var res Result
	res.Audit = make([]model.FilterAudit, 0, len(events))

	for _, e := range events {
		ok, reasons := evaluate(e, cfg)
		res.Audit = append(res.Audit, model.FilterAudit{EventID: e.EventID, IsAllowed: ok, Reasons: reasons})
		if ok {
			res.Admitted = append(res.Admitted, e)
		}
	}
	return res
}

func evaluate(e model.Event, cfg config.FilterConfig) (bool, []string) {
	var reasons []string
	allowed := true

	reject := func(reason string) {
		allowed = false
		reasons = append(reasons, reason)
	}

	if !matchesInclude(cfg.IncludeNetworks, e.Network, cfg) {
		reject("network_not_included")
	}
	if matchesExclude(cfg.ExcludeNetworks, e.Network, cfg) {
		reject("network_excluded")
	}

	if !matchesInclude(cfg.IncludeSports, e.Sport, cfg) {
		reject("sport_not_included")
	}
	if matchesExclude(cfg.ExcludeSports, e.Sport, cfg) {
		reject("sport_excluded")
	}

	if !leagueMatchesInclude(cfg.IncludeLeagues, e, cfg) {
		reject("league_not_included")
	}
	if leagueMatchesExclude(cfg.ExcludeLeagues, e, cfg) {
		reject("league_excluded")
	}

	if !matchesInclude(cfg.IncludeLanguages, e.Language, cfg) {
		reject("language_not_included")
	}
	if matchesExclude(cfg.ExcludeLanguages, e.Language, cfg) {
		reject("language_excluded")
	}

	if !matchesInclude(cfg.IncludeEventTypes, string(e.EventType), cfg) {
		reject("event_type_not_included")
	}
	if matchesExclude(cfg.ExcludeEventTypes, string(e.EventType), cfg) {
		reject("event_type_excluded")
	}

	if cfg.RequireESPNPlus && !hasPackage(e.Packages, config.ESPNPlusPackageMarker, cfg) {
		reject("espn_plus_required")
	}

	if cfg.ExcludePPV && isPPV(e.Packages, cfg) {
		reject("ppv_excluded")
	}

	if cfg.ExcludeReair && e.IsReair {
		reject("reair_excluded")
	}

	if cfg.ExcludeNoSport && strings.TrimSpace(e.Sport) == "" {
		reject("no_sport_excluded")
	}

	return allowed, reasons
}

// matchesInclude returns true ("no restriction") when list is empty/wildcard,
// otherwise true iff value case-(in)sensitively equals one entry.
func matchesInclude(list []string, value string, cfg config.FilterConfig) bool {
	if len(list) == 0 {
		return true
	}
	return containsExact(list, value, cfg.CaseInsensitive)
}

func matchesExclude(list []string, value string, cfg config.FilterConfig) bool {
	if len(list) == 0 {
		return false
	}
	return containsExact(list, value, cfg.CaseInsensitive)
}

func containsExact(list []string, value string, caseInsensitive bool) bool {
	for _, entry := range list {
		if caseInsensitive {
			if strings.EqualFold(entry, value) {
				return true
			}
		} else if entry == value {
			return true
		}
	}
	return false
}

// leagueMatchesInclude/Exclude additionally support substring matching
// against both league_name and league_abbr when partial_league_match=true.
func leagueMatchesInclude(list []string, e model.Event, cfg config.FilterConfig) bool {
	if len(list) == 0 {
		return true
	}
	return leagueMatches(list, e, cfg)
}

func leagueMatchesExclude(list []string, e model.Event, cfg config.FilterConfig) bool {
	if len(list) == 0 {
		return false
	}
	return leagueMatches(list, e, cfg)
}

func leagueMatches(list []string, e model.Event, cfg config.FilterConfig) bool {
	for _, entry := range list {
		if leagueFieldMatches(entry, e.LeagueName, cfg) || leagueFieldMatches(entry, e.LeagueAbbr, cfg) {
			return true
		}
	}
	return false
}

func leagueFieldMatches(entry, field string, cfg config.FilterConfig) bool {
	a, b := entry, field
	if cfg.CaseInsensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	if cfg.PartialLeagueMatch {
		return b != "" && strings.Contains(b, a)
	}
	return a == b
}

func hasPackage(packages []string, marker string, cfg config.FilterConfig) bool {
	for _, p := range packages {
		if cfg.CaseInsensitive {
			if strings.EqualFold(p, marker) {
				return true
			}
		} else if p == marker {
			return true
		}
	}
	return false
}

func isPPV(packages []string, cfg config.FilterConfig) bool {
	for _, p := range packages {
		for _, marker := range ppvMarkers {
			if cfg.CaseInsensitive {
				if strings.EqualFold(p, marker) {
					return true
				}
			} else if p == marker {
				return true
			}
		}
	}
	return false
}
