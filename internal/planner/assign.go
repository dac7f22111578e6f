package planner

import (
	"sort"
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
)

// DecisionKind classifies one lane-assignment outcome for logging.
type DecisionKind string

const (
	DecisionAssigned DecisionKind = "assigned"
	DecisionDropped  DecisionKind = "dropped_overlap"
)

// Decision records what happened to one event during assignment, for the
// scheduler's sanity log line and for tests.
type Decision struct {
	EventID string
	Kind    DecisionKind
	LaneID  string // set iff Kind == DecisionAssigned
	Reason  string // set iff Kind == DecisionDropped
}

// Assignment is the outcome of §4.4: which events landed on which lane,
// the events that were dropped, and the sticky map to persist for the
// next build.
type Assignment struct {
	ByLane     map[string][]model.PaddedEvent
	Decisions  []Decision
	StickyMap  map[string]model.EventLane
}

type interval struct {
	start, end time.Time
}

func overlaps(a, b interval) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

// AssignLanes implements §4.4's sticky-first placement. Neither input
// need be pre-sorted: AssignLanes sorts the active lanes by chno ascending,
// and sorts a copy of events by effective_start ascending, tiebreak
// event_id.
func AssignLanes(events []model.PaddedEvent, sticky map[string]string, lanes []model.Channel, forceReplan bool, now time.Time) Assignment {
	sorted := append([]model.PaddedEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EffectiveStart.Equal(sorted[j].EffectiveStart) {
			return sorted[i].EventID < sorted[j].EventID
		}
		return sorted[i].EffectiveStart.Before(sorted[j].EffectiveStart)
	})

	activeLanes := make([]model.Channel, 0, len(lanes))
	activeSet := make(map[string]bool)
	for _, l := range lanes {
		if l.Active {
			activeLanes = append(activeLanes, l)
			activeSet[l.ChannelID] = true
		}
	}
	sort.Slice(activeLanes, func(i, j int) bool { return activeLanes[i].Chno < activeLanes[j].Chno })

	if forceReplan {
		sticky = nil
	}

	timeline := make(map[string][]interval, len(activeLanes))
	result := Assignment{
		ByLane:    make(map[string][]model.PaddedEvent, len(activeLanes)),
		StickyMap: make(map[string]model.EventLane),
	}

	fits := func(lane string, iv interval) bool {
		for _, existing := range timeline[lane] {
			if overlaps(existing, iv) {
				return false
			}
		}
		return true
	}

	for _, pe := range sorted {
		iv := interval{start: pe.EffectiveStart, end: pe.EffectiveEnd}

		var assignedLane string
		if sticky != nil {
			if pref, ok := sticky[pe.EventID]; ok && activeSet[pref] && fits(pref, iv) {
				assignedLane = pref
			}
		}
		if assignedLane == "" {
			for _, lane := range activeLanes {
				if fits(lane.ChannelID, iv) {
					assignedLane = lane.ChannelID
					break
				}
			}
		}

		if assignedLane == "" {
			result.Decisions = append(result.Decisions, Decision{
				EventID: pe.EventID, Kind: DecisionDropped, Reason: "event_overlap_detected",
			})
			continue
		}

		timeline[assignedLane] = append(timeline[assignedLane], iv)
		result.ByLane[assignedLane] = append(result.ByLane[assignedLane], pe)
		result.Decisions = append(result.Decisions, Decision{EventID: pe.EventID, Kind: DecisionAssigned, LaneID: assignedLane})
		result.StickyMap[pe.EventID] = model.EventLane{
			EventID:     pe.EventID,
			ChannelID:   assignedLane,
			PinnedAtUTC: now,
			LastSeenUTC: now,
		}
	}

	return result
}
