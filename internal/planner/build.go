package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
)

// GridConfig controls §4.5: alignment, minimum placeholder duration, and
// the planning window.
type GridConfig struct {
	AlignMins        int
	MinGapMins       int
	ValidFrom        time.Time
	ValidTo          time.Time
	PlaceholderTitle string
}

// BuildResult is the materialized plan for every lane, ready for
// Store.WriteSlot/CommitPlan.
type BuildResult struct {
	SlotsByLane map[string][]model.PlanSlot
	Checksum    string
}

// Build implements §4.5 steps 1-7 per lane, independently, then computes
// a checksum over the full sorted slot set for step 8. It does not talk
// to Store — the caller (scheduler) is responsible for BeginPlan/WriteSlot/
// CommitPlan around this pure computation.
func Build(byLane map[string][]model.PaddedEvent, lanes []model.Channel, feedsByEvent map[string][]model.Feed, cfg GridConfig) BuildResult {
	result := BuildResult{SlotsByLane: make(map[string][]model.PlanSlot, len(lanes))}

	for _, lane := range lanes {
		if !lane.Active {
			continue
		}
		events := clip(byLane[lane.ChannelID], cfg.ValidFrom, cfg.ValidTo)
		events = sortByStart(events)
		events = enforceNoOverlap(events, lane.ChannelID)

		slots := fillWithPlaceholders(events, lane.ChannelID, cfg, feedsByEvent)
		result.SlotsByLane[lane.ChannelID] = slots
	}

	result.Checksum = checksum(result.SlotsByLane)
	return result
}

func clip(events []model.PaddedEvent, from, to time.Time) []model.PaddedEvent {
	out := make([]model.PaddedEvent, 0, len(events))
	for _, e := range events {
		start, end := e.EffectiveStart, e.EffectiveEnd
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if !start.Before(end) {
			continue // clipped to empty
		}
		e.EffectiveStart, e.EffectiveEnd = start, end
		out = append(out, e)
	}
	return out
}

func sortByStart(events []model.PaddedEvent) []model.PaddedEvent {
	sort.Slice(events, func(i, j int) bool {
		if events[i].EffectiveStart.Equal(events[j].EffectiveStart) {
			return events[i].EventID < events[j].EventID
		}
		return events[i].EffectiveStart.Before(events[j].EffectiveStart)
	})
	return events
}

// enforceNoOverlap is a defensive pass: the Assigner should never hand us
// overlapping intervals on the same lane, but if it does (e.g. a race), we
// drop the later one rather than commit an invalid plan.
func enforceNoOverlap(events []model.PaddedEvent, lane string) []model.PaddedEvent {
	out := make([]model.PaddedEvent, 0, len(events))
	for _, e := range events {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if e.EffectiveStart.Before(prev.EffectiveEnd) {
				log.Printf("planner: lane=%s dropping overlapping slot event=%s (overlaps %s)", lane, e.EventID, prev.EventID)
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func fillWithPlaceholders(events []model.PaddedEvent, lane string, cfg GridConfig, feedsByEvent map[string][]model.Feed) []model.PlanSlot {
	var slots []model.PlanSlot
	cursor := cfg.ValidFrom

	appendPlaceholder := func(start, end time.Time, reason model.PlaceholderReason) {
		if !start.Before(end) {
			return
		}
		// The outer edges of the gap (touching the window boundary or an
		// adjacent event) must be covered exactly; only the interior
		// boundary between segments is free to snap to the align grid.
		for _, seg := range alignSegments(start, end, cfg.AlignMins, cfg.MinGapMins) {
			slots = append(slots, model.PlanSlot{
				ChannelID:         lane,
				StartUTC:          seg.start,
				EndUTC:            seg.end,
				Kind:              model.SlotPlaceholder,
				PlaceholderReason: reason,
			})
		}
	}

	for i, e := range events {
		reason := model.ReasonGapBetween
		if i == 0 {
			reason = model.ReasonGapBefore
		}
		gapEnd := e.EffectiveStart
		start := e.EffectiveStart
		if gapEnd.Sub(cursor) >= time.Second {
			appendPlaceholder(cursor, gapEnd, reason)
		} else if len(slots) > 0 && cursor.Before(start) {
			// A gap under one second gets no placeholder: the prior slot's
			// end is extended to this event's start.
			slots[len(slots)-1].EndUTC = start
		} else {
			// Overlap with the prior slot, or a sub-second gap before the
			// first event: the event slot starts at cursor.
			start = cursor
		}
		slots = append(slots, model.PlanSlot{
			ChannelID:       lane,
			StartUTC:        start,
			EndUTC:          e.EffectiveEnd,
			Kind:            model.SlotEvent,
			EventID:         e.EventID,
			PreferredFeedID: preferredFeed(feedsByEvent[e.EventID]),
		})
		cursor = e.EffectiveEnd
	}

	if cfg.ValidTo.Sub(cursor) >= time.Second {
		appendPlaceholder(cursor, cfg.ValidTo, model.ReasonGapAfter)
	} else if len(slots) > 0 && cursor.Before(cfg.ValidTo) {
		slots[len(slots)-1].EndUTC = cfg.ValidTo
	}

	return slots
}

// span is a half-open [start, end) interval.
type span struct {
	start, end time.Time
}

// alignSegments splits a gap into one to three contiguous segments so that
// their union is always exactly [start, end) — satisfying the exact-
// coverage invariant regardless of alignment — while snapping the interior
// boundary (not the gap's outer edges, which touch the window boundary or
// an adjacent event) to the nearest multiple of align_mins, per §4.5 step
// 5. If the grid leaves no room for a core segment of at least
// min_gap_mins, alignment is skipped entirely and the whole gap is
// returned as one exact, unaligned segment.
func alignSegments(start, end time.Time, alignMins, minGapMins int) []span {
	if alignMins <= 0 {
		return []span{{start, end}}
	}
	unit := time.Duration(alignMins) * time.Minute
	alignedStart := roundUp(start, unit)
	alignedEnd := roundDown(end, unit)

	if !alignedStart.Before(alignedEnd) {
		return []span{{start, end}}
	}
	minGap := time.Duration(minGapMins) * time.Minute
	if alignedEnd.Sub(alignedStart) < minGap {
		return []span{{start, end}}
	}

	var spans []span
	if alignedStart.After(start) {
		spans = append(spans, span{start, alignedStart})
	}
	spans = append(spans, span{alignedStart, alignedEnd})
	if alignedEnd.Before(end) {
		spans = append(spans, span{alignedEnd, end})
	}
	return spans
}

func roundUp(t time.Time, unit time.Duration) time.Time {
	rem := t.Sub(t.Truncate(unit))
	if rem == 0 {
		return t
	}
	return t.Truncate(unit).Add(unit)
}

func roundDown(t time.Time, unit time.Duration) time.Time {
	return t.Truncate(unit)
}

// preferredFeed picks the primary feed if present, else the feed with the
// highest feed_id (stable ordering), per §4.5 step 6.
func preferredFeed(feeds []model.Feed) string {
	if len(feeds) == 0 {
		return ""
	}
	for _, f := range feeds {
		if f.IsPrimary {
			return f.FeedID
		}
	}
	best := feeds[0]
	for _, f := range feeds[1:] {
		if f.FeedID > best.FeedID {
			best = f
		}
	}
	return best.FeedID
}

// checksum covers (sorted slot tuples) across all lanes — deterministic
// given the same plan content regardless of map iteration order.
func checksum(byLane map[string][]model.PlanSlot) string {
	var lanes []string
	for lane := range byLane {
		lanes = append(lanes, lane)
	}
	sort.Strings(lanes)

	h := sha256.New()
	for _, lane := range lanes {
		slots := byLane[lane]
		for _, s := range slots {
			fmt.Fprintf(h, "%s|%d|%d|%s|%s|%s|%s\n",
				s.ChannelID, s.StartUTC.Unix(), s.EndUTC.Unix(), s.Kind, s.EventID, s.PreferredFeedID, s.PlaceholderReason)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
