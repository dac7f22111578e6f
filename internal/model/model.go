// Package model holds the wire-stable record shapes the planner, store,
// and resolver all share: events, feeds, lanes, and plan slots.
package model

import "time"

// EventType enumerates the upstream airing lifecycle states.
type EventType string

const (
	EventLive     EventType = "LIVE"
	EventUpcoming EventType = "UPCOMING"
	EventOver     EventType = "OVER"
	EventReplay   EventType = "REPLAY"
	EventStudio   EventType = "STUDIO"
	EventUnknown  EventType = "UNKNOWN"
)

// Event is an upstream sports airing, upserted by ingest and never mutated by planning.
type Event struct {
	EventID            string
	Title              string
	Subtitle           string
	Summary            string
	Sport              string
	LeagueName         string
	LeagueAbbr         string
	Network            string
	NetworkShort       string
	Language           string
	Packages           []string
	EventType          EventType
	IsReair            bool
	IsStudio           bool
	AiringID           string
	SimulcastAiringID  string
	Image              string
	StartUTC           time.Time
	StopUTC            time.Time
}

// PaddedEvent is an Event plus the effective start/end that planner.Pad
// computes from it. EffectiveStart and EffectiveEnd are zero until Pad
// sets them.
type PaddedEvent struct {
	Event
	EffectiveStart time.Time
	EffectiveEnd   time.Time
}

// Feed is a playable stream for an event.
type Feed struct {
	FeedID    string
	EventID   string
	URL       string
	IsPrimary bool
}

// Channel is a stable virtual lane.
type Channel struct {
	ChannelID string
	Chno      int
	Name      string
	GroupName string
	Active    bool
}

// SlotKind distinguishes a scheduled event from filler.
type SlotKind string

const (
	SlotEvent       SlotKind = "event"
	SlotPlaceholder SlotKind = "placeholder"
)

// PlaceholderReason records why a placeholder slot was inserted.
type PlaceholderReason string

const (
	ReasonGapBefore  PlaceholderReason = "gap_before"
	ReasonGapBetween PlaceholderReason = "gap_between"
	ReasonGapAfter   PlaceholderReason = "gap_after"
)

// PlanSlot is one scheduled interval on one lane within a PlanRun.
type PlanSlot struct {
	ChannelID         string
	StartUTC          time.Time
	EndUTC            time.Time
	Kind              SlotKind
	EventID           string // set iff Kind == SlotEvent
	PreferredFeedID   string
	PlaceholderReason PlaceholderReason
}

// PlanRun is a committed, immutable plan version.
type PlanRun struct {
	PlanID         int64
	GeneratedAtUTC time.Time
	ValidFromUTC   time.Time
	ValidToUTC     time.Time
	SourceVersion  string
	Note           string
	Checksum       string
}

// EventLane is the sticky-map entry learned for one event.
type EventLane struct {
	EventID     string
	ChannelID   string
	PinnedAtUTC time.Time
	LastSeenUTC time.Time
}

// FilterAudit records a filter decision for one event, persisted for operator visibility.
type FilterAudit struct {
	EventID   string
	IsAllowed bool
	Reasons   []string
}
