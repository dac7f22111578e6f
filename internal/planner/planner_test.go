package planner

import (
	"testing"
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return tm.UTC()
}

func oneLane() []model.Channel {
	return []model.Channel{{ChannelID: "eplus01", Chno: 1, Active: true}}
}

// S1 — single lane, single event, no padding.
func TestS1_singleLaneSingleEvent(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	validTo := now.Add(2 * time.Hour)
	e1 := model.Event{
		EventID: "E1", EventType: model.EventLive,
		StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour),
	}

	padded := Pad([]model.Event{e1}, PaddingConfig{})
	assignment := AssignLanes(padded, nil, oneLane(), false, now)
	if len(assignment.Decisions) != 1 || assignment.Decisions[0].Kind != DecisionAssigned {
		t.Fatalf("decisions = %+v", assignment.Decisions)
	}

	result := Build(assignment.ByLane, oneLane(), nil, GridConfig{
		AlignMins: 30, MinGapMins: 30, ValidFrom: now, ValidTo: validTo, PlaceholderTitle: "Stand By",
	})

	slots := result.SlotsByLane["eplus01"]
	if len(slots) != 2 {
		t.Fatalf("slots = %+v, want 2 (placeholder + event)", slots)
	}
	if slots[0].Kind != model.SlotPlaceholder || !slots[0].StartUTC.Equal(now) || !slots[0].EndUTC.Equal(now.Add(time.Hour)) {
		t.Errorf("slot0 = %+v, want placeholder [00:00,01:00)", slots[0])
	}
	if slots[1].Kind != model.SlotEvent || slots[1].EventID != "E1" || !slots[1].EndUTC.Equal(validTo) {
		t.Errorf("slot1 = %+v, want event E1 ending at validTo", slots[1])
	}
}

// Regression: off-grid now/validTo and an off-grid event must still yield
// exact, gap-free coverage of [valid_from, valid_to) — only a gap's
// interior boundary is free to snap to the align grid.
func TestBuild_offGridWindowAndEventStillCoversExactly(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:01:37Z")
	validTo := now.Add(2 * time.Hour)
	e1 := model.Event{
		EventID: "E1", EventType: model.EventLive,
		StartUTC: now.Add(17*time.Minute + 3*time.Second),
		StopUTC:  now.Add(83*time.Minute + 12*time.Second),
	}

	padded := Pad([]model.Event{e1}, PaddingConfig{})
	assignment := AssignLanes(padded, nil, oneLane(), false, now)

	result := Build(assignment.ByLane, oneLane(), nil, GridConfig{
		AlignMins: 30, MinGapMins: 5, ValidFrom: now, ValidTo: validTo, PlaceholderTitle: "Stand By",
	})

	if err := Validate(result.SlotsByLane, oneLane(), now.Unix(), validTo.Unix()); err != nil {
		t.Fatalf("Validate rejected an off-grid but exact-coverage plan: %v", err)
	}

	slots := result.SlotsByLane["eplus01"]
	if len(slots) == 0 {
		t.Fatal("expected slots for eplus01")
	}
	if !slots[0].StartUTC.Equal(now) {
		t.Errorf("first slot start = %v, want exactly now = %v", slots[0].StartUTC, now)
	}
	if last := slots[len(slots)-1]; !last.EndUTC.Equal(validTo) {
		t.Errorf("last slot end = %v, want exactly validTo = %v", last.EndUTC, validTo)
	}
	cursor := now
	for i, s := range slots {
		if !s.StartUTC.Equal(cursor) {
			t.Fatalf("slot %d starts at %v, want %v (gap/overlap)", i, s.StartUTC, cursor)
		}
		cursor = s.EndUTC
	}
}

// S2 — padding extends into the leading placeholder, which collapses to
// a single slot, then the event's own interval is clipped at validTo.
func TestS2_paddingCollapsesIntoPlaceholder(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	validTo := now.Add(2 * time.Hour)
	e1 := model.Event{
		EventID: "E1", EventType: model.EventLive,
		StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour),
	}

	padded := Pad([]model.Event{e1}, PaddingConfig{EndMins: 30})
	assignment := AssignLanes(padded, nil, oneLane(), false, now)
	result := Build(assignment.ByLane, oneLane(), nil, GridConfig{
		AlignMins: 30, MinGapMins: 30, ValidFrom: now, ValidTo: validTo, PlaceholderTitle: "Stand By",
	})

	slots := result.SlotsByLane["eplus01"]
	if len(slots) != 2 {
		t.Fatalf("slots = %+v, want 2 (single collapsed placeholder + event)", slots)
	}
	if slots[0].Kind != model.SlotPlaceholder || !slots[0].StartUTC.Equal(now) || !slots[0].EndUTC.Equal(now.Add(time.Hour)) {
		t.Errorf("slot0 = %+v, want single placeholder [00:00,01:00)", slots[0])
	}
	if slots[1].Kind != model.SlotEvent || slots[1].EventID != "E1" || !slots[1].StartUTC.Equal(now.Add(time.Hour)) || !slots[1].EndUTC.Equal(validTo) {
		t.Errorf("slot1 = %+v, want event E1 [01:00,02:00) clipped at validTo", slots[1])
	}
}

// S3 — two overlapping events on one lane: E1 kept, E2 dropped.
func TestS3_overlappingEventsOneDropped(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	e1 := model.Event{EventID: "E1", StartUTC: mustParse(t, "2025-01-01T01:00:00Z"), StopUTC: mustParse(t, "2025-01-01T02:00:00Z")}
	e2 := model.Event{EventID: "E2", StartUTC: mustParse(t, "2025-01-01T01:30:00Z"), StopUTC: mustParse(t, "2025-01-01T02:30:00Z")}

	padded := Pad([]model.Event{e1, e2}, PaddingConfig{})
	assignment := AssignLanes(padded, nil, oneLane(), false, now)

	var assigned, dropped []string
	for _, d := range assignment.Decisions {
		if d.Kind == DecisionAssigned {
			assigned = append(assigned, d.EventID)
		} else {
			dropped = append(dropped, d.EventID)
		}
	}
	if len(assigned) != 1 || assigned[0] != "E1" {
		t.Errorf("assigned = %v, want [E1]", assigned)
	}
	if len(dropped) != 1 || dropped[0] != "E2" {
		t.Errorf("dropped = %v, want [E2]", dropped)
	}
}

// S4 — stickiness across rebuilds: E1 assigned eplus02 when eplus01 busy in
// plan N; in plan N+1 eplus01 is free but E1 still sticks to eplus02.
func TestS4_stickinessAcrossRebuilds(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	lanes := []model.Channel{
		{ChannelID: "eplus01", Chno: 1, Active: true},
		{ChannelID: "eplus02", Chno: 2, Active: true},
	}
	e1 := model.Event{EventID: "E1", StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour)}
	busy := model.Event{EventID: "BUSY", StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour)}

	// Plan N: BUSY occupies eplus01 first (earlier event_id tiebreak forces
	// order here via explicit construction), E1 lands on eplus02.
	paddedN := Pad([]model.Event{busy, e1}, PaddingConfig{})
	assignN := AssignLanes(paddedN, nil, lanes, false, now)
	laneForE1 := ""
	for _, d := range assignN.Decisions {
		if d.EventID == "E1" {
			laneForE1 = d.LaneID
		}
	}
	if laneForE1 != "eplus02" {
		t.Fatalf("plan N: E1 lane = %q, want eplus02 (eplus01 taken by BUSY)", laneForE1)
	}

	// Plan N+1: BUSY is gone, eplus01 is free, but sticky map says E1->eplus02.
	sticky := map[string]string{"E1": "eplus02"}
	paddedN1 := Pad([]model.Event{e1}, PaddingConfig{})
	assignN1 := AssignLanes(paddedN1, sticky, lanes, false, now)
	if assignN1.Decisions[0].LaneID != "eplus02" {
		t.Errorf("plan N+1: E1 lane = %q, want eplus02 (sticky)", assignN1.Decisions[0].LaneID)
	}
}

// S5 — force_replan ignores the sticky map; E1 lands on the lowest free chno.
func TestS5_forceReplanIgnoresSticky(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	lanes := []model.Channel{
		{ChannelID: "eplus01", Chno: 1, Active: true},
		{ChannelID: "eplus02", Chno: 2, Active: true},
	}
	e1 := model.Event{EventID: "E1", StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour)}
	sticky := map[string]string{"E1": "eplus02"}

	padded := Pad([]model.Event{e1}, PaddingConfig{})
	assignment := AssignLanes(padded, sticky, lanes, true, now)
	if assignment.Decisions[0].LaneID != "eplus01" {
		t.Errorf("force_replan: E1 lane = %q, want eplus01 (lowest free chno, sticky ignored)", assignment.Decisions[0].LaneID)
	}
}

// Property 4: force-replan isolation — result must not depend on sticky
// map contents at all when force_replan=true.
func TestForceReplan_resultIndependentOfStickyContents(t *testing.T) {
	now := mustParse(t, "2025-01-01T00:00:00Z")
	e1 := model.Event{EventID: "E1", StartUTC: now.Add(time.Hour), StopUTC: now.Add(2 * time.Hour)}
	padded := Pad([]model.Event{e1}, PaddingConfig{})

	a := AssignLanes(padded, map[string]string{"E1": "eplus99"}, oneLane(), true, now)
	b := AssignLanes(padded, nil, oneLane(), true, now)
	if a.Decisions[0].LaneID != b.Decisions[0].LaneID {
		t.Errorf("force_replan result differs with sticky map contents: %q vs %q", a.Decisions[0].LaneID, b.Decisions[0].LaneID)
	}
}

// Property 6: padding monotonicity — increasing PADDING_END_MINS only
// extends event intervals.
func TestPad_monotonicInEndMins(t *testing.T) {
	e := model.Event{EventID: "E1", StartUTC: mustParse(t, "2025-01-01T01:00:00Z"), StopUTC: mustParse(t, "2025-01-01T02:00:00Z")}
	small := Pad([]model.Event{e}, PaddingConfig{EndMins: 10})[0]
	big := Pad([]model.Event{e}, PaddingConfig{EndMins: 30})[0]
	if !big.EffectiveEnd.After(small.EffectiveEnd) {
		t.Errorf("EffectiveEnd did not grow with larger PADDING_END_MINS: %v vs %v", small.EffectiveEnd, big.EffectiveEnd)
	}
}

func TestValidate_detectsGap(t *testing.T) {
	lanes := oneLane()
	from := mustParse(t, "2025-01-01T00:00:00Z")
	to := from.Add(time.Hour)
	byLane := map[string][]model.PlanSlot{
		"eplus01": {
			{ChannelID: "eplus01", StartUTC: from, EndUTC: from.Add(30 * time.Minute), Kind: model.SlotPlaceholder},
			// missing coverage for the second half-hour
		},
	}
	if err := Validate(byLane, lanes, from.Unix(), to.Unix()); err == nil {
		t.Error("Validate should reject a plan with a coverage gap")
	}
}

func TestChecksum_deterministicAcrossMapIterationOrder(t *testing.T) {
	from := mustParse(t, "2025-01-01T00:00:00Z")
	slotsA := map[string][]model.PlanSlot{
		"eplus01": {{ChannelID: "eplus01", StartUTC: from, EndUTC: from.Add(time.Hour), Kind: model.SlotPlaceholder}},
		"eplus02": {{ChannelID: "eplus02", StartUTC: from, EndUTC: from.Add(time.Hour), Kind: model.SlotPlaceholder}},
	}
	c1 := checksum(slotsA)
	c2 := checksum(slotsA)
	if c1 != c2 {
		t.Errorf("checksum not stable across repeated calls: %s vs %s", c1, c2)
	}
}
