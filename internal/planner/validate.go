package planner

import (
	"fmt"

	"github.com/snapetech/sportsgrid/internal/model"
)

// ErrPlanInvariant reports a violated post-condition; the caller must
// abort the commit and preserve the prior plan (§7 PlanInvariantViolation).
type ErrPlanInvariant struct {
	Lane   string
	Detail string
}

func (e ErrPlanInvariant) Error() string {
	return fmt.Sprintf("planner: invariant violated on lane %s: %s", e.Lane, e.Detail)
}

// Validate checks the post-conditions listed under §4.5: per-lane
// contiguous, non-overlapping coverage of [validFrom, validTo), and that
// every event slot carries an event_id.
func Validate(byLane map[string][]model.PlanSlot, lanes []model.Channel, validFrom, validTo int64) error {
	for _, lane := range lanes {
		if !lane.Active {
			continue
		}
		slots := byLane[lane.ChannelID]
		if len(slots) == 0 {
			return ErrPlanInvariant{Lane: lane.ChannelID, Detail: "no slots for an active lane"}
		}
		cursor := validFrom
		for i, s := range slots {
			if s.StartUTC.Unix() != cursor {
				return ErrPlanInvariant{Lane: lane.ChannelID, Detail: fmt.Sprintf("gap or overlap before slot %d (start=%d want=%d)", i, s.StartUTC.Unix(), cursor)}
			}
			if !s.StartUTC.Before(s.EndUTC) {
				return ErrPlanInvariant{Lane: lane.ChannelID, Detail: fmt.Sprintf("slot %d has start >= end", i)}
			}
			if s.Kind == model.SlotEvent && s.EventID == "" {
				return ErrPlanInvariant{Lane: lane.ChannelID, Detail: fmt.Sprintf("slot %d kind=event without event_id", i)}
			}
			cursor = s.EndUTC.Unix()
		}
		if cursor != validTo {
			return ErrPlanInvariant{Lane: lane.ChannelID, Detail: fmt.Sprintf("coverage ends at %d, want %d", cursor, validTo)}
		}
	}
	return nil
}
