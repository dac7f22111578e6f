package planner

import (
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
)

// PaddingConfig controls §4.3: how far admitted events' intervals are
// widened before lane assignment.
type PaddingConfig struct {
	StartMins int
	EndMins   int
	LiveOnly  bool
}

// Pad widens each admitted event's interval per §4.3. Placeholders are
// never produced here — Pad only ever consumes real events.
func Pad(events []model.Event, cfg PaddingConfig) []model.PaddedEvent {
	out := make([]model.PaddedEvent, 0, len(events))
	for _, e := range events {
		out = append(out, padOne(e, cfg))
	}
	return out
}

func padOne(e model.Event, cfg PaddingConfig) model.PaddedEvent {
	eligible := !cfg.LiveOnly || (!e.IsReair && !e.IsStudio)
	start, stop := e.StartUTC, e.StopUTC
	if eligible {
		start = start.Add(-time.Duration(cfg.StartMins) * time.Minute)
		stop = stop.Add(time.Duration(cfg.EndMins) * time.Minute)
	}
	return model.PaddedEvent{Event: e, EffectiveStart: start, EffectiveEnd: stop}
}
