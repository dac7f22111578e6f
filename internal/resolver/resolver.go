// Package resolver implements §4.6: answering (lane, instant) lookups
// against the latest committed plan. It is pure lookup logic over the
// Store interface — no HTTP framing lives here, so tunerhttp and tests
// can both drive it directly.
package resolver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
	"github.com/snapetech/sportsgrid/internal/store"
)

// ErrUnknownLane is returned when neither the numeric nor prefixed form of
// a lane identifier resolves to a known channel (§7 ResolverNotFound).
type ErrUnknownLane struct{ Lane string }

func (e ErrUnknownLane) Error() string { return fmt.Sprintf("resolver: unknown lane %q", e.Lane) }

// Resolver answers lookups against a Store. It holds no state of its own
// beyond the Store and the naming convention used to normalize lane ids.
type Resolver struct {
	st         store.Store
	lanePrefix string
}

// New builds a Resolver. lanePrefix is the channel-id prefix used for the
// numeric-form lookup fallback (e.g. "eplus" for "eplus10" given "10").
func New(st store.Store, lanePrefix string) *Resolver {
	return &Resolver{st: st, lanePrefix: lanePrefix}
}

// ResolveLane normalizes a lane identifier: it accepts both the numeric
// form ("10") and the prefixed form ("eplus10"), trying both against the
// channel table, per §4.6.
func (r *Resolver) ResolveLane(lane string) (model.Channel, error) {
	lane = strings.TrimSpace(lane)
	channels, err := r.st.ListChannels()
	if err != nil {
		return model.Channel{}, err
	}
	for _, c := range channels {
		if c.ChannelID == lane {
			return c, nil
		}
	}
	if n, err := strconv.Atoi(lane); err == nil {
		prefixed := fmt.Sprintf("%s%02d", r.lanePrefix, n)
		for _, c := range channels {
			if c.ChannelID == prefixed || c.Chno == n {
				return c, nil
			}
		}
	}
	if strings.HasPrefix(lane, r.lanePrefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(lane, r.lanePrefix)); err == nil {
			for _, c := range channels {
				if c.Chno == n {
					return c, nil
				}
			}
		}
	}
	return model.Channel{}, ErrUnknownLane{Lane: lane}
}

// CurrentSlot selects the unique slot on lane whose [start,end) contains
// at, within the latest committed plan. Tie-break: largest start_utc
// (Store.FindSlot already implements the interval lookup; this wraps it
// with lane normalization).
func (r *Resolver) CurrentSlot(lane string, at time.Time) (model.PlanSlot, bool, error) {
	ch, err := r.ResolveLane(lane)
	if err != nil {
		return model.PlanSlot{}, false, err
	}
	return findSlot(r.st, ch.ChannelID, at)
}

// findSlot treats "no plan has ever been committed" the same as "no slot
// at this instant" — a fresh process with nothing built yet should answer
// tune/whatson with slate/404, not a 500.
func findSlot(st store.Store, lane string, at time.Time) (model.PlanSlot, bool, error) {
	slot, ok, err := st.FindSlot(lane, at)
	if err != nil {
		if _, isNoPlan := err.(store.ErrNoActivePlan); isNoPlan {
			return model.PlanSlot{}, false, nil
		}
		return model.PlanSlot{}, false, err
	}
	return slot, ok, nil
}

// TuneOutcome classifies the result of a tune lookup so tunerhttp can map
// it onto the right HTTP status without re-deriving the decision.
type TuneOutcome struct {
	Kind     TuneKind
	FeedURL  string
	SlateURL string
}

// TuneKind enumerates the possible tune() results (§4.6).
type TuneKind string

const (
	TuneRedirect   TuneKind = "redirect"
	TuneSlate      TuneKind = "slate"
	TuneNoContent  TuneKind = "no_content"
	TuneNotFound   TuneKind = "not_found"
)

// Tune implements §4.6's tune(lane, at) decision tree.
func (r *Resolver) Tune(lane string, at time.Time, onlyLive bool, slateURL string) (TuneOutcome, error) {
	ch, err := r.ResolveLane(lane)
	if err != nil {
		return TuneOutcome{Kind: TuneNotFound}, nil
	}

	slot, ok, err := findSlot(r.st, ch.ChannelID, at)
	if err != nil {
		return TuneOutcome{}, err
	}
	if !ok || slot.Kind == model.SlotPlaceholder || slot.EventID == "" {
		return noActiveOutcome(onlyLive, slateURL), nil
	}

	feeds, err := r.st.ListFeedsByEvent(slot.EventID)
	if err != nil {
		return TuneOutcome{}, err
	}
	if url, ok := selectFeed(feeds, slot.PreferredFeedID); ok {
		return TuneOutcome{Kind: TuneRedirect, FeedURL: url}, nil
	}
	return noActiveOutcome(onlyLive, slateURL), nil
}

func noActiveOutcome(onlyLive bool, slateURL string) TuneOutcome {
	if onlyLive {
		return TuneOutcome{Kind: TuneNoContent}
	}
	if slateURL != "" {
		return TuneOutcome{Kind: TuneSlate, SlateURL: slateURL}
	}
	return TuneOutcome{Kind: TuneNotFound}
}

func selectFeed(feeds []model.Feed, preferredFeedID string) (string, bool) {
	if preferredFeedID != "" {
		for _, f := range feeds {
			if f.FeedID == preferredFeedID {
				return f.URL, true
			}
		}
	}
	for _, f := range feeds {
		if f.IsPrimary {
			return f.URL, true
		}
	}
	if len(feeds) > 0 {
		return feeds[0].URL, true
	}
	return "", false
}

// WhatsOn is the answer to whatson(lane, at): the active event's short
// identifier and, when requested, a deeplink.
type WhatsOn struct {
	Lane        string
	EventUID    string
	DeeplinkURL string
	HasEvent    bool
}

// WhatsOn implements §4.6's whatson lookup.
func (r *Resolver) WhatsOn(lane string, at time.Time, includeDeeplink bool) (WhatsOn, error) {
	ch, err := r.ResolveLane(lane)
	if err != nil {
		return WhatsOn{}, err
	}
	slot, ok, err := findSlot(r.st, ch.ChannelID, at)
	if err != nil {
		return WhatsOn{}, err
	}
	if !ok || slot.Kind != model.SlotEvent || slot.EventID == "" {
		return WhatsOn{Lane: ch.ChannelID}, nil
	}
	uid := EventUID(slot.EventID)
	out := WhatsOn{Lane: ch.ChannelID, EventUID: uid, HasEvent: true}
	if includeDeeplink {
		out.DeeplinkURL = Deeplink(slot.EventID)
	}
	return out, nil
}

// LaneOrdering sorts lane identifiers numeric-lane-first, then
// lexicographic for non-numeric ids, per §4.6/§8 R4 (eplus01, eplus02,
// eplus10, ad-hoc).
func LaneOrdering(channels []model.Channel) []model.Channel {
	out := append([]model.Channel(nil), channels...)
	sort.SliceStable(out, func(i, j int) bool {
		ni, oki := out[i].Chno, out[i].Chno != 0
		nj, okj := out[j].Chno, out[j].Chno != 0
		if oki && okj {
			return ni < nj
		}
		if oki != okj {
			return oki
		}
		return out[i].ChannelID < out[j].ChannelID
	})
	return out
}

// WhatsOnAll answers whatson_all(at): every active lane's WhatsOn, in
// LaneOrdering order.
func (r *Resolver) WhatsOnAll(at time.Time, includeDeeplink bool) ([]WhatsOn, error) {
	channels, err := r.st.ListChannels()
	if err != nil {
		return nil, err
	}
	var active []model.Channel
	for _, c := range channels {
		if c.Active {
			active = append(active, c)
		}
	}
	ordered := LaneOrdering(active)

	out := make([]WhatsOn, 0, len(ordered))
	for _, c := range ordered {
		slot, ok, err := findSlot(r.st, c.ChannelID, at)
		if err != nil {
			return nil, err
		}
		if !ok || slot.Kind != model.SlotEvent || slot.EventID == "" {
			out = append(out, WhatsOn{Lane: c.ChannelID})
			continue
		}
		w := WhatsOn{Lane: c.ChannelID, EventUID: EventUID(slot.EventID), HasEvent: true}
		if includeDeeplink {
			w.DeeplinkURL = Deeplink(slot.EventID)
		}
		out = append(out, w)
	}
	return out, nil
}

// EventUID extracts the short identifier from an event_id of the form
// "<play_id>[:<feed_id>]" — the first segment up to the first colon,
// per §6's deeplink construction rule.
func EventUID(eventID string) string {
	if i := strings.IndexByte(eventID, ':'); i >= 0 {
		return eventID[:i]
	}
	return eventID
}

// Deeplink constructs the short ESPN deeplink for an event_id, per §6.
// Non-ESPN deeplink schemes are explicitly out of scope (§9 Open
// Questions) — this is the one default form implementers are told to
// treat as pluggable.
func Deeplink(eventID string) string {
	return "sportscenter://x-callback-url/showWatchStream?playID=" + EventUID(eventID)
}
