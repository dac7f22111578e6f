// Package xmltv renders the committed plan to an XMLTV guide document,
// one <channel> per active lane and one <programme> per PlanSlot.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/snapetech/sportsgrid/internal/model"
	"github.com/snapetech/sportsgrid/internal/store"
)

type xmlTVRoot struct {
	XMLName    xml.Name       `xml:"tv"`
	Source     string         `xml:"source-info-name,attr,omitempty"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID      string   `xml:"id,attr"`
	Display xmlValue `xml:"display-name"`
	LCN     xmlValue `xml:"lcn"`
}

type xmlProgramme struct {
	Start      string     `xml:"start,attr"`
	Stop       string     `xml:"stop,attr"`
	Channel    string     `xml:"channel,attr"`
	Title      xmlValue   `xml:"title"`
	Desc       xmlValue   `xml:"desc,omitempty"`
	Categories []xmlValue `xml:"category,omitempty"`
}

type xmlValue struct {
	Value string `xml:",chardata"`
}

// EventLookup resolves the Event backing an event-kind PlanSlot; the
// renderer never queries Store directly so it stays a pure function of
// its inputs and is trivially testable.
type EventLookup func(eventID string) (model.Event, bool)

// Render builds the full XMLTV document for channels and the slots of
// every lane in slotsByLane.
func Render(channels []model.Channel, slotsByLane map[string][]model.PlanSlot, lookup EventLookup, placeholderTitle string) []byte {
	tv := &xmlTVRoot{Source: "sportsgrid"}

	for _, c := range channels {
		if !c.Active {
			continue
		}
		tv.Channels = append(tv.Channels, xmlChannel{
			ID:      c.ChannelID,
			Display: xmlValue{Value: c.Name},
			LCN:     xmlValue{Value: fmt.Sprint(c.Chno)},
		})
		for _, slot := range slotsByLane[c.ChannelID] {
			tv.Programmes = append(tv.Programmes, renderProgramme(c.ChannelID, slot, lookup, placeholderTitle))
		}
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	enc := xml.NewEncoder(&b)
	enc.Indent("", "  ")
	enc.Encode(tv)
	b.WriteString("\n")
	return []byte(b.String())
}

func renderProgramme(channelID string, slot model.PlanSlot, lookup EventLookup, placeholderTitle string) xmlProgramme {
	p := xmlProgramme{
		Start:   formatXMLTVTime(slot.StartUTC),
		Stop:    formatXMLTVTime(slot.EndUTC),
		Channel: channelID,
	}

	if slot.Kind == model.SlotPlaceholder || slot.EventID == "" {
		p.Title = xmlValue{Value: placeholderTitle}
		return p
	}

	e, ok := lookup(slot.EventID)
	if !ok {
		p.Title = xmlValue{Value: placeholderTitle}
		return p
	}

	p.Title = xmlValue{Value: e.Title}
	p.Desc = xmlValue{Value: composeDesc(e)}
	p.Categories = categoriesFor(e)
	return p
}

func composeDesc(e model.Event) string {
	var parts []string
	for _, v := range []string{e.Subtitle, e.Summary, e.Sport, e.LeagueName, e.Network} {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " — ")
}

func categoriesFor(e model.Event) []xmlValue {
	cats := []xmlValue{{Value: "Sports"}}
	if e.Sport != "" {
		cats = append(cats, xmlValue{Value: e.Sport})
	}
	if e.EventType == model.EventLive && !e.IsReair {
		cats = append(cats, xmlValue{Value: "Live"}, xmlValue{Value: "Sports Event"})
	}
	return cats
}

func formatXMLTVTime(t time.Time) string {
	return t.UTC().Format("20060102150405") + " +0000"
}

// LookupFromStore adapts a store.Store into an EventLookup by loading every
// event in [from, to) once and answering lookups by event ID from that set.
// Callers that already have the full event set in memory should prefer a
// map-backed lookup instead; this is a convenience for ad-hoc renders.
func LookupFromStore(s store.Store, from, to time.Time) (EventLookup, error) {
	events, err := s.ListEventsInWindow(from, to)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Event, len(events))
	for _, e := range events {
		byID[e.EventID] = e
	}
	return func(eventID string) (model.Event, bool) {
		e, ok := byID[eventID]
		return e, ok
	}, nil
}
