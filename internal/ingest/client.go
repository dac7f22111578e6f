// Package ingest fetches the upstream watch-graph API and produces the
// []Event / []Feed pairs the Store upserts. It is an external collaborator
// per §1 — mechanical I/O, not part of the planning core — but still
// follows this codebase's HTTP client discipline (bounded timeouts, retry
// with backoff, per-host concurrency limiting).
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/sportsgrid/internal/httpclient"
	"github.com/snapetech/sportsgrid/internal/model"
	"github.com/snapetech/sportsgrid/internal/safeurl"
)

// Client fetches and decodes watch-graph airing records.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   *condCache
}

// Option configures a Client.
type Option func(*Client)

// WithCacheFile enables conditional GET persistence across restarts.
func WithCacheFile(path string) Option {
	return func(c *Client) { c.cache = loadCondCache(path) }
}

// WithRateLimit bounds requests/sec to the upstream API (domain stack:
// golang.org/x/time/rate, previously unused in this codebase's go.mod).
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New builds a Client. timeout bounds every individual HTTP call;
// brotli-aware decompression is always enabled since the upstream API
// advertises support for it.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	base := httpclient.Default()
	base.Timeout = timeout
	base.Transport = newBrotliTransport(base.Transport)

	c := &Client{
		baseURL: baseURL,
		http:    base,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		cache:   loadCondCache(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// airingRecord is the upstream JSON shape for one sports airing.
type airingRecord struct {
	EventID           string   `json:"event_id"`
	Title             string   `json:"title"`
	Subtitle          string   `json:"subtitle"`
	Summary           string   `json:"summary"`
	Sport             string   `json:"sport"`
	LeagueName        string   `json:"league_name"`
	LeagueAbbr        string   `json:"league_abbr"`
	Network           string   `json:"network"`
	NetworkShort      string   `json:"network_short"`
	Language          string   `json:"language"`
	Packages          []string `json:"packages"`
	EventType         string   `json:"event_type"`
	IsReair           bool     `json:"is_reair"`
	IsStudio          bool     `json:"is_studio"`
	AiringID          string   `json:"airing_id"`
	SimulcastAiringID string   `json:"simulcast_airing_id"`
	Image             string   `json:"image"`
	StartUTC          string   `json:"start_utc"`
	StopUTC           string   `json:"stop_utc"`
	Feeds             []struct {
		FeedID    string `json:"feed_id"`
		URL       string `json:"url"`
		IsPrimary bool   `json:"is_primary"`
	} `json:"feeds"`
}

// Fetch pulls the current airing corpus. A 304 (nothing changed since the
// last poll) is reported as (nil, nil, false, nil); callers should keep
// using the previously ingested events, per §4.7's backoff path.
func (c *Client) Fetch(ctx context.Context) (events []model.Event, feeds []model.Feed, changed bool, err error) {
	if !safeurl.IsHTTPOrHTTPS(c.baseURL) {
		return nil, nil, false, fmt.Errorf("ingest: refusing non-http(s) watch-graph URL %q", c.baseURL)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, false, fmt.Errorf("ingest: rate limiter: %w", err)
	}

	body, ok, err := conditionalGet(ctx, c.http, c.baseURL, c.cache)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}

	var records []airingRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, nil, false, fmt.Errorf("ingest: decode watch-graph payload: %w", err)
	}

	events = make([]model.Event, 0, len(records))
	for _, r := range records {
		start, perr := time.Parse(time.RFC3339, r.StartUTC)
		if perr != nil {
			continue
		}
		stop, perr := time.Parse(time.RFC3339, r.StopUTC)
		if perr != nil {
			continue
		}
		if !start.Before(stop) {
			continue
		}
		events = append(events, model.Event{
			EventID:           r.EventID,
			Title:             r.Title,
			Subtitle:          r.Subtitle,
			Summary:           r.Summary,
			Sport:             r.Sport,
			LeagueName:        r.LeagueName,
			LeagueAbbr:        r.LeagueAbbr,
			Network:           r.Network,
			NetworkShort:      r.NetworkShort,
			Language:          r.Language,
			Packages:          r.Packages,
			EventType:         normalizeEventType(r.EventType),
			IsReair:           r.IsReair,
			IsStudio:          r.IsStudio,
			AiringID:          r.AiringID,
			SimulcastAiringID: r.SimulcastAiringID,
			Image:             r.Image,
			StartUTC:          start.UTC(),
			StopUTC:           stop.UTC(),
		})
		for _, f := range r.Feeds {
			if !safeurl.IsHTTPOrHTTPS(f.URL) {
				continue
			}
			feeds = append(feeds, model.Feed{FeedID: f.FeedID, EventID: r.EventID, URL: f.URL, IsPrimary: f.IsPrimary})
		}
	}
	return events, feeds, true, nil
}

func normalizeEventType(s string) model.EventType {
	switch model.EventType(s) {
	case model.EventLive, model.EventUpcoming, model.EventOver, model.EventReplay, model.EventStudio:
		return model.EventType(s)
	default:
		return model.EventUnknown
	}
}
