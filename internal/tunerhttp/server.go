// Package tunerhttp exposes the HTTP surface: health, channel listings,
// per-lane tune/whatson/deeplink endpoints, and the rendered XMLTV/M3U
// artifacts.
package tunerhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snapetech/sportsgrid/internal/metrics"
	"github.com/snapetech/sportsgrid/internal/resolver"
	"github.com/snapetech/sportsgrid/internal/scheduler"
	"github.com/snapetech/sportsgrid/internal/store"
)

// Server wires the resolver, store, and scheduler together behind an
// http.ServeMux. Handlers read live state on every request; nothing here
// is cached beyond what Store itself caches.
type Server struct {
	Addr     string
	Store    store.Store
	Resolver *resolver.Resolver
	Worker   *scheduler.Worker // optional; enables /admin/refresh and /admin/sticky/clear
	OutDir   string
	SlateURL string
}

// Run blocks, serving the HTTP surface until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /channels", s.handleChannels)
	mux.HandleFunc("GET /channels_db", s.handleChannelsDB)
	mux.HandleFunc("GET /vc/{lane}", s.handleTune)
	mux.HandleFunc("GET /vc/{lane}/debug", s.handleTuneDebug)
	mux.HandleFunc("GET /whatson/{lane}", s.handleWhatsOn)
	mux.HandleFunc("GET /whatson_all", s.handleWhatsOnAll)
	mux.HandleFunc("GET /deeplink/{lane}", s.handleDeeplink)
	mux.HandleFunc("GET /out/epg.xml", s.handleFile("epg.xml"))
	mux.HandleFunc("GET /out/playlist.m3u", s.handleFile("playlist.m3u"))
	mux.HandleFunc("GET /playlist.m3u", s.handleFile("playlist.m3u"))
	mux.HandleFunc("GET /slate", s.handleSlate)
	mux.HandleFunc("GET /standby", s.handleSlate)
	mux.HandleFunc("GET /debug/plan/{lane}", s.handleDebugPlan)
	mux.HandleFunc("POST /admin/refresh", s.handleAdminRefresh)
	mux.HandleFunc("POST /admin/sticky/clear", s.handleAdminStickyClear)
	mux.Handle("GET /metrics", metrics.Handler())

	addr := s.Addr
	if addr == "" {
		addr = ":8085"
	}
	srv := &http.Server{Addr: addr, Handler: logRequests(mux)}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("resolver: listening on %s", addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Print("resolver: shutting down ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("resolver: shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
		log.Printf("http: req_id=%s %s %s status=%d dur=%s", reqID, r.Method, r.URL.Path, status, time.Since(start).Round(time.Millisecond))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func atParam(r *http.Request) time.Time {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func onlyLiveParam(r *http.Request) bool {
	v := r.URL.Query().Get("only_live")
	return v == "1" || strings.EqualFold(v, "true")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.outPath("epg.xml"))
	if err != nil {
		http.Error(w, "not yet rendered", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(data)
}

func (s *Server) handleChannelsDB(w http.ResponseWriter, r *http.Request) {
	channels, err := s.Store.ListChannels()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	type row struct {
		ChannelID string `json:"channel_id"`
		Chno      int    `json:"chno"`
		Name      string `json:"name"`
	}
	rows := make([]row, 0, len(channels))
	for _, c := range channels {
		rows = append(rows, row{ChannelID: c.ChannelID, Chno: c.Chno, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(rows), "channels": rows})
}

func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	lane := r.PathValue("lane")
	out, err := s.Resolver.Tune(lane, atParam(r), onlyLiveParam(r), s.SlateURL)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveTune(string(out.Kind))
	switch out.Kind {
	case resolver.TuneRedirect:
		http.Redirect(w, r, out.FeedURL, http.StatusFound)
	case resolver.TuneSlate:
		http.Redirect(w, r, out.SlateURL, http.StatusFound)
	case resolver.TuneNoContent:
		w.WriteHeader(http.StatusNoContent)
	case resolver.TuneNotFound:
		http.Error(w, "no active slot", http.StatusNotFound)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleTuneDebug(w http.ResponseWriter, r *http.Request) {
	lane := r.PathValue("lane")
	at := atParam(r)
	slot, ok, err := s.Resolver.CurrentSlot(lane, at)
	if err != nil {
		if _, isUnknown := err.(resolver.ErrUnknownLane); isUnknown {
			http.Error(w, "unknown lane", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out, tuneErr := s.Resolver.Tune(lane, at, onlyLiveParam(r), s.SlateURL)
	if tuneErr != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lane": lane, "now": at.Format(time.RFC3339), "slot_found": ok, "slot": slot, "tune": out,
	})
}

func (s *Server) handleWhatsOn(w http.ResponseWriter, r *http.Request) {
	lane := r.PathValue("lane")
	at := atParam(r)
	includeDeeplink := r.URL.Query().Get("include") == "deeplink"

	out, err := s.Resolver.WhatsOn(lane, at, includeDeeplink)
	if err != nil {
		if _, isUnknown := err.(resolver.ErrUnknownLane); isUnknown {
			http.Error(w, "unknown lane", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !out.HasEvent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.URL.Query().Get("format") == "txt" {
		w.Header().Set("Content-Type", "text/plain")
		if r.URL.Query().Get("param") == "deeplink_url" {
			fmt.Fprint(w, out.DeeplinkURL)
			return
		}
		fmt.Fprint(w, out.EventUID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true, "lane": out.Lane, "event_uid": out.EventUID, "at": at.Format(time.RFC3339), "deeplink_url": out.DeeplinkURL,
	})
}

func (s *Server) handleWhatsOnAll(w http.ResponseWriter, r *http.Request) {
	at := atParam(r)
	includeDeeplink := r.URL.Query().Get("include") == "deeplink"
	items, err := s.Resolver.WhatsOnAll(at, includeDeeplink)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	type item struct {
		Lane        string `json:"lane"`
		EventUID    string `json:"event_uid,omitempty"`
		DeeplinkURL string `json:"deeplink_url,omitempty"`
	}
	out := make([]item, 0, len(items))
	for _, w := range items {
		out = append(out, item{Lane: w.Lane, EventUID: w.EventUID, DeeplinkURL: w.DeeplinkURL})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "at": at.Format(time.RFC3339), "items": out})
}

func (s *Server) handleDeeplink(w http.ResponseWriter, r *http.Request) {
	lane := r.PathValue("lane")
	out, err := s.Resolver.WhatsOn(lane, atParam(r), true)
	if err != nil {
		if _, isUnknown := err.(resolver.ErrUnknownLane); isUnknown {
			http.Error(w, "unknown lane", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !out.HasEvent || out.DeeplinkURL == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, out.DeeplinkURL)
}

func (s *Server) handleFile(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(s.outPath(name))
		if err != nil {
			http.Error(w, "not yet rendered", http.StatusNotFound)
			return
		}
		if strings.HasSuffix(name, ".xml") {
			w.Header().Set("Content-Type", "application/xml")
		} else {
			w.Header().Set("Content-Type", "audio/x-mpegurl")
		}
		w.Write(data)
	}
}

func (s *Server) handleSlate(w http.ResponseWriter, r *http.Request) {
	if s.SlateURL == "" {
		http.Error(w, "no slate configured", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, s.SlateURL, http.StatusFound)
}

func (s *Server) handleDebugPlan(w http.ResponseWriter, r *http.Request) {
	lane := r.PathValue("lane")
	ch, err := s.Resolver.ResolveLane(lane)
	if err != nil {
		http.Error(w, "unknown lane", http.StatusNotFound)
		return
	}
	planID, err := s.Store.LatestPlanID()
	if err != nil {
		http.Error(w, "no committed plan", http.StatusNotFound)
		return
	}
	slots, err := s.Store.ListSlots(planID, ch.ChannelID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plan_id": planID, "lane": ch.ChannelID, "slots": slots})
}

func (s *Server) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Worker == nil {
		http.Error(w, "scheduler not wired", http.StatusNotImplemented)
		return
	}
	s.Worker.TriggerRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAdminStickyClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.ClearStickyMap(); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if s.Worker != nil {
		s.Worker.TriggerRefresh()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) outPath(name string) string {
	if s.OutDir == "" {
		return name
	}
	return strings.TrimSuffix(s.OutDir, "/") + "/" + name
}
