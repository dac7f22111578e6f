// Command sportsgrid turns an upstream sports watch-graph feed into a
// rolling set of virtual linear channels, and serves the resulting
// XMLTV guide, M3U playlist, and per-lane tune/whatson HTTP surface.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/snapetech/sportsgrid/internal/config"
	"github.com/snapetech/sportsgrid/internal/health"
	"github.com/snapetech/sportsgrid/internal/ingest"
	"github.com/snapetech/sportsgrid/internal/m3u"
	"github.com/snapetech/sportsgrid/internal/metrics"
	"github.com/snapetech/sportsgrid/internal/planner"
	"github.com/snapetech/sportsgrid/internal/resolver"
	"github.com/snapetech/sportsgrid/internal/scheduler"
	"github.com/snapetech/sportsgrid/internal/store"
	"github.com/snapetech/sportsgrid/internal/tunerhttp"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional .env file to load before reading the environment")
	addr := flag.String("addr", "", "HTTP listen address (overrides SPORTSGRID_ADDR)")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("sportsgrid: %s: %v", *envFile, err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("sportsgrid: invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.Out, 0755); err != nil {
		log.Fatalf("sportsgrid: create out dir %s: %v", cfg.Out, err)
	}
	if err := os.MkdirAll(cfg.Logs, 0755); err != nil {
		log.Fatalf("sportsgrid: create logs dir %s: %v", cfg.Logs, err)
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		log.Fatalf("sportsgrid: open store %s: %v", cfg.DB, err)
	}
	defer st.Close()

	var client *ingest.Client
	if cfg.WatchGraphURL != "" {
		client = ingest.New(cfg.WatchGraphURL, cfg.WatchGraphTimeout,
			ingest.WithCacheFile(filepath.Join(cfg.Out, "ingest_cache.json")),
			ingest.WithRateLimit(5, 10),
		)
	} else {
		log.Print("sportsgrid: SPORTSGRID_WATCHGRAPH_URL not set; scheduler will run on whatever events are already in the store")
	}

	if cfg.WatchGraphURL != "" {
		checkCtx, checkCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := health.CheckWatchGraph(checkCtx, cfg.WatchGraphURL); err != nil {
			log.Printf("sportsgrid: startup check: watch-graph feed not reachable yet: %v", err)
		}
		checkCancel()
	}

	worker := scheduler.New(scheduler.Config{
		Interval:         time.Duration(cfg.ScheduleHours) * time.Hour,
		ValidHours:       cfg.ValidHours,
		AlignMins:        cfg.AlignMins,
		MinGapMins:       cfg.MinGapMins,
		PlaceholderTitle: cfg.PlaceholderTitle,
		Padding: planner.PaddingConfig{
			StartMins: cfg.PaddingStartMins,
			EndMins:   cfg.PaddingEndMins,
			LiveOnly:  cfg.PaddingLiveOnly,
		},
		Filter:   cfg.Filter,
		Lanes:    cfg.Lanes,
		LockPath: filepath.Join(cfg.Out, "build.lock"),
		OutDir:   cfg.Out,
		M3U: m3u.Config{
			ResolverBaseURL: cfg.ResolverBaseURL,
			GroupTitle:      cfg.M3UGroupTitle,
			CCHost:          cfg.CCHost,
			CCPort:          cfg.CCPort,
		},
	}, st, client, metrics.Recorder())

	httpAddr := *addr
	if httpAddr == "" {
		httpAddr = os.Getenv("SPORTSGRID_ADDR")
	}

	httpServer := &tunerhttp.Server{
		Addr:     httpAddr,
		Store:    st,
		Resolver: resolver.New(st, "eplus"),
		Worker:   worker,
		OutDir:   cfg.Out,
		SlateURL: cfg.VCSlateURL,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Print("sportsgrid: shutting down ...")
		cancel()
	}()

	go worker.Run(ctx)

	if err := httpServer.Run(ctx); err != nil {
		log.Fatalf("sportsgrid: http server: %v", err)
	}
}
