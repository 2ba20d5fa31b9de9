package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/lessonpage/internal/api"
	"github.com/dgallion1/lessonpage/internal/config"
	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/progressstore"
	"github.com/dgallion1/lessonpage/internal/viewer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := progressstore.Open(ctx, cfg.ProgressStore, cfg.ProgressStoreDSN)
	if err != nil {
		log.Error("open progress store", "backend", cfg.ProgressStore, "error", err)
		os.Exit(1)
	}

	// Events go to a remote progress endpoint when one is configured,
	// otherwise straight into the local store.
	var sink progress.Sink = progressstore.Sink(store)
	var httpSink *progress.HTTPSink
	if cfg.ProgressURL != "" {
		httpSink = progress.NewHTTPSink(cfg.ProgressURL, cfg.ProgressAPIKey, cfg.ProgressHTTPTimeout)
		sink = httpSink
	}
	reporter := progress.NewReporter(sink, log, cfg.ReportConcurrency)

	var loader content.Loader
	if cfg.ContentURL != "" {
		loader = content.NewHTTPLoader(cfg.ContentURL, cfg.ContentAPIKey)
	} else {
		loader = content.NewDirLoader(cfg.ContentDir)
	}

	views := viewer.NewStore(cfg.ViewTTL)
	views.Start(ctx, 5*time.Minute)

	srv := api.NewServer(api.Deps{
		Loader:   loader,
		Views:    views,
		Reporter: reporter,
		Store:    store,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		cancel()
		views.CloseAll()

		// Give reports already dispatched a bounded chance to land.
		drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout)
		defer drainCancel()
		if err := reporter.Close(drainCtx); err != nil {
			log.Warn("progress deliveries still in flight at exit", "error", err, "stats", reporter.Stats().Snapshot())
		}

		if httpSink != nil {
			httpSink.Close()
		}
		if err := store.Close(); err != nil {
			log.Warn("close progress store", "error", err)
		}
	}()

	log.Info("starting lessonpage",
		"port", cfg.Port,
		"progress_store", cfg.ProgressStore,
		"remote_progress", cfg.ProgressURL != "",
		"page_marker", cfg.PageMarker,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
