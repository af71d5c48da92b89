package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"live-clientv1/config"
	"live-clientv1/internal/controller"
	"live-clientv1/internal/journal"
	"live-clientv1/internal/logger"
	"live-clientv1/internal/metrics"
	"live-clientv1/internal/publish"
	"live-clientv1/internal/sessionapi"
)

func main() {
	sessionFile := flag.String("session", "session.yaml", "path to the session definition file")
	confirmReal := flag.Bool("confirm-real", false, "acknowledge that a real-mode session trades live funds")
	flag.Parse()

	// ---- Load env & config ----
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env", "err", err)
	}
	cfg := config.Load()
	log := logger.Init("sessionctl", logger.ParseLevel(cfg.LogLevel))

	sessionCfg, err := config.LoadSessionFile(*sessionFile)
	if err != nil {
		log.Error("session file", "err", err)
		os.Exit(1)
	}
	log.Info("session loaded",
		"symbol", sessionCfg.Symbol,
		"strategy", sessionCfg.Strategy,
		"mode", sessionCfg.Mode)

	// ---- Metrics ----
	met := metrics.New()
	go metrics.Serve(cfg.MetricsAddr)

	// ---- Journal (local sqlite, off the hot path) ----
	var jrnl *journal.Journal
	if cfg.JournalPath != "" {
		os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)
		jrnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Error("journal init failed", "err", err)
			os.Exit(1)
		}
		log.Info("journal ready", "path", cfg.JournalPath)
	}

	// ---- Redis publisher (optional) ----
	var pub *publish.Publisher
	if cfg.RedisAddr != "" {
		pub, err = publish.New(cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			log.Warn("redis unavailable, continuing without publisher", "err", err)
			pub = nil
		} else {
			log.Info("redis publisher ready", "addr", cfg.RedisAddr)
		}
	}

	// ---- Controller ----
	ctrl := controller.New(controller.Config{
		API:         sessionapi.New(cfg.APIBaseURL, met),
		RealtimeURL: cfg.RealtimeURL,
		Token:       cfg.RealtimeToken,
		BarCap:      cfg.BarCap,
		MarkerCap:   cfg.MarkerCap,
		Journal:     jrnl,
		Publisher:   pub,
		Metrics:     met,
		Logger:      log,
	})
	defer ctrl.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Create(ctx, sessionCfg, *confirmReal); err != nil {
		log.Error("create session", "err", err)
		os.Exit(1)
	}
	log.Info("session created", "id", ctrl.SessionID())

	if err := ctrl.Start(ctx); err != nil {
		log.Error("start session", "err", err)
		os.Exit(1)
	}
	log.Info("session running", "id", ctrl.SessionID())

	// ---- Wait for shutdown signal ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := ctrl.Stop(stopCtx); err != nil {
		log.Error("stop session", "err", err)
	} else {
		s := ctrl.Summary()
		log.Info("session stopped",
			"id", ctrl.SessionID(),
			"elapsed", ctrl.Elapsed().Round(time.Second).String(),
			"return_pct", s.ReturnPct,
			"trades", s.TradeCount)
	}
}
