package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remindd/internal/alarm"
	"remindd/internal/config"
	"remindd/internal/feed"
	appLog "remindd/internal/log"
	"remindd/internal/notify"
	"remindd/internal/remind"
	"remindd/internal/store"
	"remindd/internal/web"
)

// flagConfig holds CLI flag values before full config loading.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("remindd starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"lead_hours", conf.LeadHours,
		"check", conf.CheckCron,
		"refresh", conf.RefreshCron,
		"snooze_minutes", conf.SnoozeMinutes,
		"state_path", conf.StatePath,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(conf.StatePath)
	if err != nil {
		appLog.Error("failed to open state store", err, "state_path", conf.StatePath)
		os.Exit(1)
	}

	fetcher := feed.NewFetcher(conf.CacheDir, conf.FetchTimeout(), conf.FetchRetries, conf.FetchBackoff())

	var notifier notify.Notifier = notify.LogNotifier{}
	if conf.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(conf.WebhookURL, conf.FetchTimeout())
		appLog.Info("webhook notifier enabled")
	}

	alarms := alarm.New(st)
	engine := remind.New(conf, st, alarms, notifier, fetcher)
	alarms.OnFire(func(name string) {
		engine.HandleAlarm(ctx, name)
	})

	// Re-arm one-shot timers that survived the restart, then ensure
	// the two periodic jobs exist.
	if err := alarms.Rearm(); err != nil {
		appLog.Error("failed to re-arm persisted timers", err)
		os.Exit(1)
	}
	if err := alarms.ArmPeriodic(remind.JobCheckEvents, conf.CheckCron); err != nil {
		appLog.Error("invalid check cron spec", err, "spec", conf.CheckCron)
		os.Exit(1)
	}
	if err := alarms.ArmPeriodic(remind.JobRefreshFeed, conf.RefreshCron); err != nil {
		appLog.Error("invalid refresh cron spec", err, "spec", conf.RefreshCron)
		os.Exit(1)
	}

	// Initial refresh -> reap -> schedule pass.
	engine.Startup(ctx)

	if flags.once {
		appLog.Info("single-shot run complete, exiting")
		return
	}

	alarms.Start()
	defer alarms.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(engine, st, alarms).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	appLog.Info("remindd exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/remindd/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh+schedule pass and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
