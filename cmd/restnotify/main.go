package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/restnotify/restnotify/internal/config"
	"github.com/restnotify/restnotify/internal/logging"
	"github.com/restnotify/restnotify/internal/metrics"
	"github.com/restnotify/restnotify/internal/notify"
	"github.com/restnotify/restnotify/internal/server"
)

func main() {
	// 1. Define ALL flags at the top
	cfgFile := flag.String("config", "", "Path to config file")
	message := flag.String("message", "", "message to send (one-shot mode)")
	title := flag.String("title", "", "notification title")
	target := flag.String("target", "", "comma separated targets; REST services use the first")
	service := flag.String("service", "", "send only to the named service")

	// Serve mode flags
	serve := flag.Bool("serve", false, "run the HTTP trigger server")
	listen := flag.String("listen", "", "trigger server listen address (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")

	// 2. Parse ONCE
	flag.Parse()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Fatalf("failed loading config: %v", err)
	}

	// CLI flags should have highest precedence (override env/file/defaults)
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// initialize logging
	cleanup, err := logging.Init(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	mn := notify.NewMultiNotifier()
	services, err := notify.FromConfig(cfg)
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("failed to build notification services")
	}
	mn.Replace(services)

	if !*serve {
		if *message == "" {
			logging.Get().Fatal().Msg("-message is required unless -serve is set")
		}
		msg := notify.Message{Text: *message, Title: *title, Target: parseTargets(*target)}
		if err := sendOnce(context.Background(), mn, *service, msg); err != nil {
			logging.Get().Error().Err(err).Msg("notification failed")
			cleanup()
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startInflux(ctx, cfg)
	if *cfgFile != "" {
		go watchConfig(ctx, *cfgFile, cfg.ReloadDebounce, mn)
	}

	srv := server.New(server.Config{Addr: cfg.Listen, Metrics: cfg.MetricsEnabled}, mn, logging.For("server"))
	if err := srv.Start(ctx); err != nil {
		logging.Get().Error().Err(err).Msg("trigger server failed")
	}

	// Graceful shutdown: give up to 5 seconds for background sends to complete
	logging.Get().Info().Msg("shutdown signal received, waiting for active notifications to complete")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mn.Wait(shutdownCtx); err != nil {
		logging.Get().Warn().Err(err).Msg("timed out waiting for notifications")
	}
}

// loadConfig reads path (if set) over the defaults, then applies the
// environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	// load from file if provided (overrides defaults)
	if path != "" {
		c, err := config.LoadConfigFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	// apply env var overrides (overrides file/defaults)
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	return cfg, nil
}

func parseTargets(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// sendOnce delivers msg to one named service, or to all of them when name
// is empty.
func sendOnce(ctx context.Context, mn *notify.MultiNotifier, name string, msg notify.Message) error {
	if name != "" {
		return mn.Notify(ctx, name, msg)
	}
	err := mn.SendAll(ctx, msg)
	if errors.Is(err, notify.ErrNoServices) {
		return fmt.Errorf("%w: add notifiers to the config file", err)
	}
	return err
}

// startInflux starts the optional Influx pusher
func startInflux(ctx context.Context, cfg *config.Config) {
	if cfg.InfluxURL == "" {
		return
	}
	go metrics.StartInfluxPusher(ctx, metrics.InfluxConfig{
		URL:      cfg.InfluxURL,
		Token:    cfg.InfluxToken,
		Org:      cfg.InfluxOrg,
		Bucket:   cfg.InfluxBucket,
		Interval: cfg.InfluxInterval,
	}, logging.For("metrics"))
}

// watchConfig swaps the service set whenever the config file changes.
func watchConfig(ctx context.Context, path string, debounce time.Duration, mn *notify.MultiNotifier) {
	log := logging.For("config")
	err := config.Watch(ctx, path, debounce, log, func(cfg *config.Config) {
		if err := config.ApplyEnvOverrides(cfg); err != nil {
			log.Warn().Err(err).Msg("config reload: invalid environment configuration")
			return
		}
		applyReload(mn, cfg, log)
	})
	if err != nil {
		log.Error().Err(err).Msg("config watcher stopped")
	}
}
