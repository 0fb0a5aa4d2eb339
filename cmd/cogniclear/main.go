// Command cogniclear simplifies web pages for users with cognitive
// disabilities.
//
// Usage:
//
//	cogniclear -url https://example.com      # simplify a live page
//	cogniclear -serve                        # run the classification service
//	cogniclear -config cogniclear.yaml -url https://example.com
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/cogniclear/cogniclear"
	"github.com/cogniclear/cogniclear/browser"
	"github.com/cogniclear/cogniclear/bus"
	"github.com/cogniclear/cogniclear/cache"
	"github.com/cogniclear/cogniclear/classify"
	"github.com/cogniclear/cogniclear/descriptor"
	"github.com/cogniclear/cogniclear/extract"
	"github.com/cogniclear/cogniclear/navwatch"
	"github.com/cogniclear/cogniclear/pipeline"
	"github.com/cogniclear/cogniclear/present"
	"github.com/cogniclear/cogniclear/service"
	"github.com/cogniclear/cogniclear/session"
)

func main() {
	configPath := flag.String("config", "", "path to cogniclear.yaml config file")
	pageURL := flag.String("url", "", "simplify a single URL")
	serve := flag.Bool("serve", false, "run the classification service")
	endpoint := flag.String("endpoint", "", "override the classification endpoint")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	// Optional .env for API keys; absence is not an error.
	godotenv.Load()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL, *endpoint, *serve); err != nil {
		logger.Error("cogniclear: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL, endpoint string, serve bool) error {
	cfg, err := cogniclear.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if endpoint != "" {
		cfg.Classifier.Endpoint = endpoint
	}

	if serve {
		return runServe(ctx, logger, cfg)
	}
	if pageURL != "" {
		return runPage(ctx, logger, cfg, pageURL)
	}

	fmt.Fprintln(os.Stderr, "usage: cogniclear -url <url> | -serve")
	os.Exit(1)
	return nil
}

// runServe starts the classification service on the configured address.
func runServe(ctx context.Context, logger *slog.Logger, cfg *cogniclear.Config) error {
	var model service.Model
	if cfg.Service.ModelBaseURL != "" {
		model = service.NewOpenAIModel(
			cfg.Service.ModelBaseURL,
			os.Getenv(cfg.Service.APIKeyEnv),
			cfg.Service.ModelName,
			service.WithModelLogger(logger))
		logger.Info("service: using model backend",
			"base_url", cfg.Service.ModelBaseURL, "model", cfg.Service.ModelName)
	} else {
		model = service.NewRuleModel()
		logger.Info("service: no model backend configured, using rule model")
	}

	svc := service.New(model, logger)
	srv := &http.Server{Addr: cfg.Service.Addr, Handler: svc.Router()}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("service: listening", "addr", cfg.Service.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// runPage opens the URL in a browser tab, simplifies it, and keeps the
// simplified view current across SPA navigations until interrupted.
func runPage(ctx context.Context, logger *slog.Logger, cfg *cogniclear.Config, pageURL string) error {
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          cfg.Browser.Stealth,
		Logger:           logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := mgr.OpenTab(ctx, pageURL)
	if err != nil {
		return err
	}
	defer tab.Close()

	respCache, closeCache, err := buildCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	go respCache.Sweeper(ctx)

	client := classify.NewHTTPClient(
		classify.StaticEndpoint(cfg.Classifier.Endpoint),
		classify.WithHTTPClient(&http.Client{Timeout: cfg.Classifier.Timeout}),
		classify.WithLogger(logger))

	var machine *present.Machine
	renderer := present.NewOverlayRenderer(tab, func() present.Mode {
		if machine == nil {
			return present.ModeNormal
		}
		return machine.Mode()
	})

	pipe := pipeline.New(
		func(ctx context.Context) ([]descriptor.ElementDescriptor, error) {
			return extract.FromPage(ctx, tab)
		},
		client,
		respCache,
		pipeline.WithLogger(logger),
		pipeline.WithChunking(cfg.Pipeline.FirstChunkSize, cfg.Pipeline.MaxElements),
		pipeline.WithOnPartial(func(res pipeline.Result) {
			if err := renderer.Update(ctx, res.Items, true); err != nil {
				logger.Warn("cogniclear: partial render failed", "error", err)
			}
		}))

	machine = present.NewMachine(pipe, renderer, func(ctx context.Context) (pipeline.Page, error) {
		u, err := tab.URL(ctx)
		if err != nil {
			return pipeline.Page{}, err
		}
		title, err := tab.Title(ctx)
		if err != nil {
			return pipeline.Page{}, err
		}
		return pipeline.Page{URL: u, Title: title}, nil
	}, logger)

	sess := session.New(machine, pipe, respCache, client, session.WithLogger(logger))
	router := bus.NewRouter(bus.WithLogger(logger))
	sess.Register(router)

	// Simplify immediately.
	if _, err := router.Call(ctx, bus.MsgToggleSimplified, nil); err != nil {
		return fmt.Errorf("initial toggle: %w", err)
	}

	mutations, err := tab.StreamMutationCounts(ctx, cfg.Navigation.PollInterval)
	if err != nil {
		logger.Warn("cogniclear: mutation counter unavailable", "error", err)
	}

	watcher := navwatch.New(
		func(ctx context.Context) (string, error) { return tab.URL(ctx) },
		mutations,
		navwatch.Options{
			Interval:          cfg.Navigation.PollInterval,
			Debounce:          cfg.Navigation.Debounce,
			MutationThreshold: cfg.Navigation.MutationThreshold,
			Logger:            logger,
		})

	logger.Info("cogniclear: page simplified, watching for navigation", "url", pageURL)
	watcher.Run(ctx, machine.Simplified, machine.Refresh)
	return nil
}

// buildCache wires the response cache, persistent when a SQLite path is
// configured.
func buildCache(cfg *cogniclear.Config, logger *slog.Logger) (*cache.Cache, func(), error) {
	opts := []cache.Option{
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(logger),
	}
	closer := func() {}

	if cfg.Cache.SQLitePath != "" {
		db, err := sql.Open("sqlite", cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("cache db open: %w", err)
		}
		store, err := cache.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		opts = append(opts, cache.WithStore(store))
		closer = func() { db.Close() }
	}

	return cache.New(opts...), closer, nil
}
