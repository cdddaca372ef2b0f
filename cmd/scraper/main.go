package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"nepal_jobs/internal/config"
	"nepal_jobs/internal/fetch"
	"nepal_jobs/internal/publisher"
	"nepal_jobs/internal/scheduler"
	"nepal_jobs/internal/service"
	"nepal_jobs/internal/source/kumarijob"
	"nepal_jobs/internal/source/merojob"
	"nepal_jobs/internal/storage/sqlstore"
	"nepal_jobs/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline a single time and exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, *once, logger); err != nil {
		logger.Error("scraper exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, once bool, logger *slog.Logger) error {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.CollectorURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down tracer", "error", err)
		}
	}()

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	applied, err := sqlstore.NewMigrator(db, logger).Up(ctx)
	if err != nil {
		return err
	}
	logger.Info("schema up to date", "applied", applied)

	pub, err := newPublisher(cfg.Publisher, logger)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
	}

	jobStore := sqlstore.NewJobStore(db)
	stateStore := sqlstore.NewSourceStateStore(db)

	client := fetch.New(fetch.Config{
		Timeout:         cfg.HTTP.Timeout,
		UserAgent:       cfg.HTTP.UserAgent,
		RequestInterval: cfg.HTTP.RequestInterval,
		MaxAttempts:     cfg.HTTP.Retry.MaxAttempts,
		InitialBackoff:  cfg.HTTP.Retry.InitialBackoff,
		MaxBackoff:      cfg.HTTP.Retry.MaxBackoff,
	}, logger)

	var scrapers []service.Scraper
	if src := cfg.Sources.MeroJob; src.Enabled {
		mero := merojob.New(merojob.Config{
			BaseURL:  src.BaseURL,
			SiteURL:  src.SiteURL,
			PageSize: src.PageSize,
		}, client, logger)
		scrapers = append(scrapers, service.NewScrapeService(mero, jobStore, stateStore, pub, logger, src.MaxPages))
	}
	if src := cfg.Sources.KumariJob; src.Enabled {
		kumari := kumarijob.New(kumarijob.Config{
			BaseURL:    src.BaseURL,
			DeepScrape: src.DeepScrape,
		}, client, logger)
		scrapers = append(scrapers, service.NewScrapeService(kumari, jobStore, stateStore, pub, logger, src.MaxPages))
	}

	pipeline := service.NewPipeline(logger, scrapers...)

	if once {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Schedule.RunTimeout)
		defer cancel()

		summary, err := pipeline.Run(runCtx)
		if err != nil {
			return err
		}
		logger.Info("single run finished",
			"stored", summary.Stored(),
			"failed_sources", summary.FailedSources,
			"duration", summary.Duration,
		)
		return nil
	}

	logger.Info("starting job scraper",
		"sources", len(scrapers),
		"interval", cfg.Schedule.Interval,
		"publisher", cfg.Publisher.Kind,
	)

	sched := scheduler.NewScheduler(pipeline, cfg.Schedule.Interval, cfg.Schedule.RunTimeout, logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newPublisher returns a nil Publisher when publishing is disabled.
func newPublisher(cfg config.PublisherConfig, logger *slog.Logger) (service.Publisher, error) {
	switch cfg.Kind {
	case config.PublisherRabbitMQ:
		return publisher.NewRabbitMQ(publisher.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
	case config.PublisherNATS:
		return publisher.NewNATS(publisher.NATSConfig{
			URL:         cfg.NATS.URL,
			Subject:     cfg.NATS.Subject,
			ConnTimeout: cfg.NATS.ConnTimeout,
		}, logger)
	default:
		return nil, nil
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
