package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nepal_jobs/internal/config"
	"nepal_jobs/internal/domain"
	"nepal_jobs/internal/storage/sqlstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	by := flag.String("by", string(domain.DimensionLocation), "group by: source, location, category, job_level or company")
	since := flag.Duration("since", 30*24*time.Hour, "only count postings scraped within this window (0 for all)")
	limit := flag.Int("limit", 20, "maximum number of groups to print")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dim := domain.Dimension(*by)
	if !dim.Valid() {
		logger.Error("unknown dimension", "by", *by)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	filter := domain.PostingFilter{Limit: *limit}
	if *since > 0 {
		filter.ScrapedFrom = time.Now().Add(-*since)
	}

	rep, err := buildReport(ctx, sqlstore.NewJobStore(db), sqlstore.NewSourceStateStore(db), dim, filter)
	if err != nil {
		logger.Error("failed to build report", "error", err)
		os.Exit(1)
	}

	if err := rep.Write(os.Stdout); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}
