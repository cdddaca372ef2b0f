package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"nepal_jobs/internal/domain"
)

type postingCounter interface {
	Count(ctx context.Context, filter domain.PostingFilter) (int, error)
	CountBy(ctx context.Context, dim domain.Dimension, filter domain.PostingFilter) ([]domain.Bucket, error)
}

type stateLister interface {
	List(ctx context.Context) ([]domain.SourceState, error)
}

type report struct {
	Since     time.Time
	Dimension domain.Dimension
	Total     int
	Buckets   []domain.Bucket
	Sources   []domain.SourceState
}

func buildReport(ctx context.Context, postings postingCounter, states stateLister, dim domain.Dimension, filter domain.PostingFilter) (*report, error) {
	total, err := postings.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count postings: %w", err)
	}

	buckets, err := postings.CountBy(ctx, dim, filter)
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", dim, err)
	}

	sources, err := states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source state: %w", err)
	}

	return &report{
		Since:     filter.ScrapedFrom,
		Dimension: dim,
		Total:     total,
		Buckets:   buckets,
		Sources:   sources,
	}, nil
}

func (r *report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	window := "all time"
	if !r.Since.IsZero() {
		window = "since " + r.Since.UTC().Format(time.DateOnly)
	}
	fmt.Fprintf(tw, "Postings (%s):\t%d\n\n", window, r.Total)

	fmt.Fprintf(tw, "%s\tCOUNT\n", r.Dimension)
	for _, b := range r.Buckets {
		fmt.Fprintf(tw, "%s\t%d\n", b.Label, b.Total)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SOURCE\tLAST RUN\tLAST SUCCESS\tSTORED\tFAILURES")
	for _, s := range r.Sources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			s.Source,
			formatTime(s.LastRunAt),
			formatTime(s.LastSuccessAt),
			s.TotalStored,
			s.ConsecutiveFailures,
		)
	}

	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.DateTime)
}
