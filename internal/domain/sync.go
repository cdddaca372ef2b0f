package domain

import "time"

// ScrapeStats holds statistics about one source's scrape-clean-store run.
type ScrapeStats struct {
	Source      Portal
	Fetched     int
	Dropped     int
	Duplicates  int
	Stored      int
	Errors      int
	Published   int
	PagesFailed int
	Duration    time.Duration
}

// RunSummary aggregates one pipeline run across all configured sources.
type RunSummary struct {
	StartedAt     time.Time
	Duration      time.Duration
	Sources       []ScrapeStats
	FailedSources []Portal
}

func (r *RunSummary) Stored() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Stored
	}
	return total
}
