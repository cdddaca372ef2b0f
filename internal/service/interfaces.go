package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"nepal_jobs/internal/domain"
)

type Source interface {
	ID() domain.Portal
	Name() string
	FetchJobs(ctx context.Context, maxPages int) (*domain.FetchResult, error)
}

type JobStore interface {
	Insert(ctx context.Context, posting *domain.JobPosting) (bool, error)
	ExistingKeys(ctx context.Context, source domain.Portal, ids []string) (map[domain.Key]struct{}, error)
}

type SourceStateStore interface {
	Get(ctx context.Context, source domain.Portal) (*domain.SourceState, error)
	Update(ctx context.Context, state *domain.SourceState) error
}

type Publisher interface {
	Publish(ctx context.Context, posting *domain.JobPosting) error
	Close() error
}
