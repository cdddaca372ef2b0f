package service_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"nepal_jobs/internal/config"
	"nepal_jobs/internal/domain"
	"nepal_jobs/internal/fetch"
	"nepal_jobs/internal/scheduler"
	"nepal_jobs/internal/service"
	"nepal_jobs/internal/source/kumarijob"
	"nepal_jobs/internal/source/merojob"
	"nepal_jobs/internal/storage/sqlstore"
)

const meroPage = `{
  "count": 3,
  "next": null,
  "results": [
    {"id": 1, "title": "golang developer", "client": {"client_name": "F1Soft", "location": "KTM"}, "absolute_url": "/golang-developer-1/"},
    {"id": 2, "title": "Accountant", "client": {"client_name": "Himalayan Bank"}, "job_locations": [{"address": "PKR"}],
     "offered_salary": {"minimum": 30000, "maximum": 45000, "currency": "NPR"}, "absolute_url": "/accountant-2/"},
    {"id": 3, "title": "", "client": {"client_name": "Ghost Corp"}, "absolute_url": "/untitled-3/"}
  ]
}`

const kumariPage = `<html><body>
<div class="job-card" data-jobid="501">
  <h5><a href="/job/501/sales-officer">Sales Officer</a></h5>
  <h6>CG Foods</h6>
  <ul class="description"><li>2 Years</li><li>Nrs. 20,000 - 30,000</li></ul>
</div>
<div class="job-card" data-jobid="502">
  <h5><a href="/job/502/receptionist">Receptionist</a></h5>
  <h6>Hotel Yak &amp; Yeti</h6>
</div>
</body></html>`

type PipelineE2ESuite struct {
	suite.Suite
	ctx    context.Context
	db     *sqlx.DB
	jobs   *sqlstore.JobStore
	states *sqlstore.SourceStateStore
	server *httptest.Server
	logger *slog.Logger

	kumariDown atomic.Bool
	meroDown   atomic.Bool
}

func (s *PipelineE2ESuite) SetupTest() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.kumariDown.Store(false)
	s.meroDown.Store(false)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if s.meroDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(meroPage))
	})
	mux.HandleFunc("/kumari/", func(w http.ResponseWriter, r *http.Request) {
		if s.kumariDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(kumariPage))
	})
	s.server = httptest.NewServer(mux)

	db, err := sqlstore.Open(s.ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(s.T().TempDir(), "jobs.db"),
	})
	s.Require().NoError(err)
	s.db = db

	_, err = sqlstore.NewMigrator(db, s.logger).Up(s.ctx)
	s.Require().NoError(err)

	s.jobs = sqlstore.NewJobStore(db)
	s.states = sqlstore.NewSourceStateStore(db)
}

func (s *PipelineE2ESuite) TearDownTest() {
	s.server.Close()
	if s.db != nil {
		s.db.Close()
	}
}

func TestPipelineE2ESuite(t *testing.T) {
	suite.Run(t, new(PipelineE2ESuite))
}

func (s *PipelineE2ESuite) pipeline() *service.Pipeline {
	client := fetch.New(fetch.Config{
		Timeout:     5 * time.Second,
		UserAgent:   "nepal-jobs-test",
		MaxAttempts: 1,
	}, s.logger)

	mero := merojob.New(merojob.Config{
		BaseURL:  s.server.URL + "/api/v1/jobs/",
		SiteURL:  s.server.URL,
		PageSize: 50,
	}, client, s.logger)
	kumari := kumarijob.New(kumarijob.Config{BaseURL: s.server.URL + "/kumari/"}, client, s.logger)

	return service.NewPipeline(s.logger,
		service.NewScrapeService(mero, s.jobs, s.states, nil, s.logger, 3),
		service.NewScrapeService(kumari, s.jobs, s.states, nil, s.logger, 1),
	)
}

func (s *PipelineE2ESuite) count() int {
	n, err := s.jobs.Count(s.ctx, domain.PostingFilter{})
	s.Require().NoError(err)
	return n
}

func (s *PipelineE2ESuite) TestRun_RepeatedRunsNeverDuplicate() {
	p := s.pipeline()

	first, err := p.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, first.Stored())
	s.Equal(4, s.count())

	second, err := p.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, second.Stored())
	s.Equal(4, s.count())

	state, err := s.states.Get(s.ctx, domain.PortalMeroJob)
	s.Require().NoError(err)
	s.Equal(int64(2), state.TotalStored)
	s.False(state.LastSuccessAt.IsZero())
}

func (s *PipelineE2ESuite) TestRun_RecordWithoutTitleNeverStored() {
	_, err := s.pipeline().Run(s.ctx)
	s.Require().NoError(err)

	stored, err := s.jobs.Query(s.ctx, domain.PostingFilter{Source: domain.PortalMeroJob})
	s.Require().NoError(err)

	var ids []string
	for _, p := range stored {
		ids = append(ids, p.SourceID)
		s.NotEmpty(p.Title)
	}
	s.ElementsMatch([]string{"1", "2"}, ids)
}

func (s *PipelineE2ESuite) TestRun_CleanedFieldsPersisted() {
	_, err := s.pipeline().Run(s.ctx)
	s.Require().NoError(err)

	stored, err := s.jobs.Query(s.ctx, domain.PostingFilter{Location: "pokhara"})
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("Accountant", stored[0].Title)
	s.Require().NotNil(stored[0].Salary)
	s.Equal(30000.0, *stored[0].Salary.Min)
	s.Equal(s.server.URL+"/accountant-2/", stored[0].URL)

	kumari, err := s.jobs.Query(s.ctx, domain.PostingFilter{Source: domain.PortalKumariJob})
	s.Require().NoError(err)
	s.Len(kumari, 2)
	for _, p := range kumari {
		s.Equal("Kathmandu", p.Location)
	}
}

func (s *PipelineE2ESuite) TestRun_FailingSourceDoesNotBlockOther() {
	s.kumariDown.Store(true)

	summary, err := s.pipeline().Run(s.ctx)

	s.Require().NoError(err)
	s.Equal([]domain.Portal{domain.PortalKumariJob}, summary.FailedSources)
	s.Equal(2, s.count())

	state, err := s.states.Get(s.ctx, domain.PortalKumariJob)
	s.Require().NoError(err)
	s.Equal(1, state.ConsecutiveFailures)
	s.True(state.LastSuccessAt.IsZero())
}

func (s *PipelineE2ESuite) TestRun_AllSourcesFailed() {
	s.kumariDown.Store(true)
	s.meroDown.Store(true)

	_, err := s.pipeline().Run(s.ctx)

	s.ErrorIs(err, service.ErrAllSourcesFailed)
	s.Equal(0, s.count())
}

type stopAfter struct {
	pipeline *service.Pipeline
	limit    int32
	runs     atomic.Int32
	count    func() int
	counts   []int
	stop     context.CancelFunc
}

func (r *stopAfter) Run(ctx context.Context) (*domain.RunSummary, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	summary, err := r.pipeline.Run(ctx)
	r.counts = append(r.counts, r.count())
	if r.runs.Add(1) == r.limit {
		r.stop()
	}
	return summary, err
}

func (s *PipelineE2ESuite) TestScheduler_TwoTicksLeaveCountUnchanged() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	runner := &stopAfter{pipeline: s.pipeline(), limit: 2, count: s.count, stop: cancel}
	err := scheduler.NewScheduler(runner, 20*time.Millisecond, 10*time.Second, s.logger).Start(ctx)

	s.ErrorIs(err, context.Canceled)
	s.Equal([]int{4, 4}, runner.counts)
}
