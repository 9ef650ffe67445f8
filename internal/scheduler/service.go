package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/config"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/monitoring"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner runs one ingestion pass.
type Runner interface {
	RunIngestion(ctx context.Context, opts monitoring.RunOptions) (*models.IngestionSummary, error)
}

// Status describes the schedule
type Status struct {
	Interval string     `json:"interval"`
	Next     *time.Time `json:"next_run,omitempty"`
	Prev     *time.Time `json:"previous_run,omitempty"`
}

// Service handles scheduling of ingestion passes
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron

	mu      sync.Mutex
	entryID cron.EntryID
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, runner Runner) *Service {
	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    context.Background(),
	}
}

// Start schedules a pass every ScrapeInterval and kicks off an initial pass
// in the background. Passes run with ctx and stop when it is canceled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	spec := fmt.Sprintf("@every %s", s.config.ScrapeInterval)
	id, err := s.cron.AddFunc(spec, func() { s.run(monitoring.RunOptions{}) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	s.entryID = id
	s.mu.Unlock()

	s.cron.Start()
	logrus.Infof("Scheduler started, ingesting every %s", s.config.ScrapeInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(monitoring.RunOptions{Backfill: s.config.BackfillOnStart})
	}()
	return nil
}

// run performs one pass. A pass that is already in flight is not an error.
func (s *Service) run(opts monitoring.RunOptions) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	logrus.Info("Starting scheduled ingestion pass")
	summary, err := s.runner.RunIngestion(ctx, opts)
	switch {
	case errors.Is(err, monitoring.ErrAlreadyRunning):
		logrus.Info("Ingestion already running, skipping scheduled pass")
	case err != nil:
		logrus.Errorf("Scheduled ingestion pass failed: %v", err)
	default:
		logrus.Infof("Scheduled ingestion pass stored %d new posts", summary.ItemsNew)
	}
}

// Status reports the interval and the next and previous run times.
func (s *Service) Status() Status {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()

	st := Status{Interval: s.config.ScrapeInterval.String()}
	if id == 0 {
		return st
	}
	entry := s.cron.Entry(id)
	if !entry.Next.IsZero() {
		next := entry.Next
		st.Next = &next
	}
	if !entry.Prev.IsZero() {
		prev := entry.Prev
		st.Prev = &prev
	}
	return st
}

// Stop stops the scheduler and waits for a running pass to return.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		logrus.Info("Scheduler stopped")
	}
}
