package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leolhan1425/bc-tracker/internal/classify"
	"github.com/leolhan1425/bc-tracker/internal/config"
	"github.com/leolhan1425/bc-tracker/internal/metrics"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/notifications"
	"github.com/leolhan1425/bc-tracker/internal/sources"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned when a pass is requested while one is in flight.
var ErrAlreadyRunning = errors.New("already running")

// Store is the subset of the tracker store the ingestion pass needs.
type Store interface {
	MergePosts(ctx context.Context, batch []models.ClassifiedItem) (int, error)
	MergeComments(ctx context.Context, postID string, batch []models.ClassifiedItem) (int, error)
	MarkCommentsScraped(ctx context.Context, postID string) error
	PostsAwaitingComments(ctx context.Context, limit int) ([]models.Item, error)
	Backfill(ctx context.Context, annotator store.Annotator) (*store.BackfillResult, error)
	RecordRun(ctx context.Context, run models.IngestionRun) error
	RecordError(ctx context.Context, e models.IngestionError) error
	Stats(ctx context.Context) (*models.Stats, error)
	Export(ctx context.Context) (*models.Snapshot, error)
	ValidationSamples(ctx context.Context, section string, limit int) ([]store.Sample, error)
}

// Backuper persists store snapshots.
type Backuper interface {
	Save(ctx context.Context, snap *models.Snapshot) (string, error)
}

// RunOptions tunes a single ingestion pass.
type RunOptions struct {
	// Backfill re-annotates stored posts before fetching.
	Backfill bool
	// Since drops fetched posts created before it. Zero keeps everything.
	Since time.Time
	// SkipComments skips the comment pass.
	SkipComments bool
	// SkipReport skips the notification report.
	SkipReport bool
}

// Status is a snapshot of the service state
type Status struct {
	Running     bool                     `json:"running"`
	LastRun     *time.Time               `json:"last_run,omitempty"`
	LastSummary *models.IngestionSummary `json:"last_summary,omitempty"`
	LastError   string                   `json:"last_error,omitempty"`
}

// Service runs ingestion passes over the configured communities
type Service struct {
	config              *config.Config
	store               Store
	fetcher             sources.Fetcher
	classifier          *classify.Classifier
	notificationService notifications.NotificationInterface
	backup              Backuper
	clock               clockwork.Clock

	mu      sync.Mutex
	running bool
	status  Status
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier replaces the default classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithBackup enables snapshot backups after each pass.
func WithBackup(b Backuper) Option {
	return func(s *Service) { s.backup = b }
}

// WithClock overrides the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a new monitoring service. notificationService may be nil.
func NewService(cfg *config.Config, st Store, fetcher sources.Fetcher,
	notificationService notifications.NotificationInterface, opts ...Option) *Service {
	s := &Service{
		config:              cfg,
		store:               st,
		fetcher:             fetcher,
		notificationService: notificationService,
		clock:               clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = classify.NewDefault()
	}
	return s
}

// Classifier returns the classifier used for ingestion.
func (s *Service) Classifier() *classify.Classifier {
	return s.classifier
}

func (s *Service) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) release(summary *models.IngestionSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	now := s.clock.Now()
	s.status.LastRun = &now
	if summary != nil {
		s.status.LastSummary = summary
	}
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}

// Running reports whether a pass is in flight.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the current service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Running = s.running
	return st
}

// passState accumulates one pass.
type passState struct {
	runID   string
	summary *models.IngestionSummary
	failed  []string
}

func (p *passState) countCategories(batch []models.ClassifiedItem) {
	for _, ci := range batch {
		if ci.Item.CrosspostParent != "" {
			continue
		}
		for _, c := range ci.Annotation.Entities {
			p.summary.CategoryCounts[c]++
		}
	}
}

// RunIngestion performs one full pass. It returns ErrAlreadyRunning without
// doing anything if another pass is in flight. Per-community failures are
// recorded and counted but never fail the pass.
func (s *Service) RunIngestion(ctx context.Context, opts RunOptions) (*models.IngestionSummary, error) {
	if !s.acquire() {
		metrics.IngestionRejectedTotal.Inc()
		return nil, ErrAlreadyRunning
	}
	return s.runPass(ctx, opts)
}

// StartIngestion starts a pass in the background and returns at once. Like
// RunIngestion it returns ErrAlreadyRunning if a pass is in flight.
func (s *Service) StartIngestion(ctx context.Context, opts RunOptions) error {
	if !s.acquire() {
		metrics.IngestionRejectedTotal.Inc()
		return ErrAlreadyRunning
	}
	go func() {
		if _, err := s.runPass(ctx, opts); err != nil {
			logrus.Errorf("Background ingestion pass failed: %v", err)
		}
	}()
	return nil
}

// runPass runs a pass once the guard is held and releases it on return,
// including when the pass panics.
func (s *Service) runPass(ctx context.Context, opts RunOptions) (summary *models.IngestionSummary, err error) {
	metrics.IngestionRunning.Set(1)
	defer metrics.IngestionRunning.Set(0)

	start := s.clock.Now()
	pass := &passState{
		runID: uuid.NewString(),
		summary: &models.IngestionSummary{
			StartedAt:      start,
			CategoryCounts: make(map[string]int),
			Communities:    s.config.CommunityNames(),
		},
	}
	pass.summary.RunID = pass.runID
	defer func() { s.release(pass.summary, err) }()

	logrus.WithFields(logrus.Fields{
		"run_id":      pass.runID,
		"communities": len(s.config.Communities),
	}).Info("Starting ingestion pass")

	if opts.Backfill {
		if _, err := s.store.Backfill(ctx, s.classifier); err != nil {
			s.recordError(ctx, pass, "", models.ErrKindStore, fmt.Errorf("backfill: %w", err), "", "")
		}
	}

	for _, community := range s.config.Communities {
		if ctx.Err() != nil {
			break
		}
		s.ingestCommunity(ctx, pass, community, opts)
	}

	if !opts.SkipComments && ctx.Err() == nil {
		s.ingestComments(ctx, pass)
	}

	if s.backup != nil && ctx.Err() == nil {
		s.saveBackup(ctx, pass)
	}

	duration := s.clock.Since(start)
	pass.summary.Duration = duration.Round(time.Second).String()
	metrics.IngestionDuration.Observe(duration.Seconds())

	result := "success"
	switch {
	case ctx.Err() != nil:
		result = "canceled"
	case len(pass.failed) > 0 && len(pass.failed) == len(s.config.Communities):
		result = "failed"
	case len(pass.failed) > 0:
		result = "partial"
	}
	metrics.IngestionRunsTotal.WithLabelValues(result).Inc()

	if s.notificationService != nil && !opts.SkipReport && ctx.Err() == nil {
		s.sendReport(ctx, pass, result)
	}

	logrus.WithFields(logrus.Fields{
		"run_id":       pass.runID,
		"items_seen":   pass.summary.ItemsSeen,
		"items_new":    pass.summary.ItemsNew,
		"comments_new": pass.summary.CommentsNew,
		"errors":       pass.summary.ErrorCount,
		"duration":     pass.summary.Duration,
		"result":       result,
	}).Info("Ingestion pass completed")

	return pass.summary, ctx.Err()
}

// ingestCommunity fetches the new and hot feeds of one community and merges
// each page as one batch. A storage failure abandons the community.
func (s *Service) ingestCommunity(ctx context.Context, pass *passState, community config.Community, opts RunOptions) {
	log := logrus.WithFields(logrus.Fields{"run_id": pass.runID, "community": community.Name})

	feeds := []struct {
		sort  string
		limit int
	}{
		{models.SortNew, community.Limit},
		{models.SortHot, min(community.Limit, s.config.HotLimit)},
	}

	seen, created, errCount := 0, 0, 0
	storeFailed := false

feeds:
	for _, feed := range feeds {
		if feed.limit <= 0 {
			continue
		}

		var mergeErr error
		_, err := sources.FetchPages(ctx, s.fetcher, community.Name, feed.sort, feed.limit,
			func(page []models.Item) error {
				page = filterSince(page, opts.Since)
				if len(page) == 0 {
					return nil
				}
				batch := s.classifier.ClassifyBatch(page)
				n, err := s.store.MergePosts(ctx, batch)
				if err != nil {
					mergeErr = err
					return err
				}
				seen += len(batch)
				created += n
				pass.countCategories(batch)
				metrics.ItemsMergedTotal.WithLabelValues(string(models.KindPost), "new").Add(float64(n))
				metrics.ItemsMergedTotal.WithLabelValues(string(models.KindPost), "updated").Add(float64(len(batch) - n))
				return nil
			})

		switch {
		case mergeErr != nil:
			errCount++
			storeFailed = true
			s.recordError(ctx, pass, community.Name, models.ErrKindStore, mergeErr, "", "")
			break feeds
		case err != nil:
			errCount++
			s.recordError(ctx, pass, community.Name, models.ErrKindFetch,
				fmt.Errorf("%s feed: %w", feed.sort, err), "", "")
		}
	}

	pass.summary.ItemsSeen += seen
	pass.summary.ItemsNew += created
	if storeFailed || (errCount > 0 && seen == 0) {
		pass.failed = append(pass.failed, community.Name)
	}

	run := models.IngestionRun{
		ID:         uuid.NewString(),
		Community:  community.Name,
		ItemCount:  seen,
		ErrorCount: errCount,
	}
	if err := s.store.RecordRun(ctx, run); err != nil {
		log.Errorf("Failed to record ingestion run: %v", err)
	}

	log.WithFields(logrus.Fields{"fetched": seen, "new": created, "errors": errCount}).Info("Community ingested")
}

// ingestComments fetches threads of posts with mentions whose comments were
// never read. A failed fetch leaves the post pending for the next pass unless
// the thread is gone.
func (s *Service) ingestComments(ctx context.Context, pass *passState) {
	if s.config.CommentBatchLimit <= 0 {
		return
	}

	pending, err := s.store.PostsAwaitingComments(ctx, s.config.CommentBatchLimit)
	if err != nil {
		s.recordError(ctx, pass, "", models.ErrKindStore, fmt.Errorf("load pending threads: %w", err), "", "")
		return
	}
	if len(pending) == 0 {
		return
	}

	logrus.Infof("Fetching comments for %d posts", len(pending))
	for _, post := range pending {
		if ctx.Err() != nil {
			return
		}

		comments, err := s.fetcher.FetchComments(ctx, post.ID, post.Permalink)
		if err != nil {
			s.recordError(ctx, pass, post.Community, models.ErrKindComments, err, post.ID, models.KindPost)
			if errors.Is(err, sources.ErrNotFound) {
				if err := s.store.MarkCommentsScraped(ctx, post.ID); err != nil {
					logrus.Errorf("Failed to retire thread %s: %v", post.ID, err)
				}
			}
			continue
		}

		batch := s.classifier.ClassifyBatch(comments)
		n, err := s.store.MergeComments(ctx, post.ID, batch)
		if err != nil {
			s.recordError(ctx, pass, post.Community, models.ErrKindStore, err, post.ID, models.KindPost)
			continue
		}
		pass.summary.CommentsNew += n
		metrics.ItemsMergedTotal.WithLabelValues(string(models.KindComment), "new").Add(float64(n))
		metrics.ItemsMergedTotal.WithLabelValues(string(models.KindComment), "updated").Add(float64(len(batch) - n))
	}

	logrus.Infof("%d new comments saved", pass.summary.CommentsNew)
}

func (s *Service) saveBackup(ctx context.Context, pass *passState) {
	snap, err := s.store.Export(ctx)
	if err == nil {
		_, err = s.backup.Save(ctx, snap)
	}
	if err != nil {
		metrics.BackupsTotal.WithLabelValues("failed").Inc()
		s.recordError(ctx, pass, "", models.ErrKindBackup, err, "", "")
		return
	}
	metrics.BackupsTotal.WithLabelValues("success").Inc()
}

func (s *Service) sendReport(ctx context.Context, pass *passState, result string) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		logrus.Errorf("Failed to load stats for report: %v", err)
	}

	report := &models.Report{
		GeneratedAt: s.clock.Now(),
		Summary:     pass.summary,
		Stats:       stats,
		TopCounts:   sortedCounts(pass.summary.CategoryCounts),
		Partial:     len(pass.failed) > 0,
	}

	if result == "failed" {
		alert := &models.Alert{
			Type:      "ingestion",
			Title:     "Every community failed to ingest",
			Message:   fmt.Sprintf("Run %s recorded %d errors; data is stale.", pass.runID, pass.summary.ErrorCount),
			CreatedAt: report.GeneratedAt,
		}
		if err := s.notificationService.SendAlert(ctx, alert); err != nil {
			logrus.Errorf("Failed to send alert: %v", err)
		}
	}

	if err := s.notificationService.SendReport(ctx, report); err != nil {
		logrus.Errorf("Failed to send report: %v", err)
	}
}

// recordError logs an ingestion failure, persists it and counts it.
func (s *Service) recordError(ctx context.Context, pass *passState, community, kind string, err error,
	itemID string, itemKind models.ItemKind) {
	pass.summary.ErrorCount++
	metrics.IngestionErrorsTotal.WithLabelValues(kind).Inc()

	logrus.WithFields(logrus.Fields{
		"run_id":    pass.runID,
		"community": community,
		"kind":      kind,
		"item_id":   itemID,
	}).Errorf("Ingestion error: %v", err)

	rec := models.IngestionError{
		Community: community,
		Kind:      kind,
		Message:   err.Error(),
		ItemID:    itemID,
		ItemKind:  itemKind,
	}
	if rerr := s.store.RecordError(context.WithoutCancel(ctx), rec); rerr != nil {
		logrus.Errorf("Failed to record ingestion error: %v", rerr)
	}
}

func filterSince(items []models.Item, since time.Time) []models.Item {
	if since.IsZero() {
		return items
	}
	cutoff := since.Unix()
	out := items[:0:0]
	for _, item := range items {
		if item.CreatedUTC >= cutoff {
			out = append(out, item)
		}
	}
	return out
}

// sortedCounts orders category counts by count descending then name.
func sortedCounts(counts map[string]int) []models.CategoryCount {
	out := make([]models.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, models.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
