package monitoring

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leolhan1425/bc-tracker/internal/config"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/sources"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFetcher is a mock implementation of the sources.Fetcher interface
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetName() string {
	return "mock"
}

func (m *MockFetcher) FetchListing(ctx context.Context, community, sort, after string) (*sources.Listing, error) {
	args := m.Called(community, sort, after)
	listing, _ := args.Get(0).(*sources.Listing)
	return listing, args.Error(1)
}

func (m *MockFetcher) FetchComments(ctx context.Context, postID, permalink string) ([]models.Item, error) {
	args := m.Called(postID, permalink)
	comments, _ := args.Get(0).([]models.Item)
	return comments, args.Error(1)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReport(ctx context.Context, report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(ctx context.Context, alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

// MockBackup is a mock implementation of the Backuper interface
type MockBackup struct {
	mock.Mock
}

func (m *MockBackup) Save(ctx context.Context, snap *models.Snapshot) (string, error) {
	args := m.Called(snap)
	return args.String(0), args.Error(1)
}

var testNow = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tracker.db"),
		store.WithClock(clockwork.NewFakeClockAt(testNow)))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig(communities ...config.Community) *config.Config {
	return &config.Config{
		Communities:       communities,
		HotLimit:          50,
		CommentBatchLimit: 10,
	}
}

func redditPost(id, title, body string, created time.Time) models.Item {
	return models.Item{
		ID:         id,
		Kind:       models.KindPost,
		Title:      title,
		Body:       body,
		CreatedUTC: created.Unix(),
		Score:      10,
		Community:  "birthcontrol",
		Permalink:  "/r/birthcontrol/comments/" + id + "/",
		SortSource: models.SortNew,
	}
}

func TestService_RunIngestion(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}
	notifier := &MockNotificationService{}

	mirena := redditPost("p1", "Mirena experience", "I love my Mirena, the cramping stopped", testNow)
	depo := redditPost("p2", "Depo question", "is the shot worth it", testNow)
	plain := redditPost("p3", "Weekend thread", "hello", testNow)

	hotMirena := mirena
	hotMirena.SortSource = models.SortHot

	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Return(&sources.Listing{Items: []models.Item{mirena, depo}, After: "t3_p2"}, nil)
	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "t3_p2").
		Return(&sources.Listing{Items: []models.Item{plain}}, nil)
	fetcher.On("FetchListing", "birthcontrol", models.SortHot, "").
		Return(&sources.Listing{Items: []models.Item{hotMirena}}, nil)
	fetcher.On("FetchComments", "p1", "/r/birthcontrol/comments/p1/").
		Return([]models.Item{{ID: "c1", Kind: models.KindComment, Body: "same cramping with Kyleena", CreatedUTC: testNow.Unix()}}, nil)
	fetcher.On("FetchComments", "p2", "/r/birthcontrol/comments/p2/").
		Return([]models.Item{}, nil)

	var report *models.Report
	notifier.On("SendReport", mock.Anything).Run(func(args mock.Arguments) {
		report = args.Get(0).(*models.Report)
	}).Return(nil)

	svc := NewService(testConfig(config.Community{Name: "birthcontrol", Limit: 10}), st, fetcher, notifier,
		WithClock(clockwork.NewFakeClockAt(testNow)))

	summary, err := svc.RunIngestion(context.Background(), RunOptions{Backfill: true})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.ItemsSeen)
	assert.Equal(t, 3, summary.ItemsNew)
	assert.Equal(t, 1, summary.CommentsNew)
	assert.Zero(t, summary.ErrorCount)
	assert.Equal(t, map[string]int{"Mirena": 2, "Depo-Provera": 1}, summary.CategoryCounts)
	assert.Equal(t, []string{"birthcontrol"}, summary.Communities)
	assert.NotEmpty(t, summary.RunID)

	ctx := context.Background()
	counts, err := st.CategoryCounts(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Depo-Provera", Count: 1},
		{Category: "Kyleena", Count: 1},
		{Category: "Mirena", Count: 1},
	}, counts)

	effects, err := st.SideEffectCounts(ctx, store.Filter{}, "")
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{{Category: "Cramping", Count: 2}}, effects)

	runs, err := st.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].ItemCount)

	pending, err := st.PostsAwaitingComments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NotNil(t, report)
	assert.False(t, report.Partial)
	assert.Equal(t, "Mirena", report.TopCounts[0].Category)
	assert.Equal(t, 3, report.Stats.TotalPosts)

	status := svc.Status()
	assert.False(t, status.Running)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, summary, status.LastSummary)

	fetcher.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_RunIngestion_FetchFailureIsIsolated(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}
	notifier := &MockNotificationService{}

	fetcher.On("FetchListing", "broken", mock.Anything, "").
		Return(nil, errors.New("reddit returned status 503"))
	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Return(&sources.Listing{Items: []models.Item{redditPost("p1", "Yaz", "acne cleared", testNow)}}, nil)
	fetcher.On("FetchListing", "birthcontrol", models.SortHot, "").
		Return(&sources.Listing{}, nil)
	fetcher.On("FetchComments", "p1", mock.Anything).
		Return(nil, errors.New("timeout"))

	notifier.On("SendReport", mock.MatchedBy(func(r *models.Report) bool { return r.Partial })).Return(nil)

	cfg := testConfig(
		config.Community{Name: "broken", Limit: 10},
		config.Community{Name: "birthcontrol", Limit: 10},
	)
	svc := NewService(cfg, st, fetcher, notifier)

	summary, err := svc.RunIngestion(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ItemsSeen)
	assert.Equal(t, 3, summary.ErrorCount, "two failed feeds and one failed thread")

	ctx := context.Background()
	errs, err := st.RecentErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.Equal(t, models.ErrKindComments, errs[0].Kind)
	assert.Equal(t, "p1", errs[0].ItemID)
	assert.Equal(t, models.ErrKindFetch, errs[1].Kind)
	assert.Equal(t, "broken", errs[1].Community)

	pending, err := st.PostsAwaitingComments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "a failed thread is retried on the next pass")

	runs, err := st.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	notifier.AssertExpectations(t)
}

func TestService_RunIngestion_GoneThreadIsRetired(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}

	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Return(&sources.Listing{Items: []models.Item{redditPost("p1", "Yaz", "acne cleared", testNow)}}, nil)
	fetcher.On("FetchListing", "birthcontrol", models.SortHot, "").
		Return(&sources.Listing{}, nil)
	fetcher.On("FetchComments", "p1", mock.Anything).
		Return(nil, fmt.Errorf("fetch comments for p1: %w", sources.ErrNotFound))

	svc := NewService(testConfig(config.Community{Name: "birthcontrol", Limit: 10}), st, fetcher, nil)

	summary, err := svc.RunIngestion(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ErrorCount)

	pending, err := st.PostsAwaitingComments(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestService_RunIngestion_AllFailedSendsAlert(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}
	notifier := &MockNotificationService{}

	fetcher.On("FetchListing", mock.Anything, mock.Anything, "").Return(nil, errors.New("offline"))
	notifier.On("SendAlert", mock.Anything).Return(nil)
	notifier.On("SendReport", mock.Anything).Return(errors.New("webhook down"))

	svc := NewService(testConfig(config.Community{Name: "birthcontrol", Limit: 10}), st, fetcher, notifier)

	summary, err := svc.RunIngestion(context.Background(), RunOptions{SkipComments: true})
	require.NoError(t, err, "notification failures never fail the pass")
	assert.Equal(t, 2, summary.ErrorCount)

	notifier.AssertCalled(t, "SendAlert", mock.Anything)
	fetcher.AssertNotCalled(t, "FetchComments", mock.Anything, mock.Anything)
}

func TestService_RunIngestion_SinceFilter(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}

	old := redditPost("old", "Yaz", "", testNow.Add(-48*time.Hour))
	fresh := redditPost("fresh", "Yaz", "", testNow)
	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Return(&sources.Listing{Items: []models.Item{old, fresh}}, nil)

	cfg := testConfig(config.Community{Name: "birthcontrol", Limit: 10})
	cfg.HotLimit = 0
	svc := NewService(cfg, st, fetcher, nil)

	summary, err := svc.RunIngestion(context.Background(), RunOptions{
		Since:        testNow.Truncate(24 * time.Hour),
		SkipComments: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsSeen)

	_, err = st.GetPost(context.Background(), "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_RunIngestion_Backup(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}
	backup := &MockBackup{}

	fetcher.On("FetchListing", mock.Anything, mock.Anything, "").Return(&sources.Listing{}, nil)
	backup.On("Save", mock.Anything).Return("", errors.New("disk full")).Once()

	svc := NewService(testConfig(config.Community{Name: "birthcontrol", Limit: 10}), st, fetcher, nil,
		WithBackup(backup))

	summary, err := svc.RunIngestion(context.Background(), RunOptions{SkipComments: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ErrorCount)

	errs, err := st.RecentErrors(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrKindBackup, errs[0].Kind)

	backup.AssertExpectations(t)
}

func TestService_RunIngestion_AlreadyRunning(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}

	entered := make(chan struct{})
	unblock := make(chan struct{})
	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Run(func(mock.Arguments) {
			close(entered)
			<-unblock
		}).
		Return(&sources.Listing{}, nil)

	cfg := testConfig(config.Community{Name: "birthcontrol", Limit: 10})
	cfg.HotLimit = 0
	svc := NewService(cfg, st, fetcher, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunIngestion(context.Background(), RunOptions{SkipComments: true})
		done <- err
	}()

	<-entered
	assert.True(t, svc.Running())
	assert.True(t, svc.Status().Running)

	summary, err := svc.RunIngestion(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, summary)

	close(unblock)
	require.NoError(t, <-done)
	assert.False(t, svc.Running())

	fetcher.AssertNumberOfCalls(t, "FetchListing", 1)
}

func TestService_RunIngestion_PanicReleasesGuard(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}

	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Run(func(mock.Arguments) { panic("listing decoder blew up") }).
		Return(&sources.Listing{}, nil).Once()

	cfg := testConfig(config.Community{Name: "birthcontrol", Limit: 10})
	cfg.HotLimit = 0
	svc := NewService(cfg, st, fetcher, nil)

	assert.Panics(t, func() {
		_, _ = svc.RunIngestion(context.Background(), RunOptions{SkipComments: true})
	})
	assert.False(t, svc.Running())
	assert.NotNil(t, svc.Status().LastRun)

	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Return(&sources.Listing{}, nil)
	_, err := svc.RunIngestion(context.Background(), RunOptions{SkipComments: true})
	assert.NoError(t, err)
}

func TestService_StartIngestion(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}

	unblock := make(chan struct{})
	fetcher.On("FetchListing", "birthcontrol", models.SortNew, "").
		Run(func(mock.Arguments) { <-unblock }).
		Return(&sources.Listing{}, nil)

	cfg := testConfig(config.Community{Name: "birthcontrol", Limit: 10})
	cfg.HotLimit = 0
	svc := NewService(cfg, st, fetcher, nil)

	require.NoError(t, svc.StartIngestion(context.Background(), RunOptions{SkipComments: true}))
	assert.True(t, svc.Running(), "the guard is held before StartIngestion returns")
	assert.ErrorIs(t, svc.StartIngestion(context.Background(), RunOptions{}), ErrAlreadyRunning)

	close(unblock)
	assert.Eventually(t, func() bool { return !svc.Running() }, 5*time.Second, 10*time.Millisecond)
	assert.NotNil(t, svc.Status().LastSummary)
}

func TestService_RunIngestion_Canceled(t *testing.T) {
	st := newTestStore(t)
	fetcher := &MockFetcher{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(testConfig(config.Community{Name: "birthcontrol", Limit: 10}), st, fetcher, nil)
	_, err := svc.RunIngestion(ctx, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, context.Canceled.Error(), svc.Status().LastError)

	fetcher.AssertNotCalled(t, "FetchListing", mock.Anything, mock.Anything, mock.Anything)
}

func TestSortedCounts(t *testing.T) {
	got := sortedCounts(map[string]int{"Yaz": 2, "Depo-Provera": 2, "Plan B": 1})
	assert.Equal(t, []models.CategoryCount{
		{Category: "Depo-Provera", Count: 2},
		{Category: "Yaz", Count: 2},
		{Category: "Plan B", Count: 1},
	}, got)
}
