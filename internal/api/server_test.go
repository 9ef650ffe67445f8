package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/monitoring"
	"github.com/leolhan1425/bc-tracker/internal/scheduler"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngestor is a mock implementation of the Ingestor interface
type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) StartIngestion(ctx context.Context, opts monitoring.RunOptions) error {
	return m.Called(opts).Error(0)
}

func (m *MockIngestor) Status() monitoring.Status {
	return m.Called().Get(0).(monitoring.Status)
}

func (m *MockIngestor) Explain(text string) *models.Explanation {
	return m.Called(text).Get(0).(*models.Explanation)
}

func (m *MockIngestor) ValidationExamples(ctx context.Context, section string, limit int) ([]models.ValidationExample, error) {
	args := m.Called(section, limit)
	return args.Get(0).([]models.ValidationExample), args.Error(1)
}

type fixedSchedule struct{ st scheduler.Status }

func (f fixedSchedule) Status() scheduler.Status { return f.st }

var (
	day1 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day3 = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
)

func ptr(v float64) *float64 { return &v }

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tracker.db"),
		store.WithClock(clockwork.NewFakeClockAt(day3.Add(time.Hour))))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	post := func(id, community string, created time.Time, sent float64, eng float64, entities, effects []string) models.ClassifiedItem {
		return models.ClassifiedItem{
			Item: models.Item{
				ID: id, Kind: models.KindPost, Title: "title " + id, Body: "body " + id,
				CreatedUTC: created.Unix(), Community: community,
				Permalink: "/r/" + community + "/comments/" + id + "/",
			},
			Annotation: models.Annotation{Sentiment: ptr(sent), Engagement: eng, Entities: entities, SideEffects: effects},
		}
	}

	ctx := context.Background()
	_, err = st.MergePosts(ctx, []models.ClassifiedItem{
		post("p1", "birthcontrol", day1, -0.5, 3, []string{"Depo-Provera"}, []string{"Weight gain"}),
		post("p2", "birthcontrol", day3, 0.25, 7, []string{"Depo-Provera", "Plan B"}, []string{"Nausea", "Weight gain"}),
		post("p3", "TwoXChromosomes", day3, 1, 1, []string{"Yaz"}, nil),
	})
	require.NoError(t, err)

	_, err = st.MergeComments(ctx, "p1", []models.ClassifiedItem{{
		Item:       models.Item{ID: "c1", Kind: models.KindComment, Body: "same", Score: 2, CreatedUTC: day3.Unix()},
		Annotation: models.Annotation{SideEffects: []string{"Nausea"}},
	}})
	require.NoError(t, err)

	require.NoError(t, st.RecordError(ctx, models.IngestionError{
		Community: "AskDocs", Kind: models.ErrKindFetch, Message: "reddit returned status 403",
	}))
	return st
}

func newTestServer(t *testing.T) (*Server, *MockIngestor) {
	t.Helper()
	ing := &MockIngestor{}
	sch := fixedSchedule{scheduler.Status{Interval: "6h0m0s"}}
	return NewServer(context.Background(), seededStore(t), ing, sch), ing
}

func do(t *testing.T, srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHandleMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodGet, "/health", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tracker_http_requests_total{code="200",route="/health"}`)
}

func TestHandleStatus(t *testing.T) {
	srv, ing := newTestServer(t)
	ing.On("Status").Return(monitoring.Status{Running: true, LastError: "boom"})

	rec := do(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, true, got["running"])
	assert.Equal(t, "boom", got["last_error"])
	assert.Equal(t, "6h0m0s", got["interval"])
}

func TestHandleData(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dataResponse](t, rec)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Depo-Provera", Count: 2},
		{Category: "Plan B", Count: 1},
		{Category: "Yaz", Count: 1},
	}, got.MentionCounts)
	assert.Equal(t, map[string]int{"Depo-Provera": 1}, got.Daily["2025-03-01"])
	require.NotNil(t, got.Stats)
	assert.Equal(t, 3, got.Stats.TotalPosts)
	assert.Equal(t, 1, got.Stats.ErrorCount24h)

	// to is inclusive of the whole day
	rec = do(t, srv, http.MethodGet, "/api/data?from=2025-03-03&to=2025-03-03&sub=birthcontrol", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[dataResponse](t, rec)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Depo-Provera", Count: 1},
		{Category: "Plan B", Count: 1},
	}, got.MentionCounts)

	rec = do(t, srv, http.MethodGet, "/api/data?from=03/01/2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid from date")
}

func TestHandleSentiment(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/sentiment", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]models.CategorySentiment](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Depo-Provera", got[0].Category)
	assert.InDelta(t, -0.125, got[0].Mean, 1e-9)
}

func TestHandleSideEffects(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/side-effects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Nausea", Count: 2},
		{Category: "Weight gain", Count: 2},
	}, decode[[]models.CategoryCount](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/side-effects?type=Plan+B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Nausea", Count: 1},
		{Category: "Weight gain", Count: 1},
	}, decode[[]models.CategoryCount](t, rec))
}

func TestHandleHeatmap(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/side-effects-heatmap", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[models.EffectMatrix](t, rec)
	assert.Equal(t, map[string]int{"Weight gain": 2, "Nausea": 2}, got["Depo-Provera"])
	assert.Equal(t, map[string]int{"Weight gain": 1, "Nausea": 1}, got["Plan B"])
}

func TestHandlePosts(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/posts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/posts?type=Depo-Provera&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]models.PostSummary](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)

	rec = do(t, srv, http.MethodGet, "/api/posts?type=Yaz&limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComments(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/comments?post_id=p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]models.CommentSummary](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)

	rec = do(t, srv, http.MethodGet, "/api/comments", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandlePostEffects(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/post-effects?id=p2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Nausea", "Weight gain"}, decode[[]string](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/post-effects", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleExplain(t *testing.T) {
	srv, ing := newTestServer(t)
	exp := &models.Explanation{Entities: []models.Match{{Category: "Mirena", Text: "Mirena", Start: 4, End: 10}}}
	ing.On("Explain", "got Mirena").Return(exp)

	rec := do(t, srv, http.MethodGet, "/api/explain?text=got+Mirena", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mention_matches":[{"name":"Mirena"`)

	rec = do(t, srv, http.MethodPost, "/api/explain", `{"text":"got Mirena"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/explain", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/explain", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ing.AssertNumberOfCalls(t, "Explain", 2)
}

func TestHandleValidate(t *testing.T) {
	srv, ing := newTestServer(t)
	ing.On("ValidationExamples", store.SectionSentiment, monitoring.DefaultValidationLimit).
		Return([]models.ValidationExample{{PostID: "p3"}}, nil)
	ing.On("ValidationExamples", store.SectionSideEffects, monitoring.DefaultValidationLimit).
		Return([]models.ValidationExample{}, nil)

	rec := do(t, srv, http.MethodGet, "/api/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"post_id":"p3"`)

	rec = do(t, srv, http.MethodGet, "/api/validate?section=side_effects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ing.AssertExpectations(t)
}

func TestHandleErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/errors?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]models.IngestionError](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "AskDocs", got[0].Community)
	assert.Equal(t, models.ErrKindFetch, got[0].Kind)
}

func TestHandleScrape(t *testing.T) {
	srv, ing := newTestServer(t)
	ing.On("StartIngestion", monitoring.RunOptions{}).Return(nil).Once()
	ing.On("StartIngestion", monitoring.RunOptions{}).Return(monitoring.ErrAlreadyRunning).Once()

	rec := do(t, srv, http.MethodPost, "/api/scrape", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)

	rec = do(t, srv, http.MethodPost, "/api/scrape", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already running")

	rec = do(t, srv, http.MethodGet, "/api/scrape", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	ing.AssertExpectations(t)
}
