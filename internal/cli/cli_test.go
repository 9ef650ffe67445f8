package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/classify"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedDB writes three classified posts and points the configuration at them.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.db")
	t.Setenv("TRACKER_DB_PATH", path)

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	now := time.Now().UTC()
	item := func(id, title, body string, created time.Time) models.Item {
		return models.Item{
			ID: id, Kind: models.KindPost, Title: title, Body: body,
			CreatedUTC: created.Unix(), Score: 5, NumComments: 2, Community: "birthcontrol",
			Permalink: "/r/birthcontrol/comments/" + id + "/",
		}
	}
	batch := classify.NewDefault().ClassifyBatch([]models.Item{
		item("p1", "Depo", "the depo shot and weight gain", now.Add(-48*time.Hour)),
		item("p2", "Mirena insertion", "the Mirena insertion was fine", now.Add(-time.Hour)),
		item("p3", "Mirena again", "love my mirena", now.Add(-time.Hour)),
	})
	_, err = st.MergePosts(context.Background(), batch)
	require.NoError(t, err)
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tracker", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "scrape", "report", "explain", "backup", "probe"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)

	scrape, _, err := cmd.Find([]string{"scrape"})
	require.NoError(t, err)
	assert.Equal(t, "false", scrape.Flags().Lookup("all").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "explain", "--format", "xml", "Mirena")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, "explain", "I switched to the Mirena and I love it, no cramping at all")
	require.NoError(t, err)
	assert.Contains(t, out, "Contraceptives:\n  Mirena")
	assert.Contains(t, out, "Cramping")
	assert.Contains(t, out, "love")

	out, err = execute(t, "explain", "--format", "json", "nothing to see")
	require.NoError(t, err)
	var exp models.Explanation
	require.NoError(t, json.Unmarshal([]byte(out), &exp))
	assert.Empty(t, exp.Entities)
	assert.Nil(t, exp.Sentiment.Score)

	_, err = execute(t, "explain")
	assert.Error(t, err)
}

func TestReportCommand_JSON(t *testing.T) {
	seedDB(t)
	csvPath := filepath.Join(t.TempDir(), "report.csv")

	out, err := execute(t, "report", "--format", "json", "--csv", csvPath)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Stats.TotalPosts)
	assert.Equal(t, []models.CategoryCount{
		{Category: "Mirena", Count: 2},
		{Category: "Depo-Provera", Count: 1},
	}, report.MentionCounts)
	assert.Len(t, report.Daily, 2)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "date,contraceptive,mentions", lines[0])
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[2], ",Mirena,2"))
}

func TestReportCommand_Days(t *testing.T) {
	seedDB(t)

	out, err := execute(t, "report", "--days", "1", "--format", "yaml")
	require.NoError(t, err)

	var report Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Days)
	assert.Equal(t, []models.CategoryCount{{Category: "Mirena", Count: 2}}, report.MentionCounts)

	_, err = execute(t, "report", "--days", "-1")
	assert.Error(t, err)
}

func TestReportCommand_Text(t *testing.T) {
	seedDB(t)

	out, err := execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "Multi-Community Report")
	assert.Contains(t, out, "Mirena")
	assert.Contains(t, out, strings.Repeat("#", barWidth))
	assert.Contains(t, out, "Daily breakdown")
}

func TestReportCommand_Empty(t *testing.T) {
	t.Setenv("TRACKER_DB_PATH", filepath.Join(t.TempDir(), "empty.db"))

	out, err := execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "No data yet")
}

func TestBackupCommand(t *testing.T) {
	seedDB(t)
	t.Setenv("AZURE_STORAGE_ACCOUNT", "")
	t.Setenv("BACKUP_DIR", t.TempDir())

	out, err := execute(t, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshots/tracker-")
	assert.Contains(t, out, "3 posts")

	out, err = execute(t, "backup", "--show")
	require.NoError(t, err)
	assert.Contains(t, out, "Latest snapshot: 3 posts")
}

func TestBackupCommand_NotConfigured(t *testing.T) {
	seedDB(t)
	t.Setenv("AZURE_STORAGE_ACCOUNT", "")
	t.Setenv("BACKUP_DIR", "")

	_, err := execute(t, "backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup target")
}

func TestWriteSummaryText(t *testing.T) {
	var buf bytes.Buffer
	writeSummaryText(&buf, &models.IngestionSummary{
		RunID:          "run-1",
		Duration:       "3s",
		ItemsSeen:      10,
		ItemsNew:       4,
		CategoryCounts: map[string]int{"Yaz": 1, "Mirena": 3},
	})
	out := buf.String()
	assert.Contains(t, out, "Posts fetched : 10 (4 new)")
	assert.Less(t, strings.Index(out, "Mirena"), strings.Index(out, "Yaz"))
}

func TestProbeCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/birthcontrol/new.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"kind": "Listing", "data": {"after": null, "children": [
			{"kind": "t3", "data": {"id": "p1", "title": "Kyleena cramps", "selftext": "normal?"}},
			{"kind": "t3", "data": {"id": "p2", "title": "hello", "selftext": ""}}
		]}}`))
	}))
	defer server.Close()

	t.Setenv("REDDIT_BASE_URL", server.URL)
	t.Setenv("REQUEST_INTERVAL", "1ms")
	t.Setenv("COMMUNITIES", "birthcontrol,gone")

	out, err := execute(t, "probe", "--format", "json")
	require.NoError(t, err)

	var results []ProbeResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, ProbeResult{Community: "birthcontrol", Posts: 2, WithMentions: 1, Sample: "Kyleena cramps"}, results[0])
	assert.Equal(t, "gone", results[1].Community)
	assert.Contains(t, results[1].Error, "404")
}
