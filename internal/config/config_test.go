package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8050", cfg.Port)
	assert.Equal(t, 6*time.Hour, cfg.ScrapeInterval)
	assert.Equal(t, DefaultCommunities, cfg.Communities)
	assert.Equal(t, 50, cfg.HotLimit)
	assert.Equal(t, 50, cfg.CommentBatchLimit)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestInterval)
	assert.Equal(t, 7, cfg.BackupRetention)
	assert.False(t, cfg.NotificationsEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SCRAPE_INTERVAL", "30m")
	t.Setenv("COMMUNITIES", "birthcontrol:50, r/AskDocs")
	t.Setenv("TEAMS_WEBHOOK_URL", "https://example.test/hook")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30*time.Minute, cfg.ScrapeInterval)
	assert.Equal(t, []Community{{Name: "birthcontrol", Limit: 50}, {Name: "AskDocs", Limit: 100}}, cfg.Communities)
	assert.Equal(t, []string{"birthcontrol", "AskDocs"}, cfg.CommunityNames())
	assert.True(t, cfg.NotificationsEnabled())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Interval too short",
			env:  map[string]string{"SCRAPE_INTERVAL": "10s"},
		},
		{
			name: "Email without SMTP",
			env:  map[string]string{"NOTIFICATION_EMAIL": "ops@example.test"},
		},
		{
			name: "Bad community limit",
			env:  map[string]string{"COMMUNITIES": "birthcontrol:lots"},
		},
		{
			name: "Duplicate community",
			env:  map[string]string{"COMMUNITIES": "sex,Sex"},
		},
		{
			name: "Zero retention",
			env:  map[string]string{"BACKUP_RETENTION": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetDurationEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Hour, getDurationEnv("SOME_DURATION", time.Hour))
}
