package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Community is a feed to ingest and how many posts to read from its "new" listing.
type Community struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

// DefaultCommunities are ingested when COMMUNITIES is unset.
var DefaultCommunities = []Community{
	{Name: "birthcontrol", Limit: 200},
	{Name: "TwoXChromosomes", Limit: 100},
	{Name: "abortion", Limit: 100},
	{Name: "prochoice", Limit: 100},
	{Name: "prolife", Limit: 100},
	{Name: "sex", Limit: 100},
	{Name: "AskDocs", Limit: 100},
	{Name: "WomensHealth", Limit: 100},
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Store configuration
	DBPath string

	// Ingestion configuration
	ScrapeInterval    time.Duration
	Communities       []Community
	HotLimit          int
	CommentBatchLimit int
	BackfillOnStart   bool
	RedditBaseURL     string
	RedditUserAgent   string
	RequestInterval   time.Duration

	// Backup configuration. Azure wins over BackupDir when both are set.
	BackupDir        string
	StorageAccount   string
	StorageContainer string
	BackupRetention  int

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	communities, err := parseCommunities(getEnv("COMMUNITIES", ""))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Port:  getEnv("PORT", "8050"),
		Debug: getBoolEnv("DEBUG", false),

		DBPath: getEnv("TRACKER_DB_PATH", "bc_tracker_data/tracker.db"),

		ScrapeInterval:    getDurationEnv("SCRAPE_INTERVAL", 6*time.Hour),
		Communities:       communities,
		HotLimit:          getIntEnv("HOT_LIMIT", 50),
		CommentBatchLimit: getIntEnv("COMMENT_BATCH_LIMIT", 50),
		BackfillOnStart:   getBoolEnv("BACKFILL_ON_START", true),
		RedditBaseURL:     getEnv("REDDIT_BASE_URL", "https://www.reddit.com"),
		RedditUserAgent:   getEnv("REDDIT_USER_AGENT", "go:bc-tracker:v1.0 (contraceptive mention tracker)"),
		RequestInterval:   getDurationEnv("REQUEST_INTERVAL", 1500*time.Millisecond),

		BackupDir:        getEnv("BACKUP_DIR", ""),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "tracker-backups"),
		BackupRetention:  getIntEnv("BACKUP_RETENTION", 7),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("TRACKER_DB_PATH must not be empty")
	}

	if c.ScrapeInterval < time.Minute {
		return fmt.Errorf("SCRAPE_INTERVAL must be at least 1m")
	}

	if c.HotLimit < 0 || c.CommentBatchLimit < 0 {
		return fmt.Errorf("HOT_LIMIT and COMMENT_BATCH_LIMIT must not be negative")
	}

	if c.BackupRetention < 1 {
		return fmt.Errorf("BACKUP_RETENTION must be at least 1")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// NotificationsEnabled reports whether any report channel is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != ""
}

// CommunityNames returns the configured community names in order.
func (c *Config) CommunityNames() []string {
	names := make([]string, 0, len(c.Communities))
	for _, community := range c.Communities {
		names = append(names, community.Name)
	}
	return names
}

// parseCommunities reads "name:limit,name,..." where a missing limit is 100.
func parseCommunities(value string) ([]Community, error) {
	if strings.TrimSpace(value) == "" {
		return append([]Community(nil), DefaultCommunities...), nil
	}

	var out []Community
	seen := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, limitStr, hasLimit := strings.Cut(part, ":")
		name = strings.TrimPrefix(strings.TrimSpace(name), "r/")
		if name == "" {
			return nil, fmt.Errorf("COMMUNITIES: empty community name in %q", part)
		}

		limit := 100
		if hasLimit {
			n, err := strconv.Atoi(strings.TrimSpace(limitStr))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("COMMUNITIES: invalid limit for %s: %q", name, limitStr)
			}
			limit = n
		}

		if seen[strings.ToLower(name)] {
			return nil, fmt.Errorf("COMMUNITIES: duplicate community %s", name)
		}
		seen[strings.ToLower(name)] = true
		out = append(out, Community{Name: name, Limit: limit})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("COMMUNITIES: no communities configured")
	}
	return out, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
