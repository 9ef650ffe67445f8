package models

// CategoryCount is the number of distinct items mentioning a category
type CategoryCount struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

// CategorySentiment is the mean sentiment of items mentioning a category
type CategorySentiment struct {
	Category string  `json:"category" yaml:"category"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Count    int     `json:"count" yaml:"count"`
}

// DailySeries maps a UTC day (YYYY-MM-DD) to per-category counts.
type DailySeries map[string]map[string]int

// EffectMatrix maps an entity category to per side-effect counts.
type EffectMatrix map[string]map[string]int

// Stats summarises the store contents
type Stats struct {
	TotalPosts     int      `json:"total_posts" yaml:"total_posts"`
	TotalComments  int      `json:"total_comments" yaml:"total_comments"`
	TotalMentions  int      `json:"total_mentions" yaml:"total_mentions"`
	TotalRuns      int      `json:"total_scrapes" yaml:"total_scrapes"`
	LastRun        string   `json:"last_scrape,omitempty" yaml:"last_scrape,omitempty"`
	AvgSentiment   *float64 `json:"avg_sentiment" yaml:"avg_sentiment"`
	CommunityCount int      `json:"subreddit_count" yaml:"subreddit_count"`
	ErrorCount24h  int      `json:"error_count_24h" yaml:"error_count_24h"`
}

// PostSummary is a post row as shown in listings
type PostSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Body        string   `json:"selftext"`
	CreatedUTC  int64    `json:"created_utc"`
	Score       int      `json:"score"`
	NumComments int      `json:"num_comments"`
	Permalink   string   `json:"permalink"`
	Sentiment   *float64 `json:"sentiment"`
	Community   string   `json:"subreddit"`
	Engagement  float64  `json:"engagement_score"`
}

// CommentSummary is a comment row as shown under a post
type CommentSummary struct {
	ID         string   `json:"id"`
	PostID     string   `json:"post_id,omitempty"`
	Body       string   `json:"body"`
	Score      int      `json:"score"`
	CreatedUTC int64    `json:"created_utc"`
	Author     string   `json:"author"`
	Sentiment  *float64 `json:"sentiment"`
}

// MentionRow is one (post, category) relation row.
type MentionRow struct {
	PostID   string `json:"post_id"`
	Category string `json:"category"`
}

// SideEffectRow is one (kind, item, category) relation row.
type SideEffectRow struct {
	ItemKind ItemKind `json:"source_type"`
	ItemID   string   `json:"source_id"`
	Category string   `json:"effect"`
}

// Snapshot is a full export of the store used for backups
type Snapshot struct {
	Posts       []PostSummary    `json:"posts"`
	Comments    []CommentSummary `json:"comments"`
	Mentions    []MentionRow     `json:"mentions"`
	SideEffects []SideEffectRow  `json:"side_effects"`
	Stats       *Stats           `json:"stats"`
}
