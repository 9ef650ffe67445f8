package models

import "time"

// ItemKind distinguishes posts from comments. Both share the side-effect
// namespace but not the identifier namespace.
type ItemKind string

const (
	KindPost    ItemKind = "post"
	KindComment ItemKind = "comment"
)

// Sort orders a listing page can come from. "hot" is the privileged one.
const (
	SortNew = "new"
	SortHot = "hot"
)

// Item represents a post or comment fetched from a community
type Item struct {
	ID          string   `json:"id"`
	Kind        ItemKind `json:"kind"`
	Title       string   `json:"title,omitempty"` // posts only
	Body        string   `json:"body"`
	CreatedUTC  int64    `json:"created_utc"` // 0 for legacy rows
	Score       int      `json:"score"`
	NumComments int      `json:"num_comments"` // posts only
	Community   string   `json:"community"`
	Permalink   string   `json:"permalink,omitempty"`
	Author      string   `json:"author,omitempty"`
	SortSource  string   `json:"sort_source,omitempty"`
	// CrosspostParent is set when the post republishes another post.
	CrosspostParent string `json:"crosspost_parent,omitempty"`
	// PostID is the thread a comment belongs to.
	PostID string `json:"post_id,omitempty"`
}

// Text returns the classification input for the item.
func (i Item) Text() string {
	if i.Title == "" {
		return i.Body
	}
	return i.Title + " " + i.Body
}

// Created returns the creation time, or the zero time for legacy rows.
func (i Item) Created() time.Time {
	if i.CreatedUTC <= 0 {
		return time.Time{}
	}
	return time.Unix(i.CreatedUTC, 0).UTC()
}

// Annotation is the derived classification of an Item. It is recomputed from
// the item's text and never edited by hand.
type Annotation struct {
	Sentiment   *float64 `json:"sentiment"` // nil means no signal
	Engagement  float64  `json:"engagement_score"`
	Entities    []string `json:"entities"`
	SideEffects []string `json:"side_effects"`
}

// ClassifiedItem pairs an item with its annotation for merging.
type ClassifiedItem struct {
	Item       Item       `json:"item"`
	Annotation Annotation `json:"annotation"`
}

// IngestionRun is an append-only record of one classification pass over a community
type IngestionRun struct {
	ID         string    `json:"id"`
	RanAt      time.Time `json:"ran_at"`
	Community  string    `json:"community"`
	ItemCount  int       `json:"item_count"`
	ErrorCount int       `json:"error_count"`
}

// Kinds of ingestion errors.
const (
	ErrKindFetch    = "scrape_failure"
	ErrKindComments = "comment_fetch"
	ErrKindStore    = "store_failure"
	ErrKindBackup   = "backup_failure"
)

// IngestionError is an append-only record of one failure
type IngestionError struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"timestamp"`
	Community  string    `json:"community"`
	Kind       string    `json:"error_type"`
	Message    string    `json:"message"`
	ItemID     string    `json:"source_id,omitempty"`
	ItemKind   ItemKind  `json:"source_type,omitempty"`
}

// IngestionSummary is returned by a full ingestion pass
type IngestionSummary struct {
	RunID          string         `json:"run_id" yaml:"run_id"`
	StartedAt      time.Time      `json:"started_at" yaml:"started_at"`
	Duration       string         `json:"duration" yaml:"duration"`
	ItemsSeen      int            `json:"items_seen" yaml:"items_seen"`
	ItemsNew       int            `json:"items_new" yaml:"items_new"`
	CommentsNew    int            `json:"comments_new" yaml:"comments_new"`
	CategoryCounts map[string]int `json:"category_counts" yaml:"category_counts"`
	ErrorCount     int            `json:"error_count" yaml:"error_count"`
	Communities    []string       `json:"communities" yaml:"communities"`
}

// Report is the summary sent to notification channels after a pass
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     *IngestionSummary `json:"summary"`
	Stats       *Stats            `json:"stats"`
	TopCounts   []CategoryCount   `json:"top_counts"`
	// Partial is set when some communities could not be ingested.
	Partial bool `json:"partial"`
}

// Alert is an urgent notification raised outside the regular report
type Alert struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
