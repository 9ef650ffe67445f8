package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

const postColumns = `p.id, p.title, p.body, p.created_utc, p.score, p.num_comments,
	p.permalink, p.sentiment, p.community, p.engagement_score`

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (models.PostSummary, error) {
	var (
		p    models.PostSummary
		sent sql.NullFloat64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedUTC, &p.Score, &p.NumComments,
		&p.Permalink, &sent, &p.Community, &p.Engagement)
	p.Sentiment = nullableFloat(sent)
	return p, err
}

// GetPost loads one post.
func (s *Store) GetPost(ctx context.Context, id string) (*models.PostSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

// TopPosts returns posts mentioning category, most engaging first.
func (s *Store) TopPosts(ctx context.Context, category string, f Filter, limit int) ([]models.PostSummary, error) {
	where, args := f.clauses("p.created_utc", "p.community")
	args = append([]any{category}, args...)
	args = append(args, limit)

	query := `SELECT ` + postColumns + `
		FROM posts p JOIN mentions m ON m.post_id = p.id` +
		and([]string{"m.category = ?"}, where) + `
		ORDER BY p.engagement_score DESC, p.id ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top posts: %w", err)
	}
	defer rows.Close()

	out := make([]models.PostSummary, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("top posts: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CommentsForPost returns a thread's comments, highest score first.
func (s *Store) CommentsForPost(ctx context.Context, postID string) ([]models.CommentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, body, score, created_utc, author, sentiment
		FROM comments WHERE post_id = ? ORDER BY score DESC, id ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("comments for post: %w", err)
	}
	defer rows.Close()

	out := make([]models.CommentSummary, 0)
	for rows.Next() {
		var (
			c    models.CommentSummary
			sent sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.Body, &c.Score, &c.CreatedUTC, &c.Author, &sent); err != nil {
			return nil, fmt.Errorf("comments for post: scan: %w", err)
		}
		c.Sentiment = nullableFloat(sent)
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostSideEffects returns the side effects tagged on a post.
func (s *Store) PostSideEffects(ctx context.Context, postID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category FROM side_effects
		WHERE item_kind = 'post' AND item_id = ? ORDER BY category
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("post side effects: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("post side effects: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostsAwaitingComments returns posts with mentions whose comments were
// never fetched, newest first.
func (s *Store) PostsAwaitingComments(ctx context.Context, limit int) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id, p.permalink, p.community, p.created_utc
		FROM posts p JOIN mentions m ON m.post_id = p.id
		WHERE p.comments_scraped = 0 AND p.permalink != ''
		ORDER BY p.created_utc DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("posts awaiting comments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Item, 0)
	for rows.Next() {
		item := models.Item{Kind: models.KindPost}
		if err := rows.Scan(&item.ID, &item.Permalink, &item.Community, &item.CreatedUTC); err != nil {
			return nil, fmt.Errorf("posts awaiting comments: scan: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Stats summarises the store. The error count covers the last 24 hours on
// the store's clock.
func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	st := &models.Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM posts`, &st.TotalPosts},
		{`SELECT COUNT(*) FROM comments`, &st.TotalComments},
		{`SELECT COUNT(*) FROM mentions`, &st.TotalMentions},
		{`SELECT COUNT(*) FROM ingestion_runs`, &st.TotalRuns},
		{`SELECT COUNT(DISTINCT community) FROM posts WHERE community != ''`, &st.CommunityCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(ran_at) FROM ingestion_runs`).Scan(&last); err != nil {
		return nil, fmt.Errorf("stats: last run: %w", err)
	}
	st.LastRun = last.String

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(sentiment) FROM posts WHERE sentiment IS NOT NULL`).Scan(&avg); err != nil {
		return nil, fmt.Errorf("stats: avg sentiment: %w", err)
	}
	st.AvgSentiment = nullableFloat(avg)

	n, err := s.ErrorCountSince(ctx, s.clock.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st.ErrorCount24h = n

	return st, nil
}

// Validation sections.
const (
	SectionSentiment   = "sentiment"
	SectionMentions    = "mentions"
	SectionSideEffects = "side_effects"
)

// Sample is a stored post picked to be re-explained.
type Sample struct {
	Item      models.Item
	Sentiment *float64
}

// ValidationSamples picks stored posts that best illustrate a section: the
// most polarised posts for sentiment, and the highest scoring posts with at
// least two categories for mentions and side effects.
func (s *Store) ValidationSamples(ctx context.Context, section string, limit int) ([]Sample, error) {
	var query string
	switch section {
	case SectionSentiment:
		query = `
			SELECT id, title, body, sentiment FROM posts
			WHERE sentiment IS NOT NULL AND length(body) > 50
			ORDER BY ABS(sentiment) DESC, id ASC LIMIT ?`
	case SectionMentions:
		query = `
			SELECT p.id, p.title, p.body, p.sentiment FROM posts p
			JOIN mentions m ON m.post_id = p.id
			WHERE length(p.body) > 30
			GROUP BY p.id HAVING COUNT(m.category) >= 2
			ORDER BY p.score DESC, p.id ASC LIMIT ?`
	case SectionSideEffects, "heatmap", "effects":
		query = `
			SELECT p.id, p.title, p.body, p.sentiment FROM posts p
			JOIN side_effects se ON se.item_kind = 'post' AND se.item_id = p.id
			WHERE length(p.body) > 30
			GROUP BY p.id HAVING COUNT(se.category) >= 2
			ORDER BY p.score DESC, p.id ASC LIMIT ?`
	default:
		return []Sample{}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("validation samples: %w", err)
	}
	defer rows.Close()

	out := make([]Sample, 0)
	for rows.Next() {
		var (
			smp  Sample
			sent sql.NullFloat64
		)
		smp.Item.Kind = models.KindPost
		if err := rows.Scan(&smp.Item.ID, &smp.Item.Title, &smp.Item.Body, &sent); err != nil {
			return nil, fmt.Errorf("validation samples: scan: %w", err)
		}
		smp.Sentiment = nullableFloat(sent)
		out = append(out, smp)
	}
	return out, rows.Err()
}
