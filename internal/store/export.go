package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

// Export dumps the store for backups and static publishing. Bodies are
// truncated to keep snapshots small.
func (s *Store) Export(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		Posts:       make([]models.PostSummary, 0),
		Comments:    make([]models.CommentSummary, 0),
		Mentions:    make([]models.MentionRow, 0),
		SideEffects: make([]models.SideEffectRow, 0),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, substr(p.body, 1, 300), p.created_utc, p.score, p.num_comments,
		       p.permalink, p.sentiment, p.community, p.engagement_score
		FROM posts p WHERE p.created_utc > 0
		ORDER BY p.created_utc DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("export posts: %w", err)
	}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("export posts: scan: %w", err)
		}
		snap.Posts = append(snap.Posts, p)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, post_id, substr(body, 1, 200), score, created_utc, author, sentiment
		FROM comments ORDER BY score DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("export comments: %w", err)
	}
	for rows.Next() {
		var (
			c    models.CommentSummary
			sent sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.Body, &c.Score, &c.CreatedUTC, &c.Author, &sent); err != nil {
			rows.Close()
			return nil, fmt.Errorf("export comments: scan: %w", err)
		}
		c.Sentiment = nullableFloat(sent)
		snap.Comments = append(snap.Comments, c)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT post_id, category FROM mentions ORDER BY post_id, category`)
	if err != nil {
		return nil, fmt.Errorf("export mentions: %w", err)
	}
	for rows.Next() {
		var m models.MentionRow
		if err := rows.Scan(&m.PostID, &m.Category); err != nil {
			rows.Close()
			return nil, fmt.Errorf("export mentions: scan: %w", err)
		}
		snap.Mentions = append(snap.Mentions, m)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT item_kind, item_id, category FROM side_effects ORDER BY item_kind, item_id, category`)
	if err != nil {
		return nil, fmt.Errorf("export side effects: %w", err)
	}
	for rows.Next() {
		var (
			se   models.SideEffectRow
			kind string
		)
		if err := rows.Scan(&kind, &se.ItemID, &se.Category); err != nil {
			rows.Close()
			return nil, fmt.Errorf("export side effects: scan: %w", err)
		}
		se.ItemKind = models.ItemKind(kind)
		snap.SideEffects = append(snap.SideEffects, se)
	}
	rows.Close()

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	snap.Stats = stats

	return snap, nil
}
