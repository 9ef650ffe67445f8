package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

// MergePosts upserts a batch of classified posts in one transaction and
// returns how many of them were new.
//
// Merge rules on re-observation:
//   - score, reply count, sentiment and text: last write wins
//   - engagement: high-water mark, MAX(stored, new)
//   - sort source: upgraded to "hot" and never downgraded
//   - mentions and side-effect tags: inserted if absent, never removed
//
// Cross-posts are stored and annotated but contribute no mention or
// side-effect rows; their parent already represents that content.
func (s *Store) MergePosts(ctx context.Context, batch []models.ClassifiedItem) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	now := s.nowString()
	newCount := 0

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, ci := range batch {
			created, err := upsertPost(ctx, tx, ci, now)
			if err != nil {
				return fmt.Errorf("post %s: %w", ci.Item.ID, err)
			}
			if created {
				newCount++
			}

			if ci.Item.CrosspostParent != "" {
				continue
			}
			if err := insertMentions(ctx, tx, ci.Item.ID, ci.Annotation.Entities); err != nil {
				return fmt.Errorf("post %s: %w", ci.Item.ID, err)
			}
			if err := insertSideEffects(ctx, tx, models.KindPost, ci.Item.ID, ci.Annotation.SideEffects); err != nil {
				return fmt.Errorf("post %s: %w", ci.Item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("merge posts: %w", err)
	}

	return newCount, nil
}

// MergeComments upserts the comments of one thread in one transaction and
// marks the thread's comments as fetched. Categories detected in a comment
// are credited to the thread post; side-effect tags stay on the comment.
func (s *Store) MergeComments(ctx context.Context, postID string, batch []models.ClassifiedItem) (int, error) {
	now := s.nowString()
	newCount := 0

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var parent sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT crosspost_parent FROM posts WHERE id = ?`, postID).Scan(&parent)
		if err == sql.ErrNoRows {
			return fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load post %s: %w", postID, err)
		}
		crosspost := parent.Valid && parent.String != ""

		for _, ci := range batch {
			created, err := upsertComment(ctx, tx, postID, ci, now)
			if err != nil {
				return fmt.Errorf("comment %s: %w", ci.Item.ID, err)
			}
			if created {
				newCount++
			}

			if crosspost {
				continue
			}
			if err := insertMentions(ctx, tx, postID, ci.Annotation.Entities); err != nil {
				return fmt.Errorf("comment %s: %w", ci.Item.ID, err)
			}
			if err := insertSideEffects(ctx, tx, models.KindComment, ci.Item.ID, ci.Annotation.SideEffects); err != nil {
				return fmt.Errorf("comment %s: %w", ci.Item.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE posts SET comments_scraped = 1 WHERE id = ?`, postID); err != nil {
			return fmt.Errorf("mark comments scraped: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("merge comments: %w", err)
	}

	return newCount, nil
}

// MarkCommentsScraped flags a post so the comment pass skips it.
func (s *Store) MarkCommentsScraped(ctx context.Context, postID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE posts SET comments_scraped = 1 WHERE id = ?`, postID)
		if err != nil {
			return fmt.Errorf("mark comments scraped: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		return nil
	})
}

func exists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func upsertPost(ctx context.Context, tx *sql.Tx, ci models.ClassifiedItem, now string) (bool, error) {
	item := ci.Item
	found, err := exists(ctx, tx, "posts", item.ID)
	if err != nil {
		return false, err
	}

	sortSource := item.SortSource
	if sortSource == "" {
		sortSource = models.SortNew
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts
		(id, title, body, created_utc, score, num_comments, permalink, author, community,
		 sentiment, engagement_score, sort_source, crosspost_parent, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			created_utc = CASE WHEN posts.created_utc = 0 THEN excluded.created_utc ELSE posts.created_utc END,
			score = excluded.score,
			num_comments = excluded.num_comments,
			permalink = excluded.permalink,
			sentiment = excluded.sentiment,
			engagement_score = MAX(posts.engagement_score, excluded.engagement_score),
			sort_source = CASE WHEN excluded.sort_source = 'hot' THEN 'hot' ELSE posts.sort_source END,
			crosspost_parent = COALESCE(posts.crosspost_parent, excluded.crosspost_parent),
			last_seen = excluded.last_seen
	`,
		item.ID,
		item.Title,
		item.Body,
		item.CreatedUTC,
		item.Score,
		item.NumComments,
		item.Permalink,
		item.Author,
		item.Community,
		ci.Annotation.Sentiment,
		ci.Annotation.Engagement,
		sortSource,
		nullableString(item.CrosspostParent),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}

	return !found, nil
}

func upsertComment(ctx context.Context, tx *sql.Tx, postID string, ci models.ClassifiedItem, now string) (bool, error) {
	item := ci.Item
	found, err := exists(ctx, tx, "comments", item.ID)
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments
		(id, post_id, body, created_utc, score, author, sentiment, engagement_score, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			score = excluded.score,
			sentiment = excluded.sentiment,
			engagement_score = MAX(comments.engagement_score, excluded.engagement_score),
			last_seen = excluded.last_seen
	`,
		item.ID,
		postID,
		item.Body,
		item.CreatedUTC,
		item.Score,
		item.Author,
		ci.Annotation.Sentiment,
		ci.Annotation.Engagement,
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}

	return !found, nil
}

func insertMentions(ctx context.Context, tx *sql.Tx, postID string, categories []string) error {
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO mentions (post_id, category) VALUES (?, ?)`, postID, c); err != nil {
			return fmt.Errorf("insert mention %q: %w", c, err)
		}
	}
	return nil
}

func insertSideEffects(ctx context.Context, tx *sql.Tx, kind models.ItemKind, id string, categories []string) error {
	for _, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO side_effects (item_kind, item_id, category) VALUES (?, ?, ?)`,
			string(kind), id, c); err != nil {
			return fmt.Errorf("insert side effect %q: %w", c, err)
		}
	}
	return nil
}
