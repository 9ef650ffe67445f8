package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/sirupsen/logrus"
)

// Annotator classifies an item. classify.Classifier satisfies it.
type Annotator interface {
	Classify(item models.Item) models.Annotation
}

// BackfillResult counts the rows touched by Backfill.
type BackfillResult struct {
	Sentiment   int `json:"sentiment"`
	Engagement  int `json:"engagement"`
	NewMentions int `json:"new_mentions"`
}

type backfillRow struct {
	item       models.Item
	sentiment  sql.NullFloat64
	engagement float64
}

// Backfill re-annotates stored posts that predate a scoring field or a
// taxonomy change: missing sentiment, zero engagement, and categories that
// now match but were never recorded. Rows are read before the write
// transaction starts, so updates only fill fields that are still empty and a
// concurrent merge always wins. Relation rows are only ever inserted.
func (s *Store) Backfill(ctx context.Context, annotator Annotator) (*BackfillResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, score, num_comments, COALESCE(crosspost_parent, ''),
		       sentiment, engagement_score
		FROM posts
	`)
	if err != nil {
		return nil, fmt.Errorf("backfill: load posts: %w", err)
	}

	var posts []backfillRow
	for rows.Next() {
		var r backfillRow
		r.item.Kind = models.KindPost
		if err := rows.Scan(&r.item.ID, &r.item.Title, &r.item.Body, &r.item.Score,
			&r.item.NumComments, &r.item.CrosspostParent, &r.sentiment, &r.engagement); err != nil {
			rows.Close()
			return nil, fmt.Errorf("backfill: scan post: %w", err)
		}
		posts = append(posts, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("backfill: iterate posts: %w", err)
	}
	rows.Close()

	result := &BackfillResult{}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range posts {
			ann := annotator.Classify(p.item)

			if !p.sentiment.Valid && p.item.Body != "" && ann.Sentiment != nil {
				res, err := tx.ExecContext(ctx,
					`UPDATE posts SET sentiment = ? WHERE id = ? AND sentiment IS NULL`,
					*ann.Sentiment, p.item.ID)
				if err != nil {
					return fmt.Errorf("update sentiment %s: %w", p.item.ID, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					result.Sentiment++
				}
			}

			if p.engagement == 0 && ann.Engagement > 0 {
				res, err := tx.ExecContext(ctx,
					`UPDATE posts SET engagement_score = ? WHERE id = ? AND engagement_score = 0`,
					ann.Engagement, p.item.ID)
				if err != nil {
					return fmt.Errorf("update engagement %s: %w", p.item.ID, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					result.Engagement++
				}
			}

			if p.item.CrosspostParent != "" || p.item.Body == "" {
				continue
			}

			for _, c := range ann.Entities {
				res, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO mentions (post_id, category) VALUES (?, ?)`, p.item.ID, c)
				if err != nil {
					return fmt.Errorf("insert mention %s: %w", p.item.ID, err)
				}
				if n, _ := res.RowsAffected(); n > 0 {
					result.NewMentions++
				}
			}
			if err := insertSideEffects(ctx, tx, models.KindPost, p.item.ID, ann.SideEffects); err != nil {
				return fmt.Errorf("post %s: %w", p.item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}

	if result.Sentiment+result.Engagement+result.NewMentions > 0 {
		logrus.WithFields(logrus.Fields{
			"sentiment":    result.Sentiment,
			"engagement":   result.Engagement,
			"new_mentions": result.NewMentions,
		}).Info("Backfilled stored posts")
	}

	return result, nil
}
