package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

// Filter restricts aggregations to items created in [Start, End) and,
// optionally, to one community. Nil bounds are open.
type Filter struct {
	Start     *time.Time
	End       *time.Time
	Community string
}

// clauses renders the filter against the given creation-time and community
// columns.
func (f Filter) clauses(createdCol, communityCol string) ([]string, []any) {
	var where []string
	var args []any
	if f.Start != nil {
		where = append(where, createdCol+" >= ?")
		args = append(args, f.Start.Unix())
	}
	if f.End != nil {
		where = append(where, createdCol+" < ?")
		args = append(args, f.End.Unix())
	}
	if f.Community != "" {
		where = append(where, communityCol+" = ?")
		args = append(args, f.Community)
	}
	return where, args
}

func and(base []string, more []string) string {
	all := append(append([]string{}, base...), more...)
	if len(all) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(all, " AND ")
}

// CategoryCounts returns the number of distinct posts per entity category,
// by count descending then name ascending.
func (s *Store) CategoryCounts(ctx context.Context, f Filter) ([]models.CategoryCount, error) {
	where, args := f.clauses("p.created_utc", "p.community")
	query := `
		SELECT m.category, COUNT(DISTINCT m.post_id) AS cnt
		FROM mentions m JOIN posts p ON p.id = m.post_id` + and(nil, where) + `
		GROUP BY m.category
		ORDER BY cnt DESC, m.category ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	out := make([]models.CategoryCount, 0)
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("category counts: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailySeries returns per-day, per-category counts keyed by UTC date. Days
// without matching posts are absent, and legacy rows without a creation
// time are skipped.
func (s *Store) DailySeries(ctx context.Context, f Filter) (models.DailySeries, error) {
	where, args := f.clauses("p.created_utc", "p.community")
	query := `
		SELECT date(p.created_utc, 'unixepoch') AS day, m.category, COUNT(DISTINCT m.post_id)
		FROM mentions m JOIN posts p ON p.id = m.post_id` +
		and([]string{"p.created_utc > 0"}, where) + `
		GROUP BY day, m.category
		ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()

	out := make(models.DailySeries)
	for rows.Next() {
		var (
			day, category string
			count         int
		)
		if err := rows.Scan(&day, &category, &count); err != nil {
			return nil, fmt.Errorf("daily series: scan: %w", err)
		}
		if out[day] == nil {
			out[day] = make(map[string]int)
		}
		out[day][category] = count
	}
	return out, rows.Err()
}

// minSentimentItems keeps single-post categories out of the sentiment table.
const minSentimentItems = 2

// SentimentByCategory returns the mean stored sentiment of posts per
// category, for categories with at least two scored posts, best first.
func (s *Store) SentimentByCategory(ctx context.Context, f Filter) ([]models.CategorySentiment, error) {
	where, args := f.clauses("p.created_utc", "p.community")
	args = append(args, minSentimentItems)
	query := `
		SELECT m.category, AVG(p.sentiment) AS avg_s, COUNT(DISTINCT p.id) AS cnt
		FROM mentions m JOIN posts p ON p.id = m.post_id` +
		and([]string{"p.sentiment IS NOT NULL"}, where) + `
		GROUP BY m.category
		HAVING cnt >= ?
		ORDER BY avg_s DESC, m.category ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sentiment by category: %w", err)
	}
	defer rows.Close()

	out := make([]models.CategorySentiment, 0)
	for rows.Next() {
		var c models.CategorySentiment
		if err := rows.Scan(&c.Category, &c.Mean, &c.Count); err != nil {
			return nil, fmt.Errorf("sentiment by category: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EffectMatrix counts distinct items per (entity category, side effect).
// Posts contribute their own tags; comments contribute their own tags under
// the categories of the post they belong to.
func (s *Store) EffectMatrix(ctx context.Context, f Filter) (models.EffectMatrix, error) {
	postWhere, postArgs := f.clauses("p.created_utc", "p.community")
	commentWhere, commentArgs := f.clauses("c.created_utc", "p.community")

	query := `
		SELECT category, effect, SUM(cnt) FROM (
			SELECT m.category AS category, se.category AS effect, COUNT(DISTINCT se.item_id) AS cnt
			FROM side_effects se
			JOIN posts p ON se.item_kind = 'post' AND se.item_id = p.id
			JOIN mentions m ON m.post_id = p.id` +
		and([]string{"p.created_utc > 0"}, postWhere) + `
			GROUP BY m.category, se.category
			UNION ALL
			SELECT m.category AS category, se.category AS effect, COUNT(DISTINCT se.item_id) AS cnt
			FROM side_effects se
			JOIN comments c ON se.item_kind = 'comment' AND se.item_id = c.id
			JOIN posts p ON p.id = c.post_id
			JOIN mentions m ON m.post_id = c.post_id` +
		and([]string{"c.created_utc > 0"}, commentWhere) + `
			GROUP BY m.category, se.category
		)
		GROUP BY category, effect`

	args := append(postArgs, commentArgs...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("effect matrix: %w", err)
	}
	defer rows.Close()

	out := make(models.EffectMatrix)
	for rows.Next() {
		var (
			category, effect string
			count            int
		)
		if err := rows.Scan(&category, &effect, &count); err != nil {
			return nil, fmt.Errorf("effect matrix: scan: %w", err)
		}
		if out[category] == nil {
			out[category] = make(map[string]int)
		}
		out[category][effect] = count
	}
	return out, rows.Err()
}

// SideEffectCounts counts distinct items per side effect, optionally only
// for items whose post mentions category.
func (s *Store) SideEffectCounts(ctx context.Context, f Filter, category string) ([]models.CategoryCount, error) {
	where, args := f.clauses("COALESCE(p.created_utc, c.created_utc)", "COALESCE(p.community, cp.community)")
	if category != "" {
		where = append(where, `EXISTS (SELECT 1 FROM mentions m
			WHERE m.post_id = COALESCE(p.id, c.post_id) AND m.category = ?)`)
		args = append(args, category)
	}

	query := `
		SELECT se.category, COUNT(DISTINCT se.item_kind || ':' || se.item_id) AS cnt
		FROM side_effects se
		LEFT JOIN posts p ON se.item_kind = 'post' AND se.item_id = p.id
		LEFT JOIN comments c ON se.item_kind = 'comment' AND se.item_id = c.id
		LEFT JOIN posts cp ON cp.id = c.post_id` + and(nil, where) + `
		GROUP BY se.category
		ORDER BY cnt DESC, se.category ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("side effect counts: %w", err)
	}
	defer rows.Close()

	out := make([]models.CategoryCount, 0)
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("side effect counts: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
