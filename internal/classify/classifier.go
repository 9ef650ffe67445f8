// Package classify turns raw items into annotations. Classification is pure:
// the same text always yields the same annotation.
package classify

import (
	"math"

	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/patterns"
	"github.com/leolhan1425/bc-tracker/internal/sentiment"
)

// Classifier combines the pattern registry and the sentiment scorer.
type Classifier struct {
	registry *patterns.Registry
	scorer   *sentiment.Scorer
}

// New creates a classifier. Both arguments are shared and never mutated.
func New(registry *patterns.Registry, scorer *sentiment.Scorer) *Classifier {
	return &Classifier{registry: registry, scorer: scorer}
}

// NewDefault creates a classifier over the built-in taxonomies and lexicon.
func NewDefault() *Classifier {
	return New(patterns.Default(), sentiment.NewScorer(sentiment.DefaultLexicon()))
}

// Registry returns the pattern registry in use.
func (c *Classifier) Registry() *patterns.Registry {
	return c.registry
}

// Engagement weights discussion volume over approval. Both inputs are
// floored at 1 so the result is never negative.
func Engagement(votes, comments int) float64 {
	return math.Log2(float64(max(votes, 1))) + 1.5*math.Log2(float64(max(comments, 1)))
}

// Classify annotates a single item.
func (c *Classifier) Classify(item models.Item) models.Annotation {
	text := item.Text()

	ann := models.Annotation{
		Engagement:  Engagement(item.Score, item.NumComments),
		Entities:    c.registry.Entities.Categories(text),
		SideEffects: c.registry.SideEffects.Categories(text),
	}
	if score, ok := c.scorer.Score(text); ok {
		ann.Sentiment = &score
	}
	return ann
}

// ClassifyBatch annotates items in order.
func (c *Classifier) ClassifyBatch(items []models.Item) []models.ClassifiedItem {
	out := make([]models.ClassifiedItem, len(items))
	for i, item := range items {
		out[i] = models.ClassifiedItem{Item: item, Annotation: c.Classify(item)}
	}
	return out
}

// Explain returns the match lists and the sentiment trace for text.
func (c *Classifier) Explain(text string) *models.Explanation {
	return &models.Explanation{
		Entities:    c.registry.Entities.Matches(text),
		SideEffects: c.registry.SideEffects.Matches(text),
		Sentiment:   c.scorer.Explain(text),
	}
}
