package monitoring

import (
	"context"
	"fmt"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

const previewRunes = 300

// DefaultValidationLimit is the number of examples returned when none is asked for.
const DefaultValidationLimit = 3

// Explain classifies free text and reports why each label applied.
func (s *Service) Explain(text string) *models.Explanation {
	return s.classifier.Explain(text)
}

// ValidationExamples picks stored posts for a section and explains them
// again with the current classifier. Unknown sections yield no examples.
func (s *Service) ValidationExamples(ctx context.Context, section string, limit int) ([]models.ValidationExample, error) {
	if limit <= 0 {
		limit = DefaultValidationLimit
	}

	samples, err := s.store.ValidationSamples(ctx, section, limit)
	if err != nil {
		return nil, fmt.Errorf("validation examples: %w", err)
	}

	out := make([]models.ValidationExample, 0, len(samples))
	for _, smp := range samples {
		out = append(out, models.ValidationExample{
			PostID:      smp.Item.ID,
			Title:       smp.Item.Title,
			TextPreview: preview(smp.Item.Body, previewRunes),
			StoredScore: smp.Sentiment,
			Explanation: s.classifier.Explain(smp.Item.Text()),
		})
	}
	return out, nil
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
