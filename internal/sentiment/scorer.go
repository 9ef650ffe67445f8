// Package sentiment implements a single-pass lexicon scorer. Negators and
// intensifiers only affect the next polarity word when nothing ordinary
// sits between them.
package sentiment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

const intensifiedWeight = 1.5

var tokenPattern = regexp.MustCompile(`[a-z']+`)

// Scorer scores text against an immutable lexicon. It is safe for
// concurrent use.
type Scorer struct {
	lex Lexicon
}

// NewScorer creates a scorer for the given lexicon
func NewScorer(lex Lexicon) *Scorer {
	return &Scorer{lex: lex}
}

// Tokenize lowercases text and splits it into words of ASCII letters and
// apostrophes.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Score returns a value in [-1, 1]. ok is false when no positive or negative
// word was found.
func (s *Scorer) Score(text string) (score float64, ok bool) {
	st := s.run(text, nil)
	return st.result()
}

// Explain scores text and records the effect of every token.
func (s *Scorer) Explain(text string) models.SentimentTrace {
	steps := make([]models.TraceStep, 0)
	st := s.run(text, &steps)

	trace := models.SentimentTrace{Pos: st.pos, Neg: st.neg, Steps: steps}
	score, ok := st.result()
	if !ok {
		switch {
		case strings.TrimSpace(text) == "":
			trace.Summary = "Empty text."
		case len(steps) == 0:
			trace.Summary = "No words found."
		default:
			trace.Summary = "No sentiment words detected."
		}
		return trace
	}

	trace.Score = &score
	trace.Summary = fmt.Sprintf("Positive: %g, Negative: %g, Score: (%g-%g)/%g = %.3f",
		st.pos, st.neg, st.pos, st.neg, st.pos+st.neg, score)
	return trace
}

type state struct {
	pos, neg  float64
	negate    bool
	intensity float64
}

func (st *state) result() (float64, bool) {
	total := st.pos + st.neg
	if total == 0 {
		return 0, false
	}
	raw := (st.pos - st.neg) / total
	if raw > 1 {
		raw = 1
	} else if raw < -1 {
		raw = -1
	}
	return raw, true
}

func (s *Scorer) run(text string, steps *[]models.TraceStep) *state {
	st := &state{intensity: 1.0}

	for _, word := range Tokenize(text) {
		step := models.TraceStep{Word: word}

		switch {
		case has(s.lex.Negators, word):
			st.negate = true
			step.Role = models.RoleNegator

		case has(s.lex.Intensifiers, word):
			st.intensity = intensifiedWeight
			step.Role = models.RoleIntensifier

		case has(s.lex.Positive, word):
			step.Role = models.RolePositive
			step.Negated = st.negate
			step.Weight = st.intensity
			if st.negate {
				st.neg += st.intensity
				step.NegDelta = st.intensity
			} else {
				st.pos += st.intensity
				step.PosDelta = st.intensity
			}
			st.negate, st.intensity = false, 1.0

		case has(s.lex.Negative, word):
			step.Role = models.RoleNegative
			step.Negated = st.negate
			step.Weight = st.intensity
			if st.negate {
				st.pos += st.intensity
				step.PosDelta = st.intensity
			} else {
				st.neg += st.intensity
				step.NegDelta = st.intensity
			}
			st.negate, st.intensity = false, 1.0

		default:
			step.Role = models.RoleNeutral
			st.negate, st.intensity = false, 1.0
		}

		if steps != nil {
			step.RunningPos = st.pos
			step.RunningNeg = st.neg
			*steps = append(*steps, step)
		}
	}

	return st
}

func has(m map[string]struct{}, w string) bool {
	_, ok := m[w]
	return ok
}
