package models

// Match is one pattern occurrence in a text. Offsets count characters.
type Match struct {
	Category string `json:"name" yaml:"name"`
	Text     string `json:"matched" yaml:"matched"`
	Start    int    `json:"start" yaml:"start"`
	End      int    `json:"end" yaml:"end"`
}

// Token roles reported by the sentiment trace.
const (
	RolePositive    = "positive"
	RoleNegative    = "negative"
	RoleNegator     = "negator"
	RoleIntensifier = "intensifier"
	RoleNeutral     = "neutral"
)

// TraceStep records how one token moved the sentiment tallies.
type TraceStep struct {
	Word       string  `json:"word" yaml:"word"`
	Role       string  `json:"role" yaml:"role"`
	Negated    bool    `json:"negated,omitempty" yaml:"negated,omitempty"`
	Weight     float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	PosDelta   float64 `json:"pos_delta" yaml:"pos_delta"`
	NegDelta   float64 `json:"neg_delta" yaml:"neg_delta"`
	RunningPos float64 `json:"running_pos" yaml:"running_pos"`
	RunningNeg float64 `json:"running_neg" yaml:"running_neg"`
}

// SentimentTrace is the token-by-token breakdown of a sentiment score
type SentimentTrace struct {
	Score   *float64    `json:"score" yaml:"score"`
	Pos     float64     `json:"pos" yaml:"pos"`
	Neg     float64     `json:"neg" yaml:"neg"`
	Steps   []TraceStep `json:"steps" yaml:"steps"`
	Summary string      `json:"summary" yaml:"summary"`
}

// Explanation justifies the annotation of a text
type Explanation struct {
	Entities    []Match        `json:"mention_matches" yaml:"mention_matches"`
	SideEffects []Match        `json:"side_effect_matches" yaml:"side_effect_matches"`
	Sentiment   SentimentTrace `json:"sentiment" yaml:"sentiment"`
}

// ValidationExample is a stored item re-explained for the validate surface
type ValidationExample struct {
	PostID      string       `json:"post_id" yaml:"post_id"`
	Title       string       `json:"title" yaml:"title"`
	TextPreview string       `json:"text_preview" yaml:"text_preview"`
	StoredScore *float64     `json:"stored_score,omitempty" yaml:"stored_score,omitempty"`
	Explanation *Explanation `json:"explanation" yaml:"explanation"`
}
