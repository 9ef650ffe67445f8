package sentiment

// Lexicon holds the four word classes the scorer recognises. Words must be
// lowercase.
type Lexicon struct {
	Positive     map[string]struct{}
	Negative     map[string]struct{}
	Negators     map[string]struct{}
	Intensifiers map[string]struct{}
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// DefaultLexicon returns the built-in word lists.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: set(
			"love", "loved", "loving", "great", "amazing", "wonderful", "fantastic",
			"happy", "happier", "recommend", "recommended", "perfect", "relief",
			"comfortable", "easy", "easier", "helped", "helping", "works", "worked",
			"effective", "glad", "satisfied", "awesome", "excellent", "best", "better",
			"worth", "grateful", "thankful", "thrilled", "pleased", "enjoy", "enjoying",
			"improvement", "improved", "freedom", "convenient", "reliable", "safe",
			"success", "successful", "smooth", "positive", "hopeful", "reassuring",
		),
		Negative: set(
			"hate", "hated", "hating", "terrible", "awful", "horrible", "worst",
			"pain", "painful", "suffering", "miserable", "nightmare", "regret",
			"regretted", "angry", "frustrated", "frustrating", "unbearable",
			"ruined", "scared", "scary", "fear", "worried", "worry", "worrying",
			"concerned", "bad", "worse", "sucks", "sucked", "annoying", "annoyed",
			"disappointing", "disappointed", "uncomfortable", "difficult", "hard",
			"struggle", "struggling", "failed", "failure", "problem", "problems",
			"issue", "issues", "wrong", "severe", "seriously", "misery", "cry",
			"crying", "cried", "upset", "distressed", "hurt", "hurts",
		),
		Negators: set(
			"not", "no", "never", "don't", "didn't", "doesn't", "wasn't", "weren't",
			"isn't", "aren't", "won't", "can't", "couldn't", "shouldn't", "hardly", "barely",
		),
		Intensifiers: set(
			"very", "really", "extremely", "so", "incredibly", "super", "absolutely", "totally",
		),
	}
}
