// Package patterns holds the compiled category taxonomies used to classify
// item text. A Registry is built once at start-up and never mutated.
package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/leolhan1425/bc-tracker/internal/models"
)

// Registry bundles the entity and side-effect taxonomies.
type Registry struct {
	Entities    *Taxonomy
	SideEffects *Taxonomy
}

// NewRegistry compiles both taxonomies.
func NewRegistry(entities, sideEffects []Definition) (*Registry, error) {
	ent, err := NewTaxonomy("entities", entities)
	if err != nil {
		return nil, err
	}
	se, err := NewTaxonomy("side_effects", sideEffects)
	if err != nil {
		return nil, err
	}
	return &Registry{Entities: ent, SideEffects: se}, nil
}

// Default returns the built-in registry. It panics if the built-in tables do
// not compile, which only a code change can cause.
func Default() *Registry {
	r, err := NewRegistry(EntityDefinitions, SideEffectDefinitions)
	if err != nil {
		panic(fmt.Sprintf("patterns: built-in taxonomy: %v", err))
	}
	return r
}

type guardedTerm struct {
	re            *regexp.Regexp
	notFollowedBy *regexp.Regexp
}

type category struct {
	name       string
	plain      *regexp.Regexp // alternation of unguarded terms, nil if none
	guarded    []guardedTerm
	excludedBy []int
}

// Taxonomy is an ordered, immutable set of categories.
type Taxonomy struct {
	name       string
	categories []category
	index      map[string]int
}

// NewTaxonomy compiles a set of definitions. Exclusions must name siblings.
func NewTaxonomy(name string, defs []Definition) (*Taxonomy, error) {
	t := &Taxonomy{
		name:       name,
		categories: make([]category, 0, len(defs)),
		index:      make(map[string]int, len(defs)),
	}

	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("%s: category %d has no name", name, i)
		}
		if _, dup := t.index[def.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate category %q", name, def.Name)
		}
		if len(def.Terms) == 0 {
			return nil, fmt.Errorf("%s: category %q has no terms", name, def.Name)
		}

		c := category{name: def.Name}
		var plain []string
		for _, term := range def.Terms {
			if term.NotFollowedBy == "" {
				plain = append(plain, "(?:"+term.Pattern+")")
				continue
			}
			re, err := regexp.Compile("(?i)" + term.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%s: category %q: %w", name, def.Name, err)
			}
			guard, err := regexp.Compile(`(?i)^(?:` + term.NotFollowedBy + `)`)
			if err != nil {
				return nil, fmt.Errorf("%s: category %q guard: %w", name, def.Name, err)
			}
			c.guarded = append(c.guarded, guardedTerm{re: re, notFollowedBy: guard})
		}
		if len(plain) > 0 {
			re, err := regexp.Compile("(?i)" + strings.Join(plain, "|"))
			if err != nil {
				return nil, fmt.Errorf("%s: category %q: %w", name, def.Name, err)
			}
			c.plain = re
		}

		t.index[def.Name] = i
		t.categories = append(t.categories, c)
	}

	for i, def := range defs {
		for _, ex := range def.ExcludedBy {
			j, ok := t.index[ex]
			if !ok {
				return nil, fmt.Errorf("%s: category %q excluded by unknown category %q", name, def.Name, ex)
			}
			if j == i {
				return nil, fmt.Errorf("%s: category %q cannot exclude itself", name, def.Name)
			}
			t.categories[i].excludedBy = append(t.categories[i].excludedBy, j)
		}
	}

	return t, nil
}

// Name returns the taxonomy name.
func (t *Taxonomy) Name() string {
	return t.name
}

// Names returns all category names in declaration order.
func (t *Taxonomy) Names() []string {
	out := make([]string, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.name
	}
	return out
}

// Has reports whether name is a category of this taxonomy.
func (t *Taxonomy) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Categories returns the names of the categories found in text, in
// declaration order.
func (t *Taxonomy) Categories(text string) []string {
	out := make([]string, 0)
	if text == "" {
		return out
	}
	matched := t.matched(text)
	for i, c := range t.categories {
		if matched[i] {
			out = append(out, c.name)
		}
	}
	return out
}

// Matches returns every occurrence of every category found in text, sorted
// by start offset. Offsets are in characters, not bytes.
func (t *Taxonomy) Matches(text string) []models.Match {
	out := make([]models.Match, 0)
	if text == "" {
		return out
	}
	matched := t.matched(text)

	type located struct {
		cat        int
		start, end int
	}
	var locs []located
	for i, c := range t.categories {
		if !matched[i] {
			continue
		}
		for _, loc := range c.find(text) {
			locs = append(locs, located{cat: i, start: loc[0], end: loc[1]})
		}
	}

	sort.SliceStable(locs, func(a, b int) bool {
		if locs[a].start != locs[b].start {
			return locs[a].start < locs[b].start
		}
		return locs[a].cat < locs[b].cat
	})

	for _, l := range locs {
		out = append(out, models.Match{
			Category: t.categories[l.cat].name,
			Text:     text[l.start:l.end],
			Start:    utf8.RuneCountInString(text[:l.start]),
			End:      utf8.RuneCountInString(text[:l.end]),
		})
	}
	return out
}

// matched evaluates raw matches then applies sibling exclusions.
func (t *Taxonomy) matched(text string) []bool {
	raw := make([]bool, len(t.categories))
	for i := range t.categories {
		raw[i] = t.categories[i].matches(text)
	}

	out := make([]bool, len(raw))
	for i, c := range t.categories {
		if !raw[i] {
			continue
		}
		out[i] = true
		for _, j := range c.excludedBy {
			if raw[j] {
				out[i] = false
				break
			}
		}
	}
	return out
}

func (c *category) matches(text string) bool {
	if c.plain != nil && c.plain.MatchString(text) {
		return true
	}
	for _, g := range c.guarded {
		if len(g.accepted(text)) > 0 {
			return true
		}
	}
	return false
}

func (c *category) find(text string) [][]int {
	var locs [][]int
	if c.plain != nil {
		locs = append(locs, c.plain.FindAllStringIndex(text, -1)...)
	}
	for _, g := range c.guarded {
		locs = append(locs, g.accepted(text)...)
	}
	return locs
}

func (g guardedTerm) accepted(text string) [][]int {
	var out [][]int
	for _, loc := range g.re.FindAllStringIndex(text, -1) {
		if g.notFollowedBy.MatchString(text[loc[1]:]) {
			continue
		}
		out = append(out, loc)
	}
	return out
}
