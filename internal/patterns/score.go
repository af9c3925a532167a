package patterns

import (
	"fmt"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"taskradar/internal/domain"
)

// Set is an ordered list of patterns. Literal patterns share a single
// Aho-Corasick automaton; regex patterns are evaluated one by one.
type Set struct {
	Name     SetName
	patterns []Pattern

	// literal text -> indexes into patterns
	literalOwners map[string][]int
	literals      []string

	mu      sync.Mutex // ahocorasick.Matcher.Match mutates internal state
	matcher *ahocorasick.Matcher
}

func NewSet(name SetName, exprs []string) (*Set, error) {
	s := &Set{Name: name, literalOwners: make(map[string][]int)}
	seen := make(map[string]bool, len(exprs))
	for _, expr := range exprs {
		p, err := compilePattern(expr)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		idx := len(s.patterns)
		s.patterns = append(s.patterns, p)
		if p.Kind == KindLiteral {
			if _, ok := s.literalOwners[p.ID]; !ok {
				s.literals = append(s.literals, p.ID)
			}
			s.literalOwners[p.ID] = append(s.literalOwners[p.ID], idx)
		}
	}
	if len(s.literals) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(s.literals)
	}
	return s, nil
}

func emptySet(name SetName) *Set {
	return &Set{Name: name, literalOwners: map[string][]int{}}
}

func (s *Set) Len() int { return len(s.patterns) }

// Patterns returns a copy of the set's patterns in library order.
func (s *Set) Patterns() []Pattern {
	out := make([]Pattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// Score counts distinct patterns that occur anywhere in text. Repeated
// occurrences of one pattern count once; matches are reported in library
// order.
func (s *Set) Score(text string) domain.SignalScore {
	lower := strings.ToLower(text)
	hit := make([]bool, len(s.patterns))

	if s.matcher != nil {
		s.mu.Lock()
		found := s.matcher.Match([]byte(lower))
		s.mu.Unlock()
		for _, li := range found {
			if li < 0 || li >= len(s.literals) {
				continue
			}
			for _, pi := range s.literalOwners[s.literals[li]] {
				hit[pi] = true
			}
		}
	}
	for i, p := range s.patterns {
		if p.Kind == KindRegex && p.re.MatchString(lower) {
			hit[i] = true
		}
	}

	score := domain.SignalScore{Matches: []string{}}
	for i, ok := range hit {
		if ok {
			score.Score++
			score.Matches = append(score.Matches, s.patterns[i].ID)
		}
	}
	return score
}
