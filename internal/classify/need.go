package classify

import (
	"sort"

	"taskradar/internal/domain"
	"taskradar/internal/patterns"
)

// NeedSignals are the inputs of the general-need decision list. Need
// already includes the engagement bonus.
type NeedSignals struct {
	Need           int
	Personal       int
	HighEngagement bool
}

// NeedRules is the general-need decision list.
var NeedRules = []Rule[NeedSignals, domain.NeedCategory]{
	{
		Name:       "need_dominant",
		When:       func(s NeedSignals) bool { return s.Need > s.Personal && s.Need >= 2 },
		Category:   domain.NeedProduct,
		Confidence: func(s NeedSignals) float64 { return ratio(s.Need, 5) },
	},
	{
		Name:       "personal_dominant",
		When:       func(s NeedSignals) bool { return s.Personal > s.Need },
		Category:   domain.NeedPersonalIssue,
		Confidence: func(s NeedSignals) float64 { return ratio(s.Personal, 4) },
	},
	{
		Name:       "engaged_with_signal",
		When:       func(s NeedSignals) bool { return s.HighEngagement && s.Need >= 1 },
		Category:   domain.NeedWorthLooking,
		Confidence: fixed[NeedSignals](0.5),
	},
	{
		Name:       "engaged",
		When:       func(s NeedSignals) bool { return s.HighEngagement },
		Category:   domain.NeedWorthLooking,
		Confidence: fixed[NeedSignals](0.4),
	},
	{
		Name:       "fallback",
		When:       always[NeedSignals],
		Category:   domain.NeedUnclear,
		Confidence: fixed[NeedSignals](0.3),
	},
}

type NeedClassifier struct {
	lib LibrarySource
}

func NewNeedClassifier(lib LibrarySource) *NeedClassifier {
	return &NeedClassifier{lib: lib}
}

// EngagementBonus adds one point for 10+ comments and one for a score of 20+.
func EngagementBonus(p domain.Post) int {
	bonus := 0
	if p.NumComments >= 10 {
		bonus++
	}
	if p.Score >= 20 {
		bonus++
	}
	return bonus
}

func highEngagement(p domain.Post) bool {
	return p.NumComments > 20 || p.Score > 10
}

// Classify scores one post against the need and personal sets.
func (c *NeedClassifier) Classify(p domain.Post) domain.NeedResult {
	lib := c.lib.Current()
	return classifyNeed(lib, p)
}

func classifyNeed(lib *patterns.Library, p domain.Post) domain.NeedResult {
	text := p.FullText()
	need := lib.Set(patterns.SetNeed).Score(text)
	personal := lib.Set(patterns.SetPersonal).Score(text)

	s := NeedSignals{
		Need:           need.Score + EngagementBonus(p),
		Personal:       personal.Score,
		HighEngagement: highEngagement(p),
	}
	rule, confidence, _ := evaluate(NeedRules, s)

	return domain.NeedResult{
		Post:            p,
		Category:        rule.Category,
		Confidence:      confidence,
		NeedScore:       s.Need,
		PersonalScore:   s.Personal,
		NeedMatches:     need.Matches,
		PersonalMatches: personal.Matches,
	}
}

// ClassifyAll classifies a batch and orders it: product needs first, then
// worth-looking, each by need score descending. Ties keep input order.
func (c *NeedClassifier) ClassifyAll(posts []domain.Post) []domain.NeedResult {
	lib := c.lib.Current()
	results := make([]domain.NeedResult, 0, len(posts))
	for _, p := range posts {
		results = append(results, classifyNeed(lib, p))
	}
	SortNeedResults(results)
	return results
}

func SortNeedResults(results []domain.NeedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		ap, bp := a.Category == domain.NeedProduct, b.Category == domain.NeedProduct
		if ap != bp {
			return ap
		}
		aw, bw := a.Category == domain.NeedWorthLooking, b.Category == domain.NeedWorthLooking
		if aw != bw {
			return aw
		}
		return a.NeedScore > b.NeedScore
	})
}
