package classify

import (
	"sort"
	"strings"
	"time"

	"taskradar/internal/domain"
	"taskradar/internal/freshness"
	"taskradar/internal/patterns"
)

const (
	DefaultTagBonus = 1

	offerConfidence = 0.1
)

// TaskSignals are the inputs of the task decision list. Skill already
// includes the tag bonus.
type TaskSignals struct {
	Skill   int
	Danger  int
	Offer   int
	NonTech int
}

// TaskRules is the task decision list. Danger outranks everything so a
// risky post is never notified.
var TaskRules = []Rule[TaskSignals, domain.TaskCategory]{
	{
		Name:       "danger",
		When:       func(s TaskSignals) bool { return s.Danger > 0 },
		Category:   domain.TaskDanger,
		Confidence: func(s TaskSignals) float64 { return ratio(s.Danger, 3) },
	},
	{
		Name:       "self_promotion",
		When:       func(s TaskSignals) bool { return s.Offer >= 1 },
		Category:   domain.TaskIrrelevant,
		Confidence: fixed[TaskSignals](0.8),
	},
	{
		Name:       "non_technical",
		When:       func(s TaskSignals) bool { return s.NonTech >= 1 && s.Skill <= 1 },
		Category:   domain.TaskIrrelevant,
		Confidence: fixed[TaskSignals](0.6),
	},
	{
		Name:       "skill_match",
		When:       func(s TaskSignals) bool { return s.Skill >= 2 },
		Category:   domain.TaskSkillMatch,
		Confidence: func(s TaskSignals) float64 { return ratio(s.Skill, 5) },
	},
	{
		Name:       "maybe_match",
		When:       func(s TaskSignals) bool { return s.Skill == 1 },
		Category:   domain.TaskMaybeMatch,
		Confidence: fixed[TaskSignals](0.4),
	},
	{
		Name:       "fallback",
		When:       always[TaskSignals],
		Category:   domain.TaskIrrelevant,
		Confidence: fixed[TaskSignals](0.2),
	},
}

type TaskClassifier struct {
	lib      LibrarySource
	tagBonus int
	now      func() time.Time
}

type TaskOption func(*TaskClassifier)

// WithTagBonus sets the skill points awarded to posts whose flair marks
// them as a task.
func WithTagBonus(n int) TaskOption {
	return func(c *TaskClassifier) { c.tagBonus = n }
}

func WithClock(now func() time.Time) TaskOption {
	return func(c *TaskClassifier) { c.now = now }
}

func NewTaskClassifier(lib LibrarySource, opts ...TaskOption) *TaskClassifier {
	c := &TaskClassifier{lib: lib, tagBonus: DefaultTagBonus, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsOfferPost reports a freelancer advertising services rather than a
// client asking for work.
func IsOfferPost(p domain.Post) bool {
	title := strings.ToLower(p.Title)
	flair := strings.ToLower(p.Flair)
	return strings.Contains(title, "[for hire]") ||
		strings.Contains(title, "[offer]") ||
		strings.Contains(flair, "for hire") ||
		strings.Contains(flair, "offer")
}

// IsTaskFlair reports flair that marks a client request.
func IsTaskFlair(flair string) bool {
	flair = strings.ToLower(flair)
	return strings.Contains(flair, "task") ||
		strings.Contains(flair, "hiring") ||
		strings.Contains(flair, "job")
}

func (c *TaskClassifier) Classify(p domain.Post) domain.TaskResult {
	return c.classify(c.lib.Current(), c.now(), p)
}

func (c *TaskClassifier) classify(lib *patterns.Library, now time.Time, p domain.Post) domain.TaskResult {
	label, minutes := freshness.Evaluate(p.Created, now)

	if IsOfferPost(p) {
		return domain.TaskResult{
			Post:             p,
			Category:         domain.TaskIrrelevant,
			Confidence:       offerConfidence,
			SkillMatches:     []string{},
			DangerMatches:    []string{},
			FreshnessLabel:   label,
			FreshnessMinutes: minutes,
		}
	}

	text := p.FullText()
	skill := lib.Set(patterns.SetSkill).Score(text)
	danger := lib.Set(patterns.SetDanger).Score(text)

	s := TaskSignals{
		Skill:   skill.Score,
		Danger:  danger.Score,
		Offer:   lib.Set(patterns.SetOffer).Score(text).Score,
		NonTech: lib.Set(patterns.SetNonTech).Score(text).Score,
	}
	tagged := IsTaskFlair(p.Flair)
	if tagged {
		s.Skill += c.tagBonus
	}
	rule, confidence, _ := evaluate(TaskRules, s)

	return domain.TaskResult{
		Post:             p,
		Category:         rule.Category,
		Confidence:       confidence,
		SkillScore:       s.Skill,
		DangerScore:      s.Danger,
		SkillMatches:     skill.Matches,
		DangerMatches:    danger.Matches,
		TagBonus:         tagged,
		Budget:           ExtractBudget(text),
		FreshnessLabel:   label,
		FreshnessMinutes: minutes,
	}
}

// ClassifyAll classifies a batch against one library snapshot and one
// clock reading, then orders it by category rank and freshness.
func (c *TaskClassifier) ClassifyAll(posts []domain.Post) []domain.TaskResult {
	lib := c.lib.Current()
	now := c.now()
	results := make([]domain.TaskResult, 0, len(posts))
	for _, p := range posts {
		results = append(results, c.classify(lib, now, p))
	}
	SortTaskResults(results)
	return results
}

func SortTaskResults(results []domain.TaskResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
			return ra < rb
		}
		return a.FreshnessMinutes < b.FreshnessMinutes
	})
}
