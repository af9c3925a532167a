package domain

import "encoding/json"

type NeedCategory string

const (
	NeedProduct       NeedCategory = "product_need"
	NeedPersonalIssue NeedCategory = "personal_issue"
	NeedWorthLooking  NeedCategory = "worth_looking"
	NeedUnclear       NeedCategory = "unclear"
)

// NeedCategories lists the general-need enumeration in display order.
var NeedCategories = []NeedCategory{NeedProduct, NeedPersonalIssue, NeedWorthLooking, NeedUnclear}

type TaskCategory string

const (
	TaskSkillMatch TaskCategory = "skill_match"
	TaskMaybeMatch TaskCategory = "maybe_match"
	TaskIrrelevant TaskCategory = "irrelevant"
	TaskDanger     TaskCategory = "danger"
)

// TaskCategories lists the task enumeration in sort rank order.
var TaskCategories = []TaskCategory{TaskSkillMatch, TaskMaybeMatch, TaskIrrelevant, TaskDanger}

// Rank is the task batch sort key; unknown categories sort last.
func (c TaskCategory) Rank() int {
	switch c {
	case TaskSkillMatch:
		return 0
	case TaskMaybeMatch:
		return 1
	case TaskIrrelevant:
		return 2
	case TaskDanger:
		return 3
	default:
		return 9
	}
}

// Notifiable reports whether posts in this category are pushed to channels.
func (c TaskCategory) Notifiable() bool {
	return c == TaskSkillMatch || c == TaskMaybeMatch
}

// NeedResult is a post classified by the general-need classifier.
type NeedResult struct {
	Post
	Category        NeedCategory `json:"category"`
	Confidence      float64      `json:"confidence"`
	NeedScore       int          `json:"need_score"`
	PersonalScore   int          `json:"personal_score"`
	NeedMatches     []string     `json:"need_matches"`
	PersonalMatches []string     `json:"personal_matches"`
}

// TaskResult is a post classified by the task-skill classifier. It is
// never mutated after the classifier returns it.
type TaskResult struct {
	Post
	Category         TaskCategory `json:"task_category"`
	Confidence       float64      `json:"confidence"`
	SkillScore       int          `json:"skill_score"`
	DangerScore      int          `json:"danger_score"`
	SkillMatches     []string     `json:"skill_matches"`
	DangerMatches    []string     `json:"danger_matches"`
	TagBonus         bool         `json:"tag_bonus"`
	Budget           *float64     `json:"budget"`
	FreshnessLabel   string       `json:"freshness_label"`
	FreshnessMinutes int          `json:"freshness_minutes"`
}

// Analysis is the structured verdict returned by the enrichment service.
type Analysis struct {
	WorthTaking     bool     `json:"worth_taking"`
	Confidence      float64  `json:"confidence"`
	RequiredSkills  []string `json:"required_skills"`
	EstimatedHours  float64  `json:"estimated_hours"`
	SuggestedBidUSD float64  `json:"suggested_bid_usd"`
	Difficulty      string   `json:"difficulty"`
	RedFlags        []string `json:"red_flags"`
	Summary         string   `json:"summary"`
	ReplyDraft      string   `json:"reply_draft"`
}

// EnrichedPost wraps a TaskResult with an optional analysis. A rejected
// post reports TaskIrrelevant from EffectiveCategory while the wrapped
// result keeps the regex classification.
type EnrichedPost struct {
	TaskResult
	Analysis *Analysis `json:"llm_analysis,omitempty"`
	Rejected bool      `json:"llm_rejected,omitempty"`
}

func (p EnrichedPost) EffectiveCategory() TaskCategory {
	if p.Rejected {
		return TaskIrrelevant
	}
	return p.TaskResult.Category
}

// MarshalJSON reports the effective category as task_category and keeps
// the classifier's verdict under regex_category.
func (p EnrichedPost) MarshalJSON() ([]byte, error) {
	type plain EnrichedPost
	return json.Marshal(struct {
		plain
		Category      TaskCategory `json:"task_category"`
		RegexCategory TaskCategory `json:"regex_category"`
	}{
		plain:         plain(p),
		Category:      p.EffectiveCategory(),
		RegexCategory: p.TaskResult.Category,
	})
}

// Wrap lifts classifier output into the enrichment phase without annotations.
func Wrap(results []TaskResult) []EnrichedPost {
	out := make([]EnrichedPost, len(results))
	for i, r := range results {
		out[i] = EnrichedPost{TaskResult: r}
	}
	return out
}
