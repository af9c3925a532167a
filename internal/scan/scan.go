// Package scan runs the harvest, classify, enrich and notify pipeline.
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskradar/internal/classify"
	"taskradar/internal/domain"
	"taskradar/internal/integrations/llm"
	"taskradar/internal/integrations/reddit"
	"taskradar/internal/metrics"
	"taskradar/internal/notify"
)

const (
	DefaultNeedSubreddit   = "SideProject"
	DefaultNeedKeyword     = "I wish"
	DefaultNeedTimeFilter  = "month"
	DefaultTaskTimeFilter  = "day"
	DefaultCycleTimeFilter = "week"
	DefaultLimit           = 50
	DefaultMaxVerify       = 10
)

// Source is the post harvester. *reddit.Client satisfies it.
type Source interface {
	Search(ctx context.Context, q reddit.Query) ([]domain.Post, error)
	SearchTasks(ctx context.Context, subreddits []string, keyword string, limit int, timeFilter string) ([]domain.Post, []reddit.FetchError)
	Verify(ctx context.Context, posts []domain.Post, max int) []domain.Post
}

// Enricher annotates classified task posts. *llm.Enricher satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, results []domain.TaskResult) ([]domain.EnrichedPost, llm.Stats)
}

// Notifier delivers newly qualifying posts. *notify.Coordinator satisfies it.
type Notifier interface {
	Notify(ctx context.Context, posts []domain.EnrichedPost) (notify.Outcome, error)
}

// Options are the defaults used when a request leaves a field empty and
// the settings of scheduled cycles.
type Options struct {
	TaskSubreddits  []string
	TaskKeyword     string
	CycleTimeFilter string
	CycleLimit      int
}

type Service struct {
	source   Source
	need     *classify.NeedClassifier
	task     *classify.TaskClassifier
	enricher Enricher
	notifier Notifier
	opts     Options
	now      func() time.Time
}

func NewService(source Source, need *classify.NeedClassifier, task *classify.TaskClassifier, enricher Enricher, notifier Notifier, opts Options) *Service {
	if enricher == nil {
		enricher = llm.NewEnricher(nil)
	}
	if opts.CycleTimeFilter == "" {
		opts.CycleTimeFilter = DefaultCycleTimeFilter
	}
	if opts.CycleLimit <= 0 {
		opts.CycleLimit = DefaultLimit
	}
	return &Service{
		source:   source,
		need:     need,
		task:     task,
		enricher: enricher,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

type NeedParams struct {
	Subreddit   string
	Keyword     string
	Limit       int
	TimeFilter  string
	UseMock     bool
	VerifyLinks bool
	MaxVerify   int
}

// DefaultNeedParams mirrors the query defaults of the need scan endpoint.
func DefaultNeedParams() NeedParams {
	return NeedParams{
		Subreddit:   DefaultNeedSubreddit,
		Keyword:     DefaultNeedKeyword,
		Limit:       DefaultLimit,
		TimeFilter:  DefaultNeedTimeFilter,
		VerifyLinks: true,
		MaxVerify:   DefaultMaxVerify,
	}
}

type NeedStats struct {
	Total          int `json:"total"`
	ProductNeeds   int `json:"product_needs"`
	PersonalIssues int `json:"personal_issues"`
	WorthLooking   int `json:"worth_looking"`
	Unclear        int `json:"unclear"`
}

type NeedScanResult struct {
	Stats   NeedStats           `json:"stats"`
	Posts   []domain.NeedResult `json:"posts"`
	Message string              `json:"message,omitempty"`
}

// NeedScan harvests one subreddit (or the mock set) and classifies it with
// the general-need classifier.
func (s *Service) NeedScan(ctx context.Context, p NeedParams) NeedScanResult {
	var posts []domain.Post
	if p.UseMock {
		posts = MockPosts(s.now(), p.Limit)
	} else {
		var err error
		posts, err = s.source.Search(ctx, reddit.Query{
			Subreddit:  p.Subreddit,
			Keyword:    p.Keyword,
			Limit:      p.Limit,
			TimeFilter: p.TimeFilter,
			Sort:       reddit.SortRelevance,
		})
		if err != nil {
			metrics.SourceErrors.Inc()
			log.Printf("need scan fetch failed sub=%s err=%v", p.Subreddit, err)
		}
		if p.VerifyLinks && len(posts) > 0 {
			log.Printf("need scan verifying first %d post URLs", p.MaxVerify)
			posts = s.source.Verify(ctx, posts, p.MaxVerify)
		}
	}
	metrics.PostsHarvested.WithLabelValues("need").Add(float64(len(posts)))

	if len(posts) == 0 {
		return NeedScanResult{
			Posts:   []domain.NeedResult{},
			Message: "No posts found. Please check subreddit name or keywords.",
		}
	}

	classified := s.need.ClassifyAll(posts)
	res := NeedScanResult{Stats: NeedStats{Total: len(classified)}, Posts: classified}
	for _, r := range classified {
		metrics.PostsClassified.WithLabelValues("need", string(r.Category)).Inc()
		switch r.Category {
		case domain.NeedProduct:
			res.Stats.ProductNeeds++
		case domain.NeedPersonalIssue:
			res.Stats.PersonalIssues++
		case domain.NeedWorthLooking:
			res.Stats.WorthLooking++
		case domain.NeedUnclear:
			res.Stats.Unclear++
		}
	}
	return res
}

type TaskParams struct {
	Subreddits []string
	Keyword    string
	Limit      int
	TimeFilter string
}

type TaskStats struct {
	Total      int `json:"total"`
	SkillMatch int `json:"skill_match"`
	MaybeMatch int `json:"maybe_match"`
	Irrelevant int `json:"irrelevant"`
	Danger     int `json:"danger"`
}

func (s *TaskStats) add(c domain.TaskCategory) {
	s.Total++
	switch c {
	case domain.TaskSkillMatch:
		s.SkillMatch++
	case domain.TaskMaybeMatch:
		s.MaybeMatch++
	case domain.TaskIrrelevant:
		s.Irrelevant++
	case domain.TaskDanger:
		s.Danger++
	}
}

type TaskScanResult struct {
	Stats      TaskStats             `json:"stats"`
	Posts      []domain.EnrichedPost `json:"posts"`
	Message    string                `json:"message,omitempty"`
	Errors     []reddit.FetchError   `json:"errors,omitempty"`
	Enrichment llm.Stats             `json:"enrichment"`
}

// TaskScan harvests task subreddits, classifies and enriches the posts.
// Stats count effective categories, so enrichment rejections land in
// irrelevant.
func (s *Service) TaskScan(ctx context.Context, p TaskParams) TaskScanResult {
	subs := p.Subreddits
	if len(subs) == 0 {
		subs = s.opts.TaskSubreddits
	}
	keyword := strings.TrimSpace(p.Keyword)
	if keyword == "" {
		keyword = s.opts.TaskKeyword
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.TimeFilter == "" {
		p.TimeFilter = DefaultTaskTimeFilter
	}

	posts, failures := s.source.SearchTasks(ctx, subs, keyword, p.Limit, p.TimeFilter)
	metrics.PostsHarvested.WithLabelValues("task").Add(float64(len(posts)))
	metrics.SourceErrors.Add(float64(len(failures)))

	res := TaskScanResult{Posts: []domain.EnrichedPost{}, Errors: failures}
	if len(posts) == 0 {
		res.Message = "No TASK posts found."
		return res
	}

	classified := s.task.ClassifyAll(posts)
	for _, r := range classified {
		metrics.PostsClassified.WithLabelValues("task", string(r.Category)).Inc()
	}
	res.Posts, res.Enrichment = s.enricher.Enrich(ctx, classified)
	for _, ep := range res.Posts {
		res.Stats.add(ep.EffectiveCategory())
	}
	return res
}

// CycleResult reports one scan-and-notify cycle.
type CycleResult struct {
	ID           string                `json:"cycle_id"`
	TotalScanned int                   `json:"total_scanned"`
	NewMatches   int                   `json:"new_matches"`
	Notified     bool                  `json:"notified"`
	Posts        []domain.EnrichedPost `json:"posts"`
	Errors       []reddit.FetchError   `json:"errors,omitempty"`
	Enrichment   llm.Stats             `json:"enrichment"`
	Message      string                `json:"message,omitempty"`
}

// ScanAndNotify runs a task scan with the configured defaults and hands the
// result to the notifier. It fails when every subreddit query failed or the
// notified set could not be consulted; the returned result is still usable
// and carries a Message in that case.
func (s *Service) ScanAndNotify(ctx context.Context) (CycleResult, error) {
	start := s.now()
	res := CycleResult{ID: uuid.NewString(), Posts: []domain.EnrichedPost{}}
	defer func() {
		metrics.CycleDuration.Observe(s.now().Sub(start).Seconds())
	}()

	log.Printf("scan cycle start id=%s", res.ID)
	scanned := s.TaskScan(ctx, TaskParams{Limit: s.opts.CycleLimit, TimeFilter: s.opts.CycleTimeFilter})
	res.TotalScanned = scanned.Stats.Total
	res.Errors = scanned.Errors
	res.Enrichment = scanned.Enrichment

	if res.TotalScanned == 0 && len(res.Errors) > 0 {
		var msgs []string
		for _, fe := range res.Errors {
			msgs = append(msgs, fmt.Sprintf("r/%s: %s", fe.Subreddit, fe.Error))
		}
		res.Message = "No TASK posts found: every subreddit query failed."
		return res, fmt.Errorf("all fetches failed: %s", strings.Join(msgs, "; "))
	}

	out, err := s.notifier.Notify(ctx, scanned.Posts)
	if err != nil {
		res.Message = "Notification skipped: the notified set is unavailable."
		return res, fmt.Errorf("notify: %w", err)
	}
	res.NewMatches = len(out.New)
	res.Notified = out.Delivered

	fresh := make(map[string]bool, len(out.New))
	for _, id := range out.New {
		fresh[id] = true
	}
	for _, p := range scanned.Posts {
		if fresh[p.ID] {
			res.Posts = append(res.Posts, p)
		}
	}
	log.Printf("scan cycle done id=%s scanned=%d new=%d notified=%t", res.ID, res.TotalScanned, res.NewMatches, res.Notified)
	return res, nil
}

// FormatCycleSummary returns a human-readable summary of a CycleResult.
func FormatCycleSummary(res CycleResult) string {
	var warnings []string
	for _, fe := range res.Errors {
		warnings = append(warnings, fmt.Sprintf("r/%s: %s", fe.Subreddit, fe.Error))
	}
	if res.TotalScanned == 0 && len(warnings) > 0 {
		return fmt.Sprintf("Error fetching task posts:\n%s", strings.Join(warnings, "\n"))
	}

	var msg string
	if res.NewMatches == 0 {
		msg = fmt.Sprintf("Scanned %d posts, no new matching tasks.", res.TotalScanned)
	} else {
		status := "delivered"
		if !res.Notified {
			status = "not delivered"
		}
		msg = fmt.Sprintf("Scanned %d posts: %d new matching tasks (%s).", res.TotalScanned, res.NewMatches, status)
	}
	if res.Enrichment.Attempted > 0 {
		msg += fmt.Sprintf("\nAI analysis: %d analyzed, %d rejected, %d failed.",
			res.Enrichment.Analyzed, res.Enrichment.Rejected, res.Enrichment.Failed)
	}
	if len(warnings) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(warnings, "\n"))
	}
	return msg
}
