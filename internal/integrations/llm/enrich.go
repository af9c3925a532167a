package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"taskradar/internal/domain"
	"taskradar/internal/metrics"
)

const (
	DefaultMaxAnalyze        = 5
	DefaultRequestsPerMinute = 20

	requestTimeout  = 30 * time.Second
	maxExcerptChars = 800
)

// DefaultSkillProfile describes the developer the analyst advises.
var DefaultSkillProfile = []string{
	"Web scraping (Python, Selenium, Playwright, BeautifulSoup)",
	"Browser extensions (Chrome extensions)",
	"Automation workflows (n8n, Make, Zapier)",
	"Web apps (Python FastAPI, JavaScript, React, Node.js)",
	"AI integrations (OpenAI API, RAG, chatbots)",
	"Data extraction and processing",
	"Telegram/Discord bots",
	"APIs and integrations",
}

// Stats counts what one Enrich call did.
type Stats struct {
	Candidates int `json:"candidates"`
	Attempted  int `json:"attempted"`
	Analyzed   int `json:"analyzed"`
	Rejected   int `json:"rejected"`
	Failed     int `json:"failed"`
}

type Enricher struct {
	provider     Provider
	maxAnalyze   int
	limiter      *rate.Limiter
	systemPrompt string
}

type EnricherOption func(*Enricher)

func WithMaxAnalyze(n int) EnricherOption {
	return func(e *Enricher) {
		if n >= 0 {
			e.maxAnalyze = n
		}
	}
}

// WithRequestsPerMinute paces provider calls. Zero disables pacing.
func WithRequestsPerMinute(n int) EnricherOption {
	return func(e *Enricher) {
		if n <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

func WithSkillProfile(skills []string) EnricherOption {
	return func(e *Enricher) {
		if len(skills) > 0 {
			e.systemPrompt = buildSystemPrompt(skills)
		}
	}
}

// NewEnricher returns an enricher around provider. A nil provider yields an
// enricher that passes posts through unannotated.
func NewEnricher(provider Provider, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		provider:     provider,
		maxAnalyze:   DefaultMaxAnalyze,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/DefaultRequestsPerMinute), 1),
		systemPrompt: buildSystemPrompt(DefaultSkillProfile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) Enabled() bool { return e != nil && e.provider != nil }

// Enrich wraps results and annotates up to maxAnalyze candidates, skill
// matches first, freshest first. The input slice is never modified; any
// failure leaves that post unannotated.
func (e *Enricher) Enrich(ctx context.Context, results []domain.TaskResult) ([]domain.EnrichedPost, Stats) {
	out := domain.Wrap(results)
	var stats Stats
	if !e.Enabled() {
		return out, stats
	}

	picked := selectCandidates(results)
	stats.Candidates = len(picked)
	if len(picked) > e.maxAnalyze {
		picked = picked[:e.maxAnalyze]
	}

	for _, idx := range picked {
		if err := e.limiter.Wait(ctx); err != nil {
			log.Printf("llm enrich stopped: %v", err)
			break
		}
		stats.Attempted++
		analysis, err := e.analyze(ctx, results[idx])
		if err != nil {
			stats.Failed++
			metrics.EnrichmentCalls.WithLabelValues("failed").Inc()
			log.Printf("llm enrich failed provider=%s id=%s err=%v", e.provider.Name(), results[idx].ID, err)
			continue
		}
		out[idx].Analysis = analysis
		stats.Analyzed++
		if !analysis.WorthTaking {
			out[idx].Rejected = true
			stats.Rejected++
			metrics.EnrichmentCalls.WithLabelValues("rejected").Inc()
		} else {
			metrics.EnrichmentCalls.WithLabelValues("analyzed").Inc()
		}
	}
	log.Printf("llm enrich done provider=%s candidates=%d analyzed=%d rejected=%d failed=%d",
		e.provider.Name(), stats.Candidates, stats.Analyzed, stats.Rejected, stats.Failed)
	return out, stats
}

func selectCandidates(results []domain.TaskResult) []int {
	var idx []int
	for i, r := range results {
		if r.Category.Notifiable() {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := results[idx[a]], results[idx[b]]
		if ra.Category != rb.Category {
			return ra.Category == domain.TaskSkillMatch
		}
		return ra.FreshnessMinutes < rb.FreshnessMinutes
	})
	return idx
}

func (e *Enricher) analyze(ctx context.Context, r domain.TaskResult) (*domain.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	text, err := e.provider.Complete(ctx, e.systemPrompt, buildUserPrompt(r))
	if err != nil {
		return nil, err
	}
	return parseAnalysis(text)
}

type analysisResponse struct {
	WorthTaking     *bool    `json:"worth_taking"`
	Confidence      float64  `json:"confidence"`
	RequiredSkills  []string `json:"required_skills"`
	EstimatedHours  float64  `json:"estimated_hours"`
	SuggestedBidUSD float64  `json:"suggested_bid_usd"`
	Difficulty      string   `json:"difficulty"`
	RedFlags        []string `json:"red_flags"`
	Summary         string   `json:"summary"`
	ReplyDraft      string   `json:"reply_draft"`
}

func (r analysisResponse) empty() bool {
	return r.WorthTaking == nil && r.Confidence == 0 && len(r.RequiredSkills) == 0 &&
		r.EstimatedHours == 0 && r.SuggestedBidUSD == 0 && r.Difficulty == "" &&
		len(r.RedFlags) == 0 && r.Summary == "" && r.ReplyDraft == ""
}

// parseAnalysis accepts a bare JSON object, optionally wrapped in a
// markdown code fence. A missing worth_taking counts as true, but an
// object carrying none of the analysis fields is rejected.
func parseAnalysis(responseText string) (*domain.Analysis, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return nil, fmt.Errorf("parsing LLM analysis: %w (response: %s)", err, truncate(responseText, 200))
	}
	if parsed.empty() {
		return nil, fmt.Errorf("LLM analysis has no recognized fields (response: %s)", truncate(responseText, 200))
	}
	worth := true
	if parsed.WorthTaking != nil {
		worth = *parsed.WorthTaking
	}
	return &domain.Analysis{
		WorthTaking:     worth,
		Confidence:      parsed.Confidence,
		RequiredSkills:  parsed.RequiredSkills,
		EstimatedHours:  parsed.EstimatedHours,
		SuggestedBidUSD: parsed.SuggestedBidUSD,
		Difficulty:      strings.ToLower(strings.TrimSpace(parsed.Difficulty)),
		RedFlags:        parsed.RedFlags,
		Summary:         strings.TrimSpace(parsed.Summary),
		ReplyDraft:      strings.TrimSpace(parsed.ReplyDraft),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
