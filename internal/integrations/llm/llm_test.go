package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskradar/internal/domain"
)

type fakeProvider struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   []string
	prompts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, _, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, user)
	for id, err := range f.errs {
		if strings.Contains(user, "Title: "+id+"\n") {
			f.calls = append(f.calls, id)
			return "", err
		}
	}
	for id, reply := range f.replies {
		if strings.Contains(user, "Title: "+id+"\n") {
			f.calls = append(f.calls, id)
			return reply, nil
		}
	}
	f.calls = append(f.calls, "?")
	return `{"worth_taking": true, "confidence": 0.5}`, nil
}

func result(id string, cat domain.TaskCategory, conf float64, minutes int) domain.TaskResult {
	return domain.TaskResult{
		Post:             domain.Post{ID: id, Title: id, Subreddit: "slavelabour"},
		Category:         cat,
		Confidence:       conf,
		FreshnessMinutes: minutes,
	}
}

func newTestEnricher(p Provider, opts ...EnricherOption) *Enricher {
	return NewEnricher(p, append([]EnricherOption{WithRequestsPerMinute(0)}, opts...)...)
}

func TestEnrichMalformedJSONLeavesClassificationUntouched(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{"a": "this is not json {"}}
	in := []domain.TaskResult{result("a", domain.TaskSkillMatch, 0.6, 5)}

	out, stats := newTestEnricher(p).Enrich(context.Background(), in)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Analysis)
	assert.False(t, out[0].Rejected)
	assert.Equal(t, domain.TaskSkillMatch, out[0].EffectiveCategory())
	assert.Equal(t, 0.6, out[0].Confidence)
	assert.Equal(t, 1, stats.Failed)
}

func TestEnrichEmptyReplyCountsAsFailure(t *testing.T) {
	for _, reply := range []string{"null", "{}", `{"unexpected": 1}`, "```json\n{}\n```"} {
		p := &fakeProvider{replies: map[string]string{"a": reply}}
		in := []domain.TaskResult{result("a", domain.TaskSkillMatch, 0.6, 5)}

		out, stats := newTestEnricher(p).Enrich(context.Background(), in)

		require.Len(t, out, 1, reply)
		assert.Nil(t, out[0].Analysis, reply)
		assert.Equal(t, domain.TaskSkillMatch, out[0].EffectiveCategory(), reply)
		assert.Equal(t, 1, stats.Failed, reply)
		assert.Zero(t, stats.Analyzed, reply)
	}
}

func TestEnrichRejectionWrapsWithoutMutating(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{
		"a": "```json\n{\"worth_taking\": false, \"red_flags\": [\"account access\"], \"difficulty\": \"Easy\"}\n```",
	}}
	in := []domain.TaskResult{result("a", domain.TaskSkillMatch, 0.8, 5)}

	out, stats := newTestEnricher(p).Enrich(context.Background(), in)

	require.NotNil(t, out[0].Analysis)
	assert.True(t, out[0].Rejected)
	assert.Equal(t, domain.TaskIrrelevant, out[0].EffectiveCategory())
	assert.Equal(t, domain.TaskSkillMatch, out[0].TaskResult.Category)
	assert.Equal(t, domain.TaskSkillMatch, in[0].Category)
	assert.Equal(t, []string{"account access"}, out[0].Analysis.RedFlags)
	assert.Equal(t, "easy", out[0].Analysis.Difficulty)
	assert.Equal(t, 1, stats.Rejected)
}

func TestEnrichCapsAndPrioritizes(t *testing.T) {
	p := &fakeProvider{}
	in := []domain.TaskResult{
		result("maybe-fresh", domain.TaskMaybeMatch, 0.4, 1),
		result("skill-old", domain.TaskSkillMatch, 0.6, 300),
		result("danger", domain.TaskDanger, 0.33, 0),
		result("skill-new", domain.TaskSkillMatch, 0.6, 10),
		result("irrelevant", domain.TaskIrrelevant, 0.2, 0),
		result("maybe-old", domain.TaskMaybeMatch, 0.4, 50),
	}

	_, stats := newTestEnricher(p, WithMaxAnalyze(3)).Enrich(context.Background(), in)

	assert.Equal(t, 4, stats.Candidates)
	assert.Equal(t, 3, stats.Attempted)
	require.Len(t, p.prompts, 3)
	assert.Contains(t, p.prompts[0], "Title: skill-new\n")
	assert.Contains(t, p.prompts[1], "Title: skill-old\n")
	assert.Contains(t, p.prompts[2], "Title: maybe-fresh\n")
}

func TestEnrichContinuesAfterProviderError(t *testing.T) {
	p := &fakeProvider{
		errs:    map[string]error{"a": errors.New("timeout")},
		replies: map[string]string{"b": `{"worth_taking": true, "summary": "needs a scraper"}`},
	}
	in := []domain.TaskResult{
		result("a", domain.TaskSkillMatch, 0.6, 1),
		result("b", domain.TaskSkillMatch, 0.6, 2),
	}

	out, stats := newTestEnricher(p).Enrich(context.Background(), in)

	assert.Nil(t, out[0].Analysis)
	require.NotNil(t, out[1].Analysis)
	assert.Equal(t, "needs a scraper", out[1].Analysis.Summary)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Analyzed)
}

func TestEnrichWithoutProviderIsNoop(t *testing.T) {
	in := []domain.TaskResult{result("a", domain.TaskSkillMatch, 0.6, 1)}
	out, stats := NewEnricher(nil).Enrich(context.Background(), in)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Analysis)
	assert.Zero(t, stats.Attempted)
}

func TestNewProviderWithoutKeyReturnsNil(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ProviderConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewProvider(ProviderConfig{Provider: "bard", OpenAIAPIKey: "k"})
	assert.Error(t, err)
}

func TestParseAnalysisDefaultsWorthTaking(t *testing.T) {
	a, err := parseAnalysis(`{"confidence": 0.9, "suggested_bid_usd": 40}`)
	require.NoError(t, err)
	assert.True(t, a.WorthTaking)
	assert.Equal(t, 40.0, a.SuggestedBidUSD)

	_, err = parseAnalysis(`["not", "an", "object"]`)
	assert.Error(t, err)

	_, err = parseAnalysis("null")
	assert.Error(t, err)

	a, err = parseAnalysis(`{"worth_taking": false}`)
	require.NoError(t, err)
	assert.False(t, a.WorthTaking)
}

func TestBuildUserPrompt(t *testing.T) {
	budget := 75.0
	r := result("Need a scraper", domain.TaskSkillMatch, 0.6, 5)
	r.Text = strings.Repeat("a", 1000)
	r.Budget = &budget
	r.FreshnessLabel = "5 min ago - GO NOW!"

	got := buildUserPrompt(r)
	assert.Contains(t, got, "Reddit Post from r/slavelabour:")
	assert.Contains(t, got, "Content: "+strings.Repeat("a", 800)+"\n")
	assert.NotContains(t, got, strings.Repeat("a", 801))
	assert.Contains(t, got, "Budget mentioned: $75")
	assert.Contains(t, got, "Freshness: 5 min ago - GO NOW!")
}

func TestSystemPromptCarriesSkillProfile(t *testing.T) {
	got := buildSystemPrompt([]string{"Go services", " "})
	assert.Contains(t, got, "- Go services\n")
	assert.Contains(t, got, "Keep reply_draft under 100 words")
	assert.Contains(t, got, "minimum $20")
}

func TestOpenAIProviderAgainstCompatibleServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"worth_taking\":true}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider("sk-test", "m", server.URL+"/v1/chat/completions")
	got, err := p.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"worth_taking":true}`, got)
}
