// Package reddit harvests posts from Reddit's public search JSON.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"taskradar/internal/domain"
	"taskradar/internal/httpx"
)

const (
	DefaultBaseURL   = "https://www.reddit.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// DefaultTaskKeyword is the search query used to find client requests
	// matching a developer skill set.
	DefaultTaskKeyword = "scrape OR automation OR bot OR script OR chrome extension OR web app " +
		"OR tool OR n8n OR workflow OR API OR data extraction OR python " +
		"OR javascript OR web scraping OR automate OR dashboard OR telegram bot"

	SortNew       = "new"
	SortRelevance = "relevance"

	maxLimit      = 100
	maxTextLen    = 500
	searchTimeout = 15 * time.Second
	verifyTimeout = 5 * time.Second
)

var DefaultTaskSubreddits = []string{"slavelabour", "forhire", "hiring", "freelance"}

var validTimeFilters = map[string]bool{
	"hour": true, "day": true, "week": true, "month": true, "year": true, "all": true,
}

// ValidTimeFilter reports whether t is a recency window Reddit accepts.
func ValidTimeFilter(t string) bool {
	return validTimeFilters[t]
}

type Query struct {
	Subreddit  string
	Keyword    string
	Limit      int
	TimeFilter string
	Sort       string
}

// FetchError describes one subreddit query that failed. Status is zero when
// no response was received.
type FetchError struct {
	Subreddit string `json:"subreddit"`
	URL       string `json:"url"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error"`
}

type Client struct {
	baseURL   string
	userAgent string

	searchPacer *rate.Limiter
	verifyPacer *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPacing overrides the minimum gap between search and verify calls.
func WithPacing(search, verify time.Duration) Option {
	return func(c *Client) {
		c.searchPacer = newPacer(search)
		c.verifyPacer = newPacer(verify)
	}
}

func newPacer(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

func NewClient(userAgent string, opts ...Option) *Client {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	c := &Client{
		baseURL:     DefaultBaseURL,
		userAgent:   userAgent,
		searchPacer: newPacer(time.Second),
		verifyPacer: newPacer(300 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string  `json:"kind"`
			Data rawPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type rawPost struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Selftext          string  `json:"selftext"`
	Score             int     `json:"score"`
	NumComments       int     `json:"num_comments"`
	Permalink         string  `json:"permalink"`
	CreatedUTC        float64 `json:"created_utc"`
	Subreddit         string  `json:"subreddit"`
	Author            string  `json:"author"`
	LinkFlairText     *string `json:"link_flair_text"`
	RemovedByCategory *string `json:"removed_by_category"`
	Removed           bool    `json:"removed"`
}

func (c *Client) searchURL(q Query) string {
	limit := q.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	params := url.Values{}
	params.Set("q", q.Keyword)
	params.Set("restrict_sr", "on")
	params.Set("sort", q.Sort)
	params.Set("t", q.TimeFilter)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("type", "link")
	return fmt.Sprintf("%s/r/%s/search.json?%s", c.baseURL, url.PathEscape(q.Subreddit), params.Encode())
}

// Search runs one subreddit query. Records that are not link posts, were
// removed, or lack an ID, title or permalink are skipped.
func (c *Client) Search(ctx context.Context, q Query) ([]domain.Post, error) {
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	if q.TimeFilter == "" {
		q.TimeFilter = "week"
	}
	if err := c.searchPacer.Wait(ctx); err != nil {
		return nil, err
	}

	apiURL := c.searchURL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httpx.Do(req, searchTimeout)
	if err != nil {
		return nil, &searchError{url: apiURL, err: fmt.Errorf("fetching r/%s: %w", q.Subreddit, err)}
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &searchError{url: apiURL, err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &searchError{url: apiURL, status: resp.StatusCode, err: fmt.Errorf("reddit returned %d for r/%s", resp.StatusCode, q.Subreddit)}
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, &searchError{url: apiURL, err: fmt.Errorf("parsing response: %w", err)}
	}

	posts := make([]domain.Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		p, ok := toPost(child.Data, q.Subreddit)
		if !ok {
			continue
		}
		posts = append(posts, p)
	}
	log.Printf("reddit search sub=%s raw=%d kept=%d", q.Subreddit, len(l.Data.Children), len(posts))
	return posts, nil
}

func toPost(r rawPost, fallbackSub string) (domain.Post, bool) {
	if r.Removed || (r.RemovedByCategory != nil && *r.RemovedByCategory != "") {
		return domain.Post{}, false
	}
	if r.ID == "" || r.Title == "" || r.Permalink == "" {
		return domain.Post{}, false
	}
	sub := r.Subreddit
	if sub == "" {
		sub = fallbackSub
	}
	author := r.Author
	if author == "" {
		author = "[deleted]"
	}
	flair := ""
	if r.LinkFlairText != nil {
		flair = *r.LinkFlairText
	}
	return domain.Post{
		ID:          r.ID,
		Title:       r.Title,
		Text:        truncateRunes(r.Selftext, maxTextLen),
		Score:       r.Score,
		NumComments: r.NumComments,
		URL:         "https://www.reddit.com" + r.Permalink,
		Subreddit:   sub,
		Author:      author,
		Flair:       flair,
		Created:     unixSeconds(r.CreatedUTC),
	}, true
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type searchError struct {
	url    string
	status int
	err    error
}

func (e *searchError) Error() string { return e.err.Error() }
func (e *searchError) Unwrap() error { return e.err }

// SearchTasks queries each subreddit newest-first, then merges the results
// newest first with duplicates dropped. A failing subreddit contributes no
// posts and one FetchError.
func (c *Client) SearchTasks(ctx context.Context, subreddits []string, keyword string, limit int, timeFilter string) ([]domain.Post, []FetchError) {
	if len(subreddits) == 0 {
		subreddits = DefaultTaskSubreddits
	}
	if strings.TrimSpace(keyword) == "" {
		keyword = DefaultTaskKeyword
	}

	var all []domain.Post
	var failures []FetchError
	for _, sub := range subreddits {
		posts, err := c.Search(ctx, Query{Subreddit: sub, Keyword: keyword, Limit: limit, TimeFilter: timeFilter, Sort: SortNew})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("reddit task fetch failed sub=%s err=%v", sub, err)
			failures = append(failures, toFetchError(sub, err))
			continue
		}
		all = append(all, posts...)
	}
	return MergeNewest(all), failures
}

func toFetchError(sub string, err error) FetchError {
	fe := FetchError{Subreddit: sub, Error: err.Error()}
	var se *searchError
	if errors.As(err, &se) {
		fe.URL = se.url
		fe.Status = se.status
	}
	return fe
}

// MergeNewest sorts posts newest first and keeps the first record per ID.
func MergeNewest(posts []domain.Post) []domain.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Created.After(posts[j].Created)
	})
	seen := make(map[string]bool, len(posts))
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// Verify checks the first max posts still resolve and drops those that do
// not. Posts beyond max pass through unchecked.
func (c *Client) Verify(ctx context.Context, posts []domain.Post, max int) []domain.Post {
	out := make([]domain.Post, 0, len(posts))
	for i, p := range posts {
		if i >= max {
			out = append(out, p)
			continue
		}
		if c.exists(ctx, p.ID) {
			out = append(out, p)
		} else {
			log.Printf("reddit verify dropped id=%s", p.ID)
		}
	}
	return out
}

func (c *Client) exists(ctx context.Context, id string) bool {
	if err := c.verifyPacer.Wait(ctx); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/comments/%s.json", c.baseURL, url.PathEscape(id)), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := httpx.Do(req, verifyTimeout)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	return len(payload) > 0
}
