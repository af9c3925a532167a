package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskradar/internal/classify"
	"taskradar/internal/domain"
	"taskradar/internal/integrations/reddit"
	"taskradar/internal/ledger"
	"taskradar/internal/notify"
	"taskradar/internal/patterns"
	"taskradar/internal/scan"
)

type stubScanner struct {
	mu       sync.Mutex
	needGot  scan.NeedParams
	taskGot  scan.TaskParams
	cycleErr error
	cycleRes scan.CycleResult
	taskRes  scan.TaskScanResult
	needRes  scan.NeedScanResult
}

func (s *stubScanner) NeedScan(_ context.Context, p scan.NeedParams) scan.NeedScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needGot = p
	return s.needRes
}

func (s *stubScanner) TaskScan(_ context.Context, p scan.TaskParams) scan.TaskScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskGot = p
	return s.taskRes
}

func (s *stubScanner) ScanAndNotify(context.Context) (scan.CycleResult, error) {
	return s.cycleRes, s.cycleErr
}

type stubScheduler struct {
	running bool
	starts  int
	cron    string
}

func (s *stubScheduler) Start(context.Context) bool {
	if s.running {
		return false
	}
	s.running = true
	s.starts++
	return true
}
func (s *stubScheduler) Stop()         { s.running = false }
func (s *stubScheduler) Running() bool { return s.running }

func (s *stubScheduler) Interval() time.Duration {
	if s.cron != "" {
		return 0
	}
	return 30 * time.Minute
}

func (s *stubScheduler) Schedule() string {
	if s.cron != "" {
		return s.cron
	}
	return "every 30m0s"
}

type stubLedger struct {
	n   int
	err error
}

func (l *stubLedger) Clear(context.Context) (int, error) {
	n := l.n
	l.n = 0
	return n, l.err
}
func (l *stubLedger) Len(context.Context) (int, error) { return l.n, nil }

type harness struct {
	router    *gin.Engine
	scanner   *stubScanner
	scheduler *stubScheduler
	ledger    *stubLedger
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	h := &harness{scanner: &stubScanner{}, scheduler: &stubScheduler{}, ledger: &stubLedger{n: 3}}
	h.router = NewServer(context.Background(), h.scanner, h.scheduler, h.ledger).Router()
	return h
}

func (h *harness) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealthAndCORS(t *testing.T) {
	h := newHarness()
	w, body := h.do(t, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w, _ = h.do(t, http.MethodOptions, "/api/tasks")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNeedScanDefaultsAndOverrides(t *testing.T) {
	h := newHarness()
	h.scanner.needRes = scan.NeedScanResult{Posts: []domain.NeedResult{}, Message: "No posts found. Please check subreddit name or keywords."}

	w, body := h.do(t, http.MethodGet, "/api/scan")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scan.DefaultNeedParams(), h.scanner.needGot)
	assert.Equal(t, "No posts found. Please check subreddit name or keywords.", body["message"])
	assert.Contains(t, body, "stats")

	_, _ = h.do(t, http.MethodGet, "/api/scan?subreddit=startups&keyword=need&limit=5&time_filter=week&use_mock=true&verify_links=false&max_verify=3")
	assert.Equal(t, scan.NeedParams{Subreddit: "startups", Keyword: "need", Limit: 5, TimeFilter: "week", UseMock: true, MaxVerify: 3}, h.scanner.needGot)
}

func TestNeedScanRejectsBadQuery(t *testing.T) {
	h := newHarness()
	for _, q := range []string{"limit=abc", "limit=0", "limit=101", "time_filter=decade", "use_mock=maybe"} {
		w, body := h.do(t, http.MethodGet, "/api/scan?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.NotEmpty(t, body["error"], q)
	}
}

func TestTaskScanParsesSubreddits(t *testing.T) {
	h := newHarness()
	h.scanner.taskRes = scan.TaskScanResult{Stats: scan.TaskStats{Total: 1, SkillMatch: 1}, Posts: []domain.EnrichedPost{}}

	w, body := h.do(t, http.MethodGet, "/api/tasks?subreddits=forhire,%20slavelabour,,&keyword=%20bot%20")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scan.TaskParams{Subreddits: []string{"forhire", "slavelabour"}, Keyword: "bot", Limit: 50, TimeFilter: "day"}, h.scanner.taskGot)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["skill_match"])
}

func TestClearCache(t *testing.T) {
	h := newHarness()
	w, body := h.do(t, http.MethodPost, "/api/tasks/clear-cache")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cleared", body["status"])
	assert.Equal(t, float64(3), body["removed"])

	h.ledger.err = errors.New("disk gone")
	w, _ = h.do(t, http.MethodPost, "/api/tasks/clear-cache")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestScanNow(t *testing.T) {
	h := newHarness()
	h.scanner.cycleRes = scan.CycleResult{ID: "c1", TotalScanned: 4, NewMatches: 2, Notified: true, Posts: []domain.EnrichedPost{}}

	w, body := h.do(t, http.MethodPost, "/api/tasks/scan-now")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), body["total_scanned"])
	assert.Equal(t, float64(2), body["new_matches"])
	assert.Equal(t, true, body["notified"])

	h.scanner.cycleErr = errors.New("notify: database is locked")
	h.scanner.cycleRes = scan.CycleResult{TotalScanned: 4}
	w, body = h.do(t, http.MethodPost, "/api/tasks/scan-now")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "notify: database is locked", body["message"])
	assert.Equal(t, []any{}, body["posts"])
}

func TestScanNowWhenEverySubredditFails(t *testing.T) {
	reddit429 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer reddit429.Close()

	l, err := ledger.Open()
	require.NoError(t, err)
	defer l.Close()

	store := patterns.NewStaticStore(patterns.Default())
	svc := scan.NewService(
		reddit.NewClient("taskradar-test", reddit.WithBaseURL(reddit429.URL), reddit.WithPacing(0, 0)),
		classify.NewNeedClassifier(store),
		classify.NewTaskClassifier(store),
		nil,
		notify.NewCoordinator(l),
		scan.Options{TaskSubreddits: []string{"slavelabour", "forhire"}, TaskKeyword: "python"},
	)

	gin.SetMode(gin.TestMode)
	router := NewServer(context.Background(), svc, &stubScheduler{}, &stubLedger{}).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/tasks/scan-now", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["total_scanned"])
	assert.Equal(t, float64(0), body["new_matches"])
	assert.Equal(t, false, body["notified"])
	assert.Equal(t, []any{}, body["posts"])
	assert.NotEmpty(t, body["message"])
	assert.Len(t, body["errors"], 2)
}

func TestSchedulerLifecycle(t *testing.T) {
	h := newHarness()

	_, body := h.do(t, http.MethodPost, "/api/scheduler/start")
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, float64(30), body["interval_minutes"])

	_, body = h.do(t, http.MethodPost, "/api/scheduler/start")
	assert.Equal(t, "already_running", body["status"])
	assert.Equal(t, 1, h.scheduler.starts)

	_, body = h.do(t, http.MethodGet, "/api/scheduler/status")
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(3), body["notified"])

	_, body = h.do(t, http.MethodPost, "/api/scheduler/stop")
	assert.Equal(t, "stopped", body["status"])
	assert.False(t, h.scheduler.running)
}

func TestSchedulerStatusInCronMode(t *testing.T) {
	h := newHarness()
	h.scheduler.cron = "0 9 * * 1-5"

	_, body := h.do(t, http.MethodPost, "/api/scheduler/start")
	assert.Equal(t, "started", body["status"])
	assert.NotContains(t, body, "interval_minutes")
	assert.Equal(t, "0 9 * * 1-5", body["schedule"])

	_, body = h.do(t, http.MethodGet, "/api/scheduler/status")
	assert.NotContains(t, body, "interval_minutes")
	assert.Equal(t, "0 9 * * 1-5", body["schedule"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness()
	w, _ := h.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
