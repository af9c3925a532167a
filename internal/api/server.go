// Package api serves the scan, task and scheduler endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"taskradar/internal/domain"
	"taskradar/internal/integrations/reddit"
	"taskradar/internal/scan"
)

const maxLimit = 100

type Scanner interface {
	NeedScan(ctx context.Context, p scan.NeedParams) scan.NeedScanResult
	TaskScan(ctx context.Context, p scan.TaskParams) scan.TaskScanResult
	ScanAndNotify(ctx context.Context) (scan.CycleResult, error)
}

type SchedulerControl interface {
	Start(ctx context.Context) bool
	Stop()
	Running() bool
	// Interval is zero when the scheduler runs on a cron expression.
	Interval() time.Duration
	Schedule() string
}

// NotifiedSet is the dedup ledger as seen by the API. *ledger.Ledger
// satisfies it.
type NotifiedSet interface {
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

type Server struct {
	scanner   Scanner
	scheduler SchedulerControl
	notified  NotifiedSet
	// baseCtx outlives individual requests; the scheduler loop runs on it.
	baseCtx context.Context
}

func NewServer(baseCtx context.Context, scanner Scanner, scheduler SchedulerControl, notified NotifiedSet) *Server {
	return &Server{scanner: scanner, scheduler: scheduler, notified: notified, baseCtx: baseCtx}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(corsMiddleware())

	router.GET("/", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/health", s.health)
	api.GET("/scan", s.needScan)
	api.GET("/tasks", s.taskScan)
	api.POST("/tasks/clear-cache", s.clearCache)
	api.POST("/tasks/scan-now", s.scanNow)
	api.POST("/scheduler/start", s.startScheduler)
	api.POST("/scheduler/stop", s.stopScheduler)
	api.GET("/scheduler/status", s.schedulerStatus)
	return router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("http server listening addr=%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("http request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "Invalid "+key+": must be an integer")
		return 0, false
	}
	return v, true
}

func queryBool(c *gin.Context, key string, def bool) (bool, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "Invalid "+key+": must be true or false")
		return false, false
	}
	return v, true
}

func queryLimit(c *gin.Context, def int) (int, bool) {
	limit, ok := queryInt(c, "limit", def)
	if !ok {
		return 0, false
	}
	if limit < 1 || limit > maxLimit {
		badRequest(c, "Invalid limit: must be between 1 and 100")
		return 0, false
	}
	return limit, true
}

func queryTimeFilter(c *gin.Context, def string) (string, bool) {
	tf := strings.TrimSpace(c.DefaultQuery("time_filter", def))
	if !reddit.ValidTimeFilter(tf) {
		badRequest(c, "Invalid time_filter: must be one of hour, day, week, month, year, all")
		return "", false
	}
	return tf, true
}

func (s *Server) needScan(c *gin.Context) {
	p := scan.DefaultNeedParams()
	var ok bool
	p.Subreddit = strings.TrimSpace(c.DefaultQuery("subreddit", p.Subreddit))
	p.Keyword = c.DefaultQuery("keyword", p.Keyword)
	if p.Limit, ok = queryLimit(c, p.Limit); !ok {
		return
	}
	if p.TimeFilter, ok = queryTimeFilter(c, p.TimeFilter); !ok {
		return
	}
	if p.UseMock, ok = queryBool(c, "use_mock", false); !ok {
		return
	}
	if p.VerifyLinks, ok = queryBool(c, "verify_links", p.VerifyLinks); !ok {
		return
	}
	if p.MaxVerify, ok = queryInt(c, "max_verify", p.MaxVerify); !ok {
		return
	}
	if p.Subreddit == "" && !p.UseMock {
		badRequest(c, "subreddit is required")
		return
	}
	c.JSON(http.StatusOK, s.scanner.NeedScan(c.Request.Context(), p))
}

func (s *Server) taskScan(c *gin.Context) {
	var p scan.TaskParams
	var ok bool
	for _, sub := range strings.Split(c.Query("subreddits"), ",") {
		if sub = strings.TrimSpace(sub); sub != "" {
			p.Subreddits = append(p.Subreddits, sub)
		}
	}
	p.Keyword = strings.TrimSpace(c.Query("keyword"))
	if p.Limit, ok = queryLimit(c, scan.DefaultLimit); !ok {
		return
	}
	if p.TimeFilter, ok = queryTimeFilter(c, scan.DefaultTaskTimeFilter); !ok {
		return
	}
	c.JSON(http.StatusOK, s.scanner.TaskScan(c.Request.Context(), p))
}

func (s *Server) clearCache(c *gin.Context) {
	removed, err := s.notified.Clear(c.Request.Context())
	if err != nil {
		log.Printf("api clear-cache failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear notified set"})
		return
	}
	log.Printf("api clear-cache removed=%d", removed)
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "removed": removed})
}

func (s *Server) scanNow(c *gin.Context) {
	res, err := s.scanner.ScanAndNotify(c.Request.Context())
	if err != nil {
		log.Printf("api scan-now failed: %v", err)
		if res.Message == "" {
			res.Message = err.Error()
		}
	}
	if res.Posts == nil {
		res.Posts = []domain.EnrichedPost{}
	}
	c.JSON(http.StatusOK, res)
}

// schedulerFields reports the cadence. interval_minutes is only present in
// interval mode; in cron mode schedule alone describes when cycles fire.
func (s *Server) schedulerFields(h gin.H) gin.H {
	if iv := s.scheduler.Interval(); iv > 0 {
		h["interval_minutes"] = int(iv / time.Minute)
	}
	h["schedule"] = s.scheduler.Schedule()
	return h
}

func (s *Server) startScheduler(c *gin.Context) {
	if !s.scheduler.Start(s.baseCtx) {
		c.JSON(http.StatusOK, s.schedulerFields(gin.H{"status": "already_running"}))
		return
	}
	c.JSON(http.StatusOK, s.schedulerFields(gin.H{"status": "started"}))
}

func (s *Server) stopScheduler(c *gin.Context) {
	s.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) schedulerStatus(c *gin.Context) {
	notified, err := s.notified.Len(c.Request.Context())
	if err != nil {
		log.Printf("api scheduler status: count notified: %v", err)
	}
	c.JSON(http.StatusOK, s.schedulerFields(gin.H{
		"running":  s.scheduler.Running(),
		"notified": notified,
	}))
}
