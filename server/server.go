// Package server exposes the latest generated report over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"flat-stats/models"
	"flat-stats/services"
	"flat-stats/storage"
	"flat-stats/utils"
)

// CombinedScopeName addresses the consolidated view of every scope.
const CombinedScopeName = "combined"

// Server serves reports from a ReportCache.
type Server struct {
	cache    storage.ReportCache
	renderer *services.Renderer
	logger   *utils.Logger
	engine   *gin.Engine
}

// New builds the router.
func New(cache storage.ReportCache, renderer *services.Renderer, logger *utils.Logger) *Server {
	s := &Server{cache: cache, renderer: renderer, logger: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestID(), s.accessLog())

	s.engine.GET("/healthz", s.health)
	api := s.engine.Group("/api")
	api.GET("/report", s.report)
	api.GET("/scopes", s.scopes)
	api.GET("/scopes/:scope/:stat", s.stat)
	api.GET("/scopes/:scope/:stat/text", s.text)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("[server] Listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("[server] %s %s -> %d in %v (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString("request_id"))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// latest loads the cached report or writes the error response.
func (s *Server) latest(c *gin.Context) (*models.Report, bool) {
	report, err := s.cache.Latest(c.Request.Context())
	if errors.Is(err, storage.ErrNoReport) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	if err != nil {
		s.logger.Error("[server] Loading report failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report unavailable"})
		return nil, false
	}
	return report, true
}

func (s *Server) report(c *gin.Context) {
	report, ok := s.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) scopes(c *gin.Context) {
	report, ok := s.latest(c)
	if !ok {
		return
	}
	scopes := make([]models.Scope, 0, len(report.Scopes)+1)
	if report.Combined != nil {
		scopes = append(scopes, report.Combined.Scope)
	}
	for _, sr := range report.Scopes {
		scopes = append(scopes, sr.Scope)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": report.RunID, "as_of": report.AsOf, "scopes": scopes})
}

// lookup resolves the :scope and :stat path parameters.
func (s *Server) lookup(c *gin.Context) (*models.ScopeReport, models.StatType, bool) {
	t, err := models.ParseStatType(c.Param("stat"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", false
	}

	report, ok := s.latest(c)
	if !ok {
		return nil, "", false
	}

	name := c.Param("scope")
	var sr *models.ScopeReport
	if strings.EqualFold(name, CombinedScopeName) {
		sr = report.Combined
	} else {
		sr, _ = report.FindScope(name)
	}
	if sr == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown scope " + name})
		return nil, "", false
	}
	return sr, t, true
}

func (s *Server) stat(c *gin.Context) {
	sr, t, ok := s.lookup(c)
	if !ok {
		return
	}
	stat, err := sr.Stat(t)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Current-Date", sr.CurrentDate.Format(models.DateLayout))
	c.Header("X-Previous-Date", sr.PreviousDate.Format(models.DateLayout))
	c.JSON(http.StatusOK, stat)
}

// text renders a stat as plain text. ?view= selects summary (default),
// changes, complexes or rooms.
func (s *Server) text(c *gin.Context) {
	sr, t, ok := s.lookup(c)
	if !ok {
		return
	}

	var (
		body string
		err  error
	)
	switch view := c.DefaultQuery("view", "summary"); view {
	case "summary":
		body, err = s.renderer.Summary(sr, t)
	case "changes":
		body, err = s.renderer.Changes(sr, t)
	case "complexes":
		var texts []string
		_, texts, err = s.renderer.ComplexSections(sr, t)
		body = strings.Join(texts, "\n\n")
	case "rooms":
		var texts []string
		_, texts, err = s.renderer.RoomSections(sr, t)
		body = strings.Join(texts, "\n\n")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view " + view})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, body)
}
