package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/monitor"
	"github.com/codex-k8s/localaictl/internal/prefs"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

type selectionRequest struct {
	Name string `json:"name" binding:"required"`
}

type stopRequest struct {
	All           bool `json:"all"`
	RemoveVolumes bool `json:"removeVolumes"`
}

type logsQuery struct {
	Tail  int    `form:"tail" binding:"omitempty,min=0,max=100000"`
	Since string `form:"since"`
}

type toggleResponse struct {
	Change ChangeView `json:"change"`
	Config ConfigView `json:"config"`
}

type bulkResponse struct {
	Category string          `json:"category,omitempty"`
	Enabled  bool            `json:"enabled"`
	Changes  []ChangeView    `json:"changes"`
	Rejected []RejectionView `json:"rejected,omitempty"`
	Config   ConfigView      `json:"config"`
}

type errorResponse struct {
	Error     string         `json:"error"`
	Rejection *RejectionView `json:"rejection,omitempty"`
	Config    *ConfigView    `json:"config,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, NewConfigView(s.engine.Config(c.Request.Context())))
}

func (s *Server) toggle(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.engine.Toggle(c.Request.Context(), c.Param("id"), enabled)
		if err != nil {
			s.fail(c, err, res.Config)
			return
		}
		c.JSON(http.StatusOK, toggleResponse{Change: NewChangeView(res.Change), Config: NewConfigView(res.Config)})
	}
}

func (s *Server) bulkCategory(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.bulk(catalog.Category(c.Param("category")), enabled)(c)
	}
}

func (s *Server) bulk(category catalog.Category, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.engine.Bulk(c.Request.Context(), category, enabled)
		if err != nil {
			s.fail(c, err, res.Config)
			return
		}
		resp := bulkResponse{
			Category: string(category),
			Enabled:  enabled,
			Changes:  make([]ChangeView, 0, len(res.Bulk.Changes)),
			Config:   NewConfigView(res.Config),
		}
		for _, ch := range res.Bulk.Changes {
			resp.Changes = append(resp.Changes, NewChangeView(ch))
		}
		for _, rej := range res.Bulk.Rejected {
			resp.Rejected = append(resp.Rejected, NewRejectionView(rej))
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) selectProfile(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	cfg, err := s.engine.SelectProfile(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err, cfg)
		return
	}
	c.JSON(http.StatusOK, NewConfigView(cfg))
}

func (s *Server) selectEnvironment(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	cfg, err := s.engine.SelectEnvironment(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err, cfg)
		return
	}
	c.JSON(http.StatusOK, NewConfigView(cfg))
}

func (s *Server) effective(c *gin.Context) {
	list, err := s.engine.Effective(c.Request.Context(), c.Query("profile"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) apply(c *gin.Context) {
	res, err := s.engine.Apply(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrNoGateway) {
			s.fail(c, err, nil)
			return
		}
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) stop(c *gin.Context) {
	var req stopRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	outcome, err := s.engine.Stop(c.Request.Context(), engine.StopOptions{All: req.All, RemoveVolumes: req.RemoveVolumes})
	if err != nil {
		if errors.Is(err, engine.ErrNoGateway) {
			s.fail(c, err, nil)
			return
		}
		c.JSON(http.StatusBadGateway, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) status(c *gin.Context) {
	report, err := s.engine.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) containers(c *gin.Context) {
	filter := engine.ContainerFilter{
		Only: engine.ParseFilter(c.QueryArray("service")),
		Skip: engine.ParseFilter(c.QueryArray("skip")),
	}
	views, err := s.engine.Containers(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) containerStats(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context(), []string{c.Param("id")})
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	entry := stats[0]
	if entry.Error != "" {
		c.JSON(http.StatusBadGateway, entry)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) containerLogs(c *gin.Context) {
	var q logsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid query: " + err.Error()})
		return
	}
	since, err := monitor.ParseSince(q.Since, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	records, err := s.engine.Logs(c.Request.Context(), c.Param("id"), monitor.LogOptions{Tail: q.Tail, Since: since})
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) containerAction(c *gin.Context) {
	action, err := monitor.ParseAction(c.Param("action"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.Act(c.Request.Context(), c.Param("id"), action); err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "action": action})
}

// fail maps an engine error to a status code. A store failure still carries
// the optimistic configuration in the body.
func (s *Server) fail(c *gin.Context, err error, cfg *resolver.Configuration) {
	resp := errorResponse{Error: err.Error()}
	var rejected *resolver.RejectedError
	switch {
	case errors.As(err, &rejected):
		view := NewRejectionView(rejected)
		resp.Rejection = &view
		status := http.StatusConflict
		if resolver.IsUnknown(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, resp)
	case prefs.IsStoreError(err):
		if cfg != nil {
			view := NewConfigView(cfg)
			resp.Config = &view
		}
		c.JSON(http.StatusServiceUnavailable, resp)
	case errors.Is(err, engine.ErrNoGateway), errors.Is(err, engine.ErrNoMonitor):
		c.JSON(http.StatusNotImplemented, resp)
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, resp)
	}
}
