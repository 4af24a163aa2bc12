package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zero-day-ai/conductor/internal/config"
	"github.com/zero-day-ai/conductor/internal/engine"
	"github.com/zero-day-ai/conductor/internal/types"
)

// Server exposes the fire-and-forget workflow API over HTTP. Every
// mutating endpoint returns 202 and the caller observes progress through
// GET polling or the configured push callback.
type Server struct {
	engine *engine.Engine
	cfg    config.DaemonConfig
	logger *slog.Logger
	echo   *echo.Echo
}

// NewServer creates the HTTP server over a running engine.
func NewServer(eng *engine.Engine, cfg config.DaemonConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{engine: eng, cfg: cfg, logger: logger, echo: e}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.POST("/v1/workflows", s.startWorkflow)
	s.echo.GET("/v1/workflows/:thread_id", s.workflowStatus)
	s.echo.POST("/v1/workflows/:thread_id/approval", s.approveWorkflow)
	s.echo.DELETE("/v1/workflows/:thread_id", s.cancelWorkflow)
	s.echo.GET("/healthz", s.health)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("daemon listening", "address", s.cfg.ListenAddress)
	err := s.echo.Start(s.cfg.ListenAddress)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// StartResponse is returned from POST /v1/workflows.
type StartResponse struct {
	ThreadID     types.ID      `json:"thread_id"`
	PollInterval time.Duration `json:"poll_interval,omitempty"`
}

// ApprovalRequest is the body of POST /v1/workflows/:thread_id/approval.
type ApprovalRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// HealthResponse is returned from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
}

func (s *Server) startWorkflow(c echo.Context) error {
	var req engine.WorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	threadID, err := s.engine.Start(c.Request().Context(), req)
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusAccepted, StartResponse{
		ThreadID:     threadID,
		PollInterval: s.cfg.PollInterval,
	})
}

func (s *Server) workflowStatus(c echo.Context) error {
	threadID := types.ID(c.Param("thread_id"))

	report, err := s.engine.Status(c.Request().Context(), threadID)
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) approveWorkflow(c echo.Context) error {
	threadID := types.ID(c.Param("thread_id"))

	var req ApprovalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	err := s.engine.Approve(c.Request().Context(), threadID, engine.ApprovalDecision{
		Approved: req.Approved,
		Reason:   req.Reason,
	})
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) cancelWorkflow(c echo.Context) error {
	threadID := types.ID(c.Param("thread_id"))

	if err := s.engine.Cancel(c.Request().Context(), threadID); err != nil {
		return s.toHTTPError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Busy: s.engine.Busy()})
}

// toHTTPError maps engine error codes onto HTTP statuses. Single-flight
// rejection and bad resume states are conflicts, unknown threads are 404,
// validation problems are 400, the rest is a 500 with the code attached.
func (s *Server) toHTTPError(err error) *echo.HTTPError {
	code := types.CodeOf(err)
	switch code {
	case types.LOCK_CONTENTION, types.WORKFLOW_NOT_INTERRUPTED, types.WORKFLOW_CANCELLED:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case types.WORKFLOW_NOT_FOUND:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case types.CONFIG_VALIDATION_FAILED:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "code", code, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
