// Package api exposes beamfleet's operation surface (spec §6) over
// HTTP, on the PORT the outer tool-dispatch framework is configured
// to reach this process at (spec §6: "PORT, MCP_URL — forwarded to
// the outer framework"). One route per named operation, POST-only,
// JSON body in, `{ok:...}`/`{err:...}` (plus any view payload) out.
//
// Routing is gin, grounded on purpleidea-mgmt's
// engine/resources/http_server_ui.go (router construction, a
// structured-log middleware ahead of gin.Recovery, JSON responses via
// gin.H) — rebuilt here for a pure JSON operation surface instead of
// an HTML form UI.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	v1 "github.com/f9-o/beamfleet/api/v1"
	"github.com/f9-o/beamfleet/internal/core"
	"github.com/f9-o/beamfleet/internal/core/logger"
	"github.com/f9-o/beamfleet/pkg/errs"
)

// Server wraps the gin router and the Core it dispatches operations to.
type Server struct {
	core   *core.Core
	log    *logger.Logger
	engine *gin.Engine
	srv    *http.Server
}

// New builds the operation-surface router. addr is host:port (or
// :port); empty disables the server entirely (Start becomes a no-op),
// matching metrics.New's "empty listen address" convention.
func New(c *core.Core, log *logger.Logger, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{core: c, log: log}
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	ops := r.Group("/operations")
	ops.POST("/start-node", s.startNode)
	ops.POST("/stop-node", s.stopNode)
	ops.POST("/restart-node", s.restartNode)
	ops.POST("/list-nodes", s.listNodes)
	ops.POST("/inspect-node", s.inspectNode)
	ops.POST("/deploy-module", s.deployModule)
	ops.POST("/start-genserver", s.startGenserver)
	ops.POST("/call-genserver", s.callGenserver)
	ops.POST("/stop-genserver", s.stopGenserver)
	ops.POST("/start-trace", s.startTrace)
	ops.POST("/stop-trace", s.stopTrace)
	ops.POST("/poll-trace", s.pollTrace)

	s.engine = r
	if addr != "" {
		s.srv = &http.Server{Addr: addr, Handler: r}
	}
	return s
}

// requestLogger is a gin.HandlerFunc logging each request through the
// structured logger, mirroring the teacher's ginLogger helper.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// Start runs the operation-surface HTTP server in the background. A
// no-op if no address was configured.
func (s *Server) Start() {
	if s.srv == nil {
		return
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("operation surface server exited", "err", err)
		}
	}()
	s.log.Info("operation surface listening", "addr", s.srv.Addr)
}

// Stop shuts the HTTP server down, if running.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// resultCode extracts the leading `[Code]` token a FleetError's
// Error() renders (see pkg/errs), since by the time an operation's
// failure reaches v1.Result it has already been flattened to a plain
// string by Core.audit.
func resultCode(msg string) string {
	if !strings.HasPrefix(msg, "[") {
		return ""
	}
	if end := strings.IndexByte(msg, ']'); end > 0 {
		return msg[1:end]
	}
	return ""
}

// statusForResult maps a FleetError's code to the HTTP status the
// response is rendered with; an unrecognised failure renders 502,
// since every remaining taxonomy entry (spec §7) is a transport- or
// remote-side failure, never a client input error.
func statusForResult(result v1.Result) int {
	if !result.IsErr() {
		return http.StatusOK
	}
	switch resultCode(result.Err) {
	case string(errs.ErrNodeUnknown), string(errs.ErrUnknownHost):
		return http.StatusNotFound
	case string(errs.ErrNameTaken), string(errs.ErrNodeBadState):
		return http.StatusConflict
	case string(errs.ErrBadAtomName), string(errs.ErrConfigMissing):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func respondResult(c *gin.Context, result v1.Result) {
	c.JSON(statusForResult(result), result)
}
