// Package httpapi is the gateway's optional reporting surface: health,
// a human-readable report line, and the prometheus scrape endpoint.
// None of this is on the upward strategy-facing contract — it's ambient
// observability, wired with gin the way the teacher pack's api package
// does.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exchangegw/gateway"
	"exchangegw/metrics"
)

// Server wraps a gin engine over one Gateway instance.
type Server struct {
	engine  *gin.Engine
	gateway *gateway.Gateway
}

// New builds the reporting server. Pass gin.ReleaseMode via
// gin.SetMode before calling this in production.
func New(gw *gateway.Gateway) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), metrics.GinMiddleware())

	s := &Server{engine: engine, gateway: gw}
	engine.GET("/healthz", s.healthz)
	engine.GET("/report", s.report)
	engine.GET("/metrics", metrics.Handler())
	return s
}

// Run starts the HTTP listener, blocking until it exits or errors.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) report(c *gin.Context) {
	notes := c.Query("notes")
	nocache := c.Query("nocache") == "true"
	c.JSON(http.StatusOK, gin.H{"report": s.gateway.Report(c.Request.Context(), notes, nocache)})
}
