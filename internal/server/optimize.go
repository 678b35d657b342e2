package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunOptimization forces an immediate health assessment instead of
// waiting for the monitor's next scan.
func (s *Server) RunOptimization(c *gin.Context) {
	if s.monitor == nil {
		AbortWithError(c, ErrOptimizerDisabled)
		return
	}

	assessment := s.monitor.Evaluate(c.Request.Context())
	s.respond(c, http.StatusOK, assessment)
}
