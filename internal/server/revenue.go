package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
)

func (s *Server) GetRevenueDashboard(c *gin.Context) {
	dashboard, err := s.revenueSvc.GetDashboard(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, dashboard)
}

func (s *Server) GetRevenueAnalytics(c *gin.Context) {
	analytics, err := s.revenueSvc.GetAnalytics(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, analytics)
}

func (s *Server) GetRevenueProgress(c *gin.Context) {
	progress, err := s.revenueSvc.GetProgress(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, progress)
}

func (s *Server) GetRevenueForecast(c *gin.Context) {
	windowDays := queryInt(c, "window_days", 90)
	horizonDays := queryInt(c, "horizon_days", 30)

	forecast, err := s.revenueSvc.GenerateForecast(c.Request.Context(), windowDays, horizonDays, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, forecast)
}

func (s *Server) ListRevenueStreams(c *gin.Context) {
	streamType := strings.TrimSpace(c.Query("stream_type"))
	limit := queryInt(c, "limit", 0)

	streams, err := s.revenueSvc.ListStreams(c.Request.Context(), streamType, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, streams)
}

func (s *Server) RecordRevenueStream(c *gin.Context) {
	var req revenuedomain.RecordStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	stream, err := s.revenueSvc.RecordStream(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, stream)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
