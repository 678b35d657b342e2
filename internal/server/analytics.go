package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	analyticsdomain "github.com/nockworks/revenue-engine/internal/analytics/domain"
)

func (s *Server) CreateAnalyticsSubscription(c *gin.Context) {
	var req analyticsdomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	resp, err := s.analyticsSvc.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, resp)
}

func (s *Server) GetAnalyticsSubscription(c *gin.Context) {
	sub, err := s.analyticsSvc.GetUserSubscription(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, sub)
}

// TrackAnalyticsUsage meters one usage increment. Over-limit increments
// return 429 without recording anything.
func (s *Server) TrackAnalyticsUsage(c *gin.Context) {
	var req analyticsdomain.TrackUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	// The metered user is the verified key holder, not the body.
	req.UserID = c.GetString("user_id")

	allowed, err := s.analyticsSvc.TrackUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !allowed {
		AbortWithError(c, ErrRateLimited)
		return
	}
	s.respond(c, http.StatusOK, gin.H{"allowed": true})
}

func (s *Server) GetHourlyAPIUsage(c *gin.Context) {
	count, err := s.analyticsSvc.GetHourlyAPIUsage(c.Request.Context(), c.Param("user_id"), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, gin.H{"user_id": c.Param("user_id"), "hourly_api_calls": count})
}
