package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	sub, err := s.subscriptionSvc.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, sub)
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	subs, err := s.subscriptionSvc.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, subs)
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	sub, err := s.subscriptionSvc.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, sub)
}

func (s *Server) UpgradeSubscription(c *gin.Context) {
	var body struct {
		NewTier subscriptiondomain.Tier `json:"new_tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	sub, err := s.subscriptionSvc.ChangeTier(c.Request.Context(), subscriptiondomain.ChangeTierRequest{
		SubscriptionID: c.Param("id"),
		NewTier:        body.NewTier,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, sub)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.CancelSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, sub)
}

func (s *Server) GetSubscriptionAnalytics(c *gin.Context) {
	analytics, err := s.subscriptionSvc.GetAnalytics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, analytics)
}
