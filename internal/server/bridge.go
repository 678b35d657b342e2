package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	bridgedomain "github.com/nockworks/revenue-engine/internal/bridge/domain"
)

func (s *Server) ProcessBridgeTransaction(c *gin.Context) {
	var req bridgedomain.ProcessTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	tx, err := s.bridgeSvc.ProcessTransaction(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, tx)
}

func (s *Server) GetBridgeTransaction(c *gin.Context) {
	tx, err := s.bridgeSvc.GetTransaction(c.Request.Context(), c.Param("hash"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, tx)
}

func (s *Server) ConfirmBridgeTransaction(c *gin.Context) {
	var body struct {
		BlockHeight int64 `json:"block_height" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	tx, err := s.bridgeSvc.ConfirmTransaction(c.Request.Context(), c.Param("hash"), body.BlockHeight)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, tx)
}

func (s *Server) GetBridgeAnalytics(c *gin.Context) {
	analytics, err := s.bridgeSvc.GetAnalytics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, analytics)
}

func (s *Server) AddBridgeLiquidity(c *gin.Context) {
	var req bridgedomain.AddLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	provision, err := s.bridgeSvc.AddLiquidity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, provision)
}
