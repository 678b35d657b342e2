package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	enterprisedomain "github.com/nockworks/revenue-engine/internal/enterprise/domain"
)

func (s *Server) CreateEnterpriseContract(c *gin.Context) {
	var req enterprisedomain.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	contract, err := s.enterpriseSvc.CreateContract(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, contract)
}

func (s *Server) ListEnterpriseContracts(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	contracts, err := s.enterpriseSvc.ListContracts(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, contracts)
}

func (s *Server) GetEnterpriseContract(c *gin.Context) {
	contract, err := s.enterpriseSvc.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, contract)
}

func (s *Server) UpdateEnterpriseContractStatus(c *gin.Context) {
	var body struct {
		Status enterprisedomain.ContractStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	contract, err := s.enterpriseSvc.UpdateContractStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, contract)
}

func (s *Server) ProcessOTCOrder(c *gin.Context) {
	var req enterprisedomain.ProcessOTCOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	order, err := s.enterpriseSvc.ProcessOTCOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, order)
}

func (s *Server) ExecuteOTCOrder(c *gin.Context) {
	order, err := s.enterpriseSvc.ExecuteOTCOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, order)
}

func (s *Server) SettleOTCOrder(c *gin.Context) {
	order, err := s.enterpriseSvc.SettleOTCOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, order)
}

func (s *Server) SetupCustodyService(c *gin.Context) {
	var req enterprisedomain.SetupCustodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	custody, err := s.enterpriseSvc.SetupCustodyService(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, custody)
}

func (s *Server) UpdateCustodyAUM(c *gin.Context) {
	var body struct {
		TotalAUM float64 `json:"total_aum_usd" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	custody, err := s.enterpriseSvc.UpdateCustodyAUM(c.Request.Context(), c.Param("id"), body.TotalAUM)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, custody)
}

func (s *Server) ListEnterpriseRevenueEvents(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	events, err := s.enterpriseSvc.ListRevenueEvents(c.Request.Context(), clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, events)
}

func (s *Server) GetEnterpriseAnalytics(c *gin.Context) {
	analytics, err := s.enterpriseSvc.GetAnalytics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, analytics)
}
