package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req billingdomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	invoice, err := s.billingSvc.CreateSubscriptionInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, invoice)
}

func (s *Server) ListInvoices(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	var status *billingdomain.InvoiceStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		value := billingdomain.InvoiceStatus(raw)
		status = &value
	}

	invoices, err := s.billingSvc.ListInvoices(c.Request.Context(), userID, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, invoices)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	invoice, err := s.billingSvc.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.billingSvc.GetInvoiceLineItems(c.Request.Context(), invoice.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, gin.H{"invoice": invoice, "line_items": items})
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	pdf, err := s.billingSvc.RenderInvoicePDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) ProcessPayment(c *gin.Context) {
	var req billingdomain.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	payment, err := s.billingSvc.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusCreated, payment)
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	payment, err := s.billingSvc.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, payment)
}

// GetBillingAnalytics defaults to the current calendar month.
func (s *Server) GetBillingAnalytics(c *gin.Context) {
	now := s.clock.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	if raw := strings.TrimSpace(c.Query("start")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: invalid start", ErrInvalidRequest))
			return
		}
		start = parsed
	}
	if raw := strings.TrimSpace(c.Query("end")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: invalid end", ErrInvalidRequest))
			return
		}
		end = parsed
	}

	analytics, err := s.billingSvc.GetBillingAnalytics(c.Request.Context(), start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, analytics)
}

// ProcessBillingCyclesNow runs one billing pass outside the scheduler
// cadence. Used by operators after fixing a failed batch.
func (s *Server) ProcessBillingCyclesNow(c *gin.Context) {
	result, err := s.billingSvc.ProcessBillingCycles(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respond(c, http.StatusOK, result)
}
