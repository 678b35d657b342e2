package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	analyticsdomain "github.com/nockworks/revenue-engine/internal/analytics/domain"
	"github.com/nockworks/revenue-engine/internal/authorization"
	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	bridgedomain "github.com/nockworks/revenue-engine/internal/bridge/domain"
	enterprisedomain "github.com/nockworks/revenue-engine/internal/enterprise/domain"
	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
)

var (
	// ErrRateLimited is returned when an increment would exceed the tier limit.
	ErrRateLimited = errors.New("usage limit exceeded")

	// ErrInvalidRequest is returned when the request body fails binding.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOptimizerDisabled is returned when the optimizer monitor is not wired.
	ErrOptimizerDisabled = errors.New("optimizer monitor disabled")
)

type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{
		Success:   true,
		Data:      data,
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
	})
}

// AbortWithError defers rendering to ErrorHandlingMiddleware so every
// handler shares one sentinel-to-status mapping.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status := statusForError(lastErr.Err)
		message := lastErr.Err.Error()
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
		c.AbortWithStatusJSON(status, envelope{
			Success:   false,
			Error:     message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

var notFoundErrors = []error{
	subscriptiondomain.ErrSubscriptionNotFound,
	analyticsdomain.ErrSubscriptionNotFound,
	billingdomain.ErrInvoiceNotFound,
	billingdomain.ErrPaymentNotFound,
	bridgedomain.ErrTransactionNotFound,
	enterprisedomain.ErrContractNotFound,
	enterprisedomain.ErrOrderNotFound,
	enterprisedomain.ErrCustodyNotFound,
	paymentdomain.ErrProviderNotFound,
	gorm.ErrRecordNotFound,
}

var badRequestErrors = []error{
	subscriptiondomain.ErrUnknownTier,
	analyticsdomain.ErrUnknownTier,
	enterprisedomain.ErrUnknownTier,
	enterprisedomain.ErrBelowTierMinimum,
	enterprisedomain.ErrInvalidAmount,
	billingdomain.ErrInvalidAmount,
	bridgedomain.ErrInvalidAmount,
	revenuedomain.ErrInvalidAmount,
	revenuedomain.ErrUnknownStreamType,
	paymentdomain.ErrInvalidEvent,
	paymentdomain.ErrInvalidPayload,
	ErrInvalidRequest,
}

var conflictErrors = []error{
	subscriptiondomain.ErrAlreadyCancelled,
	bridgedomain.ErrDuplicateTransaction,
	bridgedomain.ErrAlreadyConfirmed,
	billingdomain.ErrInvoiceNotPayable,
	billingdomain.ErrPaymentExceedsBalance,
	enterprisedomain.ErrInvalidStatusTransition,
}

func statusForError(err error) int {
	switch {
	case matchesAny(err, badRequestErrors):
		return http.StatusBadRequest
	case errors.Is(err, analyticsdomain.ErrInvalidAPIKey),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized
	case errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, analyticsdomain.ErrSubscriptionInactive):
		return http.StatusForbidden
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound
	case matchesAny(err, conflictErrors):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrOptimizerDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	switch statusForError(err) {
	case http.StatusBadRequest:
		return "validation", err.Error()
	case http.StatusUnauthorized, http.StatusForbidden:
		return "auth", err.Error()
	case http.StatusNotFound:
		return "not_found", err.Error()
	case http.StatusConflict:
		return "conflict", err.Error()
	case http.StatusTooManyRequests:
		return "rate_limit", err.Error()
	default:
		return "internal", err.Error()
	}
}
