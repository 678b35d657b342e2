package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
)

const maxWebhookBodyBytes = 1 << 20

// HandlePaymentWebhook verifies the provider signature, normalizes the
// event and applies it to the recorded payment. Providers retry on
// non-2xx, so events we deliberately skip still return 200.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")
	if provider != s.processor.Provider() {
		AbortWithError(c, paymentdomain.ErrProviderNotFound)
		return
	}

	handler, ok := s.processor.(paymentdomain.WebhookHandler)
	if !ok {
		AbortWithError(c, paymentdomain.ErrProviderNotFound)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	ctx := c.Request.Context()
	if err := handler.Verify(ctx, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := handler.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.respond(c, http.StatusOK, gin.H{"received": true, "applied": false})
			return
		}
		AbortWithError(c, err)
		return
	}

	payment, err := s.billingSvc.ApplyPaymentEvent(ctx, event)
	if err != nil {
		// An event for an intent we never created is acknowledged, not
		// retried: replaying it will never succeed.
		if errors.Is(err, billingdomain.ErrPaymentNotFound) {
			s.log.Warn("webhook for unknown payment intent",
				zap.String("provider", provider),
				zap.String("intent_id", event.IntentID),
			)
			s.respond(c, http.StatusOK, gin.H{"received": true, "applied": false})
			return
		}
		AbortWithError(c, err)
		return
	}

	s.respond(c, http.StatusOK, gin.H{
		"received":   true,
		"applied":    true,
		"payment_id": payment.ID,
	})
}
