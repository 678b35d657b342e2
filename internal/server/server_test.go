package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	analyticsdomain "github.com/nockworks/revenue-engine/internal/analytics/domain"
	"github.com/nockworks/revenue-engine/internal/authorization"
	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	bridgedomain "github.com/nockworks/revenue-engine/internal/bridge/domain"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	enterprisedomain "github.com/nockworks/revenue-engine/internal/enterprise/domain"
	"github.com/nockworks/revenue-engine/internal/observability"
	"github.com/nockworks/revenue-engine/internal/optimizer"
	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Service stubs embed the domain interface so each test overrides
// only the method its route exercises.

type revenueServiceStub struct {
	revenuedomain.Service
	recordFn func(ctx context.Context, req revenuedomain.RecordStreamRequest) (*revenuedomain.RevenueStream, error)
}

func (s *revenueServiceStub) RecordStream(ctx context.Context, req revenuedomain.RecordStreamRequest) (*revenuedomain.RevenueStream, error) {
	return s.recordFn(ctx, req)
}

type subscriptionServiceStub struct {
	subscriptiondomain.Service
	getFn func(ctx context.Context, id string) (*subscriptiondomain.Subscription, error)
}

func (s *subscriptionServiceStub) GetSubscription(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	return s.getFn(ctx, id)
}

type billingServiceStub struct {
	billingdomain.Service
	applyFn func(ctx context.Context, event *paymentdomain.PaymentEvent) (*billingdomain.Payment, error)
	cycleFn func(ctx context.Context, now time.Time) (*billingdomain.BillingCycleResult, error)
}

func (s *billingServiceStub) ApplyPaymentEvent(ctx context.Context, event *paymentdomain.PaymentEvent) (*billingdomain.Payment, error) {
	return s.applyFn(ctx, event)
}

func (s *billingServiceStub) ProcessBillingCycles(ctx context.Context, now time.Time) (*billingdomain.BillingCycleResult, error) {
	return s.cycleFn(ctx, now)
}

type analyticsServiceStub struct {
	analyticsdomain.Service
	verifyFn func(ctx context.Context, userID, apiKey string) error
	trackFn  func(ctx context.Context, req analyticsdomain.TrackUsageRequest) (bool, error)
}

func (s *analyticsServiceStub) VerifyAPIKey(ctx context.Context, userID, apiKey string) error {
	return s.verifyFn(ctx, userID, apiKey)
}

func (s *analyticsServiceStub) TrackUsage(ctx context.Context, req analyticsdomain.TrackUsageRequest) (bool, error) {
	return s.trackFn(ctx, req)
}

type bridgeServiceStub struct {
	bridgedomain.Service
}

type enterpriseServiceStub struct {
	enterprisedomain.Service
	getContractFn func(ctx context.Context, id string) (*enterprisedomain.EnterpriseContract, error)
}

func (s *enterpriseServiceStub) GetContract(ctx context.Context, id string) (*enterprisedomain.EnterpriseContract, error) {
	return s.getContractFn(ctx, id)
}

type authzServiceStub struct {
	authorization.Service
	authorizeFn func(ctx context.Context, actor, object, action string) error
}

func (s *authzServiceStub) Authorize(ctx context.Context, actor, object, action string) error {
	return s.authorizeFn(ctx, actor, object, action)
}

type processorStub struct {
	paymentdomain.Processor
	verifyErr error
	event     *paymentdomain.PaymentEvent
	parseErr  error
}

func (p *processorStub) Provider() string { return "stripe" }

func (p *processorStub) Verify(_ context.Context, _ []byte, _ http.Header) error {
	return p.verifyErr
}

func (p *processorStub) Parse(_ context.Context, _ []byte) (*paymentdomain.PaymentEvent, error) {
	return p.event, p.parseErr
}

var (
	_ paymentdomain.Processor      = (*processorStub)(nil)
	_ paymentdomain.WebhookHandler = (*processorStub)(nil)
)

type serverFixture struct {
	server *Server
	clock  *clock.FakeClock

	revenue      *revenueServiceStub
	subscription *subscriptionServiceStub
	billing      *billingServiceStub
	analytics    *analyticsServiceStub
	enterprise   *enterpriseServiceStub
	authz        *authzServiceStub
	processor    *processorStub
	monitor      *optimizer.Monitor
}

type fixtureOption func(*serverFixture)

func withoutMonitor() fixtureOption {
	return func(f *serverFixture) { f.monitor = nil }
}

func newTestServer(t *testing.T, opts ...fixtureOption) *serverFixture {
	t.Helper()

	fakeClock := clock.NewFakeClock(time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	f := &serverFixture{
		clock:        fakeClock,
		revenue:      &revenueServiceStub{},
		subscription: &subscriptionServiceStub{},
		billing:      &billingServiceStub{},
		analytics:    &analyticsServiceStub{},
		enterprise:   &enterpriseServiceStub{},
		authz: &authzServiceStub{
			authorizeFn: func(context.Context, string, string, string) error { return nil },
		},
		processor: &processorStub{},
		monitor: optimizer.NewMonitor(optimizer.Param{
			Log:   log,
			Clock: fakeClock,
		}),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.server = NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{}),
		Cfg:             config.Config{},
		Log:             log,
		Clock:           fakeClock,
		RevenueSvc:      f.revenue,
		SubscriptionSvc: f.subscription,
		BillingSvc:      f.billing,
		AnalyticsSvc:    f.analytics,
		BridgeSvc:       &bridgeServiceStub{},
		EnterpriseSvc:   f.enterprise,
		AuthzSvc:        f.authz,
		Processor:       f.processor,
		Monitor:         f.monitor,
	})
	return f
}

func (f *serverFixture) do(method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthRoute(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecordRevenueStreamWrapsEnvelope(t *testing.T) {
	f := newTestServer(t)
	f.revenue.recordFn = func(_ context.Context, req revenuedomain.RecordStreamRequest) (*revenuedomain.RevenueStream, error) {
		assert.Equal(t, "subscription", req.StreamType)
		assert.Equal(t, 49.99, req.Amount)
		return &revenuedomain.RevenueStream{ID: "rs_1", StreamType: req.StreamType, Amount: req.Amount}, nil
	}

	rec := f.do(http.MethodPost, "/api/v1/revenue/streams",
		`{"stream_type":"subscription","amount":49.99}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	out := decodeEnvelope(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "2025-09-01T12:00:00Z", out["timestamp"])

	data, ok := out["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rs_1", data["ID"])
}

func TestBindFailureReturnsBadRequest(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/v1/revenue/streams", `{"amount":`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decodeEnvelope(t, rec)
	assert.Equal(t, false, out["success"])
	errMsg, _ := out["error"].(string)
	assert.Contains(t, errMsg, "invalid request")
}

func TestDomainSentinelsMapToStatusCodes(t *testing.T) {
	f := newTestServer(t)
	f.subscription.getFn = func(_ context.Context, id string) (*subscriptiondomain.Subscription, error) {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	rec := f.do(http.MethodGet, "/api/v1/subscriptions/sub_missing", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	out := decodeEnvelope(t, rec)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "subscription not found", out["error"])
}

func TestUnknownErrorsAreMasked(t *testing.T) {
	f := newTestServer(t)
	f.enterprise.getContractFn = func(_ context.Context, id string) (*enterprisedomain.EnterpriseContract, error) {
		return nil, errors.New("pq: connection reset")
	}

	rec := f.do(http.MethodGet, "/api/v1/enterprise/contracts/ctr_1", "", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeEnvelope(t, rec)
	assert.Equal(t, "internal server error", out["error"])
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestTrackUsageRequiresAPIKeyHeaders(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/v1/analytics/usage",
		`{"user_id":"user-1","usage_type":"api_call"}`, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrackUsageMetersTheVerifiedUser(t *testing.T) {
	f := newTestServer(t)
	f.analytics.verifyFn = func(_ context.Context, userID, apiKey string) error {
		assert.Equal(t, "user-1", userID)
		assert.Equal(t, "vk_live_abc", apiKey)
		return nil
	}
	var metered string
	f.analytics.trackFn = func(_ context.Context, req analyticsdomain.TrackUsageRequest) (bool, error) {
		metered = req.UserID
		return true, nil
	}

	rec := f.do(http.MethodPost, "/api/v1/analytics/usage",
		`{"user_id":"someone-else","usage_type":"api_call"}`,
		map[string]string{headerUserID: "user-1", headerAPIKey: "vk_live_abc"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", metered)
}

func TestTrackUsageOverLimitReturnsTooManyRequests(t *testing.T) {
	f := newTestServer(t)
	f.analytics.verifyFn = func(context.Context, string, string) error { return nil }
	f.analytics.trackFn = func(context.Context, analyticsdomain.TrackUsageRequest) (bool, error) {
		return false, nil
	}

	rec := f.do(http.MethodPost, "/api/v1/analytics/usage",
		`{"user_id":"user-1","usage_type":"api_call"}`,
		map[string]string{headerUserID: "user-1", headerAPIKey: "vk_live_abc"})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	out := decodeEnvelope(t, rec)
	assert.Equal(t, false, out["success"])
}

func TestWebhookRejectsUnknownProvider(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/v1/billing/webhooks/paypal", `{}`, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newTestServer(t)
	f.processor.verifyErr = paymentdomain.ErrInvalidSignature

	rec := f.do(http.MethodPost, "/api/v1/billing/webhooks/stripe", `{}`, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAcknowledgesIgnoredEvents(t *testing.T) {
	f := newTestServer(t)
	f.processor.parseErr = paymentdomain.ErrEventIgnored

	rec := f.do(http.MethodPost, "/api/v1/billing/webhooks/stripe", `{}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeEnvelope(t, rec)
	data := out["data"].(map[string]any)
	assert.Equal(t, true, data["received"])
	assert.Equal(t, false, data["applied"])
}

func TestWebhookAcknowledgesUnknownIntent(t *testing.T) {
	f := newTestServer(t)
	f.processor.event = &paymentdomain.PaymentEvent{
		Provider: "stripe",
		Type:     paymentdomain.EventTypePaymentSucceeded,
		IntentID: "pi_unknown",
	}
	f.billing.applyFn = func(_ context.Context, _ *paymentdomain.PaymentEvent) (*billingdomain.Payment, error) {
		return nil, billingdomain.ErrPaymentNotFound
	}

	rec := f.do(http.MethodPost, "/api/v1/billing/webhooks/stripe", `{}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeEnvelope(t, rec)
	data := out["data"].(map[string]any)
	assert.Equal(t, false, data["applied"])
}

func TestWebhookAppliesPaymentEvent(t *testing.T) {
	f := newTestServer(t)
	f.processor.event = &paymentdomain.PaymentEvent{
		Provider: "stripe",
		Type:     paymentdomain.EventTypePaymentSucceeded,
		IntentID: "pi_123",
		Amount:   4999,
		Currency: "usd",
	}
	f.billing.applyFn = func(_ context.Context, event *paymentdomain.PaymentEvent) (*billingdomain.Payment, error) {
		assert.Equal(t, "pi_123", event.IntentID)
		return &billingdomain.Payment{ID: "pay_1", Status: billingdomain.PaymentStatusSucceeded}, nil
	}

	rec := f.do(http.MethodPost, "/api/v1/billing/webhooks/stripe", `{}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeEnvelope(t, rec)
	data := out["data"].(map[string]any)
	assert.Equal(t, true, data["applied"])
	assert.Equal(t, "pay_1", data["payment_id"])
}

func TestAdminOptimizeDeniedWithoutRole(t *testing.T) {
	f := newTestServer(t)
	f.authz.authorizeFn = func(_ context.Context, actor, object, action string) error {
		assert.Equal(t, authorization.ObjectOptimizer, object)
		assert.Equal(t, authorization.ActionOptimizerRun, action)
		return authorization.ErrForbidden
	}

	rec := f.do(http.MethodPost, "/api/v1/admin/optimize", "", map[string]string{headerActor: "user:mallory"})

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminOptimizeReturnsAssessment(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/v1/admin/optimize", "", map[string]string{headerActor: "user:alice"})

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeEnvelope(t, rec)
	data := out["data"].(map[string]any)
	assert.InDelta(t, 84.6, data["score"].(float64), 0.01)
}

func TestAdminOptimizeUnavailableWithoutMonitor(t *testing.T) {
	f := newTestServer(t, withoutMonitor())

	rec := f.do(http.MethodPost, "/api/v1/admin/optimize", "", map[string]string{headerActor: "user:alice"})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminBillingProcessRunsOneCycle(t *testing.T) {
	f := newTestServer(t)
	f.billing.cycleFn = func(_ context.Context, _ time.Time) (*billingdomain.BillingCycleResult, error) {
		return &billingdomain.BillingCycleResult{Processed: 3}, nil
	}

	rec := f.do(http.MethodPost, "/api/v1/admin/billing/process", "", map[string]string{headerActor: "user:alice"})

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeEnvelope(t, rec)
	data := out["data"].(map[string]any)
	assert.Equal(t, float64(3), data["processed"])
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := newTestServer(t)

	rec := f.do(http.MethodGet, "/health", "", map[string]string{"X-Request-Id": "req-42"})

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	require.Equal(t, http.StatusOK, rec.Code)
}

