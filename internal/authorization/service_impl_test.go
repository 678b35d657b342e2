package authorization_test

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nockworks/revenue-engine/internal/authorization"
)

func newTestService(t *testing.T) authorization.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	return authorization.NewService(authorization.Params{
		Log:      zap.NewNop(),
		Enforcer: enforcer,
	})
}

func TestAuthorizeRequiresActor(t *testing.T) {
	svc := newTestService(t)

	err := svc.Authorize(context.Background(), "  ", authorization.ObjectBilling, authorization.ActionBillingProcess)
	assert.ErrorIs(t, err, authorization.ErrInvalidActor)
}

func TestAuthorizeDeniesUnknownActor(t *testing.T) {
	svc := newTestService(t)

	err := svc.Authorize(context.Background(), "user:mallory", authorization.ObjectBilling, authorization.ActionBillingProcess)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestAdminRoleGrantsEveryAdminAction(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.GrantRole(ctx, "user:alice", authorization.RoleAdmin))

	assert.NoError(t, svc.Authorize(ctx, "user:alice", authorization.ObjectBilling, authorization.ActionBillingProcess))
	assert.NoError(t, svc.Authorize(ctx, "user:alice", authorization.ObjectOptimizer, authorization.ActionOptimizerRun))
	assert.NoError(t, svc.Authorize(ctx, "user:alice", authorization.ObjectRevenue, authorization.ActionRevenueView))
}

func TestViewerRoleIsReadOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.GrantRole(ctx, "user:bob", authorization.RoleViewer))

	assert.NoError(t, svc.Authorize(ctx, "user:bob", authorization.ObjectRevenue, authorization.ActionRevenueView))
	assert.ErrorIs(t, svc.Authorize(ctx, "user:bob", authorization.ObjectBilling, authorization.ActionBillingProcess), authorization.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:bob", authorization.ObjectOptimizer, authorization.ActionOptimizerRun), authorization.ErrForbidden)
}

func TestGrantRoleRequiresActor(t *testing.T) {
	svc := newTestService(t)

	err := svc.GrantRole(context.Background(), "", authorization.RoleAdmin)
	assert.ErrorIs(t, err, authorization.ErrInvalidActor)
}
