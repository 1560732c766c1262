package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usagegate/usagegate/internal/apikey/domain"
	"github.com/usagegate/usagegate/internal/apikey/repository"
	"github.com/usagegate/usagegate/internal/clock"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupKeyTest(t *testing.T) (domain.Service, context.Context, snowflake.ID) {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.APIKey{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Repo:  repository.Provide(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	})

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	return svc, ctx, orgID
}

func TestCreateAndVerify(t *testing.T) {
	svc, ctx, orgID := setupKeyTest(t)

	secret, err := svc.Create(ctx, "server key")
	require.NoError(t, err)
	require.NotEmpty(t, secret.APIKey)

	got, err := svc.Verify(ctx, secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, orgID, got)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	svc, ctx, _ := setupKeyTest(t)

	secret, err := svc.Create(ctx, "server key")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, secret.APIKey+"tampered")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	_, err = svc.Verify(ctx, "not-a-key")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	svc, ctx, _ := setupKeyTest(t)

	secret, err := svc.Create(ctx, "server key")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, secret.Prefix))

	_, err = svc.Verify(ctx, secret.APIKey)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}
