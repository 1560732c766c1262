package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usagegate/usagegate/internal/feature/domain"
	"github.com/usagegate/usagegate/internal/feature/repository"
	"github.com/usagegate/usagegate/internal/orgcontext"
	"github.com/usagegate/usagegate/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupFeatureTest(t *testing.T) (domain.Service, *snowflake.Node) {
	t.Helper()

	dbConn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.Feature{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func orgCtx(node *snowflake.Node) context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
}

func TestCreateNormalizesID(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	resp, err := svc.Create(ctx, domain.CreateRequest{
		ID:   "API Calls",
		Name: "API Calls",
		Type: domain.FeatureTypeMetered,
	})
	require.NoError(t, err)
	assert.Equal(t, "api-calls", resp.ID)
	assert.Equal(t, domain.FeatureTypeMetered, resp.Type)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	_, err := svc.Create(ctx, domain.CreateRequest{
		ID:   "seats",
		Name: "Seats",
		Type: "quota",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}

func TestCreateRejectsEmptyCreditSchema(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	_, err := svc.Create(ctx, domain.CreateRequest{
		ID:     "credits",
		Name:   "Credits",
		Type:   domain.FeatureTypeCreditSystem,
		Config: map[string]any{"schema": []any{}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)

	_, err = svc.Create(ctx, domain.CreateRequest{
		ID:   "credits",
		Name: "Credits",
		Type: domain.FeatureTypeCreditSystem,
		Config: map[string]any{"schema": []any{
			map[string]any{"metered_feature_id": "messages", "credit_cost": 0},
		}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)
}

func TestResolveReturnsCreditSystemsInCatalogOrder(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	_, err := svc.Create(ctx, domain.CreateRequest{
		ID:   "messages",
		Name: "Messages",
		Type: domain.FeatureTypeMetered,
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	_, err = svc.Create(ctx, domain.CreateRequest{
		ID:   "ai-credits",
		Name: "AI Credits",
		Type: domain.FeatureTypeCreditSystem,
		Config: map[string]any{"schema": []any{
			map[string]any{"metered_feature_id": "messages", "credit_cost": 10},
		}},
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	_, err = svc.Create(ctx, domain.CreateRequest{
		ID:   "bonus-credits",
		Name: "Bonus Credits",
		Type: domain.FeatureTypeCreditSystem,
		Config: map[string]any{"schema": []any{
			map[string]any{"metered_feature_id": "messages", "credit_cost": 2},
		}},
	})
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, "messages")
	require.NoError(t, err)
	assert.Equal(t, "messages", res.Feature.ID)
	require.Len(t, res.CreditSystems, 2)
	assert.Equal(t, "ai-credits", res.CreditSystems[0].ID)
	assert.Equal(t, "bonus-credits", res.CreditSystems[1].ID)

	item := res.CreditSystems[0].SchemaItemFor("messages")
	require.NotNil(t, item)
	assert.Equal(t, 10.0, item.CreditCost)
}

func TestListPaginatesByCursor(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	for _, id := range []string{"alpha", "beta", "gamma"} {
		_, err := svc.Create(ctx, domain.CreateRequest{
			ID:   id,
			Name: id,
			Type: domain.FeatureTypeMetered,
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	page1, info, err := svc.List(ctx, domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, info)
	assert.True(t, info.HasMore)
	require.NotEmpty(t, info.NextPageToken)
	assert.Equal(t, "gamma", page1[0].ID)
	assert.Equal(t, "beta", page1[1].ID)

	page2, info2, err := svc.List(ctx, domain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.NotNil(t, info2)
	assert.False(t, info2.HasMore)
	assert.Equal(t, "alpha", page2[0].ID)
}

func TestListWithoutPageKeepsCatalogOrder(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	for _, id := range []string{"alpha", "beta", "gamma"} {
		_, err := svc.Create(ctx, domain.CreateRequest{
			ID:   id,
			Name: id,
			Type: domain.FeatureTypeMetered,
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, info, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Nil(t, info)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].ID)
	assert.Equal(t, "gamma", all[2].ID)
}

func TestResolveUnknownFeature(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctx := orgCtx(node)

	_, err := svc.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrFeatureNotFound)
}

func TestResolveScopedToOrganization(t *testing.T) {
	svc, node := setupFeatureTest(t)
	ctxA := orgCtx(node)
	ctxB := orgCtx(node)

	_, err := svc.Create(ctxA, domain.CreateRequest{
		ID:   "seats",
		Name: "Seats",
		Type: domain.FeatureTypeBoolean,
	})
	require.NoError(t, err)

	_, err = svc.Resolve(ctxB, "seats")
	assert.ErrorIs(t, err, domain.ErrFeatureNotFound)
}
