package main

import (
	"context"
	"testing"
	"time"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	svc := app.New(memstore.New(memstore.WithBackoff(0)), app.Options{})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, seed(ctx, svc, now, zap.NewNop()))
	require.NoError(t, seed(ctx, svc, now, zap.NewNop()))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products.Products, len(catalog))

	offers, err := svc.ListOffers(ctx)
	require.NoError(t, err)
	assert.Len(t, offers.Offers, 2)
}
