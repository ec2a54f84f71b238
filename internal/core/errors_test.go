package core_test

import (
	"context"
	"errors"
	"testing"

	"fulfillment-engine/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := core.NotFound("order", "o-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "order o-1: not found", err.Error())
}

func TestStoresReportMissingDocumentsAsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.catalog.GetProduct(ctx, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "product missing")

	_, err = f.orders.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "order missing")
}
