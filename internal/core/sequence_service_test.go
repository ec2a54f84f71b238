package core_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"fulfillment-engine/internal/core"
	"fulfillment-engine/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceStartsAtOnePerNamespace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for want := int64(1); want <= 3; want++ {
		got, err := f.sequence.Next(ctx, "invoice")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := f.sequence.Next(ctx, "receipt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestSequenceIsGaplessUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memstore.WithMaxRetries(1000))

	const workers = 40
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		values []int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.sequence.Next(ctx, "ticket")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, values, workers)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestSequenceIncrementRollsBackWithItsTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	boom := errors.New("boom")
	err := f.store.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		v, err := f.sequence.NextTx(ctx, tx, "invoice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := f.sequence.Next(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestSequenceRejectsBlankNamespace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sequence.Next(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = f.sequence.NextDocumentNumber(ctx, "", "INV")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestNextDocumentNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.sequence.NextDocumentNumber(ctx, "invoice", "inv")
	require.NoError(t, err)
	assert.Equal(t, "INV-00001", n)

	assert.Equal(t, "DN-00042", core.FormatDocumentNumber("dn", 42))
	assert.Equal(t, "DN-123456", core.FormatDocumentNumber("DN", 123456))
}
