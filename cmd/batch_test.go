package main

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vendor-research/internal/model"
)

func batchVendors(n int) []model.Vendor {
	vendors := make([]model.Vendor, n)
	for i := range vendors {
		vendors[i] = model.Vendor{ID: model.DeterministicVendorID(string(rune('a' + i))), IsActive: true}
	}
	return vendors
}

func TestProcessBatchRunsAll(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	err := processBatch(context.Background(), batchVendors(5), 0, 2, func(_ context.Context, v model.Vendor) error {
		mu.Lock()
		seen = append(seen, v.ID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 5)
}

func TestProcessBatchAppliesLimit(t *testing.T) {
	var mu sync.Mutex
	count := 0

	err := processBatch(context.Background(), batchVendors(5), 2, 1, func(context.Context, model.Vendor) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessBatchSkipsInactive(t *testing.T) {
	vendors := batchVendors(3)
	vendors[1].IsActive = false

	var mu sync.Mutex
	count := 0
	err := processBatch(context.Background(), vendors, 0, 1, func(context.Context, model.Vendor) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessBatchContinuesPastFailures(t *testing.T) {
	var mu sync.Mutex
	count := 0

	err := processBatch(context.Background(), batchVendors(4), 0, 2, func(_ context.Context, v model.Vendor) error {
		mu.Lock()
		count++
		mu.Unlock()
		if count%2 == 0 {
			return eris.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestProcessBatchNoVendors(t *testing.T) {
	assert.NoError(t, processBatch(context.Background(), nil, 0, 2, func(context.Context, model.Vendor) error {
		t.Fatal("should not run")
		return nil
	}))
}
