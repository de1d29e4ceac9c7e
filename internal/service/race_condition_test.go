package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/stockcast/internal/repository"
)

func TestConcurrentSalesKeepStockConsistent(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, env.service, 100, 0)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := env.service.RecordSale(ctx, product.ID, 1, testDay.AddDate(0, 0, i%5), "pos"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("RecordSale failed: %v", err)
	}

	stored, err := env.service.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, stored.StockLevel)

	sales, err := env.repo.GetSales(ctx, product.ID, repository.SalesFilters{})
	require.NoError(t, err)
	assert.Len(t, sales, workers)
}

func TestConcurrentForecasts(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	product := createTestProduct(t, env.service, 100, 0)
	recordDailySales(t, env.service, product.ID, constantSales(3, 21))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			models := []string{"", "ma7", "ses", "arima", "sarima"}
			pf, err := env.service.ForecastProduct(ctx, product.ID, 7, models[i%len(models)])
			if assert.NoError(t, err) {
				assert.Len(t, pf.Result.Predictions, 7)
			}
		}(i)
	}
	wg.Wait()
}
