package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
	"github.com/DaDevFox/task-systems/stockcast/internal/events"
	"github.com/DaDevFox/task-systems/stockcast/internal/forecast"
	"github.com/DaDevFox/task-systems/stockcast/internal/metrics"
	"github.com/DaDevFox/task-systems/stockcast/internal/repository"
)

const (
	testProductName = "Cold Brew"
	testSKU         = "CB-330"
	expectedNoError = "Expected no error, got %v"
)

var testDay = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	service *ForecastService
	repo    repository.SalesRepository
	metrics *metrics.Metrics
	bus     *events.PubSub
}

// setupTestService creates a service backed by a real bolt database.
func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	repo, err := repository.NewSalesRepository(filepath.Join(t.TempDir(), "test.db"), repository.DatabaseTypeBolt)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	forecastCache, err := NewForecastCache(32, time.Minute)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	bus := events.NewPubSub(logger)
	engine := forecast.NewEngine(forecast.DefaultEngineConfig(), logger)

	return &testEnv{
		service: NewForecastService(repo, engine, forecastCache, m, bus, logger),
		repo:    repo,
		metrics: m,
		bus:     bus,
	}
}

func createTestProduct(t *testing.T, svc *ForecastService, stock, reorderPoint float64) *domain.Product {
	t.Helper()

	product, err := svc.CreateProduct(context.Background(), &domain.Product{
		SKU:          testSKU,
		Name:         testProductName,
		Category:     "beverages",
		UnitPrice:    decimal.RequireFromString("2.50"),
		StockLevel:   stock,
		ReorderPoint: reorderPoint,
		LeadTimeDays: 3,
	})
	require.NoError(t, err)
	return product
}

// recordDailySales records one sale per day starting at testDay.
func recordDailySales(t *testing.T, svc *ForecastService, productID string, quantities []float64) {
	t.Helper()

	for i, q := range quantities {
		_, _, err := svc.RecordSale(context.Background(), productID, q, testDay.AddDate(0, 0, i), "pos")
		require.NoError(t, err)
	}
}

func constantSales(value float64, days int) []float64 {
	out := make([]float64, days)
	for i := range out {
		out[i] = value
	}
	return out
}

func waitForEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()

	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}
