package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/stockcast/internal/cache"
	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
	"github.com/DaDevFox/task-systems/stockcast/internal/events"
	"github.com/DaDevFox/task-systems/stockcast/internal/forecast"
	"github.com/DaDevFox/task-systems/stockcast/internal/metrics"
	"github.com/DaDevFox/task-systems/stockcast/internal/repository"
)

const (
	defaultSteps    = 7
	defaultMaxSteps = 365
)

// ForecastKey identifies a cached product forecast. Sales is the number of
// sale records the forecast was computed from.
type ForecastKey struct {
	ProductID string
	Model     forecast.ModelName
	Steps     int
	Sales     int
}

// ForecastCache holds recent product forecasts.
type ForecastCache = cache.LRUWithTTL[ForecastKey, *ProductForecast]

// NewForecastCache creates a forecast cache with the given capacity and TTL.
func NewForecastCache(size int, ttl time.Duration) (*ForecastCache, error) {
	return cache.NewLRUWithTTL[ForecastKey, *ProductForecast](size, ttl)
}

// ProductForecast is a demand forecast for a product plus the stock
// decisions derived from it.
type ProductForecast struct {
	ProductID          string                   `json:"product_id"`
	Result             *forecast.ForecastResult `json:"result"`
	HistoryDays        int                      `json:"history_days"`
	TotalDemand        float64                  `json:"total_demand"`
	DaysUntilStockout  int                      `json:"days_until_stockout"` // -1 when stock outlasts the horizon
	ReorderRecommended bool                     `json:"reorder_recommended"`
	SuggestedOrderQty  float64                  `json:"suggested_order_qty"`
	ProjectedRevenue   decimal.Decimal          `json:"projected_revenue"`
	GeneratedAt        time.Time                `json:"generated_at"`
	Cached             bool                     `json:"cached"`
}

// ForecastService ties product storage to the forecasting engine.
type ForecastService struct {
	repo    repository.SalesRepository
	engine  *forecast.Engine
	cache   *ForecastCache
	metrics *metrics.Metrics
	bus     *events.PubSub
	logger  *logrus.Logger

	defaultSteps int
	maxSteps     int
	now          func() time.Time

	// serialises the read-modify-write of stock levels in RecordSale
	stockMu sync.Mutex
}

// NewForecastService creates a new forecast service instance. cache, metrics
// and bus are optional.
func NewForecastService(
	repo repository.SalesRepository,
	engine *forecast.Engine,
	forecastCache *ForecastCache,
	m *metrics.Metrics,
	bus *events.PubSub,
	logger *logrus.Logger,
) *ForecastService {
	if logger == nil {
		logger = logrus.New()
	}
	if engine == nil {
		engine = forecast.NewEngine(forecast.DefaultEngineConfig(), logger)
	}

	return &ForecastService{
		repo:         repo,
		engine:       engine,
		cache:        forecastCache,
		metrics:      m,
		bus:          bus,
		logger:       logger,
		defaultSteps: defaultSteps,
		maxSteps:     defaultMaxSteps,
		now:          time.Now,
	}
}

// SetDefaultSteps sets the horizon used when a request asks for zero steps.
func (s *ForecastService) SetDefaultSteps(steps int) {
	if steps > 0 {
		s.defaultSteps = steps
	}
}

// SetMaxSteps caps the forecast horizon and backtest holdout a request may
// ask for.
func (s *ForecastService) SetMaxSteps(steps int) {
	if steps > 0 {
		s.maxSteps = steps
	}
}

// resolveSteps applies the default horizon to zero and rejects values
// outside [0, maxSteps].
func (s *ForecastService) resolveSteps(field string, steps int) (int, error) {
	if steps < 0 {
		return 0, invalidArgument(field, "cannot be negative")
	}
	if steps > s.maxSteps {
		return 0, invalidArgument(field, fmt.Sprintf("cannot exceed %d", s.maxSteps))
	}
	if steps == 0 {
		return min(s.defaultSteps, s.maxSteps), nil
	}
	return steps, nil
}

// CreateProduct validates and stores a new product.
func (s *ForecastService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if product == nil {
		return nil, invalidArgument("product", "is required")
	}
	if strings.TrimSpace(product.Name) == "" {
		return nil, invalidArgument("name", "is required")
	}
	if product.UnitPrice.IsNegative() {
		return nil, invalidArgument("unit_price", "cannot be negative")
	}
	if product.StockLevel < 0 {
		return nil, invalidArgument("stock_level", "cannot be negative")
	}
	if product.ReorderPoint < 0 {
		return nil, invalidArgument("reorder_point", "cannot be negative")
	}
	if product.LeadTimeDays < 0 {
		return nil, invalidArgument("lead_time_days", "cannot be negative")
	}

	now := s.now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Metadata == nil {
		product.Metadata = make(map[string]string)
	}

	if err := s.repo.AddProduct(ctx, product); err != nil {
		s.logger.WithError(err).WithField("product_name", product.Name).Error("failed to add product")
		return nil, errors.Wrap(err, "failed to create product")
	}

	s.logger.WithFields(logrus.Fields{
		"product_id":  product.ID,
		"sku":         product.SKU,
		"stock_level": product.StockLevel,
	}).Info("product created")

	return product, nil
}

// GetProduct retrieves a single product by ID
func (s *ForecastService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if productID == "" {
		return nil, invalidArgument("product_id", "is required")
	}
	return s.repo.GetProduct(ctx, productID)
}

// ListProducts returns a page of products and the total match count.
func (s *ForecastService) ListProducts(ctx context.Context, filters repository.ProductFilters) ([]*domain.Product, int, error) {
	if filters.Limit < 0 || filters.Offset < 0 {
		return nil, 0, invalidArgument("pagination", "limit and offset cannot be negative")
	}
	return s.repo.ListProducts(ctx, filters)
}

// DeleteProduct removes a product, its sales history and cached forecasts.
func (s *ForecastService) DeleteProduct(ctx context.Context, productID string) error {
	if productID == "" {
		return invalidArgument("product_id", "is required")
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.invalidate(productID)
	s.logger.WithField("product_id", productID).Info("product deleted")
	return nil
}

// RecordSale stores a sale and takes its quantity out of stock. A zero
// soldAt means now.
func (s *ForecastService) RecordSale(ctx context.Context, productID string, quantity float64, soldAt time.Time, source string) (*domain.SaleRecord, *domain.Product, error) {
	if productID == "" {
		return nil, nil, invalidArgument("product_id", "is required")
	}
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, nil, invalidArgument("quantity", "must be a positive number")
	}
	if soldAt.IsZero() {
		soldAt = s.now()
	}

	sale := &domain.SaleRecord{
		ProductID: productID,
		Quantity:  quantity,
		SoldAt:    soldAt.UTC(),
		Source:    source,
	}

	s.stockMu.Lock()
	defer s.stockMu.Unlock()

	var wasLow bool
	product, err := s.repo.RecordSale(ctx, sale, func(p *domain.Product) error {
		wasLow = p.IsLowStock()
		p.ApplySale(quantity, s.now().UTC())
		return nil
	})
	if err != nil {
		var notFound *domain.ProductNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil, err
		}
		s.logger.WithError(err).WithField("product_id", productID).Error("failed to record sale")
		return nil, nil, errors.Wrap(err, "failed to record sale")
	}

	s.invalidate(productID)
	s.metrics.ObserveSale()

	s.logger.WithFields(logrus.Fields{
		"product_id":  productID,
		"quantity":    quantity,
		"stock_level": product.StockLevel,
	}).Debug("sale recorded")

	s.publish(ctx, events.EventSaleRecorded, productID, map[string]any{
		"sale_id":     sale.ID,
		"quantity":    quantity,
		"stock_level": product.StockLevel,
	})
	if !wasLow && product.IsLowStock() {
		s.logger.WithFields(logrus.Fields{
			"product_id":    productID,
			"stock_level":   product.StockLevel,
			"reorder_point": product.ReorderPoint,
		}).Warn("product reached reorder point")
		s.publish(ctx, events.EventStockLow, productID, map[string]any{
			"stock_level":   product.StockLevel,
			"reorder_point": product.ReorderPoint,
		})
	}

	return sale, product, nil
}

// ForecastProduct forecasts daily demand for a product over steps days (zero
// means the default horizon) and derives stock decisions from it.
func (s *ForecastService) ForecastProduct(ctx context.Context, productID string, steps int, model string) (*ProductForecast, error) {
	if productID == "" {
		return nil, invalidArgument("product_id", "is required")
	}
	steps, err := s.resolveSteps("steps", steps)
	if err != nil {
		return nil, err
	}
	modelName, err := forecast.ParseModelName(model)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.GetSales(ctx, productID, repository.SalesFilters{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sales history")
	}

	key := ForecastKey{ProductID: productID, Model: modelName, Steps: steps, Sales: len(sales)}
	if s.cache != nil {
		cached, ok := s.cache.Get(key)
		s.metrics.ObserveCache(ok)
		if ok {
			out := cached.clone()
			out.Cached = true
			return out, nil
		}
	}

	series := domain.DailySeries(sales)
	started := time.Now()
	result, err := s.engine.ForecastWithConfidence(series, steps, modelName)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveForecast(strings.ToLower(result.Model), result.Degraded, time.Since(started))

	pf := buildProductForecast(product, result)
	pf.HistoryDays = len(series)
	pf.GeneratedAt = s.now().UTC()

	if s.cache != nil {
		s.cache.Set(key, pf.clone())
	}

	s.logger.WithFields(logrus.Fields{
		"product_id":          productID,
		"model":               result.Model,
		"steps":               steps,
		"history_days":        len(series),
		"degraded":            result.Degraded,
		"reorder_recommended": pf.ReorderRecommended,
	}).Info("product forecast generated")

	s.publish(ctx, events.EventForecastGenerated, productID, map[string]any{
		"model":               result.Model,
		"steps":               steps,
		"degraded":            result.Degraded,
		"reorder_recommended": pf.ReorderRecommended,
	})

	return pf, nil
}

// ForecastSeries forecasts an ad-hoc series that is not stored anywhere.
func (s *ForecastService) ForecastSeries(ctx context.Context, series []float64, steps int, model string) (*forecast.ForecastResult, error) {
	steps, err := s.resolveSteps("steps", steps)
	if err != nil {
		return nil, err
	}
	modelName, err := forecast.ParseModelName(model)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.engine.ForecastWithConfidence(series, steps, modelName)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveForecast(strings.ToLower(result.Model), result.Degraded, time.Since(started))
	return result, nil
}

// EvaluateProduct backtests every strategy on the product's last holdout
// days (zero means the default horizon), best first.
func (s *ForecastService) EvaluateProduct(ctx context.Context, productID string, holdout int) ([]forecast.ModelFitness, error) {
	if productID == "" {
		return nil, invalidArgument("product_id", "is required")
	}
	holdout, err := s.resolveSteps("holdout", holdout)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	sales, err := s.repo.GetSales(ctx, productID, repository.SalesFilters{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sales history")
	}

	results, err := forecast.Backtest(s.engine, domain.DailySeries(sales), holdout)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"holdout":    holdout,
		"best_model": results[0].Model,
	}).Info("product backtest completed")

	return results, nil
}

// buildProductForecast derives stockout, reorder and revenue figures from a
// demand forecast.
func buildProductForecast(product *domain.Product, result *forecast.ForecastResult) *ProductForecast {
	pf := &ProductForecast{
		ProductID:         product.ID,
		Result:            result,
		DaysUntilStockout: -1,
	}

	leadDays := min(product.LeadTimeDays, len(result.Predictions))
	var total, leadDemand float64
	for i, demand := range result.Predictions {
		total += demand
		if i < leadDays {
			leadDemand += demand
		}
		if pf.DaysUntilStockout < 0 && total >= product.StockLevel {
			pf.DaysUntilStockout = i + 1
		}
	}
	if product.IsOutOfStock() {
		pf.DaysUntilStockout = 0
	}

	pf.TotalDemand = total
	pf.ReorderRecommended = product.StockLevel-leadDemand <= product.ReorderPoint
	pf.SuggestedOrderQty = math.Max(0, math.Ceil(total+product.ReorderPoint-product.StockLevel))
	pf.ProjectedRevenue = product.UnitPrice.Mul(decimal.NewFromFloat(total)).Round(2)
	return pf
}

// clone copies pf deeply enough that callers cannot reach cached slices.
func (pf *ProductForecast) clone() *ProductForecast {
	out := *pf
	out.Result = pf.Result.Clone()
	return &out
}

func (s *ForecastService) invalidate(productID string) {
	if s.cache == nil {
		return
	}
	s.cache.DeleteFunc(func(k ForecastKey) bool { return k.ProductID == productID })
}

func (s *ForecastService) publish(ctx context.Context, eventType events.EventType, productID string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.NewEvent(eventType, productID, data))
}
