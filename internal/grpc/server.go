package grpc

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
	"github.com/DaDevFox/task-systems/stockcast/internal/forecast"
	"github.com/DaDevFox/task-systems/stockcast/internal/repository"
	"github.com/DaDevFox/task-systems/stockcast/internal/service"
)

const errResponseFormatting = "response formatting failed"

var _ ForecastServiceServer = (*ForecastServer)(nil)

// ForecastServer implements ForecastServiceServer on top of the forecast service
type ForecastServer struct {
	svc    *service.ForecastService
	logger *logrus.Logger
}

// NewForecastServer creates a new gRPC forecast server
func NewForecastServer(svc *service.ForecastService, logger *logrus.Logger) *ForecastServer {
	if logger == nil {
		logger = logrus.New()
	}
	return &ForecastServer{svc: svc, logger: logger}
}

// CreateProduct creates a new product
func (s *ForecastServer) CreateProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if stringField(req, "name") == "" {
		return nil, status.Errorf(codes.InvalidArgument, "name is required")
	}

	price := decimal.Zero
	if raw := stringField(req, "unit_price"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid unit_price: %s", raw)
		}
		price = parsed
	} else if n := numberField(req, "unit_price"); n != 0 {
		price = decimal.NewFromFloat(n)
	}

	product, err := s.svc.CreateProduct(ctx, &domain.Product{
		SKU:          stringField(req, "sku"),
		Name:         stringField(req, "name"),
		Category:     stringField(req, "category"),
		UnitPrice:    price,
		StockLevel:   numberField(req, "stock_level"),
		ReorderPoint: numberField(req, "reorder_point"),
		LeadTimeDays: intField(req, "lead_time_days"),
		Metadata:     stringMapField(req, "metadata"),
	})
	if err != nil {
		return nil, s.toStatus(err, "create product")
	}

	return s.respond("product", product)
}

// GetProduct retrieves a single product by ID
func (s *ForecastServer) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID := stringField(req, "product_id")
	if productID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "product_id is required")
	}

	product, err := s.svc.GetProduct(ctx, productID)
	if err != nil {
		return nil, s.toStatus(err, "get product")
	}

	return s.respond("product", product)
}

// ListProducts returns a page of products
func (s *ForecastServer) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	products, total, err := s.svc.ListProducts(ctx, repository.ProductFilters{
		LowStockOnly: boolField(req, "low_stock_only"),
		Category:     stringField(req, "category"),
		Limit:        intField(req, "limit"),
		Offset:       intField(req, "offset"),
	})
	if err != nil {
		return nil, s.toStatus(err, "list products")
	}

	out, err := toStruct(map[string]any{
		"products":    products,
		"total_count": total,
	})
	if err != nil {
		s.logger.WithError(err).Error(errResponseFormatting)
		return nil, status.Errorf(codes.Internal, errResponseFormatting)
	}
	return out, nil
}

// RecordSale stores a sale and returns it with the updated product
func (s *ForecastServer) RecordSale(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID := stringField(req, "product_id")
	if productID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "product_id is required")
	}
	soldAt, err := timeField(req, "sold_at")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sale, product, err := s.svc.RecordSale(ctx, productID, numberField(req, "quantity"), soldAt, stringField(req, "source"))
	if err != nil {
		return nil, s.toStatus(err, "record sale")
	}

	out, err := toStruct(map[string]any{
		"sale":    sale,
		"product": product,
	})
	if err != nil {
		s.logger.WithError(err).Error(errResponseFormatting)
		return nil, status.Errorf(codes.Internal, errResponseFormatting)
	}
	return out, nil
}

// Forecast forecasts demand for a stored product
func (s *ForecastServer) Forecast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID := stringField(req, "product_id")
	if productID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "product_id is required")
	}

	pf, err := s.svc.ForecastProduct(ctx, productID, intField(req, "steps"), stringField(req, "model"))
	if err != nil {
		return nil, s.toStatus(err, "forecast product")
	}

	return s.respond("forecast", pf)
}

// ForecastSeries forecasts the values carried in the request
func (s *ForecastServer) ForecastSeries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	values, err := numberListField(req, "values")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.svc.ForecastSeries(ctx, values, intField(req, "steps"), stringField(req, "model"))
	if err != nil {
		return nil, s.toStatus(err, "forecast series")
	}

	return s.respond("result", result)
}

// Evaluate backtests every strategy on a stored product
func (s *ForecastServer) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	productID := stringField(req, "product_id")
	if productID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "product_id is required")
	}

	results, err := s.svc.EvaluateProduct(ctx, productID, intField(req, "holdout"))
	if err != nil {
		return nil, s.toStatus(err, "evaluate product")
	}

	return s.respond("results", results)
}

func (s *ForecastServer) respond(name string, v any) (*structpb.Struct, error) {
	out, err := field(name, v)
	if err != nil {
		s.logger.WithError(err).Error(errResponseFormatting)
		return nil, status.Errorf(codes.Internal, errResponseFormatting)
	}
	return out, nil
}

// toStatus maps service and engine errors onto gRPC status codes.
func (s *ForecastServer) toStatus(err error, op string) error {
	var (
		invalid      *service.InvalidArgumentError
		badSteps     *forecast.InvalidStepsError
		unknownModel *forecast.UnknownModelError
		insufficient *forecast.InsufficientDataError
		notFound     *domain.ProductNotFoundError
	)

	switch {
	case errors.As(err, &invalid), errors.As(err, &badSteps), errors.As(err, &unknownModel):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &insufficient):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.WithError(err).WithField("operation", op).Error("request failed")
		return status.Errorf(codes.Internal, "failed to %s", op)
	}
}
