package grpc

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
	"github.com/DaDevFox/task-systems/stockcast/internal/forecast"
	"github.com/DaDevFox/task-systems/stockcast/internal/service"
)

// Client calls the forecast service over a gRPC connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens an insecure connection to addr. The caller closes the returned
// connection.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// ProductInput carries the fields for CreateProduct.
type ProductInput struct {
	SKU          string            `json:"sku,omitempty"`
	Name         string            `json:"name"`
	Category     string            `json:"category,omitempty"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	StockLevel   float64           `json:"stock_level"`
	ReorderPoint float64           `json:"reorder_point"`
	LeadTimeDays int               `json:"lead_time_days"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ProductPage is a ListProducts response.
type ProductPage struct {
	Products   []*domain.Product `json:"products"`
	TotalCount int               `json:"total_count"`
}

// SaleResult is a RecordSale response.
type SaleResult struct {
	Sale    *domain.SaleRecord `json:"sale"`
	Product *domain.Product    `json:"product"`
}

// CreateProduct creates a product.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	var out struct {
		Product *domain.Product `json:"product"`
	}
	if err := c.call(ctx, methodCreateProduct, in, &out); err != nil {
		return nil, err
	}
	return out.Product, nil
}

// GetProduct fetches a product by ID.
func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var out struct {
		Product *domain.Product `json:"product"`
	}
	if err := c.call(ctx, methodGetProduct, map[string]any{"product_id": productID}, &out); err != nil {
		return nil, err
	}
	return out.Product, nil
}

// ListProducts lists products; zero values mean no filter.
func (c *Client) ListProducts(ctx context.Context, lowStockOnly bool, category string, limit, offset int) (*ProductPage, error) {
	req := map[string]any{
		"low_stock_only": lowStockOnly,
		"category":       category,
		"limit":          limit,
		"offset":         offset,
	}
	var out ProductPage
	if err := c.call(ctx, methodListProducts, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordSale records a sale; a zero soldAt lets the server use its clock.
func (c *Client) RecordSale(ctx context.Context, productID string, quantity float64, soldAt time.Time, source string) (*SaleResult, error) {
	req := map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"source":     source,
	}
	if !soldAt.IsZero() {
		req["sold_at"] = soldAt.Format(time.RFC3339Nano)
	}
	var out SaleResult
	if err := c.call(ctx, methodRecordSale, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Forecast forecasts a stored product's demand.
func (c *Client) Forecast(ctx context.Context, productID string, steps int, model string) (*service.ProductForecast, error) {
	req := map[string]any{
		"product_id": productID,
		"steps":      steps,
		"model":      model,
	}
	var out struct {
		Forecast *service.ProductForecast `json:"forecast"`
	}
	if err := c.call(ctx, methodForecast, req, &out); err != nil {
		return nil, err
	}
	return out.Forecast, nil
}

// ForecastSeries forecasts an ad-hoc series on the server.
func (c *Client) ForecastSeries(ctx context.Context, values []float64, steps int, model string) (*forecast.ForecastResult, error) {
	req := map[string]any{
		"values": values,
		"steps":  steps,
		"model":  model,
	}
	var out struct {
		Result *forecast.ForecastResult `json:"result"`
	}
	if err := c.call(ctx, methodForecastSeries, req, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Evaluate backtests a stored product.
func (c *Client) Evaluate(ctx context.Context, productID string, holdout int) ([]forecast.ModelFitness, error) {
	req := map[string]any{
		"product_id": productID,
		"holdout":    holdout,
	}
	var out struct {
		Results []forecast.ModelFitness `json:"results"`
	}
	if err := c.call(ctx, methodEvaluate, req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) call(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}
