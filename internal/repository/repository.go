package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
)

// SalesRepository defines the interface for product and sales persistence
type SalesRepository interface {
	// Product operations
	AddProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, filters ProductFilters) ([]*domain.Product, int, error)

	// Sales operations
	AddSale(ctx context.Context, sale *domain.SaleRecord) error
	GetSales(ctx context.Context, productID string, filters SalesFilters) ([]*domain.SaleRecord, error)

	// RecordSale stores a sale and applies apply to its product in a single
	// transaction. Nothing is written if the product is missing or apply fails.
	RecordSale(ctx context.Context, sale *domain.SaleRecord, apply func(*domain.Product) error) (*domain.Product, error)

	Close() error
}

// ProductFilters provides filtering options for listing products
type ProductFilters struct {
	LowStockOnly bool
	Category     string
	Limit        int
	Offset       int
}

// SalesFilters restricts sales to a time window; zero times are unbounded.
type SalesFilters struct {
	StartTime time.Time
	EndTime   time.Time
}

// saleTimeLayout is fixed width so that lexical key order is chronological.
const saleTimeLayout = "20060102T150405.000000000"

func saleKey(sale *domain.SaleRecord) string {
	return fmt.Sprintf("%s:%s:%s", sale.ProductID, sale.SoldAt.UTC().Format(saleTimeLayout), sale.ID)
}

// salePrefix also matches products whose ID extends productID with a colon,
// so scans must check the decoded sale's ProductID.
func salePrefix(productID string) string {
	return productID + ":"
}

func decodeSale(value []byte, productID string) (*domain.SaleRecord, bool) {
	var sale domain.SaleRecord
	if err := json.Unmarshal(value, &sale); err != nil {
		return nil, false
	}
	if sale.ProductID != productID {
		return nil, false
	}
	return &sale, true
}

func (f ProductFilters) matches(p *domain.Product) bool {
	if f.LowStockOnly && !p.IsLowStock() {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	return true
}

func (f SalesFilters) matches(s *domain.SaleRecord) bool {
	if !f.StartTime.IsZero() && s.SoldAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && s.SoldAt.After(f.EndTime) {
		return false
	}
	return true
}

// paginate applies offset and limit to an already filtered list.
func paginate(products []*domain.Product, offset, limit int) []*domain.Product {
	if offset > 0 {
		if offset >= len(products) {
			return []*domain.Product{}
		}
		products = products[offset:]
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products
}
