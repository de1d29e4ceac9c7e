package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stocked retail item whose sales are forecast.
type Product struct {
	ID           string            `json:"id"`
	SKU          string            `json:"sku"`
	Name         string            `json:"name"`
	Category     string            `json:"category,omitempty"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	StockLevel   float64           `json:"stock_level"`
	ReorderPoint float64           `json:"reorder_point"`
	LeadTimeDays int               `json:"lead_time_days"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SaleRecord is a single sale of a product.
type SaleRecord struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  float64   `json:"quantity"`
	SoldAt    time.Time `json:"sold_at"`
	Source    string    `json:"source,omitempty"` // e.g. "pos", "online", "manual"
}

// IsLowStock checks if the product is at or below its reorder point
func (p *Product) IsLowStock() bool {
	return p.StockLevel <= p.ReorderPoint
}

// IsOutOfStock checks if the product has no stock
func (p *Product) IsOutOfStock() bool {
	return p.StockLevel <= 0
}

// ApplySale removes quantity from stock, flooring at zero.
func (p *Product) ApplySale(quantity float64, at time.Time) {
	p.StockLevel -= quantity
	if p.StockLevel < 0 {
		p.StockLevel = 0
	}
	p.UpdatedAt = at
}

// DailySeries buckets sales into UTC calendar days from the first sale day to
// the last one, filling days without sales with zero.
func DailySeries(records []*SaleRecord) []float64 {
	if len(records) == 0 {
		return []float64{}
	}

	sorted := make([]*SaleRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SoldAt.Before(sorted[j].SoldAt)
	})

	first := truncateDay(sorted[0].SoldAt)
	last := truncateDay(sorted[len(sorted)-1].SoldAt)
	days := int(last.Sub(first).Hours()/24) + 1

	series := make([]float64, days)
	for _, r := range sorted {
		idx := int(truncateDay(r.SoldAt).Sub(first).Hours() / 24)
		series[idx] += r.Quantity
	}
	return series
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ProductNotFoundError represents an error when a product is not found
type ProductNotFoundError struct {
	ID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID '%s' not found", e.ID)
}
