package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
)

var (
	productsBucket = []byte("products")
	salesBucket    = []byte("sales")
)

// BoltSalesRepository implements SalesRepository using BoltDB (bbolt)
type BoltSalesRepository struct {
	db *bbolt.DB
}

// NewBoltSalesRepository creates a new BoltDB-backed repository
func NewBoltSalesRepository(dbPath string) (*BoltSalesRepository, error) {
	// Ensure parent directory exists (important for Windows)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create parent directory for bolt db")
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{productsBucket, salesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create buckets")
	}

	return &BoltSalesRepository{db: db}, nil
}

// Close closes the database connection
func (r *BoltSalesRepository) Close() error {
	return r.db.Close()
}

// AddProduct adds a new product
func (r *BoltSalesRepository) AddProduct(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	data, err := json.Marshal(product)
	if err != nil {
		return errors.Wrap(err, "failed to marshal product")
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(productsBucket).Put([]byte(product.ID), data)
	})
}

// GetProduct retrieves a product by ID
func (r *BoltSalesRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product *domain.Product

	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(productsBucket).Get([]byte(id))
		if data == nil {
			return &domain.ProductNotFoundError{ID: id}
		}

		var found domain.Product
		if err := json.Unmarshal(data, &found); err != nil {
			return errors.Wrap(err, "failed to unmarshal product")
		}
		product = &found
		return nil
	})

	return product, err
}

// UpdateProduct updates an existing product
func (r *BoltSalesRepository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return errors.Wrap(err, "failed to marshal product")
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(productsBucket)
		if bucket.Get([]byte(product.ID)) == nil {
			return &domain.ProductNotFoundError{ID: product.ID}
		}
		return bucket.Put([]byte(product.ID), data)
	})
}

// DeleteProduct removes a product and its sales history
func (r *BoltSalesRepository) DeleteProduct(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		products := tx.Bucket(productsBucket)
		if products.Get([]byte(id)) == nil {
			return &domain.ProductNotFoundError{ID: id}
		}
		if err := products.Delete([]byte(id)); err != nil {
			return errors.Wrap(err, "failed to delete product")
		}

		sales := tx.Bucket(salesBucket)
		prefix := salePrefix(id)
		var saleKeys [][]byte
		cursor := sales.Cursor()
		for key, value := cursor.Seek([]byte(prefix)); key != nil && strings.HasPrefix(string(key), prefix); key, value = cursor.Next() {
			if _, ok := decodeSale(value, id); ok {
				saleKeys = append(saleKeys, append([]byte(nil), key...))
			}
		}

		for _, key := range saleKeys {
			if err := sales.Delete(key); err != nil {
				return errors.Wrap(err, "failed to delete sale")
			}
		}
		return nil
	})
}

// ListProducts returns products matching filters, ordered by name, with the
// total number of matches before pagination
func (r *BoltSalesRepository) ListProducts(ctx context.Context, filters ProductFilters) ([]*domain.Product, int, error) {
	var matched []*domain.Product

	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(productsBucket).ForEach(func(_, value []byte) error {
			var product domain.Product
			if err := json.Unmarshal(value, &product); err != nil {
				return nil // Skip malformed products
			}
			if filters.matches(&product) {
				matched = append(matched, &product)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list products")
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, filters.Offset, filters.Limit), len(matched), nil
}

// AddSale stores a sale record
func (r *BoltSalesRepository) AddSale(ctx context.Context, sale *domain.SaleRecord) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	data, err := json.Marshal(sale)
	if err != nil {
		return errors.Wrap(err, "failed to marshal sale")
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(salesBucket).Put([]byte(saleKey(sale)), data)
	})
}

// GetSales returns a product's sales in chronological order
func (r *BoltSalesRepository) GetSales(ctx context.Context, productID string, filters SalesFilters) ([]*domain.SaleRecord, error) {
	sales := []*domain.SaleRecord{}

	err := r.db.View(func(tx *bbolt.Tx) error {
		prefix := salePrefix(productID)
		cursor := tx.Bucket(salesBucket).Cursor()

		for key, value := cursor.Seek([]byte(prefix)); key != nil && strings.HasPrefix(string(key), prefix); key, value = cursor.Next() {
			sale, ok := decodeSale(value, productID)
			if ok && filters.matches(sale) {
				sales = append(sales, sale)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sales")
	}

	return sales, nil
}

// RecordSale stores a sale and updates its product in one transaction
func (r *BoltSalesRepository) RecordSale(ctx context.Context, sale *domain.SaleRecord, apply func(*domain.Product) error) (*domain.Product, error) {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	saleData, err := json.Marshal(sale)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal sale")
	}

	var product *domain.Product
	err = r.db.Update(func(tx *bbolt.Tx) error {
		products := tx.Bucket(productsBucket)
		data := products.Get([]byte(sale.ProductID))
		if data == nil {
			return &domain.ProductNotFoundError{ID: sale.ProductID}
		}

		var found domain.Product
		if err := json.Unmarshal(data, &found); err != nil {
			return errors.Wrap(err, "failed to unmarshal product")
		}
		if err := apply(&found); err != nil {
			return err
		}

		updated, err := json.Marshal(&found)
		if err != nil {
			return errors.Wrap(err, "failed to marshal product")
		}
		if err := products.Put([]byte(found.ID), updated); err != nil {
			return errors.Wrap(err, "failed to update product")
		}
		if err := tx.Bucket(salesBucket).Put([]byte(saleKey(sale)), saleData); err != nil {
			return errors.Wrap(err, "failed to store sale")
		}
		product = &found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}
