package repository

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/DaDevFox/task-systems/stockcast/internal/domain"
)

const (
	productPrefix = "product:"
	salesPrefix   = "sale:" // sale:product_id:timestamp:sale_id
)

// BadgerSalesRepository implements SalesRepository using BadgerDB
type BadgerSalesRepository struct {
	db *badger.DB
}

// NewBadgerSalesRepository creates a new BadgerDB-backed repository
func NewBadgerSalesRepository(dbPath string) (*BadgerSalesRepository, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger db")
	}

	return &BadgerSalesRepository{db: db}, nil
}

// Close closes the database connection
func (r *BadgerSalesRepository) Close() error {
	return r.db.Close()
}

// AddProduct adds a new product
func (r *BadgerSalesRepository) AddProduct(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	data, err := json.Marshal(product)
	if err != nil {
		return errors.Wrap(err, "failed to marshal product")
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(productPrefix+product.ID), data)
	})
}

// GetProduct retrieves a product by ID
func (r *BadgerSalesRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product *domain.Product

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(productPrefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &domain.ProductNotFoundError{ID: id}
			}
			return errors.Wrap(err, "failed to read product")
		}

		return item.Value(func(val []byte) error {
			product = &domain.Product{}
			return json.Unmarshal(val, product)
		})
	})

	return product, err
}

// UpdateProduct updates an existing product
func (r *BadgerSalesRepository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return errors.Wrap(err, "failed to marshal product")
	}

	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(productPrefix + product.ID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &domain.ProductNotFoundError{ID: product.ID}
			}
			return errors.Wrap(err, "failed to verify product existence")
		}
		return txn.Set(key, data)
	})
}

// DeleteProduct removes a product and its sales history
func (r *BadgerSalesRepository) DeleteProduct(ctx context.Context, id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(productPrefix + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &domain.ProductNotFoundError{ID: id}
			}
			return errors.Wrap(err, "failed to verify product existence")
		}
		if err := txn.Delete(key); err != nil {
			return errors.Wrap(err, "failed to delete product")
		}

		prefix := []byte(salesPrefix + salePrefix(id))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		var saleKeys [][]byte
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				if _, ok := decodeSale(val, id); ok {
					saleKeys = append(saleKeys, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				it.Close()
				return errors.Wrap(err, "failed to read sale")
			}
		}
		it.Close()

		for _, k := range saleKeys {
			if err := txn.Delete(k); err != nil {
				return errors.Wrap(err, "failed to delete sale")
			}
		}
		return nil
	})
}

// ListProducts returns products matching filters, ordered by name, with the
// total number of matches before pagination
func (r *BadgerSalesRepository) ListProducts(ctx context.Context, filters ProductFilters) ([]*domain.Product, int, error) {
	var matched []*domain.Product

	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(productPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var product domain.Product
				if err := json.Unmarshal(val, &product); err != nil {
					return nil // Skip malformed products
				}
				if filters.matches(&product) {
					matched = append(matched, &product)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list products")
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, filters.Offset, filters.Limit), len(matched), nil
}

// AddSale stores a sale record
func (r *BadgerSalesRepository) AddSale(ctx context.Context, sale *domain.SaleRecord) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	data, err := json.Marshal(sale)
	if err != nil {
		return errors.Wrap(err, "failed to marshal sale")
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(salesPrefix+saleKey(sale)), data)
	})
}

// GetSales returns a product's sales in chronological order
func (r *BadgerSalesRepository) GetSales(ctx context.Context, productID string, filters SalesFilters) ([]*domain.SaleRecord, error) {
	sales := []*domain.SaleRecord{}

	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(salesPrefix + salePrefix(productID))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				sale, ok := decodeSale(val, productID)
				if ok && filters.matches(sale) {
					sales = append(sales, sale)
				}
				return nil
			})
			if err != nil {
				return err
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
func (r *BadgerSalesRepository) RecordSale(ctx context.Context, sale *domain.SaleRecord, apply func(*domain.Product) error) (*domain.Product, error) {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	saleData, err := json.Marshal(sale)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal sale")
	}

	var product *domain.Product
	err = r.db.Update(func(txn *badger.Txn) error {
		key := []byte(productPrefix + sale.ProductID)
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &domain.ProductNotFoundError{ID: sale.ProductID}
			}
			return errors.Wrap(err, "failed to read product")
		}

		var found domain.Product
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &found)
		})
		if err != nil {
			return errors.Wrap(err, "failed to unmarshal product")
		}
		if err := apply(&found); err != nil {
			return err
		}

		updated, err := json.Marshal(&found)
		if err != nil {
			return errors.Wrap(err, "failed to marshal product")
		}
		if err := txn.Set(key, updated); err != nil {
			return errors.Wrap(err, "failed to update product")
		}
		if err := txn.Set([]byte(salesPrefix+saleKey(sale)), saleData); err != nil {
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
