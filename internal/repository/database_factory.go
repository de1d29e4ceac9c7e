package repository

import (
	"fmt"
	"strings"
)

// DatabaseType represents different database backend options
type DatabaseType string

const (
	DatabaseTypeBadger DatabaseType = "badger"
	DatabaseTypeBolt   DatabaseType = "bolt"
)

// NewSalesRepository creates a new sales repository with the specified database type
//
// Database Types:
// - bolt: Compact B+ tree database, single file storage (default)
// - badger: LSM-tree database, directory based, faster for write-heavy point-of-sale feeds
func NewSalesRepository(dbPath string, dbType DatabaseType) (SalesRepository, error) {
	switch dbType {
	case DatabaseTypeBolt, "":
		// Use .bolt extension for BoltDB files
		if !strings.HasSuffix(dbPath, ".bolt") {
			dbPath = dbPath + ".bolt"
		}
		return NewBoltSalesRepository(dbPath)

	case DatabaseTypeBadger:
		// BadgerDB uses directory-based storage
		return NewBadgerSalesRepository(dbPath)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// ParseDatabaseType validates a configured backend name.
func ParseDatabaseType(raw string) (DatabaseType, error) {
	switch DatabaseType(strings.ToLower(strings.TrimSpace(raw))) {
	case DatabaseTypeBolt, "":
		return DatabaseTypeBolt, nil
	case DatabaseTypeBadger:
		return DatabaseTypeBadger, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", raw)
	}
}
