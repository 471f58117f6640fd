// Package storage persists datasets and their records. Vector indices are never stored;
// they are rebuilt from the records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a dataset does not exist.
var ErrNotFound = errors.New("dataset not found")

// Store defines dataset and record persistence operations.
type Store interface {
	// Dataset operations
	CreateDataset(ctx context.Context, ds *models.Dataset, records []models.Record) error
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	ListDatasets(ctx context.Context) ([]*models.Dataset, error)
	DeleteDataset(ctx context.Context, id string) error

	// Record operations
	ReplaceRecords(ctx context.Context, id string, columns []string, records []models.Record) error
	GetRecords(ctx context.Context, id string) ([]models.Record, error)

	// Stats
	CountDatasets(ctx context.Context) (int64, error)
	CountRecords(ctx context.Context) (int64, error)

	Close() error
}
