package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Store using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_path TEXT,
		columns TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at);

	CREATE TABLE IF NOT EXISTS records (
		dataset_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (dataset_id, position),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CreateDataset inserts a dataset and its records in one transaction.
func (s *SQLiteStorage) CreateDataset(ctx context.Context, ds *models.Dataset, records []models.Record) error {
	columnsJSON, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	ds.RecordCount = len(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, source_path, columns, record_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.SourcePath, string(columnsJSON), ds.RecordCount, ds.CreatedAt, ds.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	if err := insertRecords(ctx, tx, ds.ID, records); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceRecords swaps a dataset's records and columns in one transaction.
func (s *SQLiteStorage) ReplaceRecords(ctx context.Context, id string, columns []string, records []models.Record) error {
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE datasets SET columns = ?, record_count = ?, updated_at = ? WHERE id = ?`,
		string(columnsJSON), len(records), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	if err := insertRecords(ctx, tx, id, records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, id string, records []models.Record) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (dataset_id, position, text) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, id, r.ID, r.Text); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	return nil
}

const datasetColumns = `id, name, COALESCE(source_path, ''), columns, record_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (*models.Dataset, error) {
	var ds models.Dataset
	var columnsJSON string
	if err := row.Scan(&ds.ID, &ds.Name, &ds.SourcePath, &columnsJSON, &ds.RecordCount, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(columnsJSON), &ds.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	return &ds, nil
}

// GetDataset returns a dataset by ID.
func (s *SQLiteStorage) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	ds, err := scanDataset(s.db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// ListDatasets returns all datasets, oldest first.
func (s *SQLiteStorage) ListDatasets(ctx context.Context) ([]*models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// GetRecords returns a dataset's records ordered by position.
func (s *SQLiteStorage) GetRecords(ctx context.Context, id string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, text FROM records WHERE dataset_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and its records.
func (s *SQLiteStorage) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

// CountDatasets returns the total number of datasets.
func (s *SQLiteStorage) CountDatasets(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&count)
	return count, err
}

// CountRecords returns the total number of records across datasets.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
