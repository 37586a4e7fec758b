package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/filecrate/dedup-service/internal/models"
)

// PostgresStore implements RecordStore on PostgreSQL. The unique index on
// file_hash is the arbiter of the duplicate-create race, and the version
// column backs the optimistic concurrency checks.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, configures the pool and ensures the schema.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	p := &PostgresStore{db: db}
	if err := p.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	log.Println("Connected to PostgreSQL successfully")
	return p, nil
}

func (p *PostgresStore) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS files (
        id UUID PRIMARY KEY,
        file_hash VARCHAR(64) NOT NULL UNIQUE,
        original_filename VARCHAR(255) NOT NULL,
        file_type VARCHAR(100) NOT NULL,
        size BIGINT NOT NULL,
        extension VARCHAR(20) NOT NULL DEFAULT '',
        category VARCHAR(20) NOT NULL DEFAULT 'other',
        description TEXT NOT NULL DEFAULT '',
        tags TEXT[] NOT NULL DEFAULT '{}',
        is_favorite BOOLEAN NOT NULL DEFAULT false,
        reference_count INTEGER NOT NULL DEFAULT 1 CHECK (reference_count >= 1),
        uploaded_at TIMESTAMPTZ NOT NULL,
        version BIGINT NOT NULL DEFAULT 1
    );
    `
	if _, err := p.db.Exec(query); err != nil {
		return err
	}

	indexQuery := `
    CREATE INDEX IF NOT EXISTS idx_files_uploaded_at ON files(uploaded_at DESC);
    CREATE INDEX IF NOT EXISTS idx_files_file_type ON files(file_type);
    CREATE INDEX IF NOT EXISTS idx_files_size ON files(size);
    `
	_, err := p.db.Exec(indexQuery)
	return err
}

const recordColumns = `id, file_hash, original_filename, file_type, size, extension, category, description, tags, is_favorite, reference_count, uploaded_at, version`

func scanRecord(row interface{ Scan(...interface{}) error }) (models.FileRecord, error) {
	var rec models.FileRecord
	var tags pq.StringArray
	err := row.Scan(
		&rec.ID,
		&rec.Fingerprint,
		&rec.OriginalFilename,
		&rec.MediaType,
		&rec.Size,
		&rec.Extension,
		&rec.Category,
		&rec.Description,
		&tags,
		&rec.IsFavorite,
		&rec.ReferenceCount,
		&rec.UploadedAt,
		&rec.Version,
	)
	rec.Tags = []string(tags)
	return rec, err
}

func (p *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string) (models.FileRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM files WHERE file_hash = $1`
	rec, err := scanRecord(p.db.QueryRowContext(ctx, query, fingerprint))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FileRecord{}, ErrNotFound
		}
		return models.FileRecord{}, fmt.Errorf("failed to query record by fingerprint: %w", err)
	}
	return rec, nil
}

func (p *PostgresStore) FindByID(ctx context.Context, id string) (models.FileRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM files WHERE id = $1`
	rec, err := scanRecord(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FileRecord{}, ErrNotFound
		}
		return models.FileRecord{}, fmt.Errorf("failed to query record by id: %w", err)
	}
	return rec, nil
}

func (p *PostgresStore) Create(ctx context.Context, record models.FileRecord) error {
	if record.Tags == nil {
		record.Tags = []string{}
	}
	query := `
    INSERT INTO files (id, file_hash, original_filename, file_type, size, extension, category, description, tags, is_favorite, reference_count, uploaded_at, version)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
    `
	_, err := p.db.ExecContext(ctx, query,
		record.ID,
		record.Fingerprint,
		record.OriginalFilename,
		record.MediaType,
		record.Size,
		record.Extension,
		record.Category,
		record.Description,
		pq.StringArray(record.Tags),
		record.IsFavorite,
		record.ReferenceCount,
		record.UploadedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateFingerprint
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, record models.FileRecord) error {
	if record.Tags == nil {
		record.Tags = []string{}
	}
	query := `
    UPDATE files
    SET original_filename = $1,
        file_type = $2,
        size = $3,
        extension = $4,
        category = $5,
        description = $6,
        tags = $7,
        is_favorite = $8,
        reference_count = $9,
        version = version + 1
    WHERE id = $10 AND version = $11
    `
	result, err := p.db.ExecContext(ctx, query,
		record.OriginalFilename,
		record.MediaType,
		record.Size,
		record.Extension,
		record.Category,
		record.Description,
		pq.StringArray(record.Tags),
		record.IsFavorite,
		record.ReferenceCount,
		record.ID,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return p.missOrConflict(ctx, record.ID)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string, version int64) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return p.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict distinguishes a stale version from a missing row after a
// conditional write touched nothing.
func (p *PostgresStore) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check record existence: %w", err)
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrNotFound
}

func (p *PostgresStore) List(ctx context.Context) ([]models.FileRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM files ORDER BY uploaded_at DESC`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func(rows *sql.Rows) {
		if cerr := rows.Close(); cerr != nil {
			log.Printf("Error closing rows: %v", cerr)
		}
	}(rows)

	var records []models.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
