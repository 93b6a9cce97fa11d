package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceRepository defines the interface for source registry persistence
type SourceRepository interface {
	Upsert(ctx context.Context, source entity.Source) error
	Get(ctx context.Context, sourceID string) (*entity.Source, error)
	GetByDisplayName(ctx context.Context, displayName string) (*entity.Source, error)
	List(ctx context.Context) ([]*entity.Source, error)
	Delete(ctx context.Context, sourceID string) (*entity.Source, error)
	Totals(ctx context.Context) (sources int, chunks int, err error)
}

var _ SourceRepository = &SourcePostgres{}

// SourcePostgres implements SourceRepository using PostgreSQL
type SourcePostgres struct {
	db *pgxpool.Pool
}

func NewSourcePostgres(db *pgxpool.Pool) *SourcePostgres {
	return &SourcePostgres{db: db}
}

func (r *SourcePostgres) Upsert(ctx context.Context, source entity.Source) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sources (id, display_name, format, size_bytes, chunk_count, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			format       = EXCLUDED.format,
			size_bytes   = EXCLUDED.size_bytes,
			chunk_count  = EXCLUDED.chunk_count,
			indexed_at   = EXCLUDED.indexed_at`,
		source.ID, source.DisplayName, string(source.Format),
		source.SizeBytes, source.ChunkCount, source.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

func (r *SourcePostgres) Get(ctx context.Context, sourceID string) (*entity.Source, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, display_name, format, size_bytes, chunk_count, indexed_at
		FROM sources WHERE id = $1`, sourceID)

	return scanSource(row)
}

func (r *SourcePostgres) GetByDisplayName(ctx context.Context, displayName string) (*entity.Source, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, display_name, format, size_bytes, chunk_count, indexed_at
		FROM sources WHERE display_name = $1
		ORDER BY indexed_at DESC LIMIT 1`, displayName)

	return scanSource(row)
}

func (r *SourcePostgres) List(ctx context.Context) ([]*entity.Source, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, display_name, format, size_bytes, chunk_count, indexed_at
		FROM sources ORDER BY indexed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]*entity.Source, 0)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return sources, nil
}

// Delete removes the source and returns the record as it was, so the caller
// knows how many chunks to evict from the vector store.
func (r *SourcePostgres) Delete(ctx context.Context, sourceID string) (*entity.Source, error) {
	row := r.db.QueryRow(ctx, `
		DELETE FROM sources WHERE id = $1
		RETURNING id, display_name, format, size_bytes, chunk_count, indexed_at`, sourceID)

	return scanSource(row)
}

func (r *SourcePostgres) Totals(ctx context.Context) (int, int, error) {
	var sources, chunks int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM sources`).
		Scan(&sources, &chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("count sources: %w", err)
	}
	return sources, chunks, nil
}

func scanSource(row pgx.Row) (*entity.Source, error) {
	var source entity.Source
	var format string

	err := row.Scan(&source.ID, &source.DisplayName, &format,
		&source.SizeBytes, &source.ChunkCount, &source.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}

	source.Format = entity.Format(format)
	return &source, nil
}
