package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/croprag/internal/models"
)

// Postgres error codes handled by the store.
const (
	pgUndefinedTable  = "42P01"
	pgDuplicateTable  = "42P07"
	pgDuplicateObject = "42710"
	pgUniqueViolation = "23505"
)

// PgVectorStore keeps the collection in a Postgres table with a pgvector column.
type PgVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

func NewPgVectorStore(ctx context.Context, config VectorStoreConfig) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PgVectorStore{
		config: config,
		pool:   pool,
		table:  pgx.Identifier{config.Collection}.Sanitize(),
		logger: slog.Default().With("component", "store", "backend", BackendPgVector, "collection", config.Collection),
	}, nil
}

func (vs *PgVectorStore) EnsureCollection(ctx context.Context) error {
	// Enable pgvector extension
	if err := vs.exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			nitrogen DOUBLE PRECISION NOT NULL,
			phosphorus DOUBLE PRECISION NOT NULL,
			potassium DOUBLE PRECISION NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL,
			ph_value DOUBLE PRECISION NOT NULL,
			recommended_crop TEXT NOT NULL,
			chemical TEXT,
			threshold TEXT,
			disease TEXT,
			affected_crops TEXT,
			model TEXT,
			embedding vector(%d)
		)`, vs.table, vs.config.VectorDim)

	if err := vs.exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// hnsw builds correctly on an empty table, unlike ivfflat
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{vs.config.Collection + "_embedding_idx"}.Sanitize(), vs.table)

	if err := vs.exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// exec runs a DDL statement and swallows "already exists" errors raised when
// two processes create the same object at once.
func (vs *PgVectorStore) exec(ctx context.Context, sql string) error {
	_, err := vs.pool.Exec(ctx, sql)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDuplicateTable, pgDuplicateObject, pgUniqueViolation:
			vs.logger.Info("collection object already exists", "code", pgErr.Code, "detail", pgErr.Message)
			return nil
		}
	}
	return err
}

// Dimension reads the typmod of the embedding column, which pgvector sets
// to the declared size.
func (vs *PgVectorStore) Dimension(ctx context.Context) (int, error) {
	var typmod int32
	err := vs.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'`, vs.table).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	if typmod < 0 {
		return 0, nil
	}
	return int(typmod), nil
}

func (vs *PgVectorStore) UpsertBatch(ctx context.Context, records []models.CropRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Begin transaction
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updates := make([]string, 0, len(fields)+1)
	for _, f := range append(fields[:len(fields):len(fields)], "embedding") {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", f, f))
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, %s, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET %s`,
		vs.table, strings.Join(fields, ", "), strings.Join(updates, ", "))

	for _, r := range records {
		if r.ID == "" {
			return ErrMissingID
		}

		_, err = tx.Exec(ctx, stmt,
			r.ID,
			sanitizeUTF8(r.Description),
			r.Nitrogen,
			r.Phosphorus,
			r.Potassium,
			r.Temperature,
			r.Humidity,
			r.PH,
			sanitizeUTF8(r.RecommendedCrop),
			sanitizeUTF8(r.Chemical),
			sanitizeUTF8(r.Threshold),
			sanitizeUTF8(r.Disease),
			sanitizeUTF8(r.AffectedCrops),
			r.Model,
			pgvector.NewVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (vs *PgVectorStore) Search(ctx context.Context, vector []float32, k int) ([]models.MatchResult, error) {
	if k <= 0 {
		return []models.MatchResult{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, %s, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		strings.Join(fields, ", "), vs.table)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		if isUndefinedTable(err) {
			vs.logger.Warn("collection does not exist, returning no matches")
			return []models.MatchResult{}, nil
		}
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	matches := make([]models.MatchResult, 0, k)
	for rows.Next() {
		var distance float64
		r, err := scanRecord(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, r.Match(distance))
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return []models.MatchResult{}, nil
		}
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return matches, nil
}

func (vs *PgVectorStore) Stale(ctx context.Context, model string, limit int) ([]models.CropRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, %s
		FROM %s
		WHERE model IS DISTINCT FROM $1
		ORDER BY id
		LIMIT $2`,
		strings.Join(fields, ", "), vs.table)

	rows, err := vs.pool.Query(ctx, query, model, limit)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query stale records: %w", err)
	}
	defer rows.Close()

	var records []models.CropRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return records, nil
}

func (vs *PgVectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}

// scanRecord reads the id and fields columns, followed by any extra targets.
func scanRecord(rows pgx.Rows, extra ...any) (models.CropRecord, error) {
	var (
		r                                            models.CropRecord
		chemical, threshold, disease, affected, model *string
	)
	dest := []any{
		&r.ID,
		&r.Description,
		&r.Nitrogen,
		&r.Phosphorus,
		&r.Potassium,
		&r.Temperature,
		&r.Humidity,
		&r.PH,
		&r.RecommendedCrop,
		&chemical,
		&threshold,
		&disease,
		&affected,
		&model,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return r, err
	}

	r.Chemical = deref(chemical)
	r.Threshold = deref(threshold)
	r.Disease = deref(disease)
	r.AffectedCrops = deref(affected)
	r.Model = deref(model)
	return r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
