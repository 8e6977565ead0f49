package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/xhad/croprag/internal/models"
)

// SQLiteStore keeps the collection in a single SQLite file. Embeddings are
// stored as float32 blobs and searched with a brute-force cosine scan.
type SQLiteStore struct {
	config VectorStoreConfig
	db     *sql.DB
	table  string
	logger *slog.Logger
}

func NewSQLiteStore(ctx context.Context, config VectorStoreConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serialises writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		config: config,
		db:     db,
		table:  `"` + strings.ReplaceAll(config.Collection, `"`, `""`) + `"`,
		logger: slog.Default().With("component", "store", "backend", BackendSQLite, "collection", config.Collection),
	}, nil
}

func (s *SQLiteStore) EnsureCollection(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			nitrogen REAL NOT NULL,
			phosphorus REAL NOT NULL,
			potassium REAL NOT NULL,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL,
			ph_value REAL NOT NULL,
			recommended_crop TEXT NOT NULL,
			chemical TEXT NOT NULL DEFAULT '',
			threshold TEXT NOT NULL DEFAULT '',
			disease TEXT NOT NULL DEFAULT '',
			affected_crops TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertBatch(ctx context.Context, records []models.CropRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO %s (id, %s, embedding) VALUES (?%s)`,
		s.table, strings.Join(fields, ", "), strings.Repeat(", ?", len(fields)+1)))
	if err != nil {
		if isNoSuchTable(err) {
			return fmt.Errorf("collection %s does not exist: %w", s.config.Collection, err)
		}
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.ID == "" {
			return ErrMissingID
		}
		_, err := stmt.ExecContext(ctx,
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
			EncodeVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]models.MatchResult, error) {
	if k <= 0 {
		return []models.MatchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, %s, embedding FROM %s`, strings.Join(fields, ", "), s.table))
	if err != nil {
		if isNoSuchTable(err) {
			s.logger.Warn("collection does not exist, returning no matches")
			return []models.MatchResult{}, nil
		}
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	matches := make([]models.MatchResult, 0)
	for rows.Next() {
		var blob []byte
		r, err := scanSQLiteRecord(rows, &blob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		embedding, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}

		distance, err := CosineDistance(vector, embedding)
		if err != nil {
			s.logger.Debug("skipping record", "id", r.ID, "err", err)
			continue
		}
		matches = append(matches, r.Match(distance))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	slices.SortStableFunc(matches, func(a, b models.MatchResult) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *SQLiteStore) Stale(ctx context.Context, model string, limit int) ([]models.CropRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, %s FROM %s WHERE model <> ? ORDER BY id LIMIT ?`,
		strings.Join(fields, ", "), s.table), model, limit)
	if err != nil {
		if isNoSuchTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query stale records: %w", err)
	}
	defer rows.Close()

	var records []models.CropRecord
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return records, nil
}

// Dimension is always 0: blobs of any length are accepted and mismatched
// vectors are skipped at search time.
func (s *SQLiteStore) Dimension(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteRecord(rows *sql.Rows, extra ...any) (models.CropRecord, error) {
	var r models.CropRecord
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
		&r.Chemical,
		&r.Threshold,
		&r.Disease,
		&r.AffectedCrops,
		&r.Model,
	}
	err := rows.Scan(append(dest, extra...)...)
	return r, err
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
