// Package pgvector implements storage.VectorStore on PostgreSQL with the
// pgvector extension, through gorm.
//
// All namespaces share one table; every statement is scoped by the
// namespace column.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	defaultTable     = "chunk_vectors"
	defaultBatchSize = 100
)

// chunkVector is one row of the vector table.
type chunkVector struct {
	Namespace  string          `gorm:"primaryKey;type:text"`
	ID         string          `gorm:"primaryKey;type:text"`
	SourceID   string          `gorm:"type:text;not null;index"`
	SourceName string          `gorm:"type:text"`
	PageNumber int             `gorm:"not null"`
	Text       string          `gorm:"type:text"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

type scoredRow struct {
	chunkVector
	Score float64
}

func toRow(namespace string, r core.VectorRecord) chunkVector {
	return chunkVector{
		Namespace:  namespace,
		ID:         r.ID,
		SourceID:   r.Metadata.SourceID,
		SourceName: r.Metadata.SourceName,
		PageNumber: r.Metadata.PageNumber,
		Text:       r.Metadata.Text,
		Embedding:  pgvector.NewVector(r.Values),
	}
}

func (r scoredRow) match() core.VectorMatch {
	return core.VectorMatch{
		ID:    r.ID,
		Score: float32(r.Score),
		Metadata: core.VectorMetadata{
			SourceID:   r.SourceID,
			PageNumber: r.PageNumber,
			Text:       r.Text,
			SourceName: r.SourceName,
		},
	}
}

// Store implements storage.VectorStore on PostgreSQL.
type Store struct {
	db        *gorm.DB
	table     string
	batchSize int
	logger    *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithTable sets the table name. Default is "chunk_vectors".
func WithTable(name string) Option {
	return func(s *Store) error {
		if name == "" {
			return errors.New("table name required")
		}
		s.table = name
		return nil
	}
}

// WithBatchSize sets the number of rows per insert statement. Default is 100.
func WithBatchSize(n int) Option {
	return func(s *Store) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		s.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		if l == nil {
			l = slog.Default()
		}
		s.logger = l
		return nil
	}
}

// gormLogWriter adapts slog.Logger to gorm's logger.Writer.
type gormLogWriter struct {
	logger *slog.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.logger.Debug(fmt.Sprintf(format, args...))
}

// Open connects to PostgreSQL, enables the vector extension and migrates
// the vector table.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		table:     defaultTable,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "pgvector")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(gormLogWriter{logger: s.logger}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}
	return s.db.WithContext(ctx).Table(s.table).AutoMigrate(&chunkVector{})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert inserts or replaces records by (namespace, id).
func (s *Store) Upsert(ctx context.Context, namespace string, records []core.VectorRecord) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", storage.ErrInvalidQuery)
	}
	if len(records) == 0 {
		return nil
	}
	rows := make([]chunkVector, len(records))
	for i, r := range records {
		if len(r.Values) != len(records[0].Values) {
			return fmt.Errorf("%w: %s", storage.ErrDimensionMismatch, r.ID)
		}
		rows[i] = toRow(namespace, r)
	}

	return s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(rows, s.batchSize).Error
}

// Search returns the topK rows closest by cosine distance.
func (s *Store) Search(ctx context.Context, namespace string, vector []float32, topK int, filter storage.Filter) ([]core.VectorMatch, error) {
	if namespace == "" || topK < 1 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	query := pgvector.NewVector(vector)

	tx := s.db.WithContext(ctx).Table(s.table).
		Select("*, 1 - (embedding <=> ?) AS score", query).
		Where("namespace = ?", namespace)
	if filter.SourceID != "" {
		tx = tx.Where("source_id = ?", filter.SourceID)
	}

	var rows []scoredRow
	err := tx.Order(clause.OrderBy{
		Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []any{query}, WithoutParentheses: true},
	}).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]core.VectorMatch, len(rows))
	for i, r := range rows {
		matches[i] = r.match()
	}
	return matches, nil
}

// Delete removes the rows selected by req within the namespace.
func (s *Store) Delete(ctx context.Context, namespace string, req storage.DeleteRequest) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", storage.ErrInvalidQuery)
	}
	tx := s.db.WithContext(ctx).Table(s.table).Where("namespace = ?", namespace)
	switch {
	case req.All:
	case len(req.IDs) > 0:
		tx = tx.Where("id IN ?", req.IDs)
	case !req.Filter.IsEmpty():
		tx = tx.Where("source_id = ?", req.Filter.SourceID)
	default:
		return fmt.Errorf("%w: empty delete request", storage.ErrInvalidQuery)
	}

	result := tx.Delete(&chunkVector{})
	if result.Error != nil {
		return result.Error
	}
	s.logger.Debug("deleted vectors", "namespace", namespace, "count", result.RowsAffected)
	return nil
}
