// Package postgres implements the remote-table submission store on a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	backend      = "remote"
	defaultTable = "submissions"
)

// columns is the remote row shape. Remote rows never carry constellations.
var columns = []string{"id", "created_at", "photo_url", "brightness_level", "lat", "long"}

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Options selects the remote table.
type Options struct {
	// URL is the connection string, e.g. postgres://skylore@db:5432/skylore.
	URL string
	// Key is the access credential, used as the connection password.
	Key string
	// Table may be schema-qualified. Defaults to "submissions".
	Table string
}

// Store reads and appends rows in a remote submissions table.
type Store struct {
	db     querier
	pool   *pgxpool.Pool
	table  pgx.Identifier
	logger *slog.Logger
}

// NewStore validates opts and creates a lazily connecting pool. Missing
// credentials fail with domain.ErrConfiguration before any network I/O.
func NewStore(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	var missing []string
	if opts.URL == "" {
		missing = append(missing, "REMOTE_DB_URL")
	}
	if opts.Key == "" {
		missing = append(missing, "REMOTE_DB_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: remote store requires %s", domain.ErrConfiguration, strings.Join(missing, " and "))
	}

	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse REMOTE_DB_URL: %w", domain.ErrConfiguration, err)
	}
	cfg.ConnConfig.Password = opts.Key

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &domain.DataSourceError{Backend: backend, Op: "connect", Err: err}
	}

	s := newStore(pool, opts.Table, logger)
	s.pool = pool
	return s, nil
}

func newStore(db querier, table string, logger *slog.Logger) *Store {
	if table == "" {
		table = defaultTable
	}
	return &Store{db: db, table: pgx.Identifier(strings.Split(table, ".")), logger: logger}
}

// Name identifies the store variant.
func (s *Store) Name() string { return backend }

// FetchAll selects every row of the table.
func (s *Store) FetchAll(ctx context.Context) ([]domain.RawRecord, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), s.table.Sanitize())
	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, &domain.DataSourceError{Backend: backend, Op: "fetch", Err: err}
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, &domain.DataSourceError{Backend: backend, Op: "fetch", Err: err}
	}

	raws := make([]domain.RawRecord, len(maps))
	for i, fields := range maps {
		raws[i] = domain.RawRecord{Source: domain.SourceRemote, Index: i, Fields: plainValues(fields)}
	}
	s.logger.Debug("remote rows fetched", "table", s.table.Sanitize(), "rows", len(raws))
	return raws, nil
}

// Append inserts one row. Constellation names are not stored remotely.
func (s *Store) Append(ctx context.Context, sub domain.Submission) error {
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)",
		s.table.Sanitize(), strings.Join(columns, ", "))

	var photoURL any
	if sub.PhotoURL != "" {
		photoURL = sub.PhotoURL
	}
	tag, err := s.db.Exec(ctx, sql, sub.ID, sub.Timestamp.UTC(), photoURL, sub.BrightnessRating, sub.Latitude, sub.Longitude)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("duplicate id %q: %w", sub.ID, err)
		}
		return &domain.DataSourceError{Backend: backend, Op: "append", Err: err}
	}
	if tag.RowsAffected() != 1 {
		return &domain.DataSourceError{Backend: backend, Op: "append", Err: fmt.Errorf("inserted %d rows", tag.RowsAffected())}
	}
	if len(sub.Constellations()) > 0 {
		s.logger.Debug("constellations not stored by remote table", "id", sub.ID)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return &domain.DataSourceError{Backend: backend, Op: "ping", Err: err}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// plainValues converts pgtype numerics into float64 so the normalizer sees
// ordinary Go numbers.
func plainValues(fields map[string]any) map[string]any {
	for k, v := range fields {
		n, ok := v.(pgtype.Numeric)
		if !ok {
			continue
		}
		if !n.Valid {
			fields[k] = nil
			continue
		}
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			continue
		}
		fields[k] = f.Float64
	}
	return fields
}

// isUniqueViolation reports whether err came from a duplicate primary key.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
