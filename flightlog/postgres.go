package flightlog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS flight_records (
    id          UUID PRIMARY KEY,
    kind        TEXT NOT NULL,
    successful  BOOLEAN NOT NULL,
    latitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude   DOUBLE PRECISION NOT NULL DEFAULT 0,
    altitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
    target_dx   DOUBLE PRECISION NOT NULL DEFAULT 0,
    target_dy   DOUBLE PRECISION NOT NULL DEFAULT 0,
    target_dz   DOUBLE PRECISION NOT NULL DEFAULT 0,
    target_dyaw DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual_dx   DOUBLE PRECISION,
    actual_dy   DOUBLE PRECISION,
    actual_dz   DOUBLE PRECISION,
    actual_dyaw DOUBLE PRECISION,
    recorded_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore хранит записи в PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore подключается к базе и создает таблицу при необходимости
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create flight_records table: %w", err)
	}

	logger.Println("PostgreSQL flight log ready")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.closed.CompareAndSwap(false, true) {
		logger.Println("Closing PostgreSQL connection pool")
		s.pool.Close()
	}
}

func nullable(d *Displacement) [4]pgtype.Float8 {
	if d == nil {
		return [4]pgtype.Float8{}
	}
	return [4]pgtype.Float8{
		{Float64: d.DX, Valid: true},
		{Float64: d.DY, Valid: true},
		{Float64: d.DZ, Valid: true},
		{Float64: d.DYaw, Valid: true},
	}
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	query := `
        INSERT INTO flight_records
            (id, kind, successful, latitude, longitude, altitude,
             target_dx, target_dy, target_dz, target_dyaw,
             actual_dx, actual_dy, actual_dz, actual_dyaw, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	actual := nullable(rec.Actual)
	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Kind), rec.Successful,
		rec.Latitude, rec.Longitude, rec.Altitude,
		rec.Target.DX, rec.Target.DY, rec.Target.DZ, rec.Target.DYaw,
		actual[0], actual[1], actual[2], actual[3],
		rec.RecordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrConflict, rec.ID)
		}
		return fmt.Errorf("failed to insert flight record: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	query := `
        SELECT id, kind, successful, latitude, longitude, altitude,
               target_dx, target_dy, target_dz, target_dyaw,
               actual_dx, actual_dy, actual_dz, actual_dyaw, recorded_at
        FROM flight_records
        ORDER BY recorded_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var kind string
		var actual [4]pgtype.Float8
		err := rows.Scan(
			&rec.ID, &kind, &rec.Successful,
			&rec.Latitude, &rec.Longitude, &rec.Altitude,
			&rec.Target.DX, &rec.Target.DY, &rec.Target.DZ, &rec.Target.DYaw,
			&actual[0], &actual[1], &actual[2], &actual[3],
			&rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight record: %w", err)
		}
		rec.Kind = MoveKind(kind)
		if actual[0].Valid {
			rec.Actual = &Displacement{
				DX:   actual[0].Float64,
				DY:   actual[1].Float64,
				DZ:   actual[2].Float64,
				DYaw: actual[3].Float64,
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flight records: %w", err)
	}
	return records, nil
}
