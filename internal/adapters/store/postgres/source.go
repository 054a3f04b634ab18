package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_einvoice_batch/internal/core/document"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
)

// Source hands out stores bound to their own pooled connection, one per
// batch task, so parallel tasks never interleave statements on a shared
// connection.
type Source struct {
	pool  *pgxpool.Pool
	codes *lifecycle.CodeMap
	scale int64
	log   *slog.Logger
}

// NewSource creates a store source backed by the connection pool.
func NewSource(pool *pgxpool.Pool, codes *lifecycle.CodeMap, scale int64, log *slog.Logger) *Source {
	return &Source{
		pool:  pool,
		codes: codes,
		scale: scale,
		log:   log,
	}
}

// AcquireStore checks a connection out of the pool and wraps it in a
// store. The returned release func gives the connection back.
func (s *Source) AcquireStore(ctx context.Context) (document.Store, func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	return NewStore(conn, s.codes, s.scale, s.log), conn.Release, nil
}
