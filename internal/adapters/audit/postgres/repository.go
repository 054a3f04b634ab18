package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_einvoice_batch/internal/core/audit"
)

// Repository implements the audit.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) audit.Repository {
	return &Repository{pool: pool, log: log}
}

// Save persists one processing audit row.
func (r *Repository) Save(ctx context.Context, entry audit.ProcessingAuditLog) error {
	query := `
		INSERT INTO processing_audit_log (
			correlation_id, burst_id, doc_number, doc_type, company_code, mode
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.CorrelationID,
		entry.BurstID,
		entry.DocumentNumber,
		entry.DocumentType,
		entry.CompanyCode,
		entry.Mode,
	)
	if err != nil {
		errMsg := fmt.Errorf("insert audit log: %w", err)
		if r.log != nil {
			r.log.Error("Failed to insert audit log into database",
				"correlation_id", entry.CorrelationID,
				"burst_id", entry.BurstID,
				"doc_number", entry.DocumentNumber,
				"error", errMsg,
			)
		}
		return errMsg
	}

	return nil
}

// FindByBurstID retrieves all audit rows written for one burst.
func (r *Repository) FindByBurstID(ctx context.Context, burstID string) ([]audit.ProcessingAuditLog, error) {
	query := `
		SELECT id, correlation_id, burst_id, doc_number, doc_type, company_code, mode, started_at
		FROM processing_audit_log
		WHERE burst_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, burstID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.ProcessingAuditLog
	for rows.Next() {
		var entry audit.ProcessingAuditLog
		err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.BurstID,
			&entry.DocumentNumber,
			&entry.DocumentType,
			&entry.CompanyCode,
			&entry.Mode,
			&entry.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}
