package audit

import (
	"context"
	"time"
)

// ProcessingAuditLog is the legacy audit row written once per document
// before its pipeline run. Writes are best-effort: a failed insert is
// logged and processing continues.
type ProcessingAuditLog struct {
	ID             int64
	CorrelationID  string
	BurstID        string
	DocumentNumber string
	DocumentType   string
	CompanyCode    string
	Mode           string
	StartedAt      time.Time
}

// Repository defines the contract for persisting and retrieving audit rows.
type Repository interface {
	// Save persists one audit row.
	Save(ctx context.Context, entry ProcessingAuditLog) error

	// FindByBurstID retrieves all audit rows written for one burst, in
	// insertion order. Used for post-run inspection of partial batches.
	FindByBurstID(ctx context.Context, burstID string) ([]ProcessingAuditLog, error)
}
