package document

import (
	"context"
	"fmt"

	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	"3tcapital/ms_einvoice_batch/internal/core/validation"
)

// Store is the persistence port for the fixed relational schema. Header,
// line and tax rows are created once per document; the lifecycle and
// validation logs are append-only.
type Store interface {
	// SaveDocument inserts the header row, one row per line and one row
	// per tax subtotal.
	SaveDocument(ctx context.Context, doc *Document) error

	// ApplyTransition overwrites the header's current-status column with
	// the mapped internal code and appends one lifecycle log row. The two
	// effects are separate statements, not one transaction.
	ApplyTransition(ctx context.Context, key Key, tr lifecycle.Transition) error

	// RecordFindings appends one validation log row per finding.
	RecordFindings(ctx context.Context, key Key, res validation.Result) error
}

// StoreError reports a persistence failure together with the table the
// failing statement targeted, so the pipeline can convert it into a
// finding tagged with that table.
type StoreError struct {
	Table string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Table, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
