package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"3tcapital/ms_einvoice_batch/internal/core/document"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	"3tcapital/ms_einvoice_batch/internal/core/validation"
)

// Querier is the subset of pgx used by the store. Both *pgxpool.Pool and
// *pgxpool.Conn satisfy it, so batch tasks can run the store over a
// connection they acquired for their whole range.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements document.Store against the five-table legacy schema.
type Store struct {
	q     Querier
	codes *lifecycle.CodeMap
	scale int64
	log   *slog.Logger
}

// NewStore creates a store over q. Amounts are pre-scaled by scale before
// rounding; status codes are mapped through codes on the way in.
func NewStore(q Querier, codes *lifecycle.CodeMap, scale int64, log *slog.Logger) *Store {
	return &Store{q: q, codes: codes, scale: scale, log: log}
}

// SaveDocument inserts the header row, one row per line and one row per
// tax subtotal. The header starts in the mapped "issued" status; the
// matching lifecycle row is appended by the first ApplyTransition call.
func (s *Store) SaveDocument(ctx context.Context, doc *document.Document) error {
	const headerQuery = `
		INSERT INTO invoice_header (
			doc_number, doc_type, company_code, issue_date, due_date,
			currency, supplier_name, buyer_name,
			total_excl_tax, total_tax, total_incl_tax, current_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	key := doc.Key
	_, err := s.q.Exec(ctx, headerQuery,
		truncate(key.Number, docNumberWidth),
		truncate(key.DocType, docTypeWidth),
		truncate(key.CompanyCode, companyCodeWidth),
		dayNumber(doc.IssueDate),
		dayNumber(doc.DueDate),
		orBlank(doc.Currency, currencyWidth),
		orBlank(doc.SupplierName, partyNameWidth),
		orBlank(doc.BuyerName, partyNameWidth),
		scaleAmount(doc.TotalExclTax, s.scale),
		scaleAmount(doc.TotalTax, s.scale),
		scaleAmount(doc.TotalInclTax, s.scale),
		s.codes.Internal(lifecycle.CodeIssued),
	)
	if err != nil {
		return &document.StoreError{Table: "invoice_header", Op: "insert", Err: err}
	}

	const lineQuery = `
		INSERT INTO invoice_line (
			doc_number, doc_type, company_code, line_id,
			description, quantity, unit_price, amount, tax_category
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, line := range doc.Lines {
		_, err := s.q.Exec(ctx, lineQuery,
			truncate(key.Number, docNumberWidth),
			truncate(key.DocType, docTypeWidth),
			truncate(key.CompanyCode, companyCodeWidth),
			orBlank(line.ID, lineIDWidth),
			orBlank(line.Description, descriptionWidth),
			scaleAmount(line.Quantity, s.scale),
			scaleAmount(line.UnitPrice, s.scale),
			scaleAmount(line.Amount, s.scale),
			orBlank(line.TaxCategory, taxCategoryWidth),
		)
		if err != nil {
			return &document.StoreError{Table: "invoice_line", Op: "insert", Err: err}
		}
	}

	const taxQuery = `
		INSERT INTO invoice_tax_summary (
			doc_number, doc_type, company_code, seq_no,
			tax_category, tax_rate, taxable_amount, tax_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for i, sub := range doc.TaxSubtotals {
		_, err := s.q.Exec(ctx, taxQuery,
			truncate(key.Number, docNumberWidth),
			truncate(key.DocType, docTypeWidth),
			truncate(key.CompanyCode, companyCodeWidth),
			i+1,
			orBlank(sub.Category, taxCategoryWidth),
			scaleAmount(sub.Rate, s.scale),
			scaleAmount(sub.TaxableAmount, s.scale),
			scaleAmount(sub.TaxAmount, s.scale),
		)
		if err != nil {
			return &document.StoreError{Table: "invoice_tax_summary", Op: "insert", Err: err}
		}
	}

	if s.log != nil {
		s.log.Debug("document persisted",
			"doc_number", key.Number,
			"doc_type", key.DocType,
			"company_code", key.CompanyCode,
			"lines", len(doc.Lines),
			"tax_subtotals", len(doc.TaxSubtotals),
		)
	}

	return nil
}

// ApplyTransition overwrites the header's current-status column and
// appends one lifecycle log row with the next per-document sequence
// number. The two statements are deliberately not wrapped in one
// transaction; the lifecycle log is the authoritative history and the
// status column is a denormalized convenience.
func (s *Store) ApplyTransition(ctx context.Context, key document.Key, tr lifecycle.Transition) error {
	internal := s.codes.Internal(tr.Code)

	const updateQuery = `
		UPDATE invoice_header
		SET current_status = $4
		WHERE doc_number = $1 AND doc_type = $2 AND company_code = $3
	`

	_, err := s.q.Exec(ctx, updateQuery,
		truncate(key.Number, docNumberWidth),
		truncate(key.DocType, docTypeWidth),
		truncate(key.CompanyCode, companyCodeWidth),
		internal,
	)
	if err != nil {
		return &document.StoreError{Table: "invoice_header", Op: "update status", Err: err}
	}

	seq, err := s.nextSeq(ctx, "invoice_lifecycle_log", key)
	if err != nil {
		return &document.StoreError{Table: "invoice_lifecycle_log", Op: "next sequence", Err: err}
	}

	const insertQuery = `
		INSERT INTO invoice_lifecycle_log (
			doc_number, doc_type, company_code, seq_no, status_code, message
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.q.Exec(ctx, insertQuery,
		truncate(key.Number, docNumberWidth),
		truncate(key.DocType, docTypeWidth),
		truncate(key.CompanyCode, companyCodeWidth),
		seq,
		internal,
		orBlank(tr.Message, lifecycleMsgWidth),
	)
	if err != nil {
		return &document.StoreError{Table: "invoice_lifecycle_log", Op: "insert", Err: err}
	}

	return nil
}

// RecordFindings appends one validation log row per finding, each with
// the next per-document sequence number.
func (s *Store) RecordFindings(ctx context.Context, key document.Key, res validation.Result) error {
	const insertQuery = `
		INSERT INTO invoice_validation_log (
			doc_number, doc_type, company_code, seq_no,
			source, severity, rule_id, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, f := range res.Findings() {
		seq, err := s.nextSeq(ctx, "invoice_validation_log", key)
		if err != nil {
			return &document.StoreError{Table: "invoice_validation_log", Op: "next sequence", Err: err}
		}

		_, err = s.q.Exec(ctx, insertQuery,
			truncate(key.Number, docNumberWidth),
			truncate(key.DocType, docTypeWidth),
			truncate(key.CompanyCode, companyCodeWidth),
			seq,
			orBlank(f.Source, findingSourceWidth),
			orBlank(string(f.Severity), findingSevWidth),
			orBlank(f.RuleID, findingRuleWidth),
			orBlank(f.Message, findingMsgWidth),
		)
		if err != nil {
			return &document.StoreError{Table: "invoice_validation_log", Op: "insert", Err: err}
		}
	}

	return nil
}

// nextSeq returns max(seq_no)+1 for the document in the given append-only
// table. The table name is a compile-time constant at every call site,
// never caller input.
func (s *Store) nextSeq(ctx context.Context, table string, key document.Key) (int, error) {
	query := `
		SELECT COALESCE(MAX(seq_no), 0) + 1
		FROM ` + table + `
		WHERE doc_number = $1 AND doc_type = $2 AND company_code = $3
	`

	var seq int
	err := s.q.QueryRow(ctx, query,
		truncate(key.Number, docNumberWidth),
		truncate(key.DocType, docTypeWidth),
		truncate(key.CompanyCode, companyCodeWidth),
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
