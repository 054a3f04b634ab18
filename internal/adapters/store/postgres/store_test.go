package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"3tcapital/ms_einvoice_batch/internal/core/document"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	"3tcapital/ms_einvoice_batch/internal/core/validation"
	"3tcapital/ms_einvoice_batch/internal/testutil"
)

// recordingQuerier captures every statement with its arguments and lets
// tests script the answer to the sequence query.
type recordingQuerier struct {
	execs   []recordedStmt
	queries []recordedStmt
	execErr error
	seq     int
}

type recordedStmt struct {
	sql  string
	args []any
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, recordedStmt{sql: sql, args: args})
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	return pgconn.CommandTag{}, nil
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.queries = append(q.queries, recordedStmt{sql: sql, args: args})
	return seqRow{seq: q.seq}
}

type seqRow struct {
	seq int
}

func (r seqRow) Scan(dest ...any) error {
	if p, ok := dest[0].(*int); ok {
		*p = r.seq
	}
	return nil
}

func emptyCodeMap(t *testing.T) *lifecycle.CodeMap {
	t.Helper()
	cm, err := lifecycle.NewCodeMap(strings.NewReader("SENT=02\nDEPOSITED=03"), "00")
	if err != nil {
		t.Fatalf("build code map: %v", err)
	}
	return cm
}

func testKey() document.Key {
	return document.Key{Number: "F2026-0001", DocType: "380", CompanyCode: "FR01"}
}

func TestStore_SaveDocument_RowShapes(t *testing.T) {
	q := &recordingQuerier{}
	store := NewStore(q, emptyCodeMap(t), 100, testutil.NewNullLogger())

	doc := &document.Document{
		Key:          testKey(),
		IssueDate:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Currency:     "EUR",
		TotalInclTax: decimal.RequireFromString("1.205"),
		Lines: []document.Line{
			{ID: "1", Description: "widget", Quantity: decimal.NewFromInt(2)},
			{ID: "2"},
		},
		TaxSubtotals: []document.TaxSubtotal{
			{Category: "S", Rate: decimal.RequireFromString("0.20")},
		},
	}

	if err := store.SaveDocument(context.Background(), doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	// 1 header + 2 lines + 1 tax subtotal.
	if len(q.execs) != 4 {
		t.Fatalf("expected 4 inserts, got %d", len(q.execs))
	}

	header := q.execs[0]
	if !strings.Contains(header.sql, "invoice_header") {
		t.Errorf("first insert should target invoice_header: %s", header.sql)
	}
	// issue_date as day count, due_date absent -> 0.
	if header.args[3] != 46235 || header.args[4] != 0 {
		t.Errorf("unexpected date encoding: issue=%v due=%v", header.args[3], header.args[4])
	}
	// Absent supplier name -> single blank.
	if header.args[6] != " " {
		t.Errorf("expected blank supplier name, got %q", header.args[6])
	}
	// 1.205 * 100 rounded half-up.
	if total, ok := header.args[10].(decimal.Decimal); !ok || total.String() != "120.5" {
		t.Errorf("unexpected scaled total: %v", header.args[10])
	}

	tax := q.execs[3]
	if !strings.Contains(tax.sql, "invoice_tax_summary") {
		t.Errorf("last insert should target invoice_tax_summary: %s", tax.sql)
	}
	if tax.args[3] != 1 {
		t.Errorf("expected tax subtotal seq 1, got %v", tax.args[3])
	}
}

func TestStore_ApplyTransition_TwoStatements(t *testing.T) {
	q := &recordingQuerier{seq: 3}
	store := NewStore(q, emptyCodeMap(t), 100, testutil.NewNullLogger())

	tr := lifecycle.TransitionFor(lifecycle.CodeSent)
	if err := store.ApplyTransition(context.Background(), testKey(), tr); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}

	if len(q.execs) != 2 {
		t.Fatalf("expected update + insert, got %d statements", len(q.execs))
	}
	update, insert := q.execs[0], q.execs[1]
	if !strings.Contains(update.sql, "UPDATE invoice_header") {
		t.Errorf("first statement should update header: %s", update.sql)
	}
	if update.args[3] != "02" {
		t.Errorf("expected mapped internal code 02, got %v", update.args[3])
	}
	if !strings.Contains(insert.sql, "invoice_lifecycle_log") {
		t.Errorf("second statement should append lifecycle row: %s", insert.sql)
	}
	if insert.args[3] != 3 {
		t.Errorf("expected sequence from max+1 query, got %v", insert.args[3])
	}
	if insert.args[4] != "02" {
		t.Errorf("lifecycle row should carry the internal code, got %v", insert.args[4])
	}

	if len(q.queries) != 1 || !strings.Contains(q.queries[0].sql, "COALESCE(MAX(seq_no), 0) + 1") {
		t.Errorf("expected one max+1 sequence query, got %+v", q.queries)
	}
}

func TestStore_ApplyTransition_UnmappedCodeUsesDefault(t *testing.T) {
	q := &recordingQuerier{seq: 1}
	store := NewStore(q, emptyCodeMap(t), 100, testutil.NewNullLogger())

	tr := lifecycle.TransitionFor(lifecycle.CodeDisputed)
	if err := store.ApplyTransition(context.Background(), testKey(), tr); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if q.execs[0].args[3] != "00" {
		t.Errorf("expected default internal code 00, got %v", q.execs[0].args[3])
	}
}

func TestStore_RecordFindings_OneRowPerFinding(t *testing.T) {
	q := &recordingQuerier{seq: 5}
	store := NewStore(q, emptyCodeMap(t), 100, testutil.NewNullLogger())

	var res validation.Result
	res.Add(validation.NewFinding("EN16931", validation.SeverityError, "BR-16", "at least one line is required"))
	res.Add(validation.NewFinding("EN16931", validation.SeverityWarning, "BR-CL-04", "currency should be EUR"))

	if err := store.RecordFindings(context.Background(), testKey(), res); err != nil {
		t.Fatalf("RecordFindings: %v", err)
	}

	if len(q.execs) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(q.execs))
	}
	if len(q.queries) != 2 {
		t.Fatalf("expected 2 sequence queries, got %d", len(q.queries))
	}
	first := q.execs[0]
	if first.args[5] != "ERROR" || first.args[6] != "BR-16" {
		t.Errorf("unexpected first finding row: %+v", first.args)
	}
}

func TestStore_ErrorsCarryTableName(t *testing.T) {
	q := &recordingQuerier{execErr: context.DeadlineExceeded}
	store := NewStore(q, emptyCodeMap(t), 100, testutil.NewNullLogger())

	err := store.SaveDocument(context.Background(), &document.Document{Key: testKey()})
	if err == nil {
		t.Fatal("expected error")
	}
	var storeErr *document.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %T", err)
	}
	if storeErr.Table != "invoice_header" {
		t.Errorf("expected invoice_header table tag, got %q", storeErr.Table)
	}
}
