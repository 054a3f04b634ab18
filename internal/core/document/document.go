package document

import (
	"time"

	"github.com/shopspring/decimal"
)

// Key is the identity triple shared by every persisted table. It never
// changes after the document is first extracted from its XML node.
type Key struct {
	Number      string
	DocType     string
	CompanyCode string
}

// Document is one invoice extracted from a burst, with the header fields,
// ordered line items and tax-category subtotals the legacy schema stores.
type Document struct {
	Key          Key
	IssueDate    time.Time
	DueDate      time.Time
	Currency     string
	SupplierName string
	BuyerName    string
	TotalExclTax decimal.Decimal
	TotalTax     decimal.Decimal
	TotalInclTax decimal.Decimal
	Lines        []Line
	TaxSubtotals []TaxSubtotal
}

// Line is one invoice line item.
type Line struct {
	ID          string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	TaxCategory string
}

// TaxSubtotal is the per-tax-category breakdown of the invoice total.
type TaxSubtotal struct {
	Category      string
	Rate          decimal.Decimal
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// Name returns the display name used when submitting the document.
func (d *Document) Name() string {
	return d.Key.DocType + "-" + d.Key.Number
}
