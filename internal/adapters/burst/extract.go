package burst

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"3tcapital/ms_einvoice_batch/internal/core/document"
)

// FieldPaths holds the path queries used to pull document fields out of
// one burst node. Paths are relative to the node.
type FieldPaths struct {
	Number       string
	DocType      string
	CompanyCode  string
	IssueDate    string
	DueDate      string
	Currency     string
	SupplierName string
	BuyerName    string
	TotalExclTax string
	TotalTax     string
	TotalInclTax string

	Line            string
	LineID          string
	LineDescription string
	LineQuantity    string
	LineUnitPrice   string
	LineAmount      string
	LineTaxCategory string

	TaxSubtotal   string
	TaxCategory   string
	TaxRate       string
	TaxableAmount string
	TaxAmount     string
}

// DefaultFieldPaths matches the in-house invoice layout produced by the
// upstream billing system.
func DefaultFieldPaths() FieldPaths {
	return FieldPaths{
		Number:       "Header/Number",
		DocType:      "Header/Type",
		CompanyCode:  "Header/Company",
		IssueDate:    "Header/IssueDate",
		DueDate:      "Header/DueDate",
		Currency:     "Header/Currency",
		SupplierName: "Supplier/Name",
		BuyerName:    "Buyer/Name",
		TotalExclTax: "Totals/ExclTax",
		TotalTax:     "Totals/Tax",
		TotalInclTax: "Totals/InclTax",

		Line:            "Lines/Line",
		LineID:          "ID",
		LineDescription: "Description",
		LineQuantity:    "Quantity",
		LineUnitPrice:   "UnitPrice",
		LineAmount:      "Amount",
		LineTaxCategory: "TaxCategory",

		TaxSubtotal:   "TaxSummary/Subtotal",
		TaxCategory:   "Category",
		TaxRate:       "Rate",
		TaxableAmount: "TaxableAmount",
		TaxAmount:     "TaxAmount",
	}
}

// Extractor builds domain documents from burst nodes by path queries.
type Extractor struct {
	paths FieldPaths
}

// NewExtractor creates an extractor using the given path set.
func NewExtractor(paths FieldPaths) *Extractor {
	return &Extractor{paths: paths}
}

// Extract reads the identity triple, header fields, lines and tax
// subtotals from one node. The triple is mandatory; everything else
// defaults to its zero value so that validation, not extraction, decides
// what an incomplete document means.
func (e *Extractor) Extract(node *etree.Element) (*document.Document, error) {
	key := document.Key{
		Number:      text(node, e.paths.Number),
		DocType:     text(node, e.paths.DocType),
		CompanyCode: text(node, e.paths.CompanyCode),
	}
	if key.Number == "" || key.DocType == "" || key.CompanyCode == "" {
		return nil, fmt.Errorf("document identity incomplete: number=%q type=%q company=%q",
			key.Number, key.DocType, key.CompanyCode)
	}

	doc := &document.Document{
		Key:          key,
		IssueDate:    date(node, e.paths.IssueDate),
		DueDate:      date(node, e.paths.DueDate),
		Currency:     text(node, e.paths.Currency),
		SupplierName: text(node, e.paths.SupplierName),
		BuyerName:    text(node, e.paths.BuyerName),
		TotalExclTax: amount(node, e.paths.TotalExclTax),
		TotalTax:     amount(node, e.paths.TotalTax),
		TotalInclTax: amount(node, e.paths.TotalInclTax),
	}

	for _, ln := range node.FindElements(e.paths.Line) {
		doc.Lines = append(doc.Lines, document.Line{
			ID:          text(ln, e.paths.LineID),
			Description: text(ln, e.paths.LineDescription),
			Quantity:    amount(ln, e.paths.LineQuantity),
			UnitPrice:   amount(ln, e.paths.LineUnitPrice),
			Amount:      amount(ln, e.paths.LineAmount),
			TaxCategory: text(ln, e.paths.LineTaxCategory),
		})
	}

	for _, st := range node.FindElements(e.paths.TaxSubtotal) {
		doc.TaxSubtotals = append(doc.TaxSubtotals, document.TaxSubtotal{
			Category:      text(st, e.paths.TaxCategory),
			Rate:          amount(st, e.paths.TaxRate),
			TaxableAmount: amount(st, e.paths.TaxableAmount),
			TaxAmount:     amount(st, e.paths.TaxAmount),
		})
	}

	return doc, nil
}

func text(node *etree.Element, path string) string {
	if el := node.FindElement(path); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func amount(node *etree.Element, path string) decimal.Decimal {
	raw := text(node, path)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func date(node *etree.Element, path string) time.Time {
	raw := text(node, path)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
