package gofpdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/beevik/etree"
	"github.com/jung-kurt/gofpdf"
)

// Renderer implements the transform.Renderer interface with a local PDF
// generator. It is the fallback readable rendition when no external
// rendering service is configured: a plain A4 layout with the header
// fields and one row per invoice line.
type Renderer struct {
	log *slog.Logger
}

// NewRenderer creates a local PDF renderer.
func NewRenderer(log *slog.Logger) *Renderer {
	return &Renderer{log: log}
}

// Render produces a PDF rendition of the invoice XML. The template
// argument names the layout title; an empty template falls back to a
// generic heading.
func (r *Renderer) Render(ctx context.Context, source []byte, template string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(source); err != nil {
		return nil, fmt.Errorf("parse invoice document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("invoice document has no root element")
	}

	title := template
	if title == "" {
		title = "INVOICE"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, title)
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	for _, field := range []struct {
		label string
		path  string
	}{
		{"Number", "Header/Number"},
		{"Type", "Header/Type"},
		{"Company", "Header/Company"},
		{"Issue date", "Header/IssueDate"},
		{"Due date", "Header/DueDate"},
		{"Currency", "Header/Currency"},
		{"Supplier", "Supplier/Name"},
		{"Buyer", "Buyer/Name"},
	} {
		if el := root.FindElement(field.path); el != nil && el.Text() != "" {
			pdf.Cell(40, 7, field.label)
			pdf.Cell(0, 7, el.Text())
			pdf.Ln(7)
		}
	}

	lines := root.FindElements("Lines/Line")
	if len(lines) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(15, 7, "ID")
		pdf.Cell(85, 7, "Description")
		pdf.Cell(25, 7, "Qty")
		pdf.Cell(30, 7, "Unit price")
		pdf.Cell(30, 7, "Amount")
		pdf.Ln(7)

		pdf.SetFont("Helvetica", "", 10)
		for _, line := range lines {
			pdf.Cell(15, 6, childText(line, "ID"))
			pdf.Cell(85, 6, childText(line, "Description"))
			pdf.Cell(25, 6, childText(line, "Quantity"))
			pdf.Cell(30, 6, childText(line, "UnitPrice"))
			pdf.Cell(30, 6, childText(line, "Amount"))
			pdf.Ln(6)
		}
	}

	if totals := root.FindElement("Totals/InclTax"); totals != nil {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(40, 8, "Total")
		pdf.Cell(0, 8, totals.Text())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	r.log.Debug("Rendered invoice PDF", "bytes", buf.Len(), "lines", len(lines))

	return buf.Bytes(), nil
}

func childText(el *etree.Element, path string) string {
	if c := el.FindElement(path); c != nil {
		return c.Text()
	}
	return ""
}
