package burst

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

const sampleBurst = `<?xml version="1.0" encoding="UTF-8"?>
<Burst>
  <Invoice>
    <Header>
      <Number>F2026-0001</Number>
      <Type>380</Type>
      <Company>FR01</Company>
      <IssueDate>2026-08-01</IssueDate>
      <DueDate>2026-09-01</DueDate>
      <Currency>EUR</Currency>
    </Header>
    <Supplier><Name>ACME Industrie</Name></Supplier>
    <Buyer><Name>Client SARL</Name></Buyer>
    <Totals>
      <ExclTax>100.00</ExclTax>
      <Tax>20.00</Tax>
      <InclTax>120.00</InclTax>
    </Totals>
    <Lines>
      <Line>
        <ID>1</ID>
        <Description>Widget</Description>
        <Quantity>2</Quantity>
        <UnitPrice>50.00</UnitPrice>
        <Amount>100.00</Amount>
        <TaxCategory>S</TaxCategory>
      </Line>
    </Lines>
    <TaxSummary>
      <Subtotal>
        <Category>S</Category>
        <Rate>20.00</Rate>
        <TaxableAmount>100.00</TaxableAmount>
        <TaxAmount>20.00</TaxAmount>
      </Subtotal>
    </TaxSummary>
  </Invoice>
  <Invoice>
    <Header>
      <Number>F2026-0002</Number>
      <Type>380</Type>
      <Company>FR01</Company>
    </Header>
  </Invoice>
</Burst>`

func TestSplitter_Split(t *testing.T) {
	s := NewSplitter("Invoice")
	nodes, err := s.Split(strings.NewReader(sampleBurst))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
}

func TestSplitter_SingleBareDocument(t *testing.T) {
	s := NewSplitter("Invoice")
	src := `<Invoice><Header><Number>F1</Number><Type>380</Type><Company>FR01</Company></Header></Invoice>`
	nodes, err := s.Split(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
}

func TestSplitter_NoMatches(t *testing.T) {
	s := NewSplitter("Facture")
	if _, err := s.Split(strings.NewReader(sampleBurst)); err == nil {
		t.Fatal("expected error when burst key matches nothing")
	}
}

func TestSplitter_InvalidXML(t *testing.T) {
	s := NewSplitter("Invoice")
	if _, err := s.Split(strings.NewReader("<Burst><Invoice>")); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestExtractor_Extract(t *testing.T) {
	s := NewSplitter("Invoice")
	nodes, err := s.Split(strings.NewReader(sampleBurst))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := NewExtractor(DefaultFieldPaths()).Extract(nodes[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Key.Number != "F2026-0001" || doc.Key.DocType != "380" || doc.Key.CompanyCode != "FR01" {
		t.Errorf("unexpected key: %+v", doc.Key)
	}
	if doc.Currency != "EUR" {
		t.Errorf("expected EUR, got %q", doc.Currency)
	}
	if doc.IssueDate.Format("2006-01-02") != "2026-08-01" {
		t.Errorf("unexpected issue date: %v", doc.IssueDate)
	}
	if len(doc.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(doc.Lines))
	}
	if doc.Lines[0].Description != "Widget" {
		t.Errorf("unexpected line description %q", doc.Lines[0].Description)
	}
	if !doc.TotalInclTax.Equal(decimalFromString(t, "120.00")) {
		t.Errorf("unexpected total: %s", doc.TotalInclTax)
	}
	if len(doc.TaxSubtotals) != 1 {
		t.Fatalf("expected 1 tax subtotal, got %d", len(doc.TaxSubtotals))
	}
	if doc.TaxSubtotals[0].Category != "S" {
		t.Errorf("unexpected tax category %q", doc.TaxSubtotals[0].Category)
	}
}

func TestExtractor_IncompleteIdentity(t *testing.T) {
	s := NewSplitter("Invoice")
	src := `<Invoice><Header><Number>F1</Number></Header></Invoice>`
	nodes, err := s.Split(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewExtractor(DefaultFieldPaths()).Extract(nodes[0]); err == nil {
		t.Fatal("expected error for incomplete identity triple")
	}
}
