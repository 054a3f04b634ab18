package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/beevik/etree"

	"3tcapital/ms_einvoice_batch/internal/core/document"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	"3tcapital/ms_einvoice_batch/internal/core/validation"
	"3tcapital/ms_einvoice_batch/internal/testutil"
)

const testInvoiceXML = `<Invoice>
  <Header>
    <Number>F2026-0001</Number>
    <Type>380</Type>
    <Company>FR01</Company>
  </Header>
</Invoice>`

func testNode(t *testing.T) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(testInvoiceXML); err != nil {
		t.Fatalf("parse test invoice: %v", err)
	}
	return doc.Root()
}

func testDoc() *document.Document {
	return &document.Document{
		Key: document.Key{Number: "F2026-0001", DocType: "380", CompanyCode: "FR01"},
	}
}

type stubExtractor struct {
	doc *document.Document
	err error
}

func (s stubExtractor) Extract(*etree.Element) (*document.Document, error) {
	return s.doc, s.err
}

type stubValidator struct {
	res validation.Result
}

func (s stubValidator) Validate(*etree.Element) validation.Result {
	return s.res
}

type captureValidator struct {
	tags []string
}

func (c *captureValidator) Validate(node *etree.Element) validation.Result {
	c.tags = append(c.tags, node.Tag)
	return validation.Result{}
}

type fixture struct {
	store     *testutil.FakeStore
	submitter *testutil.FakeSubmitter
	renderer  *testutil.FakeRenderer
	audit     *testutil.FakeAuditRepo
	report    *bytes.Buffer
}

func newProcessor(t *testing.T, opts Options, validator Validator) (*Processor, *fixture) {
	t.Helper()
	fx := &fixture{
		store:     testutil.NewFakeStore(),
		submitter: &testutil.FakeSubmitter{},
		renderer:  &testutil.FakeRenderer{},
		audit:     &testutil.FakeAuditRepo{},
		report:    &bytes.Buffer{},
	}
	if opts.BurstID == "" {
		opts.BurstID = "burst-1"
	}
	p := NewProcessor(
		opts,
		stubExtractor{doc: testDoc()},
		validator,
		&testutil.FakeTransformer{},
		fx.renderer,
		fx.submitter,
		fx.audit,
		validation.NewReportWriter(fx.report),
		testutil.NewNullLogger(),
	)
	return p, fx
}

func run(t *testing.T, p *Processor, fx *fixture) {
	t.Helper()
	docs := []*etree.Element{testNode(t)}
	if err := p.ProcessRange(context.Background(), fx.store, docs, 0, len(docs)); err != nil {
		t.Fatalf("ProcessRange: %v", err)
	}
}

func assertCodes(t *testing.T, got, want []lifecycle.Code) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
}

func TestProcessor_HappyPathExchange(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:                   ModeExchange,
		Policy:                 PolicyOn,
		PersistenceEnabled:     true,
		StylesheetIntermediate: "intermediate.xsl",
		StylesheetExchange:     "exchange.xsl",
	}, stubValidator{})

	run(t, p, fx)

	if len(fx.store.Saved) != 1 {
		t.Fatalf("saved %d documents, want 1", len(fx.store.Saved))
	}
	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidated,
		lifecycle.CodeSent,
		lifecycle.CodeDeposited,
	})
	if fx.submitter.SentCount() != 1 {
		t.Errorf("submitter called %d times, want 1", fx.submitter.SentCount())
	}
	if len(fx.audit.Entries) != 1 {
		t.Errorf("audit rows = %d, want 1", len(fx.audit.Entries))
	}

	findings := fx.store.Findings[testDoc().Key]
	if len(findings) != 1 || findings[0].Severity != validation.SeveritySuccess {
		t.Errorf("recorded findings = %+v, want single success", findings)
	}
	if !strings.Contains(fx.report.String(), " ** SUCCESS ** pipeline ** ") {
		t.Errorf("report missing success line:\n%s", fx.report.String())
	}
}

func TestProcessor_BlockingFindingsSkipSubmission(t *testing.T) {
	bad := validation.NewResult(validation.NewFinding(
		"profile:fr-core", validation.SeverityError, "BR-01", "missing buyer"))
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{res: bad})

	run(t, p, fx)

	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidatedWarnings,
	})
	if fx.submitter.SentCount() != 0 {
		t.Errorf("blocked document was submitted")
	}
	if strings.Contains(fx.report.String(), "SUCCESS") {
		t.Errorf("blocked document reported success:\n%s", fx.report.String())
	}
	if !strings.Contains(fx.report.String(), " ** ERROR ** profile:fr-core ** BR-01 : missing buyer") {
		t.Errorf("report missing finding line:\n%s", fx.report.String())
	}
}

func TestProcessor_ForcePolicySubmitsWarningsOnlyDocument(t *testing.T) {
	warn := validation.NewResult(validation.NewFinding(
		"profile:fr-core", validation.SeverityWarning, "BR-20", "rounding tolerance"))
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyForce,
		PersistenceEnabled: true,
	}, stubValidator{res: warn})

	run(t, p, fx)

	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidatedWarnings,
		lifecycle.CodeSent,
		lifecycle.CodeDeposited,
	})
	if fx.submitter.SentCount() != 1 {
		t.Errorf("warning-only document was not submitted under force")
	}
}

func TestProcessor_OnPolicySkipsWarningDocuments(t *testing.T) {
	warn := validation.NewResult(validation.NewFinding(
		"profile:fr-core", validation.SeverityWarning, "BR-20", "rounding tolerance"))
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{res: warn})

	run(t, p, fx)

	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidatedWarnings,
	})
	if fx.submitter.SentCount() != 0 {
		t.Errorf("warning document was submitted under plain on policy")
	}
}

func TestProcessor_ForcePolicyNeverSubmitsBlockedDocument(t *testing.T) {
	bad := validation.NewResult(validation.NewFinding(
		"profile:fr-core", validation.SeverityError, "BR-01", "missing buyer"))
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyForce,
		PersistenceEnabled: true,
	}, stubValidator{res: bad})

	run(t, p, fx)

	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidatedWarnings,
	})
	if fx.submitter.SentCount() != 0 {
		t.Errorf("document with errors was submitted under force")
	}
}

func TestProcessor_ValidateOnlyNeverSubmits(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeValidateOnly,
		Policy:             PolicyForce,
		PersistenceEnabled: true,
	}, stubValidator{})

	run(t, p, fx)

	if fx.submitter.SentCount() != 0 {
		t.Fatalf("validate-only burst reached the platform %d times", fx.submitter.SentCount())
	}
	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidated,
	})
}

func TestProcessor_ConversionFailureAbortsDocument(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{})
	p.transformer = &testutil.FakeTransformer{
		TransformFunc: func(context.Context, []byte, string) ([]byte, error) {
			return nil, errors.New("stylesheet not found")
		},
	}

	run(t, p, fx)

	if len(fx.store.Saved) != 0 {
		t.Errorf("aborted document was persisted")
	}
	if len(fx.store.Transitions[testDoc().Key]) != 0 {
		t.Errorf("aborted document got transitions: %v", fx.store.Transitions[testDoc().Key])
	}
	if !strings.Contains(fx.report.String(), " ** ERROR ** conversion ** ") {
		t.Errorf("report missing conversion finding:\n%s", fx.report.String())
	}
	findings := fx.store.Findings[testDoc().Key]
	if len(findings) != 1 || findings[0].Source != "conversion" {
		t.Errorf("recorded findings = %+v, want single conversion error", findings)
	}
}

func TestProcessor_SubmissionFailureMarksErrorSent(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{})
	fx.submitter.SendFunc = func(context.Context, []byte, string) (bool, error) {
		return false, errors.New("platform returned status 500")
	}

	run(t, p, fx)

	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidated,
		lifecycle.CodeSent,
		lifecycle.CodeErrorSent,
	})
	if !strings.Contains(fx.report.String(), " ** ERROR ** submission ** ") {
		t.Errorf("report missing submission finding:\n%s", fx.report.String())
	}
}

func TestProcessor_FindingsRecordedBeforeSubmission(t *testing.T) {
	warn := validation.NewResult(validation.NewFinding(
		"profile:fr-core", validation.SeverityWarning, "BR-20", "rounding tolerance"))
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyForce,
		PersistenceEnabled: true,
	}, stubValidator{res: warn})

	var atSend int
	fx.submitter.SendFunc = func(context.Context, []byte, string) (bool, error) {
		atSend = len(fx.store.Findings[testDoc().Key])
		return false, errors.New("platform returned status 502")
	}

	run(t, p, fx)

	if atSend != 1 {
		t.Fatalf("validation log had %d rows at submission time, want 1", atSend)
	}
	findings := fx.store.Findings[testDoc().Key]
	if len(findings) < 2 || findings[len(findings)-1].Source != "submission" {
		t.Errorf("recorded findings = %+v, want submission failure appended last", findings)
	}
}

func TestProcessor_ValidatesConvertedDocument(t *testing.T) {
	v := &captureValidator{}
	p, fx := newProcessor(t, Options{
		Mode:   ModeExchange,
		Policy: PolicyOff,
	}, v)
	p.transformer = &testutil.FakeTransformer{
		TransformFunc: func(context.Context, []byte, string) ([]byte, error) {
			return []byte(`<CrossIndustryInvoice><ID>F2026-0001</ID></CrossIndustryInvoice>`), nil
		},
	}

	run(t, p, fx)

	if len(v.tags) != 1 || v.tags[0] != "CrossIndustryInvoice" {
		t.Fatalf("validated roots = %v, want the converted document", v.tags)
	}
}

func TestProcessor_RenderOnlyValidatesSourceDocument(t *testing.T) {
	v := &captureValidator{}
	p, fx := newProcessor(t, Options{
		Mode:   ModeRender,
		Policy: PolicyOff,
	}, v)

	run(t, p, fx)

	if len(v.tags) != 1 || v.tags[0] != "Invoice" {
		t.Fatalf("validated roots = %v, want the source document", v.tags)
	}
}

func TestProcessor_UnparsableExchangeAbortsDocument(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchange,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{})
	p.transformer = &testutil.FakeTransformer{
		TransformFunc: func(context.Context, []byte, string) ([]byte, error) {
			return []byte("garbage output"), nil
		},
	}

	run(t, p, fx)

	if len(fx.store.Saved) != 0 {
		t.Errorf("document with unparsable exchange output was persisted")
	}
	if !strings.Contains(fx.report.String(), " ** ERROR ** conversion ** ") {
		t.Errorf("report missing conversion finding:\n%s", fx.report.String())
	}
}

func TestProcessor_RenderFailureIsWarningOnly(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeDual,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{})
	fx.renderer.RenderFunc = func(context.Context, []byte, string) ([]byte, error) {
		return nil, errors.New("font missing")
	}

	run(t, p, fx)

	// The failed rendition degrades the output but the exchange document
	// still goes out.
	if fx.submitter.SentCount() != 1 {
		t.Errorf("render failure blocked submission")
	}
	assertCodes(t, fx.store.TransitionCodes(testDoc().Key), []lifecycle.Code{
		lifecycle.CodeIssued,
		lifecycle.CodeValidated,
		lifecycle.CodeSent,
		lifecycle.CodeDeposited,
	})
	if !strings.Contains(fx.report.String(), " ** WARNING ** rendering ** ") {
		t.Errorf("report missing rendering warning:\n%s", fx.report.String())
	}
}

func TestProcessor_AttachmentEmbeddedInExchange(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeExchangeAttach,
		Policy:             PolicyForce,
		AttachmentsEnabled: true,
	}, stubValidator{})

	var sent []byte
	fx.submitter.SendFunc = func(_ context.Context, content []byte, _ string) (bool, error) {
		sent = content
		return true, nil
	}

	run(t, p, fx)

	if fx.renderer.Renders != 1 {
		t.Fatalf("renderer called %d times, want 1", fx.renderer.Renders)
	}
	if !bytes.Contains(sent, []byte("EmbeddedDocument")) {
		t.Fatalf("submitted content has no embedded attachment:\n%s", sent)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake"))
	if !bytes.Contains(sent, []byte(encoded)) {
		t.Errorf("submitted content does not carry the rendition payload")
	}
}

func TestProcessor_ExtractionFailureReportsFatal(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeValidateOnly,
		PersistenceEnabled: true,
	}, stubValidator{})
	p.extractor = stubExtractor{err: errors.New("document has no Header/Number")}

	run(t, p, fx)

	if len(fx.store.Saved) != 0 || len(fx.store.Transitions) != 0 {
		t.Errorf("unextractable document touched the store")
	}
	if !strings.Contains(fx.report.String(), " ** FATAL ** pipeline ** ") {
		t.Errorf("report missing fatal line:\n%s", fx.report.String())
	}
}

func TestProcessor_FindingsInsertRetriedOnce(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeValidateOnly,
		PersistenceEnabled: true,
	}, stubValidator{})
	fx.store.FindingsErr = &document.StoreError{
		Table: "invoice_validation_log", Op: "insert", Err: errors.New("connection reset"),
	}
	fx.store.FindingsErrOnce = true

	run(t, p, fx)

	// The retry carries a single finding describing the first failure.
	findings := fx.store.Findings[testDoc().Key]
	if len(findings) != 1 {
		t.Fatalf("recorded findings = %+v, want single fallback row", findings)
	}
	if findings[0].Source != "invoice_validation_log" {
		t.Errorf("fallback finding source = %q, want invoice_validation_log", findings[0].Source)
	}
}

func TestProcessor_SaveFailureRecordedAndDocumentSkipped(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeValidateOnly,
		Policy:             PolicyOn,
		PersistenceEnabled: true,
	}, stubValidator{})
	fx.store.SaveErr = &document.StoreError{
		Table: "invoice_header", Op: "insert", Err: errors.New("duplicate key"),
	}

	run(t, p, fx)

	if len(fx.store.Transitions) != 0 {
		t.Errorf("failed save still produced transitions")
	}
	if fx.submitter.SentCount() != 0 {
		t.Errorf("failed save still submitted")
	}
	if !strings.Contains(fx.report.String(), " ** ERROR ** invoice_header ** ") {
		t.Errorf("report missing header insert finding:\n%s", fx.report.String())
	}
}

func TestProcessor_PersistenceDisabledSkipsStore(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:   ModeValidateOnly,
		Policy: PolicyOff,
	}, stubValidator{})

	run(t, p, fx)

	if len(fx.store.Saved) != 0 || len(fx.store.Transitions) != 0 || len(fx.store.Findings) != 0 {
		t.Errorf("store touched with persistence disabled")
	}
	if fx.submitter.SentCount() != 0 {
		t.Errorf("policy off still submitted")
	}
	if !strings.Contains(fx.report.String(), " ** SUCCESS ** ") {
		t.Errorf("report missing success line:\n%s", fx.report.String())
	}
}

func TestProcessRange_StopsOnCancelledContext(t *testing.T) {
	p, fx := newProcessor(t, Options{Mode: ModeValidateOnly}, stubValidator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []*etree.Element{testNode(t), testNode(t)}
	err := p.ProcessRange(ctx, fx.store, docs, 0, len(docs))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestProcessRange_ClampsEndToSliceLength(t *testing.T) {
	p, fx := newProcessor(t, Options{Mode: ModeValidateOnly}, stubValidator{})

	docs := []*etree.Element{testNode(t)}
	if err := p.ProcessRange(context.Background(), fx.store, docs, 0, 10); err != nil {
		t.Fatalf("ProcessRange: %v", err)
	}
	if got := strings.Count(fx.report.String(), "SUCCESS"); got != 1 {
		t.Errorf("processed %d documents, want 1", got)
	}
}

func TestProcessor_SharedAcrossGoroutines(t *testing.T) {
	p, fx := newProcessor(t, Options{
		Mode:               ModeValidateOnly,
		Policy:             PolicyOff,
		PersistenceEnabled: true,
	}, stubValidator{})
	p.report = validation.NewReportWriter(nil)

	const n = 8
	docs := make([]*etree.Element, n)
	for i := range docs {
		docs[i] = testNode(t)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := p.ProcessRange(context.Background(), fx.store, docs, i, i+1); err != nil {
				t.Errorf("worker %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if len(fx.store.Saved) != n {
		t.Errorf("saved %d documents, want %d", len(fx.store.Saved), n)
	}
}

func TestProcessor_ErrorMessageWithDelimiterIsSanitized(t *testing.T) {
	res := validation.NewResult(validation.NewFinding(
		"profile:fr-core", validation.SeverityError, "BR-99",
		fmt.Sprintf("odd message %s embedded", " ** ")))
	p, fx := newProcessor(t, Options{Mode: ModeValidateOnly}, stubValidator{res: res})

	run(t, p, fx)

	line := fx.report.String()
	if strings.Count(line, " ** ") != 3 {
		t.Errorf("delimiter not sanitized in message: %q", line)
	}
}
