package processing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/etree"

	"3tcapital/ms_einvoice_batch/internal/core/audit"
	"3tcapital/ms_einvoice_batch/internal/core/document"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	"3tcapital/ms_einvoice_batch/internal/core/submission"
	"3tcapital/ms_einvoice_batch/internal/core/transform"
	"3tcapital/ms_einvoice_batch/internal/core/validation"
)

// Finding sources for failures the pipeline itself produces. Persistence
// failures carry the failing table name as their source instead.
const (
	sourcePipeline   = "pipeline"
	sourceConversion = "conversion"
	sourceRendering  = "rendering"
	sourceSubmission = "submission"
)

// Extractor builds a domain document from one burst node.
type Extractor interface {
	Extract(node *etree.Element) (*document.Document, error)
}

// Validator runs the cascading validation against one burst node.
type Validator interface {
	Validate(node *etree.Element) validation.Result
}

// Options is the immutable per-burst configuration of a processor. It is
// built once from the application config plus the burst identifiers and
// passed in whole; the processor holds no other mutable state, so one
// instance is shared by every worker of a batch.
type Options struct {
	Mode               Mode
	Policy             SubmitPolicy
	PersistenceEnabled bool
	AttachmentsEnabled bool

	StylesheetIntermediate string
	StylesheetExchange     string
	PDFTemplate            string

	BurstID       string
	CorrelationID string
}

// Processor runs the per-document pipeline: audit row, mode-gated
// conversion and rendering, cascading validation, persistence, lifecycle
// transitions and optional submission.
type Processor struct {
	opts        Options
	extractor   Extractor
	validator   Validator
	transformer transform.Transformer
	renderer    transform.Renderer
	submitter   submission.Submitter
	auditRepo   audit.Repository
	report      *validation.ReportWriter
	log         *slog.Logger
}

// NewProcessor wires a processor. auditRepo may be nil when auditing is
// not configured; submitter may be nil when submission is off.
func NewProcessor(
	opts Options,
	extractor Extractor,
	validator Validator,
	transformer transform.Transformer,
	renderer transform.Renderer,
	submitter submission.Submitter,
	auditRepo audit.Repository,
	report *validation.ReportWriter,
	log *slog.Logger,
) *Processor {
	return &Processor{
		opts:        opts,
		extractor:   extractor,
		validator:   validator,
		transformer: transformer,
		renderer:    renderer,
		submitter:   submitter,
		auditRepo:   auditRepo,
		report:      report,
		log:         log,
	}
}

// ProcessRange processes docs[start:end) in order against the given
// store. Handled per-document failures (conversion aborts, blocking
// findings, platform rejections) are recorded and do not stop the range;
// only infrastructure errors and context cancellation abort the
// remaining documents.
func (p *Processor) ProcessRange(ctx context.Context, store document.Store, docs []*etree.Element, start, end int) error {
	if end > len(docs) {
		end = len(docs)
	}
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.processOne(ctx, store, docs[i]); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	return nil
}

func (p *Processor) processOne(ctx context.Context, store document.Store, node *etree.Element) error {
	doc, err := p.extractor.Extract(node)
	if err != nil {
		// Without the identity triple there is nothing to persist
		// against; the finding goes to the report only.
		res := validation.NewResult(validation.NewFinding(
			sourcePipeline, validation.SeverityFatal, "", err.Error()))
		p.report.WriteResult(res)
		p.log.Error("document extraction failed", "burst_id", p.opts.BurstID, "error", err)
		return nil
	}
	key := doc.Key

	p.writeAudit(ctx, doc)

	source, err := serializeNode(node)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", doc.Name(), err)
	}

	var res validation.Result

	var exchange []byte
	if p.opts.Mode.ProducesExchange() {
		exchange, err = p.convert(ctx, source)
		if err != nil {
			// Conversion failure aborts this document before any row is
			// written; the finding is recorded and the batch moves on.
			res.Add(validation.NewFinding(sourceConversion, validation.SeverityError, "", err.Error()))
			p.finish(ctx, store, key, res)
			return nil
		}
	}

	var rendition []byte
	if p.opts.Mode.RendersPDF() {
		rendition, err = p.renderer.Render(ctx, source, p.opts.PDFTemplate)
		if err != nil {
			// A missing rendition degrades the output but never blocks
			// the exchange document.
			res.Add(validation.NewFinding(sourceRendering, validation.SeverityWarning, "", err.Error()))
			rendition = nil
		}
	}

	if p.opts.Mode.EmbedsAttachment() && p.opts.AttachmentsEnabled && len(rendition) > 0 {
		exchange, err = embedAttachment(exchange, rendition)
		if err != nil {
			res.Add(validation.NewFinding(sourceConversion, validation.SeverityWarning, "",
				fmt.Sprintf("attachment not embedded: %v", err)))
		}
	}

	// Validation targets the converted document when the mode produced
	// one; only the render-only mode validates the source tree.
	target := node
	if p.opts.Mode.ProducesExchange() {
		target, err = parseExchange(exchange)
		if err != nil {
			res.Add(validation.NewFinding(sourceConversion, validation.SeverityError, "",
				fmt.Sprintf("exchange document not parseable: %v", err)))
			p.finish(ctx, store, key, res)
			return nil
		}
	}

	vres := p.validator.Validate(target)
	res.Merge(vres)

	if p.opts.PersistenceEnabled {
		if err := store.SaveDocument(ctx, doc); err != nil {
			res.Add(p.storeFinding(err))
			p.finish(ctx, store, key, res)
			return nil
		}
		p.transition(ctx, store, key, lifecycle.CodeIssued, &res)

		if vres.IsValid() {
			p.transition(ctx, store, key, lifecycle.CodeValidated, &res)
		} else {
			p.transition(ctx, store, key, lifecycle.CodeValidatedWarnings, &res)
		}
	}

	// Everything gathered so far goes on the books before the submission
	// decision; a submission failure only appends its own finding.
	p.record(ctx, store, key, res)

	subRes := p.submit(ctx, store, doc, source, exchange, vres)
	if subRes.Len() > 0 {
		p.record(ctx, store, key, subRes)
		res.Merge(subRes)
	}

	if res.IsValid() {
		success := validation.NewFinding(sourcePipeline, validation.SeveritySuccess, "",
			fmt.Sprintf("%s processed successfully", doc.Name()))
		p.record(ctx, store, key, validation.NewResult(success))
		res.Add(success)
	}

	p.emit(key, res)
	return nil
}

// parseExchange parses the converted bytes back into an element tree for
// validation.
func parseExchange(exchange []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(exchange); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	return root, nil
}

// convert runs the two-stage stylesheet chain producing the exchange
// document.
func (p *Processor) convert(ctx context.Context, source []byte) ([]byte, error) {
	intermediate, err := p.transformer.Transform(ctx, source, p.opts.StylesheetIntermediate)
	if err != nil {
		return nil, fmt.Errorf("intermediate transformation: %w", err)
	}
	exchange, err := p.transformer.Transform(ctx, intermediate, p.opts.StylesheetExchange)
	if err != nil {
		return nil, fmt.Errorf("exchange transformation: %w", err)
	}
	return exchange, nil
}

// submit sends the document when the validation outcome and the policy
// allow it, applying the sent/deposited/error-sent transitions around
// the attempt. Validate-only bursts never submit, whatever the policy.
// The returned findings describe the attempt itself.
func (p *Processor) submit(ctx context.Context, store document.Store, doc *document.Document, source, exchange []byte, vres validation.Result) validation.Result {
	var res validation.Result
	if p.submitter == nil || !p.submitter.Enabled() {
		return res
	}
	if p.opts.Mode == ModeValidateOnly {
		return res
	}
	if !p.opts.Policy.ShouldSubmit(vres.IsValid(), vres.HasBlocking()) {
		return res
	}

	content := exchange
	if content == nil {
		content = source
	}

	if p.opts.PersistenceEnabled {
		p.transition(ctx, store, doc.Key, lifecycle.CodeSent, &res)
	}

	ok, err := p.submitter.Send(ctx, content, doc.Name())
	if err != nil || !ok {
		msg := "platform refused document"
		if err != nil {
			msg = err.Error()
		}
		res.Add(validation.NewFinding(sourceSubmission, validation.SeverityError, "", msg))
		if p.opts.PersistenceEnabled {
			p.transition(ctx, store, doc.Key, lifecycle.CodeErrorSent, &res)
		}
		return res
	}

	if p.opts.PersistenceEnabled {
		p.transition(ctx, store, doc.Key, lifecycle.CodeDeposited, &res)
	}
	return res
}

// transition applies one lifecycle transition; a failing transition
// becomes a finding instead of aborting the document.
func (p *Processor) transition(ctx context.Context, store document.Store, key document.Key, code lifecycle.Code, res *validation.Result) {
	if err := store.ApplyTransition(ctx, key, lifecycle.TransitionFor(code)); err != nil {
		res.Add(p.storeFinding(err))
	}
}

// record inserts the findings into the validation log. A failing insert
// is retried exactly once with a finding describing the failure; if that
// insert fails too, the findings fall back to the logger so the failure
// is never silent and never recurses further.
func (p *Processor) record(ctx context.Context, store document.Store, key document.Key, res validation.Result) {
	if !p.opts.PersistenceEnabled || res.Len() == 0 {
		return
	}
	if err := store.RecordFindings(ctx, key, res); err != nil {
		fallback := validation.NewResult(p.storeFinding(err))
		if err2 := store.RecordFindings(ctx, key, fallback); err2 != nil {
			p.log.Error("validation log unavailable, findings dropped to log only",
				"document", key.Number, "error", err2)
		}
	}
}

// finish records and reports in one step, for documents that abort
// before the submission decision.
func (p *Processor) finish(ctx context.Context, store document.Store, key document.Key, res validation.Result) {
	p.record(ctx, store, key, res)
	p.emit(key, res)
}

// emit writes the report lines and the per-document log summary.
func (p *Processor) emit(key document.Key, res validation.Result) {
	p.report.WriteResult(res)

	if res.HasBlocking() {
		p.log.Warn("document finished with blocking findings",
			"burst_id", p.opts.BurstID, "document", key.Number, "findings", res.Len())
	} else {
		p.log.Debug("document finished",
			"burst_id", p.opts.BurstID, "document", key.Number, "findings", res.Len())
	}
}

// writeAudit inserts the best-effort audit row. Failures are logged and
// never stop the pipeline.
func (p *Processor) writeAudit(ctx context.Context, doc *document.Document) {
	if p.auditRepo == nil {
		return
	}
	entry := audit.ProcessingAuditLog{
		CorrelationID:  p.opts.CorrelationID,
		BurstID:        p.opts.BurstID,
		DocumentNumber: doc.Key.Number,
		DocumentType:   doc.Key.DocType,
		CompanyCode:    doc.Key.CompanyCode,
		Mode:           string(p.opts.Mode),
		StartedAt:      time.Now(),
	}
	if err := p.auditRepo.Save(ctx, entry); err != nil {
		p.log.Warn("audit row not written", "document", doc.Key.Number, "error", err)
	}
}

// storeFinding converts a persistence failure into a finding tagged with
// the failing table.
func (p *Processor) storeFinding(err error) validation.Finding {
	source := "persistence"
	var storeErr *document.StoreError
	if errors.As(err, &storeErr) {
		source = storeErr.Table
	}
	return validation.NewFinding(source, validation.SeverityError, "", err.Error())
}

// serializeNode writes one burst node back to XML without detaching it
// from the shared tree.
func serializeNode(node *etree.Element) ([]byte, error) {
	out := etree.NewDocument()
	out.SetRoot(node.Copy())
	return out.WriteToBytes()
}

// embedAttachment adds the rendition to the exchange document as a
// base64 element.
func embedAttachment(exchange, rendition []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(exchange); err != nil {
		return exchange, fmt.Errorf("parse exchange document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return exchange, fmt.Errorf("exchange document has no root element")
	}

	attachment := root.CreateElement("Attachment")
	embedded := attachment.CreateElement("EmbeddedDocument")
	embedded.CreateAttr("mimeCode", "application/pdf")
	embedded.SetText(base64.StdEncoding.EncodeToString(rendition))

	out, err := doc.WriteToBytes()
	if err != nil {
		return exchange, fmt.Errorf("write exchange document: %w", err)
	}
	return out, nil
}
