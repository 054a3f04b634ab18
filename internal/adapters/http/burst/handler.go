package burst

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	burstsplit "3tcapital/ms_einvoice_batch/internal/adapters/burst"
	"3tcapital/ms_einvoice_batch/internal/application/batch"
	"3tcapital/ms_einvoice_batch/internal/application/processing"
	"3tcapital/ms_einvoice_batch/internal/core/audit"
	ctxutil "3tcapital/ms_einvoice_batch/internal/infrastructure/context"
	httperrors "3tcapital/ms_einvoice_batch/internal/infrastructure/http"
)

// maxBurstBytes caps the accepted burst payload. Bursts of tens of
// thousands of invoices stay well below this.
const maxBurstBytes = 256 << 20

// Runner schedules a parsed burst across the worker pool.
type Runner interface {
	Run(ctx context.Context, proc batch.Processor, docs []*etree.Element) error
}

// Overrides are per-request processing options. Nil fields keep the
// configured defaults.
type Overrides struct {
	Mode   *processing.Mode
	Policy *processing.SubmitPolicy
}

// ProcessorFactory builds the per-burst document processor, bound to the
// burst and correlation identifiers and any request overrides.
type ProcessorFactory func(burstID, correlationID string, ov Overrides) batch.Processor

// Handler bridges HTTP traffic with the burst processing pipeline.
type Handler struct {
	splitter     *burstsplit.Splitter
	runner       Runner
	newProcessor ProcessorFactory
	auditRepo    audit.Repository
	log          *slog.Logger
}

// NewHandler creates a burst HTTP handler. auditRepo may be nil; the
// audit lookup endpoint then returns 503.
func NewHandler(splitter *burstsplit.Splitter, runner Runner, factory ProcessorFactory, auditRepo audit.Repository, log *slog.Logger) *Handler {
	return &Handler{
		splitter:     splitter,
		runner:       runner,
		newProcessor: factory,
		auditRepo:    auditRepo,
		log:          log,
	}
}

// IngestResponse summarizes one processed burst.
type IngestResponse struct {
	BurstID   string `json:"burstId"`
	Documents int    `json:"documents"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	TookMs    int64  `json:"tookMs"`
}

// Ingest handles POST /v1/bursts: the request body is one burst XML
// file, split on the configured burst key and processed synchronously.
// The response reports per-burst totals; per-document outcomes live in
// the validation and lifecycle logs.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	correlationID := ctxutil.GetCorrelationID(r.Context())
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	burstID := uuid.NewString()

	overrides, err := parseOverrides(r)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error",
			[]string{err.Error()}, h.log)
		return
	}

	docs, err := h.splitter.Split(http.MaxBytesReader(w, r.Body, maxBurstBytes))
	if err != nil {
		h.log.Warn("Burst rejected", "burst_id", burstID, "error", err)
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error",
			[]string{"burst payload could not be split: " + err.Error()}, h.log)
		return
	}
	if len(docs) == 0 {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error",
			[]string{"burst contains no documents"}, h.log)
		return
	}

	h.log.Info("Burst accepted",
		"burst_id", burstID, "correlation_id", correlationID, "documents", len(docs))

	proc := h.newProcessor(burstID, correlationID, overrides)
	runErr := h.runner.Run(r.Context(), proc, docs)

	resp := IngestResponse{
		BurstID:   burstID,
		Documents: len(docs),
		Status:    "completed",
		TookMs:    time.Since(start).Milliseconds(),
	}

	code := http.StatusOK
	if runErr != nil {
		// Partial failure: some ranges were not fully processed.
		resp.Status = "completed_with_errors"
		resp.Error = runErr.Error()
		code = http.StatusInternalServerError
		h.log.Error("Burst finished with errors",
			"burst_id", burstID, "documents", len(docs), "error", runErr)
	} else {
		h.log.Info("Burst finished",
			"burst_id", burstID, "documents", len(docs), "took_ms", resp.TookMs)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// parseOverrides reads the optional mode and policy query parameters.
func parseOverrides(r *http.Request) (Overrides, error) {
	var ov Overrides
	q := r.URL.Query()

	if s := q.Get("mode"); s != "" {
		mode, err := processing.ParseMode(s)
		if err != nil {
			return ov, err
		}
		ov.Mode = &mode
	}
	if s := q.Get("policy"); s != "" {
		policy, err := processing.ParseSubmitPolicy(s)
		if err != nil {
			return ov, err
		}
		ov.Policy = &policy
	}
	return ov, nil
}

// AuditEntry is the wire shape of one audit row.
type AuditEntry struct {
	CorrelationID  string    `json:"correlationId"`
	BurstID        string    `json:"burstId"`
	DocumentNumber string    `json:"documentNumber"`
	DocumentType   string    `json:"documentType"`
	CompanyCode    string    `json:"companyCode"`
	Mode           string    `json:"mode"`
	StartedAt      time.Time `json:"startedAt"`
}

// Audit handles GET /v1/bursts/{burstId}/audit: the audit rows written
// while the burst was processed, in insertion order.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.auditRepo == nil {
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Service Unavailable",
			[]string{"audit log is not configured"}, h.log)
		return
	}

	burstID := chi.URLParam(r, "burstId")
	if burstID == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Validation Error",
			[]string{"burstId is required"}, h.log)
		return
	}

	rows, err := h.auditRepo.FindByBurstID(r.Context(), burstID)
	if err != nil {
		h.log.Error("Audit lookup failed", "burst_id", burstID, "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Internal Server Error",
			[]string{"audit lookup failed"}, h.log)
		return
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, AuditEntry{
			CorrelationID:  row.CorrelationID,
			BurstID:        row.BurstID,
			DocumentNumber: row.DocumentNumber,
			DocumentType:   row.DocumentType,
			CompanyCode:    row.CompanyCode,
			Mode:           row.Mode,
			StartedAt:      row.StartedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(entries)
}
