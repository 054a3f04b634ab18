package validation

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// delimiter separates the fields of a report line. The downstream
// presentation layer splits on this exact sequence, so it must never
// appear inside a message.
const delimiter = " ** "

// FormatFinding renders one finding in the fixed format consumed by the
// presentation layer:
//
//	" ** <SEVERITY> ** <SOURCE> ** <RULE_ID> : <MESSAGE>"
//
// Messages containing the delimiter are sanitized before formatting.
func FormatFinding(f Finding) string {
	return fmt.Sprintf("%s%s%s%s%s%s : %s",
		delimiter, f.Severity, delimiter, f.Source, delimiter, f.RuleID, sanitizeMessage(f.Message))
}

// sanitizeMessage collapses any embedded delimiter so a hostile or sloppy
// rule message cannot break the line-oriented consumer.
func sanitizeMessage(msg string) string {
	for strings.Contains(msg, delimiter) {
		msg = strings.ReplaceAll(msg, delimiter, " * ")
	}
	return strings.ReplaceAll(msg, "\n", " ")
}

// ReportWriter emits findings as report lines on an underlying writer,
// one line per finding. One instance is shared by every worker of a
// batch, so writes are serialized to keep lines intact.
type ReportWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReportWriter wraps w. A nil writer yields a writer that discards
// everything.
func NewReportWriter(w io.Writer) *ReportWriter {
	return &ReportWriter{w: w}
}

// WriteFinding writes one formatted line.
func (rw *ReportWriter) WriteFinding(f Finding) {
	if rw == nil || rw.w == nil {
		return
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	fmt.Fprintln(rw.w, FormatFinding(f))
}

// WriteResult writes every finding of the result in order, without
// interleaving lines from other goroutines between them.
func (rw *ReportWriter) WriteResult(res Result) {
	if rw == nil || rw.w == nil {
		return
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	for _, f := range res.Findings() {
		fmt.Fprintln(rw.w, FormatFinding(f))
	}
}
