package validation

// Severity classifies a validation finding.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
)

// Blocking reports whether the severity prevents a document from being
// considered submittable. Warnings and below never block.
func (s Severity) Blocking() bool {
	return s == SeverityFatal || s == SeverityError
}

// Finding is a single validation result produced by the structural check,
// a rule profile, or a processing step that converts its failure into a
// recorded finding. Findings are immutable once created.
type Finding struct {
	Source   string
	Severity Severity
	RuleID   string
	Message  string
}

// NewFinding builds a finding. RuleID may be empty when the producing
// check has no rule identifier (structural errors, step failures).
func NewFinding(source string, severity Severity, ruleID, message string) Finding {
	return Finding{
		Source:   source,
		Severity: severity,
		RuleID:   ruleID,
		Message:  message,
	}
}

// Result is an ordered collection of findings. The zero value is a valid
// (empty) result.
type Result struct {
	findings []Finding
}

// NewResult creates a result pre-populated with the given findings.
func NewResult(findings ...Finding) Result {
	r := Result{}
	r.findings = append(r.findings, findings...)
	return r
}

// Add appends a finding, preserving insertion order.
func (r *Result) Add(f Finding) {
	r.findings = append(r.findings, f)
}

// Merge appends all findings of other after the receiver's own, preserving
// order. Duplicates are kept; the consuming layers rely on seeing every
// finding each profile produced.
func (r *Result) Merge(other Result) {
	r.findings = append(r.findings, other.findings...)
}

// IsValid reports whether the result carries no findings at all.
func (r Result) IsValid() bool {
	return len(r.findings) == 0
}

// HasBlocking reports whether any finding has a blocking severity.
func (r Result) HasBlocking() bool {
	for _, f := range r.findings {
		if f.Severity.Blocking() {
			return true
		}
	}
	return false
}

// Findings returns the findings in insertion order. The returned slice
// must not be mutated.
func (r Result) Findings() []Finding {
	return r.findings
}

// Len returns the number of findings.
func (r Result) Len() int {
	return len(r.findings)
}
