package validation

import (
	"log/slog"

	"github.com/beevik/etree"

	coreval "3tcapital/ms_einvoice_batch/internal/core/validation"
)

// Engine is the cascading document validator: a structural schema check
// followed by one or more compiled rule profiles in fixed order. It is
// constructed once per burst; all compilation has already happened by the
// time Validate runs.
type Engine struct {
	schema   *Schema
	profiles []*Profile
	log      *slog.Logger
}

// NewEngine builds an engine over an already-compiled schema and
// profiles. Profiles run in the order given.
func NewEngine(log *slog.Logger, schema *Schema, profiles ...*Profile) *Engine {
	return &Engine{schema: schema, profiles: profiles, log: log}
}

// Validate runs the cascade against one document node.
//
// The structural check runs first; if it fails the result holds only the
// structural findings and the profiles are skipped, since a structurally
// broken document cannot be reliably evaluated against business rules.
// Otherwise every profile runs and all findings merge into one result.
// No profile's findings stop another profile from running.
func (e *Engine) Validate(node *etree.Element) coreval.Result {
	structural := e.schema.Check(node)
	if !structural.IsValid() {
		e.log.Debug("structural check failed, skipping rule profiles",
			"schema", e.schema.Name(), "findings", structural.Len())
		return structural
	}

	var res coreval.Result
	for _, profile := range e.profiles {
		report := profile.Run(node)
		res.Merge(findingsFromReport(report))
	}
	return res
}

// findingsFromReport converts a profile report into findings: the profile
// name becomes the source, the report flag maps to a severity defaulting
// to error when absent or unknown.
func findingsFromReport(report *Report) coreval.Result {
	var res coreval.Result
	for _, entry := range report.Entries {
		res.Add(coreval.NewFinding(report.Profile, severityFromFlag(entry.Flag), entry.RuleID, entry.Message))
	}
	return res
}

func severityFromFlag(flag string) coreval.Severity {
	switch flag {
	case "fatal":
		return coreval.SeverityFatal
	case "warning":
		return coreval.SeverityWarning
	case "info":
		return coreval.SeverityInfo
	default:
		return coreval.SeverityError
	}
}
