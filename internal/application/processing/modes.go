package processing

import "fmt"

// Mode selects which pipeline steps run for every document in a burst.
type Mode string

const (
	// ModeRender produces only the readable PDF rendition.
	ModeRender Mode = "render"
	// ModeDual produces both the PDF rendition and the exchange document.
	ModeDual Mode = "dual"
	// ModeExchange produces only the exchange document.
	ModeExchange Mode = "exchange"
	// ModeExchangeAttach produces the exchange document with the readable
	// rendition embedded as an attachment.
	ModeExchangeAttach Mode = "exchange-attach"
	// ModeValidateOnly runs extraction and validation without producing
	// any output document.
	ModeValidateOnly Mode = "validate-only"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRender, ModeDual, ModeExchange, ModeExchangeAttach, ModeValidateOnly:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown processing mode %q", s)
	}
}

// RendersPDF reports whether the mode produces a readable rendition.
func (m Mode) RendersPDF() bool {
	return m == ModeRender || m == ModeDual || m == ModeExchangeAttach
}

// ProducesExchange reports whether the conversion chain runs. Validation
// always targets the converted document, so validate-only runs convert
// too even though the output is discarded.
func (m Mode) ProducesExchange() bool {
	return m == ModeDual || m == ModeExchange || m == ModeExchangeAttach || m == ModeValidateOnly
}

// EmbedsAttachment reports whether the readable rendition is embedded
// into the exchange document.
func (m Mode) EmbedsAttachment() bool {
	return m == ModeExchangeAttach
}

// SubmitPolicy decides whether validated documents are sent to the
// platform.
type SubmitPolicy string

const (
	// PolicyOff never submits.
	PolicyOff SubmitPolicy = "off"
	// PolicyOn submits only documents that validated clean.
	PolicyOn SubmitPolicy = "on"
	// PolicyForce additionally submits documents whose findings are all
	// warnings. Documents with errors are never submitted.
	PolicyForce SubmitPolicy = "force"
)

// ParseSubmitPolicy validates a configured policy name.
func ParseSubmitPolicy(s string) (SubmitPolicy, error) {
	switch SubmitPolicy(s) {
	case PolicyOff, PolicyOn, PolicyForce:
		return SubmitPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown submission policy %q", s)
	}
}

// ShouldSubmit reports whether a document with the given validation
// outcome gets submitted under this policy. valid means no findings at
// all; hasBlocking means at least one error or fatal finding.
func (p SubmitPolicy) ShouldSubmit(valid, hasBlocking bool) bool {
	switch p {
	case PolicyForce:
		return !hasBlocking
	case PolicyOn:
		return valid
	default:
		return false
	}
}
