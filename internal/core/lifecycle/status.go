package lifecycle

// Code identifies a lifecycle status in the external invoicing vocabulary.
type Code string

const (
	CodeIssued             Code = "ISSUED"
	CodeValidated          Code = "VALIDATED"
	CodeValidatedWarnings  Code = "VALIDATED_WARNINGS"
	CodeSent               Code = "SENT"
	CodeDeposited          Code = "DEPOSITED"
	CodeErrorSent          Code = "ERROR_SENT"
	CodeRejected           Code = "REJECTED"
	CodeReceived           Code = "RECEIVED"
	CodeUnderProcessing    Code = "UNDER_PROCESSING"
	CodeDisputed           Code = "DISPUTED"
	CodePaymentProcessed   Code = "PAYMENT_PROCESSED"
	CodeMadeAvailable      Code = "MADE_AVAILABLE"
	CodePartiallyApproved  Code = "PARTIALLY_APPROVED"
	CodeRefused            Code = "REFUSED"
	CodeCompleted          Code = "COMPLETED"
	CodeSuspended          Code = "SUSPENDED"
	CodeUnknown            Code = "UNKNOWN"
)

// statusMessages pairs each code with its catalog message.
var statusMessages = map[Code]string{
	CodeIssued:            "Document issued",
	CodeValidated:         "Document validated",
	CodeValidatedWarnings: "Document validated with warnings",
	CodeSent:              "Document sent to platform",
	CodeDeposited:         "Document deposited on platform",
	CodeErrorSent:         "Error while sending document",
	CodeRejected:          "Document rejected",
	CodeReceived:          "Document received",
	CodeUnderProcessing:   "Document under processing",
	CodeDisputed:          "Document disputed",
	CodePaymentProcessed:  "Payment processed",
	CodeMadeAvailable:     "Document made available",
	CodePartiallyApproved: "Document partially approved",
	CodeRefused:           "Document refused",
	CodeCompleted:         "Processing completed",
	CodeSuspended:         "Document suspended",
	CodeUnknown:           "Unknown status",
}

// Transition is a status change to apply to one document: overwrite the
// current-status column and append one lifecycle log row.
//
// No transition graph is enforced here. The processing pipeline is the
// only caller and owns the sequencing convention
// (issued -> validated[/warnings] -> sent -> deposited | error-sent).
type Transition struct {
	Code    Code
	Message string
}

// TransitionFor returns the catalog transition for a code. Codes outside
// the vocabulary fall back to the unknown transition.
func TransitionFor(code Code) Transition {
	msg, ok := statusMessages[code]
	if !ok {
		return Transition{Code: CodeUnknown, Message: statusMessages[CodeUnknown]}
	}
	return Transition{Code: code, Message: msg}
}

// Known reports whether the code belongs to the fixed vocabulary.
func Known(code Code) bool {
	_, ok := statusMessages[code]
	return ok
}
