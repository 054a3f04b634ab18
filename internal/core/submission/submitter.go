package submission

import (
	"context"
	"time"
)

// Submitter sends one document to the external platform. Two
// implementations share this contract: the real PA client and a
// deterministic simulated client used in tests and offline runs. The
// concrete implementation is selected by configuration, never by type
// inspection.
type Submitter interface {
	// Send transmits the document content under the given display name.
	// It returns true on acceptance by the platform. A false return with
	// a nil error means the platform refused the document; an error means
	// the attempt itself failed.
	Send(ctx context.Context, content []byte, name string) (bool, error)

	// Enabled reports whether submission is active for this run.
	Enabled() bool

	// BaseURL returns the configured platform base URL.
	BaseURL() string

	// Endpoint returns the configured import endpoint path.
	Endpoint() string

	// Timeout returns the per-call network timeout.
	Timeout() time.Duration
}
