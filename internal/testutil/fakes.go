package testutil

import (
	"context"
	"sync"
	"time"

	"3tcapital/ms_einvoice_batch/internal/core/audit"
	"3tcapital/ms_einvoice_batch/internal/core/document"
	"3tcapital/ms_einvoice_batch/internal/core/lifecycle"
	"3tcapital/ms_einvoice_batch/internal/core/validation"
)

// FakeStore is an in-memory document.Store recording every call.
type FakeStore struct {
	mu          sync.Mutex
	Saved       []*document.Document
	Transitions map[document.Key][]lifecycle.Transition
	Findings    map[document.Key][]validation.Finding

	SaveErr       error
	TransitionErr error
	FindingsErr   error
	// FindingsErrOnce makes only the first RecordFindings call fail.
	FindingsErrOnce bool
	findingsCalls   int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Transitions: make(map[document.Key][]lifecycle.Transition),
		Findings:    make(map[document.Key][]validation.Finding),
	}
}

func (s *FakeStore) SaveDocument(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Saved = append(s.Saved, doc)
	return nil
}

func (s *FakeStore) ApplyTransition(_ context.Context, key document.Key, tr lifecycle.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TransitionErr != nil {
		return s.TransitionErr
	}
	s.Transitions[key] = append(s.Transitions[key], tr)
	return nil
}

func (s *FakeStore) RecordFindings(_ context.Context, key document.Key, res validation.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findingsCalls++
	if s.FindingsErr != nil && (!s.FindingsErrOnce || s.findingsCalls == 1) {
		return s.FindingsErr
	}
	s.Findings[key] = append(s.Findings[key], res.Findings()...)
	return nil
}

// TransitionCodes returns the applied transition codes for a key in order.
func (s *FakeStore) TransitionCodes(key document.Key) []lifecycle.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes []lifecycle.Code
	for _, tr := range s.Transitions[key] {
		codes = append(codes, tr.Code)
	}
	return codes
}

// FakeSubmitter is a scriptable submission.Submitter.
type FakeSubmitter struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, content []byte, name string) (bool, error)
	Disabled bool
	Sent     []string
}

func (f *FakeSubmitter) Send(ctx context.Context, content []byte, name string) (bool, error) {
	f.mu.Lock()
	f.Sent = append(f.Sent, name)
	fn := f.SendFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, content, name)
	}
	return true, nil
}

func (f *FakeSubmitter) Enabled() bool { return !f.Disabled }

func (f *FakeSubmitter) BaseURL() string { return "https://pa.test" }

func (f *FakeSubmitter) Endpoint() string { return "/import" }

func (f *FakeSubmitter) Timeout() time.Duration { return time.Second }

// SentCount returns how many Send calls were made.
func (f *FakeSubmitter) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// FakeTransformer is a scriptable transform.Transformer. By default it
// returns the source unchanged (identity transform).
type FakeTransformer struct {
	TransformFunc func(ctx context.Context, source []byte, stylesheet string) ([]byte, error)
}

func (f *FakeTransformer) Transform(ctx context.Context, source []byte, stylesheet string) ([]byte, error) {
	if f.TransformFunc != nil {
		return f.TransformFunc(ctx, source, stylesheet)
	}
	return source, nil
}

// FakeRenderer is a scriptable transform.Renderer returning a canned PDF.
type FakeRenderer struct {
	RenderFunc func(ctx context.Context, source []byte, template string) ([]byte, error)
	Renders    int
}

func (f *FakeRenderer) Render(ctx context.Context, source []byte, template string) ([]byte, error) {
	f.Renders++
	if f.RenderFunc != nil {
		return f.RenderFunc(ctx, source, template)
	}
	return []byte("%PDF-1.4 fake"), nil
}

// FakeAuditRepo is an in-memory audit.Repository.
type FakeAuditRepo struct {
	mu      sync.Mutex
	Entries []audit.ProcessingAuditLog
	SaveErr error
}

func (r *FakeAuditRepo) Save(_ context.Context, entry audit.ProcessingAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.Entries = append(r.Entries, entry)
	return nil
}

func (r *FakeAuditRepo) FindByBurstID(_ context.Context, burstID string) ([]audit.ProcessingAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.ProcessingAuditLog
	for _, e := range r.Entries {
		if e.BurstID == burstID {
			out = append(out, e)
		}
	}
	return out, nil
}
