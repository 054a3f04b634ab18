package testutil

import (
	"net/http"
)

// MockHTTPClient satisfies the HTTPClient interface of the adapters with
// an injectable Do function.
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
	Calls  int
}

// Do delegates to DoFunc, counting invocations.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.Calls++
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return nil, http.ErrUseLastResponse
}
