// Package test holds helpers shared by handler and end-to-end tests.
package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// PerformRequest runs one request against h. A non-empty token is sent as a
// bearer token; a JSON body gets the JSON content type.
func PerformRequest(t *testing.T, h http.Handler, method, url string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// JSONBody encodes v for PerformRequest.
func JSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to encode body: %v", err)
	}
	return bytes.NewReader(b)
}

// DecodeJSON decodes the recorder body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}
