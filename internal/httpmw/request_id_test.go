package httpmw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_PropagatesValidInbound(t *testing.T) {
	var seen string
	h := RequestID("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc-123" {
		t.Fatalf("context id = %q, want abc-123", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("response header = %q, want abc-123", got)
	}
}

func TestRequestID_ReplacesInvalidInbound(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing", ""},
		{"too long", strings.Repeat("a", maxRequestIDLen+1)},
		{"space", "abc 123"},
		{"newline", "abc\n123"},
		{"non-ascii", "abcé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID("X-Correlation-Id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.in != "" {
				req.Header["X-Correlation-Id"] = []string{tt.in}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == tt.in {
				t.Fatalf("invalid id %q was kept", tt.in)
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("generated id %q is not a uuid: %v", seen, err)
			}
			if rec.Header().Get("X-Correlation-Id") != seen {
				t.Fatal("response header does not echo the generated id")
			}
		})
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if got := RequestIDFromContext(t.Context()); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if ctx := WithRequestID(t.Context(), ""); RequestIDFromContext(ctx) != "" {
		t.Fatal("empty id should not be stored")
	}
}
