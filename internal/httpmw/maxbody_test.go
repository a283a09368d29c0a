package httpmw

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMaxBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr bool
	}{
		{"under", "category=youtube", 64, false},
		{"exact", "12345678", 8, false},
		{"over", "123456789", 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var readErr error
			var got []byte
			h := MaxBody(tt.limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, readErr = io.ReadAll(r.Body)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/consent", strings.NewReader(tt.body)))

			if tt.wantErr {
				var mbe *http.MaxBytesError
				if !errors.As(readErr, &mbe) {
					t.Fatalf("err = %v, want *http.MaxBytesError", readErr)
				}
				return
			}
			if readErr != nil || string(got) != tt.body {
				t.Fatalf("read %q, %v", got, readErr)
			}
		})
	}
}

func TestMaxBody_NoBody(t *testing.T) {
	h := MaxBody(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != http.NoBody {
			t.Fatal("NoBody was wrapped")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
}
