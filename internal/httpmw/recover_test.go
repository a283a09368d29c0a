package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sanctuaryweb/site/internal/log"
)

func TestRecover(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		logged  bool
		errText string
	}{
		{
			name:    "no panic",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
			status:  http.StatusTeapot,
		},
		{
			name:    "string panic",
			handler: func(w http.ResponseWriter, r *http.Request) { panic("gate exploded") },
			status:  http.StatusInternalServerError,
			logged:  true,
			errText: "panic: gate exploded",
		},
		{
			name:    "error panic",
			handler: func(w http.ResponseWriter, r *http.Request) { panic(errors.New("store closed")) },
			status:  http.StatusInternalServerError,
			logged:  true,
			errText: "store closed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			panics := 0
			h := Recover(logger, func() { panics++ })(tt.handler)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ambassadors/siren", http.NoBody))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			errs := logger.byLevel("error")
			if !tt.logged {
				if len(errs) != 0 || panics != 0 {
					t.Fatalf("unexpected log/onPanic: %d errors, %d panics", len(errs), panics)
				}
				return
			}
			if len(errs) != 1 || panics != 1 {
				t.Fatalf("errors=%d panics=%d, want 1 each", len(errs), panics)
			}
			if !strings.Contains(errs[0].err.Error(), tt.errText) {
				t.Fatalf("err = %v, want it to mention %q", errs[0].err, tt.errText)
			}
			if _, ok := lookup(errs[0].kv, "stack"); !ok {
				t.Fatal("stack missing from log entry")
			}
			if v, _ := logger.field("url.path"); v != "/ambassadors/siren" {
				t.Fatalf("url.path = %v", v)
			}
		})
	}
}

func TestRecover_PrefersRequestLogger(t *testing.T) {
	base := &recordingLogger{}
	scoped := &recordingLogger{}
	h := Recover(base, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req = req.WithContext(log.WithContext(req.Context(), scoped))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(scoped.byLevel("error")) != 1 {
		t.Fatal("panic not logged through the request logger")
	}
	if len(base.byLevel("error")) != 0 {
		t.Fatal("base logger used despite request logger")
	}
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	h := Recover(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	t.Fatal("ErrAbortHandler was swallowed")
}
