package opshttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sanctuaryweb/site/internal/version"
)

type statusResponse struct {
	version.Info
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

// StatusHandler reports build information and uptime.
func StatusHandler(vi version.Info, startedAt time.Time, now func() time.Time) http.Handler {
	if now == nil {
		now = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(statusResponse{
			Info:          vi,
			StartedAt:     startedAt.UTC(),
			UptimeSeconds: int64(now().Sub(startedAt).Seconds()),
		})
	})
}
