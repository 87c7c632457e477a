package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Health reports server and root-database connectivity. Tenant pools
// are not pinged here; TenantScope exercises those per request.
func Health(db DBPinger, version string) http.HandlerFunc {
	if version == "" {
		version = "0.0.0"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := "ok"
		dbStatus := "connected"
		httpStatus := http.StatusOK
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				status = "degraded"
				dbStatus = "disconnected"
				httpStatus = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   status,
			"version":  version,
			"database": dbStatus,
		})
	}
}
