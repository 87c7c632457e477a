// Package handler implements the HTTP surface: management routes and
// the per-box /box/{scope}/* namespace, each handler built from the
// tenant.Handle the TenantScope middleware attaches to the request.
// One file per resource, one envelope shape for every response.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docbox-nz/docbox/internal/docboxerr"
)

// envelope is the shared {success, data?, error?} JSON response shape
// every handler writes.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

// respondError translates a docboxerr.Kind (or any other error) to an
// HTTP status and writes the error envelope.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case docboxerr.Is(err, docboxerr.NotFound):
		status = http.StatusNotFound
	case docboxerr.Is(err, docboxerr.Conflict):
		status = http.StatusConflict
	case docboxerr.Is(err, docboxerr.ValidationFailed):
		status = http.StatusBadRequest
	case docboxerr.Is(err, docboxerr.TenantUnavailable):
		status = http.StatusServiceUnavailable
	case docboxerr.Is(err, docboxerr.StorageFailure):
		status = http.StatusBadGateway
	case docboxerr.Is(err, docboxerr.ProcessingFailure):
		status = http.StatusUnprocessableEntity
	case docboxerr.Is(err, docboxerr.IndexFailure):
		status = http.StatusBadGateway
	case docboxerr.Is(err, docboxerr.TooBusy):
		status = http.StatusTooManyRequests
	case docboxerr.Is(err, docboxerr.Expired):
		status = http.StatusGone
	}
	respondJSON(w, status, envelope{Success: false, Error: err.Error()})
}

// DBPinger is the interface Health needs to report database
// connectivity, satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}
