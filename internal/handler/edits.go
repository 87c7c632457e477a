package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docbox-nz/docbox/internal/middleware"
	"github.com/docbox-nz/docbox/internal/model"
)

// recordEdit appends an audit row for a mutation that already
// committed. The append itself is non-fatal: an audit hiccup never
// rolls back the mutation, so failures are logged and swallowed.
func recordEdit(ctx context.Context, repos *boxRepos, e *model.EditHistoryEntry) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	if e.Metadata == nil {
		e.Metadata = json.RawMessage(`{}`)
	}
	if err := repos.EditHist.Append(ctx, e); err != nil {
		slog.Error("edit history append failed", "type", e.Type, "error", err)
	}
}

// actorID returns the authenticated user's ID as a nullable audit
// field, nil when the upstream proxy sent no identity headers.
func actorID(r *http.Request) *string {
	if id := middleware.UserIDFromContext(r.Context()); id != "" {
		return &id
	}
	return nil
}

// editMeta encodes the metadata payload of an audit row.
func editMeta(v map[string]any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// lastEdit resolves the most recent audit row for a subject, the
// last-modifier / last-modified-at half of the "resolve with extras"
// read. A subject with no history yet yields nil.
func lastEdit(ctx context.Context, repos *boxRepos, kind, id string) *model.EditHistoryEntry {
	e, err := repos.EditHist.LatestForSubject(ctx, kind, id)
	if err != nil {
		return nil
	}
	return e
}
