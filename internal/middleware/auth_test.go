package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docbox-nz/docbox/internal/model"
	"github.com/docbox-nz/docbox/internal/objectstore"
	"github.com/docbox-nz/docbox/internal/search"
	"github.com/docbox-nz/docbox/internal/tenant"
)

func newTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"uid": u.ID})
	})
}

func TestIdentity_NoHeaders(t *testing.T) {
	handler := Identity(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/box/abc/files", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["uid"] != "" {
		t.Errorf("uid = %q, want empty when no identity headers are sent", body["uid"])
	}
}

func TestIdentity_UserHeaders(t *testing.T) {
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      u.ID,
			"name":    u.Name,
			"imageId": u.ImageID,
		})
	}))

	req := httptest.NewRequest(http.MethodGet, "/box/abc/files", nil)
	req.Header.Set("x-user-id", "user-1")
	req.Header.Set("x-user-name", "Ada Lovelace")
	req.Header.Set("x-user-image-id", "img-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		ID      string  `json:"id"`
		Name    *string `json:"name"`
		ImageID *string `json:"imageId"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.ID != "user-1" {
		t.Errorf("id = %q, want %q", body.ID, "user-1")
	}
	if body.Name == nil || *body.Name != "Ada Lovelace" {
		t.Errorf("name = %v, want %q", body.Name, "Ada Lovelace")
	}
	if body.ImageID == nil || *body.ImageID != "img-9" {
		t.Errorf("imageId = %v, want %q", body.ImageID, "img-9")
	}
}

func TestIdentity_UserIDOnly(t *testing.T) {
	handler := Identity(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/box/abc/files", nil)
	req.Header.Set("x-user-id", "user-2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["uid"] != "user-2" {
		t.Errorf("uid = %q, want %q", body["uid"], "user-2")
	}
}

func TestTenantScope_MissingHeader(t *testing.T) {
	handler := TenantScope(tenant.New(fakeResolver{}, fakeFactory{}, 0), "test")(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/box/abc/files", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTenantScope_Resolves(t *testing.T) {
	reg := tenant.New(fakeResolver{}, fakeFactory{}, 0)
	handler := TenantScope(reg, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := TenantHandleFromContext(r.Context())
		if h == nil {
			t.Fatal("expected a tenant handle in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/box/abc/files", nil)
	req.Header.Set("x-tenant-id", "tenant-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	uid := UserIDFromContext(context.Background())
	if uid != "" {
		t.Errorf("uid = %q, want empty", uid)
	}
}

// fakeResolver/fakeFactory satisfy tenant.Resolver/tenant.Factory with
// zero-value handles, enough to exercise TenantScope without a live
// database or object store.
type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, env, tenantID string) (model.Tenant, error) {
	return model.Tenant{Env: env, ID: tenantID}, nil
}

type fakeFactory struct{}

func (fakeFactory) NewPool(ctx context.Context, t model.Tenant) (*pgxpool.Pool, error) {
	return nil, nil
}

func (fakeFactory) NewStore(ctx context.Context, t model.Tenant) (*objectstore.Client, error) {
	return nil, nil
}

func (fakeFactory) NewIndex(ctx context.Context, t model.Tenant, pool *pgxpool.Pool) (search.Index, error) {
	return nil, nil
}
