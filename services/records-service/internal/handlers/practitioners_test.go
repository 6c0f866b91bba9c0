package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

const practID = "3d6f0e8a-2b4c-4f1d-9e7a-5c6b7a8d9e0f"

type fakePractStore struct {
	pract   model.Practitioner
	missing bool
	updated *model.Practitioner
}

func (f *fakePractStore) Create(_ context.Context, p *model.Practitioner) (model.Practitioner, error) {
	out := *p
	out.ID = practID
	out.CreatedAt = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return out, nil
}

func (f *fakePractStore) Get(_ context.Context, _ string) (model.Practitioner, error) {
	if f.missing {
		return model.Practitioner{}, storage.ErrNotFound
	}
	return f.pract, nil
}

func (f *fakePractStore) List(_ context.Context, _ storage.PractitionerFilter) ([]model.Practitioner, error) {
	return []model.Practitioner{f.pract}, nil
}

func (f *fakePractStore) Update(_ context.Context, _ string, p *model.Practitioner) (model.Practitioner, error) {
	if f.missing {
		return model.Practitioner{}, storage.ErrNotFound
	}
	saved := *p
	f.updated = &saved
	f.pract = saved
	return saved, nil
}

func (f *fakePractStore) Delete(_ context.Context, _ string) error {
	if f.missing {
		return storage.ErrNotFound
	}
	return nil
}

func newPractMux(store *fakePractStore) *http.ServeMux {
	h := NewPractitionerHandler(store, slog.New(slog.DiscardHandler))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/practitioners", h.Create)
	mux.HandleFunc("GET /api/v1/practitioners", h.List)
	mux.HandleFunc("GET /api/v1/practitioners/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/practitioners/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/practitioners/{id}", h.Delete)
	return mux
}

func storedPractitioner(t *testing.T) model.Practitioner {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("old-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return model.Practitioner{
		ID:           practID,
		FullName:     "Dr. Asha Rahman",
		Email:        "asha@clinibook.local",
		Specialty:    "cardiology",
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestUpdatePractitioner_PasswordChangePersisted(t *testing.T) {
	store := &fakePractStore{pract: storedPractitioner(t)}
	mux := newPractMux(store)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/practitioners/"+practID,
		strings.NewReader(`{"password":"new-secret"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if store.updated == nil {
		t.Fatal("expected a store write")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.updated.PasswordHash), []byte("new-secret")); err != nil {
		t.Fatalf("persisted hash does not match new password: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.updated.PasswordHash), []byte("old-secret")); err == nil {
		t.Fatal("old password still matches persisted hash")
	}
	if store.updated.FullName != "Dr. Asha Rahman" {
		t.Fatalf("unrelated field changed: full_name = %q", store.updated.FullName)
	}
}

func TestUpdatePractitioner_MergesFields(t *testing.T) {
	store := &fakePractStore{pract: storedPractitioner(t)}
	originalHash := store.pract.PasswordHash
	mux := newPractMux(store)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/practitioners/"+practID,
		strings.NewReader(`{"specialty":"dermatology","active":false}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp practitionerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Specialty != "dermatology" || resp.Active {
		t.Fatalf("merge failed: specialty = %q, active = %v", resp.Specialty, resp.Active)
	}
	if store.updated.Email != "asha@clinibook.local" {
		t.Fatalf("email changed unexpectedly: %q", store.updated.Email)
	}
	if store.updated.PasswordHash != originalHash {
		t.Fatal("password hash should carry over untouched")
	}
}

func TestCreatePractitioner_HashesPassword(t *testing.T) {
	store := &fakePractStore{}
	mux := newPractMux(store)

	body := `{"full_name":"Dr. Kamal Hossain","email":"Kamal@Clinibook.Local","password":"s3cret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/practitioners", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp practitionerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Email != "kamal@clinibook.local" {
		t.Fatalf("email not normalized: %q", resp.Email)
	}
	if !resp.Active {
		t.Fatal("new practitioner should default to active")
	}
	if strings.Contains(rec.Body.String(), "s3cret") {
		t.Fatal("response leaked the raw password")
	}
}

func TestUpdatePractitioner_NotFound(t *testing.T) {
	store := &fakePractStore{missing: true}
	mux := newPractMux(store)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/practitioners/"+practID,
		strings.NewReader(`{"specialty":"dermatology"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
