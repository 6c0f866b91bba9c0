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

	"github.com/clinibook/clinibook/libs/auth"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
)

type fakeCredStore struct {
	practitioner model.Practitioner
	err          error
}

func (f *fakeCredStore) GetByEmail(_ context.Context, _ string) (model.Practitioner, error) {
	if f.err != nil {
		return model.Practitioner{}, f.err
	}
	return f.practitioner, nil
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pass123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &fakeCredStore{practitioner: model.Practitioner{
		ID:           "c9bf9e57-1685-4c89-bafb-ff5af830be8a",
		Email:        "doc@example.com",
		PasswordHash: string(hash),
		Active:       true,
	}}
	h := NewAuthHandler(store, "test-secret", time.Hour, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"doc@example.com","password":"pass123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := auth.ParseAndVerifyHS256(resp.Token, "test-secret")
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Email != "doc@example.com" {
		t.Fatalf("email claim = %q", claims.Email)
	}
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pass123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &fakeCredStore{practitioner: model.Practitioner{
		Email:        "doc@example.com",
		PasswordHash: string(hash),
		Active:       true,
	}}
	h := NewAuthHandler(store, "test-secret", time.Hour, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"doc@example.com","password":"nope"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
