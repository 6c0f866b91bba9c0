package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinibook/clinibook/libs/auth"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

// CredentialStore resolves login emails to practitioner records.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (model.Practitioner, error)
}

type AuthHandler struct {
	store    CredentialStore
	secret   string
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(store CredentialStore, secret string, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{store: store, secret: secret, tokenTTL: tokenTTL, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Login checks a practitioner's password and issues a signed token.
// TODO: replace with a real identity provider integration.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	p, err := h.store.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("login lookup failed", "err", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	if !p.Active {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	exp := now.Add(h.tokenTTL)
	token, err := auth.SignHS256(auth.Claims{
		Sub:   p.ID,
		Email: p.Email,
		Role:  "practitioner",
		Exp:   exp.Unix(),
		Iat:   now.Unix(),
	}, h.secret)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
	})
}

// RequireAuth rejects requests without a valid bearer token. Left off
// the default chain; enable with AUTH_REQUIRED=true.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token, ok := strings.CutPrefix(raw, "Bearer ")
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			if _, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), secret); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
