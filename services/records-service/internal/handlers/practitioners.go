package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

type PractitionerStore interface {
	Create(ctx context.Context, p *model.Practitioner) (model.Practitioner, error)
	Get(ctx context.Context, id string) (model.Practitioner, error)
	List(ctx context.Context, filter storage.PractitionerFilter) ([]model.Practitioner, error)
	Update(ctx context.Context, id string, p *model.Practitioner) (model.Practitioner, error)
	Delete(ctx context.Context, id string) error
}

type PractitionerHandler struct {
	store  PractitionerStore
	logger *slog.Logger
}

func NewPractitionerHandler(store PractitionerStore, logger *slog.Logger) *PractitionerHandler {
	return &PractitionerHandler{store: store, logger: logger}
}

type practitionerRequest struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
	Password  string `json:"password"`
	Active    *bool  `json:"active"`
}

type practitionerResponse struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func toPractitionerResponse(p model.Practitioner) practitionerResponse {
	return practitionerResponse{
		ID:        p.ID,
		FullName:  p.FullName,
		Email:     p.Email,
		Phone:     p.Phone,
		Specialty: p.Specialty,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *PractitionerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req practitionerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "full_name, email and password required", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.store.Create(r.Context(), &model.Practitioner{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		Specialty:    strings.TrimSpace(req.Specialty),
		PasswordHash: string(hash),
		Active:       active,
	})
	if err != nil {
		h.logger.Error("practitioner create failed", "email", req.Email, "err", err)
		http.Error(w, "failed to create practitioner", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toPractitionerResponse(created))
}

func (h *PractitionerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := practitionerID(w, r)
	if !ok {
		return
	}
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "practitioner not found", http.StatusNotFound)
			return
		}
		h.logger.Error("practitioner fetch failed", "practitioner_id", id, "err", err)
		http.Error(w, "failed to load practitioner", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPractitionerResponse(p))
}

func (h *PractitionerHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.PractitionerFilter{
		Specialty:  strings.TrimSpace(q.Get("specialty")),
		ActiveOnly: q.Get("active") == "true",
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	practitioners, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("practitioner list failed", "err", err)
		http.Error(w, "failed to list practitioners", http.StatusInternalServerError)
		return
	}
	items := make([]practitionerResponse, 0, len(practitioners))
	for _, p := range practitioners {
		items = append(items, toPractitionerResponse(p))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PractitionerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := practitionerID(w, r)
	if !ok {
		return
	}
	current, err := h.store.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "practitioner not found", http.StatusNotFound)
			return
		}
		h.logger.Error("practitioner fetch failed", "practitioner_id", id, "err", err)
		http.Error(w, "failed to load practitioner", http.StatusInternalServerError)
		return
	}

	var req practitionerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if v := strings.TrimSpace(req.FullName); v != "" {
		current.FullName = v
	}
	if v := strings.ToLower(strings.TrimSpace(req.Email)); v != "" {
		current.Email = v
	}
	if v := strings.TrimSpace(req.Phone); v != "" {
		current.Phone = v
	}
	if v := strings.TrimSpace(req.Specialty); v != "" {
		current.Specialty = v
	}
	if req.Active != nil {
		current.Active = *req.Active
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "failed to hash password", http.StatusInternalServerError)
			return
		}
		current.PasswordHash = string(hash)
	}

	updated, err := h.store.Update(r.Context(), id, &current)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "practitioner not found", http.StatusNotFound)
			return
		}
		h.logger.Error("practitioner update failed", "practitioner_id", id, "err", err)
		http.Error(w, "failed to update practitioner", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPractitionerResponse(updated))
}

func (h *PractitionerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := practitionerID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "practitioner not found", http.StatusNotFound)
			return
		}
		h.logger.Error("practitioner delete failed", "practitioner_id", id, "err", err)
		http.Error(w, "failed to delete practitioner", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func practitionerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid practitioner id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}
