package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinibook/clinibook/services/records-service/internal/blobstore"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

// maxUploadBytes caps a single document upload.
const maxUploadBytes = 25 << 20

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) (model.Document, error)
	Get(ctx context.Context, id string) (model.Document, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]model.Document, error)
	Delete(ctx context.Context, id string) (model.Document, error)
}

type DocumentHandler struct {
	store  DocumentStore
	blobs  blobstore.Store
	logger *slog.Logger
}

func NewDocumentHandler(store DocumentStore, blobs blobstore.Store, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, blobs: blobs, logger: logger}
}

type documentResponse struct {
	ID            string `json:"id"`
	PatientID     string `json:"patient_id"`
	AppointmentID string `json:"appointment_id,omitempty"`
	FileName      string `json:"file_name"`
	ContentType   string `json:"content_type"`
	SizeBytes     int64  `json:"size_bytes"`
	URL           string `json:"url"`
	UploadedAt    string `json:"uploaded_at"`
}

func toDocumentResponse(doc model.Document) documentResponse {
	return documentResponse{
		ID:            doc.ID,
		PatientID:     doc.PatientID,
		AppointmentID: doc.AppointmentID,
		FileName:      doc.FileName,
		ContentType:   doc.ContentType,
		SizeBytes:     doc.SizeBytes,
		URL:           doc.URL,
		UploadedAt:    doc.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// Upload accepts a multipart form with a "file" part plus patient_id
// and optional appointment_id fields. The blob goes to the store under
// a fresh key before the metadata row is written; a failed insert
// leaves the blob orphaned, which the store owner can sweep.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	patientID := strings.TrimSpace(r.FormValue("patient_id"))
	if _, err := uuid.Parse(patientID); err != nil {
		http.Error(w, "invalid patient_id", http.StatusBadRequest)
		return
	}
	appointmentID := strings.TrimSpace(r.FormValue("appointment_id"))
	if appointmentID != "" {
		if _, err := uuid.Parse(appointmentID); err != nil {
			http.Error(w, "invalid appointment_id", http.StatusBadRequest)
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))

	url, err := h.blobs.Put(r.Context(), key, contentType, file)
	if err != nil {
		h.logger.Error("blob write failed", "key", key, "err", err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	doc, err := h.store.Create(r.Context(), &model.Document{
		PatientID:     patientID,
		AppointmentID: appointmentID,
		FileName:      filepath.Base(header.Filename),
		ContentType:   contentType,
		SizeBytes:     header.Size,
		StorageKey:    key,
		URL:           url,
	})
	if err != nil {
		h.logger.Error("document insert failed", "key", key, "err", err)
		http.Error(w, "failed to record document", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}
	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("document fetch failed", "document_id", id, "err", err)
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if _, err := uuid.Parse(patientID); err != nil {
		http.Error(w, "patient_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	docs, err := h.store.ListByPatient(r.Context(), patientID, limit)
	if err != nil {
		h.logger.Error("document list failed", "patient_id", patientID, "err", err)
		http.Error(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	items := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, items)
}

// Delete removes the metadata row first, then the blob. A failed blob
// removal is logged and the delete still succeeds.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}
	doc, err := h.store.Delete(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "document not found", http.StatusNotFound)
			return
		}
		h.logger.Error("document delete failed", "document_id", id, "err", err)
		http.Error(w, "failed to delete document", http.StatusInternalServerError)
		return
	}
	if err := h.blobs.Remove(r.Context(), doc.StorageKey); err != nil {
		h.logger.Warn("blob removal failed", "document_id", id, "key", doc.StorageKey, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
