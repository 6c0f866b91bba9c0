package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinibook/clinibook/services/records-service/internal/blobstore"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

const docID = "0f8fad5b-d9cb-469f-a165-70867728950e"

type fakeDocStore struct {
	doc     model.Document
	created *model.Document
	getErr  error
}

func (f *fakeDocStore) Create(_ context.Context, doc *model.Document) (model.Document, error) {
	f.created = doc
	out := *doc
	out.ID = docID
	out.UploadedAt = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return out, nil
}

func (f *fakeDocStore) Get(_ context.Context, _ string) (model.Document, error) {
	if f.getErr != nil {
		return model.Document{}, f.getErr
	}
	return f.doc, nil
}

func (f *fakeDocStore) ListByPatient(_ context.Context, _ string, _ int) ([]model.Document, error) {
	return []model.Document{f.doc}, nil
}

func (f *fakeDocStore) Delete(_ context.Context, _ string) (model.Document, error) {
	if f.getErr != nil {
		return model.Document{}, f.getErr
	}
	return f.doc, nil
}

func newDocMux(store *fakeDocStore, blobs blobstore.Store) *http.ServeMux {
	h := NewDocumentHandler(store, blobs, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Upload)
	mux.HandleFunc("GET /api/v1/documents", h.List)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Delete)
	return mux
}

func multipartUpload(t *testing.T, patientID, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("patient_id", patientID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUpload_StoresBlobAndMetadata(t *testing.T) {
	store := &fakeDocStore{}
	blobs := blobstore.NewMemoryStore("http://files.local")
	mux := newDocMux(store, blobs)

	body, contentType := multipartUpload(t, "f47ac10b-58cc-4372-a567-0e02b2c3d479", "scan.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp documentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FileName != "scan.pdf" {
		t.Fatalf("file_name = %q, want scan.pdf", resp.FileName)
	}
	if store.created == nil || store.created.StorageKey == "" {
		t.Fatal("expected metadata row with a storage key")
	}
	rc, err := blobs.Open(context.Background(), store.created.StorageKey)
	if err != nil {
		t.Fatalf("blob missing after upload: %v", err)
	}
	_ = rc.Close()
}

func TestUpload_MissingPatientIDRejected(t *testing.T) {
	store := &fakeDocStore{}
	mux := newDocMux(store, blobstore.NewMemoryStore("http://files.local"))

	body, contentType := multipartUpload(t, "", "scan.pdf", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if store.created != nil {
		t.Fatal("expected no metadata row")
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	store := &fakeDocStore{getErr: storage.ErrNotFound}
	mux := newDocMux(store, blobstore.NewMemoryStore("http://files.local"))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+docID, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
