package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinibook/clinibook/libs/db"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
)

const documentColumns = `id, patient_id, COALESCE(appointment_id::text, ''), file_name,
		content_type, size_bytes, storage_key, url, uploaded_at`

type DocumentRepository struct {
	pool *db.Pool
}

func NewDocumentRepository(pool *db.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) (model.Document, error) {
	var appointmentID any
	if doc.AppointmentID != "" {
		appointmentID = doc.AppointmentID
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO documents (patient_id, appointment_id, file_name, content_type, size_bytes, storage_key, url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+documentColumns+`
	`, doc.PatientID, appointmentID, doc.FileName, doc.ContentType, doc.SizeBytes, doc.StorageKey, doc.URL)
	return scanDocument(row)
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (model.Document, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1
	`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]model.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE patient_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) (model.Document, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM documents
		WHERE id = $1
		RETURNING `+documentColumns+`
	`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, fmt.Errorf("delete document: %w", err)
	}
	return doc, nil
}

func scanDocument(row pgx.Row) (model.Document, error) {
	var doc model.Document
	if err := row.Scan(
		&doc.ID,
		&doc.PatientID,
		&doc.AppointmentID,
		&doc.FileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&doc.URL,
		&doc.UploadedAt,
	); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}
