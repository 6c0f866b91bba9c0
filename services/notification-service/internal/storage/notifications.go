package storage

import (
	"context"
	"encoding/json"

	"github.com/clinibook/clinibook/libs/db"
)

type Notification struct {
	AppointmentID string
	DoctorID      string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
}

// PractitionerContact is the slice of the practitioner record needed to
// address a notification.
type PractitionerContact struct {
	FullName string
	Email    string
	Phone    string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, doctor_id, channel, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.AppointmentID, n.DoctorID, n.Channel, n.Recipient, payload, n.Status)
	return err
}

// PractitionerContactByID reads the practitioner's contact details from
// the shared schema. Returns pgx.ErrNoRows when the id is unknown.
func (r *Repository) PractitionerContactByID(ctx context.Context, id string) (PractitionerContact, error) {
	var c PractitionerContact
	err := r.pool.QueryRow(ctx, `
		SELECT full_name, email, COALESCE(phone, '')
		FROM practitioners
		WHERE id = $1
	`, id).Scan(&c.FullName, &c.Email, &c.Phone)
	if err != nil {
		return PractitionerContact{}, err
	}
	return c, nil
}
