package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
)

// CancellationEvents adapts the outbox to the scheduling event sink.
type CancellationEvents struct {
	repo *Repository
	now  func() time.Time
}

func NewCancellationEvents(repo *Repository) *CancellationEvents {
	return &CancellationEvents{repo: repo, now: time.Now}
}

func (c *CancellationEvents) AppointmentCancelled(ctx context.Context, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"date_time":      appt.DateTime.UTC().Format(time.RFC3339),
		"cancelled_at":   c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return c.repo.Enqueue(ctx, Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     TopicAppointmentCancelled,
		Payload:       payload,
	})
}
