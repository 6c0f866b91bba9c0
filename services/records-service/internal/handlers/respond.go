package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type appointmentResponse struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	DoctorID    string `json:"doctor_id"`
	DateTime    string `json:"date_time"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toAppointmentResponse(appt model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:        appt.ID,
		PatientID: appt.PatientID,
		DoctorID:  appt.DoctorID,
		DateTime:  appt.DateTime.UTC().Format(time.RFC3339),
		Status:    appt.Status,
		Reason:    appt.Reason,
		Notes:     appt.Notes,
		CreatedAt: appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if appt.StartTime != nil {
		resp.StartTime = appt.StartTime.UTC().Format(time.RFC3339)
	}
	if appt.EndTime != nil {
		resp.EndTime = appt.EndTime.UTC().Format(time.RFC3339)
	}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}
