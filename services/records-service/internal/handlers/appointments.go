package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/scheduling"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
	"github.com/clinibook/clinibook/services/records-service/internal/timeparse"
)

// AppointmentStore covers the direct record operations the handler
// performs itself. Partial updates and cancellations go through the
// scheduling service instead.
type AppointmentStore interface {
	Create(ctx context.Context, appt *model.Appointment) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	List(ctx context.Context, filter storage.AppointmentFilter) ([]model.Appointment, error)
	Delete(ctx context.Context, id string) error
}

type AppointmentHandler struct {
	store      AppointmentStore
	scheduling *scheduling.Service
	logger     *slog.Logger
}

func NewAppointmentHandler(store AppointmentStore, schedulingSvc *scheduling.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		store:      store,
		scheduling: schedulingSvc,
		logger:     logger,
	}
}

type createAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	DateTime  string `json:"date_time"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes"`
}

type cancelAppointmentResponse struct {
	Message     string              `json:"message"`
	Appointment appointmentResponse `json:"appointment"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.DateTime = strings.TrimSpace(req.DateTime)
	if req.PatientID == "" || req.DoctorID == "" || req.DateTime == "" {
		http.Error(w, "patient_id, doctor_id and date_time required", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(req.PatientID); err != nil {
		http.Error(w, "invalid patient_id", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(req.DoctorID); err != nil {
		http.Error(w, "invalid doctor_id", http.StatusBadRequest)
		return
	}

	// A bare clock for date_time has no calendar date to borrow on
	// create; the client has to send one.
	if timeparse.IsClockTime(req.DateTime) {
		http.Error(w, "date_time requires a calendar date", http.StatusBadRequest)
		return
	}
	dateTime, err := timeparse.Normalize(req.DateTime, time.Time{})
	if err != nil {
		http.Error(w, "invalid date_time", http.StatusBadRequest)
		return
	}

	appt := &model.Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		DateTime:  dateTime,
		Status:    strings.TrimSpace(req.Status),
		Reason:    strings.TrimSpace(req.Reason),
		Notes:     strings.TrimSpace(req.Notes),
	}
	for field, raw := range map[string]string{"start_time": req.StartTime, "end_time": req.EndTime} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := timeparse.Normalize(raw, dateTime)
		if err != nil {
			http.Error(w, "invalid "+field, http.StatusBadRequest)
			return
		}
		if field == "start_time" {
			appt.StartTime = &t
		} else {
			appt.EndTime = &t
		}
	}

	created, err := h.store.Create(r.Context(), appt)
	if err != nil {
		h.logger.Error("appointment create failed", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(created))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.store.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment fetch failed", "appointment_id", id, "err", err)
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AppointmentFilter{
		PatientID: strings.TrimSpace(q.Get("patient_id")),
		DoctorID:  strings.TrimSpace(q.Get("doctor_id")),
		Status:    strings.TrimSpace(q.Get("status")),
		Date:      strings.TrimSpace(q.Get("date")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}
	if filter.Date != "" {
		if _, err := time.Parse("2006-01-02", filter.Date); err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	appts, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentResponse(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

// Update applies a partial update. Time fields are normalized first and
// a cancelling status routes through the cancellation flow, so a PATCH
// with status=cancelled behaves exactly like the cancel endpoint with
// extra fields merged in.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, err := h.scheduling.Update(r.Context(), id, fields)
	if err != nil {
		h.writeSchedulingError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.scheduling.Cancel(r.Context(), id)
	if err != nil {
		h.writeSchedulingError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelAppointmentResponse{
		Message:     "appointment cancelled successfully",
		Appointment: toAppointmentResponse(appt),
	})
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment delete failed", "appointment_id", id, "err", err)
		http.Error(w, "failed to delete appointment", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentHandler) writeSchedulingError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, scheduling.ErrNoUpdateData):
		http.Error(w, "no update data provided", http.StatusBadRequest)
	case errors.Is(err, scheduling.ErrInvalidTime),
		errors.Is(err, scheduling.ErrNoBaseDate),
		errors.Is(err, storage.ErrUnknownColumn):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case storage.IsNotFound(err):
		http.Error(w, "appointment not found", http.StatusNotFound)
	default:
		h.logger.Error("appointment update failed", "appointment_id", id, "err", err)
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}
