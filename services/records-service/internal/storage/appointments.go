package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinibook/clinibook/libs/db"
	"github.com/clinibook/clinibook/services/records-service/internal/model"
)

// updatableAppointmentColumns guards the dynamic SET clause. Anything
// outside this set is rejected before touching the database.
var updatableAppointmentColumns = map[string]bool{
	"patient_id":   true,
	"doctor_id":    true,
	"date_time":    true,
	"start_time":   true,
	"end_time":     true,
	"status":       true,
	"reason":       true,
	"notes":        true,
	"cancelled_at": true,
}

const appointmentColumns = `id, patient_id, doctor_id, date_time, start_time, end_time,
		status, COALESCE(reason, ''), COALESCE(notes, ''), cancelled_at, created_at, updated_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *model.Appointment) (model.Appointment, error) {
	status := appt.Status
	if status == "" {
		status = model.StatusScheduled
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, date_time, start_time, end_time, status, reason, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+appointmentColumns+`
	`, appt.PatientID, appt.DoctorID, appt.DateTime, appt.StartTime, appt.EndTime, status, appt.Reason, appt.Notes)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// Update writes the given columns and returns the record as of this
// write. Columns are applied in sorted order so the generated statement
// is stable.
func (r *AppointmentRepository) Update(ctx context.Context, id string, fields map[string]any) (model.Appointment, error) {
	if len(fields) == 0 {
		return model.Appointment{}, fmt.Errorf("no columns to update")
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatableAppointmentColumns[col] {
			return model.Appointment{}, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		set = append(set, col+" = $"+strconv.Itoa(i+1))
		args = append(args, fields[col])
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET `+strings.Join(set, ", ")+`
		WHERE id = $`+strconv.Itoa(len(args))+`
		RETURNING `+appointmentColumns+`
	`, args...)
	appt, err := scanAppointment(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

type AppointmentFilter struct {
	PatientID string
	DoctorID  string
	Status    string
	Date      string // YYYY-MM-DD, matched against date_time's calendar date
	Limit     int
	Offset    int
}

func (r *AppointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	var args []any
	argIndex := 1

	if filter.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", argIndex)
		args = append(args, filter.PatientID)
		argIndex++
	}
	if filter.DoctorID != "" {
		query += fmt.Sprintf(" AND doctor_id = $%d", argIndex)
		args = append(args, filter.DoctorID)
		argIndex++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}
	if filter.Date != "" {
		query += fmt.Sprintf(" AND DATE(date_time AT TIME ZONE 'UTC') = $%d", argIndex)
		args = append(args, filter.Date)
		argIndex++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY date_time DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var startTime, endTime, cancelledAt *time.Time
	if err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.DateTime,
		&startTime,
		&endTime,
		&appt.Status,
		&appt.Reason,
		&appt.Notes,
		&cancelledAt,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	appt.StartTime = startTime
	appt.EndTime = endTime
	appt.CancelledAt = cancelledAt
	return appt, nil
}
