package model

import "time"

// Appointment statuses the system interprets. Any other string is stored
// and returned untouched.
const (
	StatusScheduled = "scheduled"
	StatusCancelled = "cancelled"
)

type Appointment struct {
	ID          string
	PatientID   string
	DoctorID    string
	DateTime    time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	Status      string
	Reason      string
	Notes       string
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Document struct {
	ID            string
	PatientID     string
	AppointmentID string
	FileName      string
	ContentType   string
	SizeBytes     int64
	StorageKey    string
	URL           string
	UploadedAt    time.Time
}

type Practitioner struct {
	ID           string
	FullName     string
	Email        string
	Phone        string
	Specialty    string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}
