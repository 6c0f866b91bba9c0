package storage

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateRejectsUnknownColumn(t *testing.T) {
	// The whitelist check runs before any database call, so a nil pool
	// is fine here.
	repo := NewAppointmentRepository(nil)

	_, err := repo.Update(context.Background(), "a1", map[string]any{
		"status":  "cancelled",
		"dropped": true,
	})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if err.Error() != "unknown column: dropped" {
		t.Fatalf("error should name the offending column: %v", err)
	}
}

func TestUpdateRejectsEmptyFieldSet(t *testing.T) {
	repo := NewAppointmentRepository(nil)

	if _, err := repo.Update(context.Background(), "a1", nil); err == nil {
		t.Fatal("expected an error for an empty column set")
	}
}
