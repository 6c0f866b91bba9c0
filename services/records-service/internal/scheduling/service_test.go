package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

type fakeStore struct {
	appt    model.Appointment
	getErr  error
	gets    int
	updates []map[string]any
	// updateErrs[i] fails the i-th Update call.
	updateErrs map[int]error
}

func (f *fakeStore) Get(_ context.Context, _ string) (model.Appointment, error) {
	f.gets++
	if f.getErr != nil {
		return model.Appointment{}, f.getErr
	}
	return f.appt, nil
}

func (f *fakeStore) Update(_ context.Context, _ string, fields map[string]any) (model.Appointment, error) {
	idx := len(f.updates)
	f.updates = append(f.updates, fields)
	if err := f.updateErrs[idx]; err != nil {
		return model.Appointment{}, err
	}
	out := f.appt
	if status, ok := fields["status"].(string); ok {
		out.Status = status
	}
	if dt, ok := fields["date_time"].(time.Time); ok {
		out.DateTime = dt
	}
	return out, nil
}

type fakeSink struct {
	cancelled []model.Appointment
	err       error
}

func (f *fakeSink) AppointmentCancelled(_ context.Context, appt model.Appointment) error {
	f.cancelled = append(f.cancelled, appt)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func scheduled(dateTime time.Time) model.Appointment {
	return model.Appointment{
		ID:       "a1",
		Status:   model.StatusScheduled,
		DateTime: dateTime,
	}
}

func TestUpdate_EmptyPayload(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, discardLogger())

	if _, err := svc.Update(context.Background(), "a1", nil); !errors.Is(err, ErrNoUpdateData) {
		t.Fatalf("expected ErrNoUpdateData, got %v", err)
	}
	if store.gets != 0 || len(store.updates) != 0 {
		t.Fatalf("expected zero store calls, got %d gets and %d updates", store.gets, len(store.updates))
	}
}

func TestUpdate_MalformedTimeAbortsBeforeWrite(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.Update(context.Background(), "a1", map[string]any{
		"start_time": "not-a-time",
		"notes":      "still valid",
	})
	if !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no writes, got %d", len(store.updates))
	}
}

func TestUpdate_ClockTimeUsesPersistedDate(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.Update(context.Background(), "a1", map[string]any{"start_time": "15:30"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("expected one reference fetch, got %d", store.gets)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected one write, got %d", len(store.updates))
	}
	got, ok := store.updates[0]["start_time"].(time.Time)
	if !ok {
		t.Fatalf("start_time not normalized: %v", store.updates[0]["start_time"])
	}
	want := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want.Format(time.RFC3339), got.Format(time.RFC3339))
	}
}

func TestUpdate_ClockTimeUsesPayloadDate(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.Update(context.Background(), "a1", map[string]any{
		"date_time": "2025-01-02T09:00:00Z",
		"end_time":  "10:15",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if store.gets != 0 {
		t.Fatalf("payload date means no reference fetch, got %d gets", store.gets)
	}
	got := store.updates[0]["end_time"].(time.Time)
	want := time.Date(2025, 1, 2, 10, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want.Format(time.RFC3339), got.Format(time.RFC3339))
	}
}

func TestUpdate_ClockTimeWithoutBaseDate(t *testing.T) {
	store := &fakeStore{getErr: storage.ErrNotFound}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.Update(context.Background(), "a1", map[string]any{"start_time": "15:30"})
	if !errors.Is(err, ErrNoBaseDate) {
		t.Fatalf("expected ErrNoBaseDate, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no writes, got %d", len(store.updates))
	}
}

func TestUpdate_PlainPathSingleWrite(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	svc := NewService(store, nil, discardLogger())

	updated, err := svc.Update(context.Background(), "a1", map[string]any{
		"date_time": "2024-04-01T08:00:00Z",
		"notes":     "bring previous scans",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(store.updates))
	}
	if !updated.DateTime.Equal(time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_time: %s", updated.DateTime)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	store := &fakeStore{
		appt:       scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		updateErrs: map[int]error{0: storage.ErrNotFound},
	}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.Update(context.Background(), "missing", map[string]any{"notes": "x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_CancellationMergesFieldsAndStripsCancelledAt(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	sink := &fakeSink{}
	svc := NewService(store, sink, discardLogger())

	explicit := "2024-03-09T20:00:00Z"
	updated, err := svc.Update(context.Background(), "a1", map[string]any{
		"status":       model.StatusCancelled,
		"reason":       "patient request",
		"cancelled_at": explicit,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", updated.Status)
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected two writes (status then cancelled_at), got %d", len(store.updates))
	}

	primary := store.updates[0]
	if primary["status"] != model.StatusCancelled {
		t.Fatalf("primary write missing status: %v", primary)
	}
	if primary["reason"] != "patient request" {
		t.Fatalf("normalized fields should merge into the status write: %v", primary)
	}
	if _, ok := primary["cancelled_at"]; ok {
		t.Fatalf("cancelled_at must not ride the primary write: %v", primary)
	}

	secondary := store.updates[1]
	if len(secondary) != 1 {
		t.Fatalf("secondary write must set cancelled_at only: %v", secondary)
	}
	got := secondary["cancelled_at"].(time.Time)
	if !got.Equal(time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("explicit cancelled_at not honored: %s", got.Format(time.RFC3339))
	}

	if len(sink.cancelled) != 1 {
		t.Fatalf("expected one cancellation event, got %d", len(sink.cancelled))
	}
}

func TestUpdate_ClockOnlyCancelledAtRejected(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	svc := NewService(store, nil, discardLogger())

	_, err := svc.Update(context.Background(), "a1", map[string]any{
		"status":       model.StatusCancelled,
		"cancelled_at": "15:30",
	})
	if !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime for clock-only cancelled_at, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no store writes, got %d", len(store.updates))
	}
}

func TestCancel_TwoWrites(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))}
	svc := NewService(store, nil, discardLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }

	updated, err := svc.Cancel(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if updated.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", updated.Status)
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected two writes, got %d", len(store.updates))
	}
	if len(store.updates[0]) != 1 || store.updates[0]["status"] != model.StatusCancelled {
		t.Fatalf("dedicated cancel must write status only: %v", store.updates[0])
	}
	at := store.updates[1]["cancelled_at"].(time.Time)
	if !at.Equal(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("cancelled_at should be the current time: %s", at)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{appt: model.Appointment{
		ID:          "a1",
		Status:      model.StatusCancelled,
		CancelledAt: &at,
	}}
	svc := NewService(store, nil, discardLogger())

	first, err := svc.Cancel(context.Background(), "a1")
	if err != nil {
		t.Fatalf("first Cancel failed: %v", err)
	}
	second, err := svc.Cancel(context.Background(), "a1")
	if err != nil {
		t.Fatalf("second Cancel failed: %v", err)
	}
	if len(store.updates) != 0 {
		t.Fatalf("already-cancelled appointment must not be written, got %d writes", len(store.updates))
	}
	if first.ID != second.ID || first.Status != second.Status {
		t.Fatalf("repeated cancel should return the same record: %+v vs %+v", first, second)
	}
}

func TestCancel_NotFound(t *testing.T) {
	store := &fakeStore{getErr: storage.ErrNotFound}
	svc := NewService(store, nil, discardLogger())

	if _, err := svc.Cancel(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancel_LookupFailed(t *testing.T) {
	store := &fakeStore{getErr: errors.New("connection reset")}
	svc := NewService(store, nil, discardLogger())

	if _, err := svc.Cancel(context.Background(), "a1"); !errors.Is(err, ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestCancel_StatusWriteFailed(t *testing.T) {
	store := &fakeStore{
		appt:       scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		updateErrs: map[int]error{0: errors.New("write timeout")},
	}
	svc := NewService(store, nil, discardLogger())

	if _, err := svc.Cancel(context.Background(), "a1"); !errors.Is(err, ErrStatusUpdateFailed) {
		t.Fatalf("expected ErrStatusUpdateFailed, got %v", err)
	}
}

func TestCancel_SecondaryWriteFailureStillSucceeds(t *testing.T) {
	store := &fakeStore{
		appt:       scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		updateErrs: map[int]error{1: errors.New("write timeout")},
	}
	svc := NewService(store, nil, discardLogger())

	updated, err := svc.Cancel(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Cancel must tolerate a cancelled_at write failure, got %v", err)
	}
	if updated.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled status, got %q", updated.Status)
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected both writes attempted, got %d", len(store.updates))
	}
}

func TestCancel_EventSinkFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{appt: scheduled(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}
	sink := &fakeSink{err: errors.New("broker down")}
	svc := NewService(store, sink, discardLogger())

	if _, err := svc.Cancel(context.Background(), "a1"); err != nil {
		t.Fatalf("event enqueue failure must not fail the cancel: %v", err)
	}
}
