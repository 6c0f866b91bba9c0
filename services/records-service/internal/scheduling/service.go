package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinibook/clinibook/services/records-service/internal/model"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
	"github.com/clinibook/clinibook/services/records-service/internal/timeparse"
)

var (
	ErrNoUpdateData       = errors.New("no update data provided")
	ErrInvalidTime        = errors.New("invalid time value")
	ErrNoBaseDate         = errors.New("cannot determine base date for clock time")
	ErrLookupFailed       = errors.New("appointment lookup failed")
	ErrStatusUpdateFailed = errors.New("status update failed")
)

// Store is the record-store contract the orchestrator needs: a filtered
// read and a partial update on the appointments collection. Update
// returns the full record after the write, or storage.ErrNotFound when
// no record matched the id.
type Store interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
	Update(ctx context.Context, id string, fields map[string]any) (model.Appointment, error)
}

// EventSink receives the fact that an appointment reached its terminal
// state. Failures are logged by the service, never surfaced.
type EventSink interface {
	AppointmentCancelled(ctx context.Context, appt model.Appointment) error
}

type Service struct {
	store  Store
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, events EventSink, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Update applies a partial update to the appointment identified by id.
// The time fields date_time, start_time and end_time are normalized to
// absolute timestamps before anything is written; a normalization
// failure aborts the whole update. A payload carrying status=cancelled
// is routed through the cancellation flow, with the remaining normalized
// fields merged into the status write.
func (s *Service) Update(ctx context.Context, id string, fields map[string]any) (model.Appointment, error) {
	if len(fields) == 0 {
		return model.Appointment{}, ErrNoUpdateData
	}

	norm := make(map[string]any, len(fields))
	for k, v := range fields {
		norm[k] = v
	}

	// base is the calendar-date reference for bare clock times: the
	// payload's own date_time when present, otherwise the persisted one,
	// fetched at most once.
	var base time.Time
	baseResolved := false

	if raw, ok := norm["date_time"]; ok {
		str, ok := raw.(string)
		if !ok {
			return model.Appointment{}, fmt.Errorf("%w: date_time", ErrInvalidTime)
		}
		var ref time.Time
		if timeparse.IsClockTime(str) {
			persisted, err := s.persistedBaseDate(ctx, id)
			if err != nil {
				return model.Appointment{}, err
			}
			ref = persisted
		}
		t, err := timeparse.Normalize(str, ref)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("%w: date_time %q", ErrInvalidTime, str)
		}
		norm["date_time"] = t
		base = t
		baseResolved = true
	}

	for _, field := range []string{"start_time", "end_time"} {
		raw, ok := norm[field]
		if !ok {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return model.Appointment{}, fmt.Errorf("%w: %s", ErrInvalidTime, field)
		}
		var ref time.Time
		if timeparse.IsClockTime(str) {
			if !baseResolved {
				persisted, err := s.persistedBaseDate(ctx, id)
				if err != nil {
					return model.Appointment{}, err
				}
				base = persisted
				baseResolved = true
			}
			ref = base
		}
		t, err := timeparse.Normalize(str, ref)
		if err != nil {
			return model.Appointment{}, fmt.Errorf("%w: %s %q", ErrInvalidTime, field, str)
		}
		norm[field] = t
	}

	if status, ok := norm["status"].(string); ok && status == model.StatusCancelled {
		var explicit *time.Time
		if raw, ok := norm["cancelled_at"]; ok {
			str, ok := raw.(string)
			if !ok {
				return model.Appointment{}, fmt.Errorf("%w: cancelled_at", ErrInvalidTime)
			}
			// No base date here: a clock-only cancelled_at has no calendar
			// anchor, so bare HH:MM fails where start/end would borrow one.
			t, err := timeparse.Normalize(str, time.Time{})
			if err != nil {
				return model.Appointment{}, fmt.Errorf("%w: cancelled_at %q", ErrInvalidTime, str)
			}
			explicit = &t
			// cancelled_at never rides the primary status write.
			delete(norm, "cancelled_at")
		}
		return s.cancel(ctx, id, norm, explicit)
	}

	updated, err := s.store.Update(ctx, id, norm)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, storage.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return updated, nil
}

// Cancel marks the appointment cancelled. Cancelling an appointment that
// is already cancelled is a no-op success.
func (s *Service) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	return s.cancel(ctx, id, map[string]any{"status": model.StatusCancelled}, nil)
}

// cancel runs the two-step terminal transition: the status write must
// succeed, the cancelled_at write is best-effort. The returned record is
// the one the status write produced; it deliberately does not reflect
// the second write's outcome.
func (s *Service) cancel(ctx context.Context, id string, fields map[string]any, explicitCancelledAt *time.Time) (model.Appointment, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, storage.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if current.Status == model.StatusCancelled {
		return current, nil
	}

	fields["status"] = model.StatusCancelled
	updated, err := s.store.Update(ctx, id, fields)
	if err != nil {
		if storage.IsNotFound(err) {
			// The record vanished between the read and the write.
			return model.Appointment{}, storage.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrStatusUpdateFailed, err)
	}

	cancelledAt := s.now().UTC()
	if explicitCancelledAt != nil {
		cancelledAt = *explicitCancelledAt
	}
	if _, err := s.store.Update(ctx, id, map[string]any{"cancelled_at": cancelledAt}); err != nil {
		// The status transition already committed; the caller still gets
		// a success. The record stays cancelled without a timestamp.
		s.logger.Warn("cancelled_at write failed",
			"appointment_id", id,
			"err", err,
		)
	}

	if s.events != nil {
		if err := s.events.AppointmentCancelled(ctx, updated); err != nil {
			s.logger.Warn("cancellation event enqueue failed",
				"appointment_id", id,
				"err", err,
			)
		}
	}

	return updated, nil
}

func (s *Service) persistedBaseDate(ctx context.Context, id string) (time.Time, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoBaseDate, err)
	}
	if appt.DateTime.IsZero() {
		return time.Time{}, ErrNoBaseDate
	}
	return appt.DateTime, nil
}
