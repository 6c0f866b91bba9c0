package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinibook/clinibook/libs/config"
	"github.com/clinibook/clinibook/libs/db"
	"github.com/clinibook/clinibook/libs/httpx"
	"github.com/clinibook/clinibook/libs/kafkax"
	otelx "github.com/clinibook/clinibook/libs/otel"
	"github.com/clinibook/clinibook/libs/runtime"
	"github.com/clinibook/clinibook/services/notification-service/internal/consumer"
	"github.com/clinibook/clinibook/services/notification-service/internal/email"
	"github.com/clinibook/clinibook/services/notification-service/internal/inbox"
	"github.com/clinibook/clinibook/services/notification-service/internal/sms"
	"github.com/clinibook/clinibook/services/notification-service/internal/storage"
)

type cancellationPayload struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	DateTime      string `json:"date_time"`
	CancelledAt   string `json:"cancelled_at"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	repo := storage.NewRepository(pool)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@clinibook.local"),
	)

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(
			config.String("SMS_WEBHOOK_URL", ""),
			config.String("SMS_WEBHOOK_TOKEN", ""),
		)
	default:
		smsSender = sms.NewNoopSender()
	}
	smsEnabled := config.Bool("SMS_ENABLED", false)

	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "records.appointment.cancelled.v1"),
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload cancellationPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancellation payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.DoctorID == "" {
			logger.Error("missing cancellation fields", "topic", msg.Topic)
			return nil
		}

		contact, err := repo.PractitionerContactByID(ctx, payload.DoctorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				logger.Warn("no practitioner record for cancelled appointment",
					"appointment_id", payload.AppointmentID, "doctor_id", payload.DoctorID)
				return nil
			}
			return err
		}

		when := payload.DateTime
		if t, err := time.Parse(time.RFC3339, payload.DateTime); err == nil {
			when = t.UTC().Format("2006-01-02 15:04 MST")
		}
		subject := "Appointment cancelled"
		body := fmt.Sprintf("Hello %s,\n\nThe appointment scheduled for %s (appointment %s) was cancelled. The slot is available again.\n",
			contact.FullName, when, payload.AppointmentID)

		status := "sent"
		if err := emailSender.Send(contact.Email, subject, body); err != nil {
			status = "failed"
			logger.Error("email send failed", "err", err, "recipient", contact.Email)
		}
		if err := repo.Insert(ctx, storage.Notification{
			AppointmentID: payload.AppointmentID,
			DoctorID:      payload.DoctorID,
			Channel:       "email",
			Recipient:     contact.Email,
			Payload:       map[string]any{"date_time": payload.DateTime, "cancelled_at": payload.CancelledAt},
			Status:        status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		if smsEnabled && contact.Phone != "" {
			smsStatus := "sent"
			smsBody := fmt.Sprintf("Appointment %s on %s was cancelled.", payload.AppointmentID, when)
			if err := smsSender.Send(ctx, contact.Phone, smsBody); err != nil {
				smsStatus = "failed"
				logger.Error("sms send failed", "err", err, "recipient", contact.Phone, "provider", smsSender.ProviderID())
			}
			if err := repo.Insert(ctx, storage.Notification{
				AppointmentID: payload.AppointmentID,
				DoctorID:      payload.DoctorID,
				Channel:       "sms",
				Recipient:     contact.Phone,
				Payload:       map[string]any{"date_time": payload.DateTime},
				Status:        smsStatus,
			}); err != nil {
				logger.Error("failed to persist notification", "err", err)
			}
		}

		logger.Info("cancellation processed",
			"appointment_id", payload.AppointmentID, "doctor_id", payload.DoctorID, "status", status)
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
