package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinibook/clinibook/libs/config"
	"github.com/clinibook/clinibook/libs/db"
	"github.com/clinibook/clinibook/libs/httpx"
	"github.com/clinibook/clinibook/libs/kafkax"
	otelx "github.com/clinibook/clinibook/libs/otel"
	"github.com/clinibook/clinibook/libs/runtime"
	"github.com/clinibook/clinibook/services/records-service/internal/blobstore"
	"github.com/clinibook/clinibook/services/records-service/internal/handlers"
	"github.com/clinibook/clinibook/services/records-service/internal/outbox"
	"github.com/clinibook/clinibook/services/records-service/internal/scheduling"
	"github.com/clinibook/clinibook/services/records-service/internal/storage"
)

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "records-service")
	port, err := config.Port("PORT", "8080")
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

	apptRepo := storage.NewAppointmentRepository(pool)
	docRepo := storage.NewDocumentRepository(pool)
	practitionerRepo := storage.NewPractitionerRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	blobDir := config.String("BLOB_DIR", "/var/lib/clinibook/documents")
	blobs, err := blobstore.NewFSStore(
		blobDir,
		config.String("PUBLIC_BASE_URL", "http://localhost:"+port+"/files"),
	)
	if err != nil {
		logger.Error("blob store init failed", "err", err)
		panic(err)
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	schedulingSvc := scheduling.NewService(apptRepo, outbox.NewCancellationEvents(outboxRepo), logger)

	apptHandler := handlers.NewAppointmentHandler(apptRepo, schedulingSvc, logger)
	docHandler := handlers.NewDocumentHandler(docRepo, blobs, logger)
	practitionerHandler := handlers.NewPractitionerHandler(practitionerRepo, logger)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")
	authHandler := handlers.NewAuthHandler(practitionerRepo, jwtSecret,
		time.Duration(config.Int("TOKEN_TTL_HOURS", 24))*time.Hour, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/appointments", apptHandler.Create)
	mux.HandleFunc("GET /api/v1/appointments", apptHandler.List)
	mux.HandleFunc("GET /api/v1/appointments/{id}", apptHandler.Get)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}", apptHandler.Update)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", apptHandler.Cancel)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", apptHandler.Delete)
	mux.HandleFunc("POST /api/v1/documents", docHandler.Upload)
	mux.HandleFunc("GET /api/v1/documents", docHandler.List)
	mux.HandleFunc("GET /api/v1/documents/{id}", docHandler.Get)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", docHandler.Delete)
	mux.HandleFunc("POST /api/v1/practitioners", practitionerHandler.Create)
	mux.HandleFunc("GET /api/v1/practitioners", practitionerHandler.List)
	mux.HandleFunc("GET /api/v1/practitioners/{id}", practitionerHandler.Get)
	mux.HandleFunc("PATCH /api/v1/practitioners/{id}", practitionerHandler.Update)
	mux.HandleFunc("DELETE /api/v1/practitioners/{id}", practitionerHandler.Delete)
	mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(blobDir))))

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PATCH,DELETE,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
		}),
		httpx.WithBodyLimit(32 << 20),
		httpx.WithTimeout(30 * time.Second),
	}
	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 300)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(rateLimit, time.Minute).Middleware())
	}
	if config.Bool("AUTH_REQUIRED", false) {
		middlewares = append(middlewares, handlers.RequireAuth(jwtSecret))
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "records")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
