package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "fleettrack-harvest/internal/api/http"
	"fleettrack-harvest/internal/auth"
	"fleettrack-harvest/internal/blob"
	"fleettrack-harvest/internal/eventing"
	eventingrepo "fleettrack-harvest/internal/eventing/infrastructure/postgres"
	"fleettrack-harvest/internal/harvest"
	"fleettrack-harvest/internal/observability/metrics"
	"fleettrack-harvest/internal/tracking/application"
	"fleettrack-harvest/internal/tracking/application/eventbus"
	"fleettrack-harvest/internal/tracking/application/events"
	tracking "fleettrack-harvest/internal/tracking/domain"
	trackingrepo "fleettrack-harvest/internal/tracking/infrastructure/postgres"
	"fleettrack-harvest/internal/tracking/interfaces/eventgrid"
	"fleettrack-harvest/internal/tracking/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	clock, err := tracking.NewZoneClock(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone error: %v", err)
	}

	store, err := blob.NewS3Store(context.Background(), blob.S3Config{
		Bucket:   cfg.BlobBucket,
		Region:   cfg.BlobRegion,
		Endpoint: cfg.BlobEndpoint,
	})
	if err != nil {
		logger.Fatalf("blob store error: %v", err)
	}

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.TelemetryLogged{})
	registry.Register(events.DeviceCreated{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	uow := trackingrepo.NewUnitOfWork(db, nil, nil)
	reconciler, err := application.NewReconciler(uow, clock, publisher, logger)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}

	if cfg.DeviceWebhookURL != "" {
		notifier := notify.NewWebhookNotifier(cfg.DeviceWebhookURL)
		notify.SubscribeDeviceCreated(baseBus, notifier, processedStore, logger)
	}

	webhookHandler, err := eventgrid.NewWebhookHandler(reconciler, store, clock.Location(), logger)
	if err != nil {
		logger.Fatalf("webhook handler error: %v", err)
	}

	if cfg.HarvestEnabled {
		harvestCfg, err := harvest.LoadConfig()
		if err != nil {
			logger.Fatalf("harvest config error: %v", err)
		}
		harvestStore, err := blob.NewS3Store(context.Background(), blob.S3Config{
			Bucket:   harvestCfg.Bucket,
			Region:   cfg.BlobRegion,
			Endpoint: cfg.BlobEndpoint,
		})
		if err != nil {
			logger.Fatalf("harvest store error: %v", err)
		}
		scanner, err := harvest.NewScanner(harvestStore, reconciler, clock, clock.Location(), harvestCfg, logger)
		if err != nil {
			logger.Fatalf("harvest scanner error: %v", err)
		}
		scheduler := harvest.NewScheduler(scanner, harvestCfg.Interval, logger)
		go scheduler.Start(context.Background())
	}

	deviceQuery := trackingrepo.NewDeviceQuery(db)

	policy := auth.NewDefaultPolicy([]string{"/", "/livez", "/readyz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	var ingestHandler http.Handler = webhookHandler
	if cfg.IngestSecret != "" {
		ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)
		ingestHandler = ingestAuth.Wrap(webhookHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/", ingestHandler)
	mux.Handle("/api/v1/devices", apihttp.NewDevicesHandler(deviceQuery, tracking.SourceTypeFleetcare))
	mux.Handle("/api/v1/devices/", apihttp.NewDeviceHandler(deviceQuery, tracking.SourceTypeFleetcare, logger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	Timezone          string
	BlobBucket        string
	BlobRegion        string
	BlobEndpoint      string
	DeviceWebhookURL  string
	HarvestEnabled    bool
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		Timezone:          getenvDefault("TRACKING_TZ", tracking.DefaultTimezone),
		BlobBucket:        getenvDefault("BLOB_BUCKET", ""),
		BlobRegion:        getenvDefault("BLOB_REGION", ""),
		BlobEndpoint:      getenvDefault("BLOB_ENDPOINT", ""),
		DeviceWebhookURL:  getenvDefault("DEVICE_WEBHOOK_URL", ""),
		HarvestEnabled:    os.Getenv("HARVEST_BUCKET") != "" || os.Getenv("HARVEST_CONFIG") != "",
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.BlobBucket == "" {
		log.Fatal("BLOB_BUCKET is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
