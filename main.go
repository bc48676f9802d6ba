package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "meterdesk/internal/api/http"
	"meterdesk/internal/audit"
	"meterdesk/internal/auth"
	"meterdesk/internal/extraction"
	"meterdesk/internal/extraction/ocr"
	meterapp "meterdesk/internal/metering/application"
	meteringrepo "meterdesk/internal/metering/infrastructure/postgres"
	meteringhttp "meterdesk/internal/metering/interfaces/http"
	"meterdesk/internal/observability/metrics"
	portfolioapp "meterdesk/internal/portfolio/application"
	portfoliorepo "meterdesk/internal/portfolio/infrastructure/postgres"
	portfoliohttp "meterdesk/internal/portfolio/interfaces/http"

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
	auditRepo := audit.NewRepository(db)

	meterRepo := meteringrepo.NewMeterRepository(db)
	readingRepo := meteringrepo.NewReadingRepository(db)
	buildingRepo := portfoliorepo.NewBuildingRepository(db)
	unitRepo := portfoliorepo.NewUnitRepository(db)

	meterService, err := meterapp.NewMeterService(meterRepo, readingRepo, logger)
	if err != nil {
		logger.Fatalf("meter service error: %v", err)
	}
	normalizer := meterapp.NewNormalizer(nil)
	importService, err := meterapp.NewImportService(meterRepo, readingRepo, normalizer, logger)
	if err != nil {
		logger.Fatalf("import service error: %v", err)
	}
	chainService, err := meterapp.NewChainService(meterRepo, importService, logger)
	if err != nil {
		logger.Fatalf("chain service error: %v", err)
	}
	portfolioService, err := portfolioapp.NewService(buildingRepo, unitRepo, meterService, logger)
	if err != nil {
		logger.Fatalf("portfolio service error: %v", err)
	}

	extractionCfg, err := extraction.LoadConfig()
	if err != nil {
		logger.Fatalf("extraction config error: %v", err)
	}
	var oracle *ocr.Client
	if extractionCfg.OracleBaseURL != "" {
		oracle, err = ocr.NewClient(extractionCfg.OracleBaseURL, extractionCfg.OracleToken)
		if err != nil {
			logger.Fatalf("ocr client error: %v", err)
		}
	} else {
		logger.Printf("OCR_BASE_URL not set, document and photo scanning disabled")
	}

	meterHandler, err := meteringhttp.NewHandler(meterService, importService, normalizer, auditRepo, logger)
	if err != nil {
		logger.Fatalf("meter handler error: %v", err)
	}
	scanHandler, err := meteringhttp.NewScanHandler(oracle, chainService, extractionCfg.SwapHeuristic, extractionCfg.MaxUploadBytes, extractionCfg.DefaultLocale, auditRepo, logger)
	if err != nil {
		logger.Fatalf("scan handler error: %v", err)
	}
	portfolioHandler, err := portfoliohttp.NewHandler(portfolioService, meterService, auth.NewOrgChecker(db), auditRepo, logger)
	if err != nil {
		logger.Fatalf("portfolio handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/meters", meterHandler)
	mux.Handle("/api/v1/meters/", meterHandler)
	mux.Handle("/api/v1/buildings", portfolioHandler)
	mux.Handle("/api/v1/buildings/", portfolioHandler)
	mux.Handle("/api/v1/units/", portfolioHandler)
	mux.Handle("/api/v1/imports/parse", scanHandler)
	mux.Handle("/api/v1/scan/", scanHandler)
	mux.Handle("/api/v1/stats", apihttp.NewStatsHandler(db))
	mux.Handle("/api/v1/audit", apihttp.NewAuditLogHandler(db))
	mux.Handle("/api/v1/exports/audit.csv", apihttp.NewExportAuditCSVHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
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
