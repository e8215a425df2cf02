package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"program-mapping/internal/audit"
	"program-mapping/internal/auth"
	mappingapp "program-mapping/internal/mapping/application"
	mapping "program-mapping/internal/mapping/domain"
	"program-mapping/internal/mapping/infrastructure/memory"
	mappingpostgres "program-mapping/internal/mapping/infrastructure/postgres"
	mappinghttp "program-mapping/internal/mapping/interfaces/http"
	"program-mapping/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	mappingCfg, err := mappingapp.LoadConfig()
	if err != nil {
		logger.Fatalf("mapping config error: %v", err)
	}

	var (
		db       *sql.DB
		backend  backendStores
		auditLog audit.Trail
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		catalogRepo := mappingpostgres.NewCatalogRepository(db)
		mappingRepo := mappingpostgres.NewMappingRepository(db)
		backend = backendStores{
			catalog:  catalogRepo,
			mappings: mappingRepo,
			facets:   catalogRepo,
			sink:     mappingRepo,
			labels:   catalogRepo,
			programs: mappingRepo,
		}
		auditLog = audit.NewRepository(db)
	} else {
		logger.Printf("DATABASE_URL not set; serving in-memory demo catalog for tenant %s", cfg.TenantID)
		store := demoStore(cfg.TenantID)
		backend = backendStores{
			catalog:  store,
			mappings: store,
			facets:   store,
			sink:     store,
			labels:   store,
			programs: store,
		}
		auditLog = &audit.Recorder{}
	}

	metrics.Init(db, logger)

	loader, err := mappingapp.NewLoader(backend.catalog, backend.mappings, backend.facets,
		mappingapp.WithPreloadDelay(mappingCfg.PreloadDelay))
	if err != nil {
		logger.Fatalf("mapping loader error: %v", err)
	}
	registry := mappingapp.NewRegistry(mappingCfg.SessionTTL, nil)
	service, err := mappingapp.NewService(loader, backend.sink, registry, mappingCfg,
		mappingapp.WithLabelLookup(backend.labels),
		mappingapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("mapping service error: %v", err)
	}
	go service.RunSweeper(context.Background(), cfg.SweepInterval)

	handler, err := mappinghttp.NewHandler(service, auth.NewProgramChecker(backend.programs), auditLog, logger)
	if err != nil {
		logger.Fatalf("mapping handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, logger)
	if authMiddleware == nil {
		logger.Printf("AUTH_JWT_SECRET not set; auth disabled")
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s (window=%d fields=%v)", cfg.HTTPAddr, mappingCfg.WindowSize, mappingCfg.Fields.Keys())
	logger.Fatal(server.ListenAndServe())
}

type backendStores struct {
	catalog  mappingapp.CatalogLoader
	mappings mappingapp.MappingLoader
	facets   mappingapp.FacetLoader
	sink     mappingapp.PersistenceSink
	labels   mappingapp.FieldLabelLookup
	programs auth.ProgramLookup
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	TenantID      string
	JWTSecret     string
	SweepInterval time.Duration
}

func loadConfig() config {
	return config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:      getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		SweepInterval: getenvDuration("MAPPING_SWEEP_INTERVAL", time.Minute),
	}
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
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

// demoStore seeds a small catalog so the service runs without Postgres.
func demoStore(tenantID string) *memory.Store {
	size := getenvIntDefault("DEMO_PRODUCTS", 4)
	names := []string{"Core Platform", "Analytics Suite", "Edge Gateway", "Field Service", "Billing Hub", "Identity Vault"}
	powers := []string{"High", "Medium", "Low"}
	segments := []string{"Enterprise", "Mid-Market", "SMB"}
	if size <= 0 || size > len(names) {
		size = len(names)
	}

	products := make([]mapping.ProductMasterRecord, 0, size)
	for i := 0; i < size; i++ {
		products = append(products, mapping.ProductMasterRecord{
			ProductID: mapping.NewRecordID("01t"),
			Name:      names[i],
			Power:     powers[i%len(powers)],
			Segment:   segments[i%len(segments)],
		})
	}
	store := memory.NewStore(products)
	store.PutProgram(mapping.Program{ID: "program-demo", TenantID: tenantID, Name: "Demo Program"})
	return store
}
