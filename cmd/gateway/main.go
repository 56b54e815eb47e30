package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/mind-engage/mindengage-exams/internal/api/http"
	auth "github.com/mind-engage/mindengage-exams/internal/auth/middleware"
	"github.com/mind-engage/mindengage-exams/internal/config"
	"github.com/mind-engage/mindengage-exams/internal/db"
	"github.com/mind-engage/mindengage-exams/internal/exam"
	"github.com/mind-engage/mindengage-exams/internal/metrics"
	syncx "github.com/mind-engage/mindengage-exams/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- Store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc, closeStore, err := openService(ctx, cfg)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer closeStore()

	// --- Auth (local JWT for offline/dev) ---
	accounts := make(map[string]string, len(cfg.Institutes))
	for _, a := range cfg.Institutes {
		accounts[a.ID] = a.PasswordHash
	}
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL, accounts)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.EnableMetrics {
		r.Use(metrics.Instrument)
		r.Handle("/metrics", promhttp.Handler())
	}

	api.Mount(r, svc, authSvc, api.RouteOptions{EnableLocalAuth: cfg.EnableLocalAuth})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openService picks the Store for cfg.DBDriver. SQL backends also get the
// event log as the service's event sink.
func openService(ctx context.Context, cfg config.Config) (*exam.Service, func(), error) {
	switch db.Driver(cfg.DBDriver) {
	case db.DriverMemory:
		log.Printf("using in-memory store; data is lost on exit")
		return exam.NewService(exam.NewInMemoryStore()), func() {}, nil

	case db.DriverMongo:
		client, mdb, err := db.OpenMongo(ctx, cfg.DBDSN, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		store := exam.NewMongoStore(mdb)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}
		return exam.NewService(store), closeFn, nil

	default:
		dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		events := syncx.NewEventRepo(dbh, cfg.SiteID)
		svc := exam.NewService(exam.NewSQLStore(dbh), exam.WithEvents(events))
		return svc, func() { _ = dbh.Close() }, nil
	}
}
